package chroma

import (
	"context"
	"fmt"
	"os"

	"ema-backend/pkg/config"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
)

const collectionName = "ema_emails"

// ChromaClient indexes fetched emails so questions about the inbox can be
// answered from the most relevant messages first.
type ChromaClient struct {
	client     chroma.Client
	collection chroma.Collection
}

func NewChromaClient(ctx context.Context, cfg *config.Config) (*ChromaClient, error) {
	if cfg.ChromaAPIKey == "" {
		return nil, fmt.Errorf("CHROMA_API_KEY is required")
	}

	// The embedding function reads its key from the environment.
	if cfg.GeminiApiKey != "" {
		os.Setenv("GEMINI_API_KEY", cfg.GeminiApiKey)
	}

	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel("text-embedding-004"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	var client chroma.Client
	switch {
	case cfg.ChromaDatabase != "" && cfg.ChromaTenant != "":
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant),
		)
	case cfg.ChromaTenant != "":
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithTenant(cfg.ChromaTenant),
		)
	default:
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	collection, err := client.GetOrCreateCollection(ctx, collectionName,
		chroma.WithEmbeddingFunctionCreate(embedFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &ChromaClient{client: client, collection: collection}, nil
}

func documentID(accountID, emailID string) chroma.DocumentID {
	return chroma.DocumentID(accountID + ":" + emailID)
}

// UpsertEmail indexes one email. Re-indexing the same id replaces it.
func (c *ChromaClient) UpsertEmail(ctx context.Context, accountID, emailID, from, subject, body string) error {
	text := fmt.Sprintf("From: %s\nSubject: %s\n\n%s", from, subject, body)
	if len(text) > 10000 {
		text = text[:10000]
	}

	metadata, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
		"account_id": accountID,
		"email_id":   emailID,
		"subject":    subject,
	})
	if err != nil {
		return fmt.Errorf("failed to create metadata: %w", err)
	}

	err = c.collection.Upsert(ctx,
		chroma.WithIDs(documentID(accountID, emailID)),
		chroma.WithMetadatas(metadata),
		chroma.WithTexts(text),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert email embedding: %w", err)
	}
	return nil
}

// Rank returns email ids most relevant to query, best first.
func (c *ChromaClient) Rank(ctx context.Context, accountID, query string, limit int) ([]string, error) {
	results, err := c.collection.Query(ctx,
		chroma.WithQueryTexts(query),
		chroma.WithNResults(limit),
		chroma.WithWhereQuery(chroma.EqString("account_id", accountID)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	if results == nil || results.CountGroups() == 0 {
		return nil, nil
	}

	idGroups := results.GetIDGroups()
	if len(idGroups) == 0 {
		return nil, nil
	}
	prefix := accountID + ":"
	ids := make([]string, 0, len(idGroups[0]))
	for _, id := range idGroups[0] {
		s := string(id)
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			s = s[len(prefix):]
		}
		ids = append(ids, s)
	}
	return ids, nil
}

func (c *ChromaClient) DeleteEmail(ctx context.Context, accountID, emailID string) error {
	if err := c.collection.Delete(ctx, chroma.WithIDsDelete(documentID(accountID, emailID))); err != nil {
		return fmt.Errorf("failed to delete email embedding: %w", err)
	}
	return nil
}
