package repository

import (
	"context"
	"encoding/json"
	"time"

	cachedomain "ema-backend/internal/cache/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheRepository is the durable AI-response cache.
type CacheRepository interface {
	// Get returns the value under hash, or ok=false when it is missing or
	// older than its family's TTL.
	Get(ctx context.Context, hash string) (value string, ok bool, err error)
	Put(ctx context.Context, family cachedomain.Family, hash, value string) error
	Delete(ctx context.Context, hash string) error
	// SweepExpired deletes every entry older than its family's TTL.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type cacheRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCacheRepository(db *gorm.DB) CacheRepository {
	return &cacheRepository{db: db, now: time.Now}
}

func (r *cacheRepository) Get(ctx context.Context, hash string) (string, bool, error) {
	var entry cachedomain.CachedEntry
	err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	if entry.Expired(r.now()) {
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (r *cacheRepository) Put(ctx context.Context, family cachedomain.Family, hash, value string) error {
	entry := cachedomain.CachedEntry{
		Hash:      hash,
		Family:    family,
		Value:     value,
		CreatedAt: r.now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"family", "value", "created_at"}),
	}).Create(&entry).Error
}

func (r *cacheRepository) Delete(ctx context.Context, hash string) error {
	return r.db.WithContext(ctx).Where("hash = ?", hash).Delete(&cachedomain.CachedEntry{}).Error
}

func (r *cacheRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	byTTL := map[time.Duration][]cachedomain.Family{}
	for _, f := range []cachedomain.Family{
		cachedomain.FamilySummary,
		cachedomain.FamilyClassification,
		cachedomain.FamilyChatReply,
		cachedomain.FamilyEmail,
		cachedomain.FamilyEvent,
		cachedomain.FamilyEmailSummary,
		cachedomain.FamilyChatTurn,
	} {
		byTTL[f.TTL()] = append(byTTL[f.TTL()], f)
	}

	var total int64
	for ttl, families := range byTTL {
		res := r.db.WithContext(ctx).
			Where("family IN ? AND created_at < ?", families, now.Add(-ttl)).
			Delete(&cachedomain.CachedEntry{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

// GetJSON decodes a cached JSON value into out.
func GetJSON(ctx context.Context, repo CacheRepository, hash string, out any) (bool, error) {
	raw, ok, err := repo.Get(ctx, hash)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, nil
	}
	return true, nil
}

// PutJSON encodes v as JSON and stores it.
func PutJSON(ctx context.Context, repo CacheRepository, family cachedomain.Family, hash string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return repo.Put(ctx, family, hash, string(b))
}
