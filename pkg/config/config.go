package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	DatabaseDSN string `envconfig:"DATABASE_DSN" default:"ema.db"`

	JWTSecret        string        `envconfig:"JWT_SECRET" default:"your-secret-key-change-in-production"`
	JWTSessionExpiry time.Duration `envconfig:"JWT_SESSION_EXPIRY" default:"720h"`
	TokenSealKey     string        `envconfig:"TOKEN_SEAL_KEY" default:""`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID" default:""`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET" default:""`
	GoogleProjectID    string `envconfig:"GOOGLE_PROJECT_ID" default:""`
	GooglePubSubTopic  string `envconfig:"GOOGLE_PUBSUB_TOPIC" default:""`
	GoogleCredentials  string `envconfig:"GOOGLE_CREDENTIALS" default:""`

	AIProvider    string `envconfig:"AI_PROVIDER" default:"auto"`
	GeminiApiKey  string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	OllamaBaseURL string `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434"`
	OllamaModel   string `envconfig:"OLLAMA_MODEL" default:"llama3"`

	ChromaAPIKey   string `envconfig:"CHROMA_API_KEY" default:""`
	ChromaTenant   string `envconfig:"CHROMA_TENANT" default:""`
	ChromaDatabase string `envconfig:"CHROMA_DATABASE" default:""`

	// Empty means the process's local zone.
	CalendarTimezone string `envconfig:"CALENDAR_TIMEZONE" default:""`

	SummaryWorkers      int           `envconfig:"SUMMARY_WORKERS" default:"3"`
	MaintenanceInterval time.Duration `envconfig:"MAINTENANCE_INTERVAL" default:"1h"`
	CacheLookupTimeout  time.Duration `envconfig:"CACHE_LOOKUP_TIMEOUT" default:"2s"`

	IMAPHost string `envconfig:"IMAP_HOST" default:"imap.gmail.com"`
	IMAPPort int    `envconfig:"IMAP_PORT" default:"993"`
	SMTPHost string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.TokenSealKey == "" {
		cfg.TokenSealKey = cfg.JWTSecret
	}
	return &cfg
}

// Location resolves CalendarTimezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if c.CalendarTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.CalendarTimezone)
	if err != nil {
		log.Printf("[Config] unknown CALENDAR_TIMEZONE %q, using local zone", c.CalendarTimezone)
		return time.Local
	}
	return loc
}
