package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backend names accepted by STORE_BACKEND.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendJSONL    = "jsonl"
	BackendMemory   = "memory"
)

type Config struct {
	Port string

	// Auth for the HTTP API
	APIKey string

	// Store backend selection
	StoreBackend string

	// Supabase connection
	SupabaseURL string
	SupabaseKey string

	// Direct Postgres connection
	PostgresDSN string

	// Local file backends
	SQLitePath string
	OutputPath string

	// Embeddings
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	EmbeddingModel string
	EmbeddingDims  int
	MockEmbeddings bool

	// Segmentation and classification
	MaxChunkTokens  int
	MinSectionChars int
	MaxKeywords     int
	BasePage        int

	// Upload pacing
	BatchSize  int
	BatchPause time.Duration

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Record identity
	SourceName    string
	TextbookTable string
	ResourceTable string

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("PEDIGEST_API_KEY"),

		StoreBackend: envOr("STORE_BACKEND", BackendSupabase),

		SupabaseURL: os.Getenv("SUPABASE_URL"),
		SupabaseKey: os.Getenv("SUPABASE_KEY"),

		PostgresDSN: os.Getenv("DATABASE_URL"),

		SQLitePath: envOr("SQLITE_PATH", "pedigest.db"),
		OutputPath: envOr("OUTPUT_PATH", "nelson_textbook_dataset.jsonl"),

		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		EmbeddingModel: envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDims:  envInt("EMBEDDING_DIMENSIONS", 1536),
		MockEmbeddings: envBool("MOCK_EMBEDDINGS", false),

		MaxChunkTokens:  envInt("MAX_CHUNK_TOKENS", 500),
		MinSectionChars: envInt("MIN_SECTION_CHARS", 50),
		MaxKeywords:     envInt("MAX_KEYWORDS", 10),
		BasePage:        envInt("BASE_PAGE", 1),

		BatchSize:  envInt("UPLOAD_BATCH_SIZE", 25),
		BatchPause: envDuration("UPLOAD_BATCH_PAUSE", 500*time.Millisecond),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		SourceName:    envOr("SOURCE_NAME", "Nelson Textbook of Pediatrics"),
		TextbookTable: envOr("TEXTBOOK_TABLE", "nelson_textbook"),
		ResourceTable: envOr("RESOURCE_TABLE", "pediatric_medical_resources"),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.EmbeddingDims <= 0 {
		cfg.EmbeddingDims = 1536
	}
	if cfg.MaxChunkTokens <= 0 {
		cfg.MaxChunkTokens = 500
	}
	if cfg.MinSectionChars < 0 {
		cfg.MinSectionChars = 50
	}
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = 10
	}
	if cfg.BasePage <= 0 {
		cfg.BasePage = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 500 * time.Millisecond
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate checks that the selected store backend and embedding provider
// have the credentials they need.
func (c Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if !c.MockEmbeddings && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required unless MOCK_EMBEDDINGS=true")
	}
	return nil
}

// ValidateStore checks only the store backend credentials. Commands that
// never embed (upload, stats) use this instead of Validate.
func (c Config) ValidateStore() error {
	switch c.StoreBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the supabase backend")
		}
		if c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_KEY is required for the supabase backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendSQLite, BackendJSONL, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
