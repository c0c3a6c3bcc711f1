package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"

	EmbedProviderGemini = "gemini"
	EmbedProviderJina   = "jina"
)

var defaultFeeds = []string{
	"http://feeds.bbci.co.uk/news/rss.xml",
	"https://feeds.reuters.com/reuters/topNews",
	"https://rss.cnn.com/rss/edition.rss",
	"https://feeds.npr.org/1001/rss.xml",
}

type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	DatabaseURL string

	AIAPIKey      string
	GenModel      string
	EmbedProvider string
	EmbedModel    string
	JinaAPIKey    string
	JinaAPIURL    string
	EmbedDim      int

	EmbedBatchSize  int
	EmbedBatchDelay time.Duration
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	GenTimeout      time.Duration

	RetrievalTopK    int
	MaxGroundingDocs int

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CacheTTL        time.Duration
	CacheMaxEntries int
	SessionTTL      time.Duration

	FeedURLs      []string
	FeedItemLimit int
	MaxArticles   int
	FeedDelay     time.Duration
	RefreshCron   string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	AwsEndpoint  string
	BucketName   string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "3001"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AIAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GenModel:      getEnv("GEN_MODEL", "gemini-1.5-flash"),
		EmbedProvider: strings.ToLower(getEnv("EMBED_PROVIDER", EmbedProviderGemini)),
		JinaAPIKey:    getEnv("JINA_API_KEY", ""),
		JinaAPIURL:    getEnv("JINA_API_URL", "https://api.jina.ai/v1/embeddings"),
		EmbedDim:      getEnvInt("EMBED_DIM", 768),

		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 10),
		EmbedBatchDelay: getEnvDuration("EMBED_BATCH_DELAY", time.Second),
		EmbedTimeout:    getEnvDuration("EMBED_TIMEOUT", 10*time.Second),
		SearchTimeout:   getEnvDuration("SEARCH_TIMEOUT", 10*time.Second),
		GenTimeout:      getEnvDuration("GEN_TIMEOUT", 30*time.Second),

		RetrievalTopK:    getEnvInt("RETRIEVAL_TOP_K", 5),
		MaxGroundingDocs: getEnvInt("MAX_GROUNDING_DOCS", 4),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", StoreBackendMemory)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CacheTTL:        getEnvDuration("CACHE_TTL", 30*time.Minute),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 10000),
		SessionTTL:      getEnvDuration("SESSION_TTL", time.Hour),

		FeedURLs:      getEnvList("FEED_URLS", defaultFeeds),
		FeedItemLimit: getEnvInt("FEED_ITEM_LIMIT", 20),
		MaxArticles:   getEnvInt("MAX_ARTICLES", 50),
		FeedDelay:     getEnvDuration("FEED_DELAY", time.Second),
		RefreshCron:   getEnv("REFRESH_CRON", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		AwsEndpoint:  getEnv("AWS_ENDPOINT", ""),
		BucketName:   getEnv("BUCKET_NAME", ""),
	}

	defaultModel := "text-embedding-004"
	if cfg.EmbedProvider == EmbedProviderJina {
		defaultModel = "jina-embeddings-v2-base-en"
	}
	cfg.EmbedModel = getEnv("EMBED_MODEL", defaultModel)

	return cfg
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	if c.AIAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY not set"))
	}
	switch c.EmbedProvider {
	case EmbedProviderGemini:
	case EmbedProviderJina:
		if c.JinaAPIKey == "" {
			errs = append(errs, errors.New("JINA_API_KEY not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMBED_PROVIDER %q not supported", c.EmbedProvider))
	}
	switch c.StoreBackend {
	case StoreBackendMemory, StoreBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q not supported", c.StoreBackend))
	}
	if c.EmbedDim <= 0 {
		errs = append(errs, errors.New("EMBED_DIM must be positive"))
	}
	if c.EmbedBatchSize <= 0 || c.EmbedBatchSize > 10 {
		errs = append(errs, errors.New("EMBED_BATCH_SIZE must be between 1 and 10"))
	}
	if c.RetrievalTopK <= 0 {
		errs = append(errs, errors.New("RETRIEVAL_TOP_K must be positive"))
	}
	if c.MaxGroundingDocs <= 0 || c.MaxGroundingDocs > 4 {
		errs = append(errs, errors.New("MAX_GROUNDING_DOCS must be between 1 and 4"))
	}
	if len(c.FeedURLs) == 0 {
		errs = append(errs, errors.New("FEED_URLS is empty"))
	}
	return errors.Join(errs...)
}

// ArchiveEnabled is true when snapshots of ingestion runs should go to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.BucketName != "" && c.AwsAccessKey != "" && c.AwsSecretKey != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: %s=%q not an int, using default %d\n", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: %s=%q not a duration, using default %s\n", key, v, def)
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
