package config

import (
	"os"
	"strconv"
)

type Config struct {
	APIPort  string
	LogLevel string

	PostgresDSN  string
	WarehouseDSN string

	CacheBackend    string
	CacheTTLSeconds int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	NATSURL            string
	NATSTraceSubject   string
	NATSOutcomeSubject string

	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	OpenSearchURL      string
	OpenSearchIndex    string
	OpenSearchUsername string
	OpenSearchPassword string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIGenModel   string
	OpenAIEmbedModel string

	FusionTopK         int
	FusionTimeoutMs    int
	FusionRRFK         int
	FusionAlgorithm    string
	WeightSemantic     float64
	WeightKeyword      float64
	WeightStructured   float64
	MaxTokensPerSource int
	TokenizerEncoding  string

	PolicyMode         string
	PolicyPatternsFile string

	SourceRetryMaxAttempts int
	SourceBreakerEnabled   bool

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxConcurrent  int
	APIBackpressureMs int
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		PostgresDSN:  mustEnv("POSTGRES_DSN", ""),
		WarehouseDSN: mustEnv("WAREHOUSE_DSN", ""),

		CacheBackend:    mustEnv("CACHE_BACKEND", "memory"),
		CacheTTLSeconds: mustEnvInt("CACHE_TTL_SECONDS", 300),
		RedisAddr:       mustEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   mustEnv("REDIS_PASSWORD", ""),
		RedisDB:         mustEnvInt("REDIS_DB", 0),

		NATSURL:            mustEnv("NATS_URL", ""),
		NATSTraceSubject:   mustEnv("NATS_TRACE_SUBJECT", "retrieval.traces"),
		NATSOutcomeSubject: mustEnv("NATS_OUTCOME_SUBJECT", "retrieval.experiment_outcomes"),

		QdrantURL:        mustEnv("QDRANT_URL", ""),
		QdrantAPIKey:     mustEnv("QDRANT_API_KEY", ""),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "transcript_chunks"),

		OpenSearchURL:      mustEnv("OPENSEARCH_URL", ""),
		OpenSearchIndex:    mustEnv("OPENSEARCH_INDEX", "transcripts"),
		OpenSearchUsername: mustEnv("OPENSEARCH_USERNAME", ""),
		OpenSearchPassword: mustEnv("OPENSEARCH_PASSWORD", ""),

		OpenAIAPIKey:     mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    mustEnv("OPENAI_BASE_URL", ""),
		OpenAIGenModel:   mustEnv("OPENAI_GEN_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: mustEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),

		FusionTopK:         mustEnvInt("FUSION_TOP_K", 20),
		FusionTimeoutMs:    mustEnvInt("FUSION_TIMEOUT_MS", 2000),
		FusionRRFK:         mustEnvInt("FUSION_RRF_K", 60),
		FusionAlgorithm:    mustEnv("FUSION_ALGORITHM", "rrf"),
		WeightSemantic:     mustEnvFloat("FUSION_WEIGHT_SEMANTIC", 0.5),
		WeightKeyword:      mustEnvFloat("FUSION_WEIGHT_KEYWORD", 0.3),
		WeightStructured:   mustEnvFloat("FUSION_WEIGHT_STRUCTURED", 0.2),
		MaxTokensPerSource: mustEnvInt("MAX_TOKENS_PER_SOURCE", 2000),
		TokenizerEncoding:  mustEnv("TOKENIZER_ENCODING", "cl100k_base"),

		PolicyMode:         mustEnv("POLICY_MODE", "redact"),
		PolicyPatternsFile: mustEnv("POLICY_PATTERNS_FILE", ""),

		SourceRetryMaxAttempts: mustEnvInt("SOURCE_RETRY_MAX_ATTEMPTS", 2),
		SourceBreakerEnabled:   mustEnvBool("SOURCE_BREAKER_ENABLED", true),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 50),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 100),
		APIMaxConcurrent:  mustEnvInt("API_MAX_CONCURRENT", 256),
		APIBackpressureMs: mustEnvInt("API_BACKPRESSURE_MS", 100),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
