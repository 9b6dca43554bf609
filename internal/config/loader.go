package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables, optionally overridden
// by a .env file in the working directory.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}

	cfg.Postgres.DSN = os.Getenv("POSTGRES_DSN")
	cfg.Postgres.MaxConns = int32(getIntEnv("POSTGRES_MAX_CONNS", 20))
	cfg.Postgres.MinConns = int32(getIntEnv("POSTGRES_MIN_CONNS", 5))
	cfg.Postgres.MaxConnLifetime = getDurationEnv("POSTGRES_MAX_CONN_LIFETIME", time.Hour)
	cfg.Postgres.MaxConnIdleTime = getDurationEnv("POSTGRES_MAX_CONN_IDLE_TIME", 5*time.Minute)

	cfg.Qdrant.DSN = firstNonEmpty(os.Getenv("QDRANT_DSN"), os.Getenv("QDRANT_URL"))
	cfg.Qdrant.Collection = firstNonEmpty(os.Getenv("QDRANT_COLLECTION"), "study_chunks")
	cfg.Qdrant.Dimensions = getIntEnv("QDRANT_DIMENSIONS", 1536)
	cfg.Qdrant.Metric = firstNonEmpty(strings.ToLower(os.Getenv("QDRANT_METRIC")), "cosine")

	cfg.S3.Bucket = os.Getenv("S3_BUCKET")
	cfg.S3.Region = firstNonEmpty(os.Getenv("S3_REGION"), "us-east-1")
	cfg.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.S3.SecretKey = os.Getenv("S3_SECRET_KEY")
	cfg.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3.UsePathStyle = getBoolEnv("S3_USE_PATH_STYLE", false)
	cfg.S3.Prefix = os.Getenv("S3_PREFIX")
	cfg.S3.TLSInsecureSkipVerify = getBoolEnv("S3_TLS_INSECURE_SKIP_VERIFY", false)
	cfg.S3.SSE.Mode = strings.ToLower(os.Getenv("S3_SSE_MODE"))
	cfg.S3.SSE.KMSKeyID = os.Getenv("S3_SSE_KMS_KEY_ID")

	cfg.Embedding.BaseURL = os.Getenv("EMBEDDING_BASE_URL")
	cfg.Embedding.Path = firstNonEmpty(os.Getenv("EMBEDDING_PATH"), "/v1/embeddings")
	cfg.Embedding.Model = os.Getenv("EMBEDDING_MODEL")
	cfg.Embedding.APIKey = os.Getenv("EMBEDDING_API_KEY")
	cfg.Embedding.APIHeader = firstNonEmpty(os.Getenv("EMBEDDING_API_HEADER"), "Authorization")
	cfg.Embedding.Dimensions = getIntEnv("EMBEDDING_DIMENSIONS", 1536)
	cfg.Embedding.Timeout = getDurationEnv("EMBEDDING_TIMEOUT", 60*time.Second)

	cfg.Reranker.BaseURL = os.Getenv("RERANKER_BASE_URL")
	cfg.Reranker.Path = firstNonEmpty(os.Getenv("RERANKER_PATH"), "/v1/rerank")
	cfg.Reranker.Model = os.Getenv("RERANKER_MODEL")
	cfg.Reranker.APIKey = os.Getenv("RERANKER_API_KEY")
	cfg.Reranker.Timeout = getDurationEnv("RERANKER_TIMEOUT", 60*time.Second)
	cfg.Reranker.MinRerankScore = getFloatEnv("RERANKER_MIN_SCORE", 0.01)
	cfg.Reranker.DefaultTopN = getIntEnv("RERANKER_DEFAULT_TOP_N", 8)

	cfg.Generator.Provider = firstNonEmpty(strings.ToLower(os.Getenv("LLM_PROVIDER")), "openai")
	cfg.Generator.BaseURL = os.Getenv("LLM_BASE_URL")
	cfg.Generator.APIKey = firstNonEmpty(os.Getenv("OPENAI_API_KEY"), os.Getenv("ANTHROPIC_API_KEY"))
	cfg.Generator.Model = firstNonEmpty(os.Getenv("LLM_MODEL"), "gpt-4o-mini")
	cfg.Generator.Timeout = getDurationEnv("LLM_TIMEOUT", 90*time.Second)

	cfg.Ingestion.ChunkTokenBudget = getIntEnv("CHUNK_TOKEN_BUDGET", 1500)
	cfg.Ingestion.ChunkOverlapTokens = getIntEnv("CHUNK_OVERLAP_TOKENS", 0)
	cfg.Ingestion.SmallSiblingMinTokens = getIntEnv("CHUNK_SMALL_SIBLING_MIN_TOKENS", 200)
	cfg.Ingestion.EnrichmentConcurrency = getIntEnv("ENRICHMENT_CONCURRENCY", 10)
	cfg.Ingestion.EnrichTimeout = getDurationEnv("ENRICH_TIMEOUT", 90*time.Second)

	cfg.Retrieval.RRFK0 = getIntEnv("RRF_K0", 60)
	cfg.Retrieval.DenseScoreThreshold = getFloatEnv("DENSE_SCORE_THRESHOLD", 0.05)
	cfg.Retrieval.FanoutTimeout = getDurationEnv("RETRIEVAL_FANOUT_TIMEOUT", 60*time.Second)
	cfg.Retrieval.ChatHistoryLimit = getIntEnv("CHAT_HISTORY_LIMIT", 6)

	cfg.Obs.LogLevel = firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")
	cfg.Obs.LogPath = os.Getenv("LOG_PATH")
	cfg.Obs.OTLPAddr = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.Obs.ServiceName = firstNonEmpty(os.Getenv("SERVICE_NAME"), "studycore")
	cfg.Obs.Environment = firstNonEmpty(os.Getenv("ENVIRONMENT"), "development")
	cfg.Obs.EnableOTelLogs = getBoolEnv("OTEL_LOGS_ENABLED", false)

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func getIntEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getFloatEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getBoolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
