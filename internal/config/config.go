// Package config defines the runtime configuration for the retrieval core and
// loads it from the environment.
package config

import "time"

// PostgresConfig configures the relational document store (C1).
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// QdrantConfig configures the dense vector index (C2).
type QdrantConfig struct {
	DSN        string
	Collection string
	Dimensions int
	Metric     string // cosine | euclid | dot | manhattan
}

// S3SSEConfig configures server-side encryption for the blob store.
type S3SSEConfig struct {
	Mode     string // "", "sse-s3", "sse-kms"
	KMSKeyID string
}

// S3Config configures the blob store adapter (C3).
type S3Config struct {
	Bucket                string
	Region                string
	AccessKey             string
	SecretKey              string
	Endpoint              string
	UsePathStyle          bool
	Prefix                string
	TLSInsecureSkipVerify bool
	SSE                   S3SSEConfig
}

// EmbeddingConfig configures the embedding backend used by C4.
type EmbeddingConfig struct {
	BaseURL    string
	Path       string
	Model      string
	APIKey     string
	APIHeader  string
	Dimensions int
	Timeout    time.Duration
	// Headers are extra static headers sent on every embedding request,
	// applied after APIHeader/APIKey so they can add to or override the
	// legacy single-header auth scheme.
	Headers map[string]string
}

// RerankerConfig configures the cross-encoder reranker used by C4.
type RerankerConfig struct {
	BaseURL           string
	Path              string
	Model             string
	APIKey            string
	Timeout           time.Duration
	MinRerankScore    float64
	DefaultTopN       int
}

// GeneratorConfig configures the LLM generator shared by enrichment, query
// rewriting, and answer assembly.
type GeneratorConfig struct {
	Provider    string // "openai" | "anthropic"
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
}

// IngestionConfig tunes the ingestion pipeline (C5/C6).
type IngestionConfig struct {
	ChunkTokenBudget     int
	ChunkOverlapTokens   int
	SmallSiblingMinTokens int
	EnrichmentConcurrency int
	EnrichTimeout        time.Duration
}

// RetrievalConfig tunes the query pipeline (C7).
type RetrievalConfig struct {
	RRFK0               int
	DenseScoreThreshold  float64
	FanoutTimeout        time.Duration
	ChatHistoryLimit     int
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	LogLevel       string
	LogPath        string
	OTLPAddr       string
	ServiceName    string
	Environment    string
	EnableOTelLogs bool
}

// Config is the fully resolved application configuration.
type Config struct {
	Postgres   PostgresConfig
	Qdrant     QdrantConfig
	S3         S3Config
	Embedding  EmbeddingConfig
	Reranker   RerankerConfig
	Generator  GeneratorConfig
	Ingestion  IngestionConfig
	Retrieval  RetrievalConfig
	Obs        ObservabilityConfig
}
