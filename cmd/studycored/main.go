package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"studycore/internal/config"
	"studycore/internal/embedding"
	"studycore/internal/enrichment"
	"studycore/internal/generator"
	"studycore/internal/index"
	"studycore/internal/model"
	"studycore/internal/objectstore"
	"studycore/internal/observability"
	"studycore/internal/pgpool"
	"studycore/internal/rag/answer"
	"studycore/internal/rag/ingest"
	"studycore/internal/rag/obs"
	"studycore/internal/rag/retrieve"
	"studycore/internal/rag/session"
	"studycore/internal/rerank"
	"studycore/internal/store"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		log.Fatal().Err(err).Msg("failed to load config")
	}

	shutdown, err := observability.InitOTel(context.Background(), cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		shutdown = nil
		cfg.Obs.EnableOTelLogs = false
	}
	if shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	// InitLogger must run after InitOTel: the OTel log bridge captures the
	// global LoggerProvider at construction time.
	observability.InitLogger(cfg.Obs.LogPath, cfg.Obs.LogLevel, cfg.Obs.EnableOTelLogs)

	logger := &obs.JSONLogger{}
	metrics := obs.NewOtelMetrics()
	clock := obs.SystemClock{}

	ctx := context.Background()

	pool, err := pgpool.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open postgres pool")
	}
	defer pool.Close()

	docStore, err := store.New(ctx, pool, cfg.Qdrant.Dimensions)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init document store")
	}
	defer docStore.Close()

	dense, err := index.NewQdrantDense(ctx, cfg.Qdrant.DSN, cfg.Qdrant.Collection, cfg.Qdrant.Dimensions, cfg.Qdrant.Metric)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init dense index")
	}
	defer dense.Close()

	lexical, err := index.NewPostgresLexical(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init lexical index")
	}
	hybrid := &index.Hybrid{Dense: dense, Lexical: lexical}

	httpClient := observability.NewHTTPClient(nil)

	var uploader *objectstore.BlobAdapter
	if cfg.S3.Bucket != "" {
		s3Store, err := objectstore.NewS3Store(ctx, cfg.S3, objectstore.WithHTTPClient(httpClient))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init s3 store")
		}
		uploader = objectstore.NewBlobAdapter(s3Store, publicURLFunc(cfg.S3))
	} else {
		log.Warn().Msg("S3_BUCKET not set, falling back to in-memory blob store (images are not durably served)")
		uploader = objectstore.NewBlobAdapter(objectstore.NewMemoryStore(), func(key string) string { return "memory://" + key })
	}

	embedder := embedding.NewClient(cfg.Embedding, embedding.WithHTTPClient(httpClient))
	gen := generator.NewClient(cfg.Generator)
	reranker := rerank.NewClient(cfg.Reranker, rerank.WithHTTPClient(httpClient))
	enrichPool := enrichment.NewPool(gen, int64(cfg.Ingestion.EnrichmentConcurrency))

	ingestOrch := &ingest.Orchestrator{
		Parser:   notConfiguredParser{},
		Store:    docStore,
		Enricher: enrichPool,
		Embedder: embedder,
		Indexer:  hybrid,
		Uploader: uploader,
		Identity: gen,
		Config: ingest.Config{
			ChunkTokenBudget:      cfg.Ingestion.ChunkTokenBudget,
			SmallSiblingMinTokens: cfg.Ingestion.SmallSiblingMinTokens,
			ChunkOverlapTokens:    cfg.Ingestion.ChunkOverlapTokens,
		},
		Log:     logger,
		Metrics: metrics,
		Clock:   clock,
	}

	queryOrch := &retrieve.Orchestrator{
		Generator:           gen,
		Embedder:            embedder,
		Dense:               dense,
		Lexical:             lexical,
		Store:               docStore,
		Reranker:            reranker,
		RRFK0:               cfg.Retrieval.RRFK0,
		DenseScoreThreshold: cfg.Retrieval.DenseScoreThreshold,
		Log:                 logger,
		Metrics:             metrics,
		Clock:               clock,
	}

	assembler := &answer.Assembler{
		Gen:          gen,
		HistoryLimit: cfg.Retrieval.ChatHistoryLimit,
		Log:          logger,
		Metrics:      metrics,
	}

	sessions := session.NewStore()

	mux := http.NewServeMux()
	registerRoutes(mux, cfg, ingestOrch, queryOrch, assembler, sessions)

	addr := ":8080"
	log.Info().Str("addr", addr).Msg("studycored listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func publicURLFunc(cfg config.S3Config) func(key string) string {
	if cfg.Endpoint != "" {
		return func(key string) string { return fmt.Sprintf("%s/%s/%s", cfg.Endpoint, cfg.Bucket, key) }
	}
	return func(key string) string {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", cfg.Bucket, cfg.Region, key)
	}
}

// notConfiguredParser stands in for the concrete PDF layout/OCR parser,
// which is an external collaborator outside this module's scope: any real
// implementation of model.Parser can be substituted without touching C5.
type notConfiguredParser struct{}

func (notConfiguredParser) Parse(ctx context.Context, pdf []byte, filename string) (model.ParsedDocument, error) {
	return model.ParsedDocument{}, errors.New("no PDF parser configured: wire a concrete model.Parser implementation")
}

func registerRoutes(mux *http.ServeMux, cfg config.Config, ingestOrch *ingest.Orchestrator, queryOrch *retrieve.Orchestrator, assembler *answer.Assembler, sessions *session.Store) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ready")
	})

	mux.HandleFunc("/ingest_bulk", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		files := r.MultipartForm.File["files"]
		type fileResult struct {
			Status      string `json:"status"`
			DocID       string `json:"doc_id,omitempty"`
			Filename    string `json:"filename"`
			ChunksCount int    `json:"chunks_count,omitempty"`
			DurationMS  int64  `json:"duration_ms"`
			Error       string `json:"error,omitempty"`
		}
		results := make([]fileResult, 0, len(files))
		for _, fh := range files {
			start := time.Now()
			f, err := fh.Open()
			if err != nil {
				results = append(results, fileResult{Status: "FAILED", Filename: fh.Filename, Error: err.Error()})
				continue
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				results = append(results, fileResult{Status: "FAILED", Filename: fh.Filename, Error: err.Error()})
				continue
			}
			res := ingestOrch.IngestOne(r.Context(), data, fh.Filename)
			fr := fileResult{
				Status:      string(res.Stage),
				DocID:       res.DocID,
				Filename:    res.Filename,
				ChunksCount: res.ChunksCount,
				DurationMS:  time.Since(start).Milliseconds(),
			}
			if res.Err != nil {
				fr.Error = res.Err.Error()
			}
			results = append(results, fr)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"files": results, "total": len(results)})
	})

	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		question := r.URL.Query().Get("question")
		if question == "" {
			http.Error(w, "question is required", http.StatusBadRequest)
			return
		}
		sessionID := firstNonEmpty(r.URL.Query().Get("session_id"), "default")
		configID, bc := config.ResolveBenchmark(r.URL.Query().Get("config_id"))

		history := sessions.History(sessionID)

		result, err := queryOrch.Query(r.Context(), question, session.AsRetrieveTurns(history), retrieve.Options{
			TopK:        bc.TopK,
			TopN:        bc.TopN,
			PromptStyle: retrieve.PromptStyle(bc.PromptStyle),
			DocFilter:   r.URL.Query().Get("document_id"),
		})
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		ans := assembler.Answer(r.Context(), result.StandaloneQuery, result.Context, session.AsAnswerTurns(history), answer.Style(bc.PromptStyle))
		if ans != answerApology(assembler) {
			sessions.Append(sessionID, question, ans)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"answer":           ans,
			"standalone_query": result.StandaloneQuery,
			"config_applied":   configID,
			"chunks_count":     len(result.Context),
			"sources":          result.Context,
		})
	})

	mux.HandleFunc("/clear-history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sessionID := firstNonEmpty(r.URL.Query().Get("session_id"), "default")
		sessions.Clear(sessionID)
		w.WriteHeader(http.StatusNoContent)
	})
}

// answerApology exposes the assembler's fixed failure string so the handler
// can avoid appending a failed turn to history without the assembler having
// to return an extra out-of-band signal.
func answerApology(a *answer.Assembler) string {
	return a.Apology()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
