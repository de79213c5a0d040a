package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olshev/transcript-insight/internal/config"
	"github.com/olshev/transcript-insight/internal/core/domain"
	"github.com/olshev/transcript-insight/internal/core/ports"
	"github.com/olshev/transcript-insight/internal/core/usecase"
	memorycache "github.com/olshev/transcript-insight/internal/infrastructure/cache/memory"
	rediscache "github.com/olshev/transcript-insight/internal/infrastructure/cache/redis"
	natsevents "github.com/olshev/transcript-insight/internal/infrastructure/events/nats"
	"github.com/olshev/transcript-insight/internal/infrastructure/llm/openai"
	memorystore "github.com/olshev/transcript-insight/internal/infrastructure/repository/memory"
	"github.com/olshev/transcript-insight/internal/infrastructure/repository/postgres"
	"github.com/olshev/transcript-insight/internal/infrastructure/resilience"
	"github.com/olshev/transcript-insight/internal/infrastructure/source/opensearch"
	"github.com/olshev/transcript-insight/internal/infrastructure/source/qdrant"
	"github.com/olshev/transcript-insight/internal/infrastructure/source/warehouse"
	"github.com/olshev/transcript-insight/internal/infrastructure/tokenizer"
)

// App wires the fusion engine together from configuration. Every optional
// backend degrades gracefully: a source without connection details registers
// as skipped, a missing Postgres DSN falls back to the in-memory experiment
// store, and no NATS URL simply disables event publishing.
type App struct {
	Config config.Config

	RetrieveUC   ports.Retriever
	AnswerUC     ports.AnswerService
	ExperimentUC ports.ExperimentService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	guard := resilience.NewGuard(resilience.Config{
		MaxAttempts:    cfg.SourceRetryMaxAttempts,
		BreakerEnabled: cfg.SourceBreakerEnabled,
	}, resilience.ClassifyBackendError, log)

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// OpenAI backs both answer generation and the semantic query embedding.
	openaiClient := openai.New(openai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		GenModel:   cfg.OpenAIGenModel,
		EmbedModel: cfg.OpenAIEmbedModel,
	})
	generator := openai.NewGenerator(openaiClient)

	var embedder qdrant.Embedder
	if cfg.OpenAIAPIKey != "" {
		embedder = openai.NewEmbedder(openaiClient)
	}

	adapters := []ports.SourceAdapter{
		qdrant.New(qdrant.Config{
			BaseURL:    cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		}, embedder, guard),
		opensearch.New(opensearch.Config{
			BaseURL:  cfg.OpenSearchURL,
			Index:    cfg.OpenSearchIndex,
			Username: cfg.OpenSearchUsername,
			Password: cfg.OpenSearchPassword,
		}, guard),
	}

	if cfg.WarehouseDSN != "" {
		warehouseDB, err := postgres.OpenDB(cfg.WarehouseDSN)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("open warehouse: %w", err)
		}
		closers = append(closers, func() { _ = warehouseDB.Close() })
		adapters = append(adapters, warehouse.New(warehouseDB, guard))
	} else {
		adapters = append(adapters, warehouse.New(nil, guard))
	}

	var experimentStore ports.ExperimentStore
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })

		repo := postgres.NewExperimentRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ensure experiment schema: %w", err)
		}
		experimentStore = repo
	} else {
		log.Warn("no POSTGRES_DSN set, experiments are kept in memory")
		experimentStore = memorystore.NewExperimentStore()
	}

	var cache ports.ResultCache
	switch cfg.CacheBackend {
	case "redis":
		client, err := rediscache.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("open redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		cache = rediscache.New(client, log)
	default:
		cache = memorycache.New()
	}

	var publisher ports.EventPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err := natsevents.New(cfg.NATSURL, cfg.NATSTraceSubject, cfg.NATSOutcomeSubject, natsevents.Options{}, log)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		closers = append(closers, natsPublisher.Close)
		publisher = natsPublisher
	}

	extraPatterns, err := config.LoadPolicyPatterns(cfg.PolicyPatternsFile)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("load policy patterns: %w", err)
	}
	policy := usecase.NewPolicyEnforcer(usecase.ParsePolicyMode(cfg.PolicyMode), extraPatterns)

	retrieveUC := usecase.NewRetrieveUseCase(adapters, cache, experimentStore, policy, publisher, usecase.EngineConfig{
		TopK:            cfg.FusionTopK,
		TimeoutMs:       cfg.FusionTimeoutMs,
		RRFK:            cfg.FusionRRFK,
		FusionAlgorithm: domain.ParseFusionAlgorithm(cfg.FusionAlgorithm),
		Weights: map[domain.SourceName]float64{
			domain.SourceSemantic:   cfg.WeightSemantic,
			domain.SourceKeyword:    cfg.WeightKeyword,
			domain.SourceStructured: cfg.WeightStructured,
		},
		MaxTokensPerSource: cfg.MaxTokensPerSource,
		CacheTTL:           time.Duration(cfg.CacheTTLSeconds) * time.Second,
	})

	counter := tokenizer.NewCounter(cfg.TokenizerEncoding)
	answerUC := usecase.NewAnswerUseCase(retrieveUC, generator, counter, cfg.MaxTokensPerSource)
	experimentUC := usecase.NewExperimentUseCase(experimentStore)

	return &App{
		Config:       cfg,
		RetrieveUC:   retrieveUC,
		AnswerUC:     answerUC,
		ExperimentUC: experimentUC,
		closeFn:      closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
