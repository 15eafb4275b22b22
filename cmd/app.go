package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/ai/gemini"
	"github.com/spigell/grant-recommender/internal/db"
	"github.com/spigell/grant-recommender/internal/embeddings"
	"github.com/spigell/grant-recommender/internal/id"
	"github.com/spigell/grant-recommender/internal/lock"
	"github.com/spigell/grant-recommender/internal/logger"
	"github.com/spigell/grant-recommender/internal/recommend"
	"github.com/spigell/grant-recommender/internal/secrets"
	"github.com/spigell/grant-recommender/internal/semantic"
	"github.com/spigell/grant-recommender/internal/store"
)

// snowflake node of this process
const nodeID = 1

type application struct {
	config       *Config
	logger       *zap.Logger
	orchestrator *recommend.Orchestrator
	closers      []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// setup builds the logger, the config and every collaborator of the orchestrator.
func setup(ctx context.Context) (*application, error) {
	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}

	log, err := logger.New(config.Log)
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}

	a := &application{config: config, logger: log}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *application) wire(ctx context.Context) error {
	config, log := a.config, a.logger

	database, err := openDatabase(ctx, config.Database)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, database.Close)

	var rdb redis.UniversalClient
	if needsRedis(config) {
		client, err := newRedis(config.Redis)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		rdb = client
	}

	recStore, err := store.NewRecommendationStore(config.Cache, database, rdb, log)
	if err != nil {
		return err
	}
	if pg, ok := recStore.(*store.Recommendations); ok {
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	locker, err := lock.New(config.Lock, rdb, log)
	if err != nil {
		return err
	}

	if err := id.Init(nodeID); err != nil {
		return fmt.Errorf("initializing id generator: %w", err)
	}

	deps := recommend.Deps{
		Grants:   store.NewGrants(database.Querier()),
		Projects: store.NewProjects(database.Querier()),
		Store:    recStore,
		Locker:   locker,
		Logger:   log,
		Backend:  config.Cache.Backend,
		NewID:    id.New,
	}

	if config.Semantic.Enabled {
		deps.Semantic = semantic.NewComparer(embeddings.NewStore(database.Querier(), log), log)
	} else {
		log.Info("semantic scoring is disabled")
	}

	models, err := newModels(ctx, config, log)
	if err != nil {
		log.Warn("skipping llm relevance scoring and gap analysis", zap.Error(err))
	} else if models != nil {
		deps.Relevance = models.relevance
		deps.Analyst = models.analyst
	}

	orchestrator, err := recommend.New(deps, config.Recommend)
	if err != nil {
		return fmt.Errorf("creating the recommender: %w", err)
	}
	a.orchestrator = orchestrator

	log.Debug("recommender is ready", zap.String("backend", config.Cache.Backend))
	return nil
}

func openDatabase(ctx context.Context, cfg db.Config) (*db.DB, error) {
	dsn, err := secrets.Load(secrets.Source{
		Name:  "database url",
		Value: cfg.URL,
		File:  cfg.URLFile,
		Env:   "DATABASE_URL",
	})
	if err != nil {
		return nil, err
	}
	return db.New(ctx, dsn, cfg)
}

func needsRedis(config *Config) bool {
	return strings.EqualFold(strings.TrimSpace(config.Cache.Backend), store.BackendRedis) ||
		strings.EqualFold(strings.TrimSpace(config.Lock.Backend), lock.BackendRedis)
}

func newRedis(cfg RedisConfig) (*redis.Client, error) {
	url, err := secrets.Load(secrets.Source{
		Name:  "redis url",
		Value: cfg.URL,
		File:  cfg.URLFile,
		Env:   "REDIS_URL",
	})
	if err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// models are the consumers of one shared Gemini generator.
type models struct {
	relevance *ai.Batcher
	analyst   *gemini.Analyst
}

// newModels returns nil without an error when the model is turned off.
func newModels(ctx context.Context, config *Config, log *zap.Logger) (*models, error) {
	cfg := config.AI
	if !cfg.Enabled {
		log.Info("llm relevance scoring and gap analysis are disabled")
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, gemini.GeneratorConfig{
		APIKey:         apiKey,
		Model:          cfg.Gemini.Model,
		ThinkingBudget: cfg.Gemini.ThinkingBudget,
		Timeout:        cfg.Gemini.Timeout,
	})
	if err != nil {
		return nil, err
	}

	judgeLogger := logger.WithJudge(log, "gemini", generator.Model())
	judge := gemini.NewJudge(generator, cfg.Gemini.MaxLogLength, judgeLogger)

	opts := config.Recommend.WithDefaults()
	return &models{
		relevance: ai.NewBatcher(judge, opts.LLMConcurrency, opts.LLMBatchPause, judgeLogger),
		analyst:   gemini.NewAnalyst(generator, cfg.Gemini.MaxLogLength, judgeLogger),
	}, nil
}
