package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/agent"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/auth"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/cache"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/config"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/database"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/handlers"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/llm"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/logging"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/middleware"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/repositories"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/retry"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/schema"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/warehouse"
)

// Version is set at build time via ldflags
var Version = "dev"

const purgeBatchSize = 500

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("cache_mode", cfg.Cache.Mode),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.Host),
		zap.String("redis", cfg.Redis.Host))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.RunMigrations(cfg.Database.ConnectionString(), "migrations", logger); err != nil {
		logger.Fatal("Migrations failed", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()

	llmClient, err := llm.NewFromConfig(&cfg.LLM, logger)
	if err != nil {
		logger.Fatal("LLM client setup failed", zap.Error(err))
	}

	conversationRepo := repositories.NewConversationRepository(db)
	queryRepo := repositories.NewQueryRepository(db)
	userRepo := repositories.NewUserRepository(db)
	cacheRepo := repositories.NewCacheRepository(db)

	semanticCache, err := buildCache(ctx, cfg, cacheRepo, llmClient, logger)
	if err != nil {
		logger.Fatal("Semantic cache setup failed", zap.Error(err))
	}
	go semanticCache.RunJanitor(ctx, cfg.Cache.PurgeInterval, purgeBatchSize)

	warehouseClient := warehouse.NewClient(cfg.Warehouse.URI, cfg.Warehouse.Timeout, retry.DefaultConfig(), logger)
	schemaService := schema.NewService(warehouseClient, llmClient, cfg.Warehouse.Local, logger)
	evaluator := auth.NewEvaluator(userRepo, logger)

	assistant := agent.New(
		llmClient,
		cfg.LLM.ProModel,
		schemaService,
		semanticCache,
		warehouseClient,
		evaluator,
		conversationRepo,
		queryRepo,
		logger,
	)

	authMw := auth.NewMiddleware(auth.NewTokenService(cfg.Auth.SigningKey, cfg.Auth.EnableVerification), logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(assistant, logger).RegisterRoutes(mux, authMw)
	handlers.NewQueriesHandler(queryRepo, userRepo, logger).RegisterRoutes(mux, authMw)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting ancap-assistant",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
}

// buildCache assembles the semantic cache for the configured mode:
// streaming keeps vectors in Redis, batch rebuilds an in-memory index from
// the metadata store on startup.
func buildCache(ctx context.Context, cfg *config.Config, store repositories.CacheRepository, embedder llm.Client, logger *zap.Logger) (*cache.SemanticCache, error) {
	var index cache.VectorIndex

	switch cfg.Cache.Mode {
	case config.CacheModeStreaming:
		redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		index = cache.NewRedisIndex(redisClient)
	case config.CacheModeBatch:
		idx, err := cache.NewMemoryIndexFromStore(ctx, store)
		if err != nil {
			return nil, err
		}
		index = idx
	}

	return cache.New(index, store, embedder, &cfg.Cache, logger), nil
}
