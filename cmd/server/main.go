package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"pdfbot/internal/api"
	"pdfbot/internal/app/bootstrap"
	"pdfbot/internal/db/postgres"
	redisdb "pdfbot/internal/db/redis"
	"pdfbot/internal/domain/kb"
	"pdfbot/internal/platform/config"
	applog "pdfbot/internal/platform/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	registry := kb.NewRegistry(cfg.KB.DataDir, cfg.KB.IndexDir)
	if err := registry.EnsureIndexDir(); err != nil {
		applog.Fatalf("❌ Failed to prepare index dir: %v", err)
	}

	embedder := kb.NewOpenAIEmbedder(kb.OpenAIEmbedderConfig{
		BaseURL:        cfg.KB.EmbeddingBaseURL,
		APIKey:         cfg.KB.EmbeddingAPIKey,
		Model:          cfg.KB.EmbeddingModel,
		Dims:           cfg.KB.EmbeddingDims,
		BatchSize:      cfg.KB.EmbeddingBatchSize,
		TimeoutSeconds: cfg.KB.EmbeddingHTTPTimeoutSeconds,
		MaxAttempts:    cfg.KB.RetryMaxAttempts,
	})
	applog.Infof("✅ Embedder initialized (model: %s, dims: %d)", embedder.Model(), embedder.Dims())

	parsers := kb.NewParserRegistry()
	chunker := kb.NewChunker(cfg.KB.ChunkSize, cfg.KB.ChunkOverlap)
	ingestor := kb.NewIngestor(registry, parsers, chunker)
	indexMgr := kb.NewIndexManager(registry, embedder, cfg.KB.DefaultTopK)
	applog.Infof("✅ Parser registry initialized (types: %s)", parsers.SupportedTypes())

	bootstrap.RegisterLLMProviders(
		cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL,
		cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL,
	)

	pipeline := kb.NewPipeline(registry, ingestor, indexMgr, &cfg.KB)
	pipeline.BindModel(kb.ModelClaude, kb.ModelBinding{Provider: "anthropic", Model: cfg.Anthropic.Model})
	pipeline.BindModel(kb.ModelLlama, kb.ModelBinding{Provider: "openai", Model: cfg.OpenAI.LlamaModel})

	if cfg.Redis.URL != "" && cfg.KB.CacheTTL > 0 {
		if opt, err := goredis.ParseURL(cfg.Redis.URL); err == nil {
			cacheRedis := goredis.NewClient(opt)
			pipeline.SetCache(redisdb.NewRetrievalCache(cacheRedis, cfg.KB.CacheTTL))
			applog.Infof("✅ Retrieval cache initialized (TTL: %ds)", cfg.KB.CacheTTL)
		} else {
			applog.Warnf("⚠️  Redis URL invalid, retrieval cache disabled: %v", err)
		}
	} else {
		applog.Info("ℹ️  No REDIS_URL set, retrieval cache disabled")
	}

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	serverConfig.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	serverConfig.JWTSecret = cfg.Auth.JWTSecret
	serverConfig.JWTIssuer = cfg.Auth.JWTIssuer
	server := api.NewServer(serverConfig, registry, pipeline, cfg.KB.MaxFileSize)

	if cfg.Database.URL != "" {
		if store := initKBStore(cfg); store != nil {
			server.SetKBStore(store)
		}
	} else {
		applog.Info("ℹ️  No DATABASE_URL set, metadata store disabled")
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		applog.Info("🔄 Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			applog.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
		applog.Fatalf("❌ Server error: %v", err)
	}

	applog.Info("👋 Server stopped")
}

func initKBStore(cfg *config.AppConfig) *postgres.KBStore {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		applog.Warnf("⚠️  Failed to open database: %v (metadata store disabled)", err)
		return nil
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeSeconds) * time.Second)

	if err := db.Ping(); err != nil {
		applog.Warnf("⚠️  Failed to ping database: %v (metadata store disabled)", err)
		return nil
	}
	applog.Info("✅ Connected to PostgreSQL")

	store := postgres.NewKBStore(db)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.EnsureTables(ctx); err != nil {
		applog.Warnf("⚠️  Failed to ensure KB tables: %v", err)
	} else {
		applog.Info("✅ KB tables ready (kb_documents, kb_builds)")
	}
	return store
}
