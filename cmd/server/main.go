package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/noopta/situationship-ai/common/id"
	"github.com/noopta/situationship-ai/common/llm"
	"github.com/noopta/situationship-ai/common/logger"
	"github.com/noopta/situationship-ai/common/otel"
	"github.com/noopta/situationship-ai/core/config"
	"github.com/noopta/situationship-ai/core/db"
	"github.com/noopta/situationship-ai/internal/http/handler"
	"github.com/noopta/situationship-ai/internal/http/middleware"
	httprouter "github.com/noopta/situationship-ai/internal/http/router"
	"github.com/noopta/situationship-ai/internal/service"
	"github.com/noopta/situationship-ai/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "situationship server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	// Left nil, these select the no-op stores.
	var runsDB store.DBTX
	if cfg.DB.Enabled() {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			slog.ErrorContext(ctx, "failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to apply migrations", "error", err)
			os.Exit(1)
		}
		runsDB = database.Pool()
		slog.InfoContext(ctx, "database connected")
	} else {
		slog.InfoContext(ctx, "analysis run log disabled (no DATABASE_URL)")
	}

	var cache redis.Cmdable
	if cfg.Cache.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}

		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		cache = redisClient
		slog.InfoContext(ctx, "redis connected", "ttl", cfg.Cache.TTL)
	} else {
		slog.InfoContext(ctx, "result cache disabled (no REDIS_URL)")
	}

	visionClient, err := llm.NewVisionClient(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "llm client ready", "provider", cfg.LLM.Provider, "model", visionClient.Model())

	services := service.NewServices(service.ServicesConfig{
		Stores: store.NewStores(runsDB, cache),
		LLM:    visionClient,
		Analysis: service.AnalysisConfig{
			ChunkSize:    cfg.Analysis.ChunkSize,
			Concurrency:  cfg.Analysis.Concurrency,
			MaxFiles:     cfg.Upload.MaxFiles,
			MaxFileBytes: cfg.Upload.MaxFileBytes,
			MaxTokens:    cfg.LLM.MaxTokens,
			Temperature:  cfg.LLM.Temperature,
			CacheTTL:     cfg.Cache.TTL,
		},
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.CORS(cfg.AllowedOrigins)(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Covers every group call plus the merge call.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = int64(cfg.Upload.MaxFiles) * cfg.Upload.MaxFileBytes

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		Upload: handler.UploadLimits{
			MaxFiles:     cfg.Upload.MaxFiles,
			MaxFileBytes: cfg.Upload.MaxFileBytes,
		},
	})

	return router
}

const banner = `
 ____  ___ _____ _   _    _  _____ ___ ___  _   _ ____  _   _ ___ ____
/ ___||_ _|_   _| | | |  / \|_   _|_ _/ _ \| \ | / ___|| | | |_ _|  _ \
\___ \ | |  | | | | | | / _ \ | |  | | | | |  \| \___ \| |_| || || |_) |
 ___) || |  | | | |_| |/ ___ \| |  | | |_| | |\  |___) |  _  || ||  __/
|____/|___| |_|  \___//_/   \_\_| |___\___/|_| \_|____/|_| |_|___|_|
`
