package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/bayardlab/bayard-gateway/internal/api/handlers"
	"github.com/bayardlab/bayard-gateway/internal/auth"
	"github.com/bayardlab/bayard-gateway/internal/cache/redis"
	"github.com/bayardlab/bayard-gateway/internal/gateway"
	"github.com/bayardlab/bayard-gateway/internal/llm"
	"github.com/bayardlab/bayard-gateway/internal/metrics"
	"github.com/bayardlab/bayard-gateway/internal/ratelimit"
	"github.com/bayardlab/bayard-gateway/internal/recorder"
	"github.com/bayardlab/bayard-gateway/internal/search/corpus"
	"github.com/bayardlab/bayard-gateway/internal/storage/sqlite"
	"github.com/bayardlab/bayard-gateway/pkg/config"
	appLogger "github.com/bayardlab/bayard-gateway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Bayard Gateway API Server")

	metrics.Init()

	zapLogger := appLogger.GetLogger()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path, zapLogger)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	redisClient, err := redis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		zapLogger,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	corpusClient := corpus.NewClient(corpus.Config{
		URL:        cfg.Search.URL,
		APIKey:     cfg.Search.APIKey,
		Index:      cfg.Search.Index,
		ModelID:    cfg.Search.ModelID,
		MaxHits:    cfg.Search.MaxHits,
		TimeoutSec: cfg.Search.TimeoutSec,
		Logger:     zapLogger,
	})

	llmClient := llm.NewClient(llm.Config{
		APIKey:             cfg.LLM.APIKey,
		Model:              cfg.LLM.Model,
		ClassifierModel:    cfg.LLM.ClassifierModel,
		Temperature:        cfg.LLM.Temperature,
		MaxTokens:          cfg.LLM.MaxTokens,
		TimeoutSec:         cfg.LLM.TimeoutSec,
		HistoryBudgetWords: cfg.LLM.HistoryBudgetWords,
		Logger:             zapLogger,
	})

	runRecorder := recorder.New(sqliteClient, redisClient, zapLogger)
	orchestrator := gateway.NewOrchestrator(llmClient, corpusClient, llmClient, sqliteClient, runRecorder, zapLogger)

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequests:   cfg.RateLimit.MaxRequests,
		WindowSeconds: cfg.RateLimit.WindowSeconds,
		Logger:        zapLogger,
	})

	gate := auth.NewGate(auth.GateConfig{
		SharedKey:   cfg.Auth.SharedKey,
		Store:       sqliteClient,
		Limiter:     limiter,
		ExemptPaths: []string{"/health-check", "/api/generate-key", "/metrics"},
		Logger:      zapLogger,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(gate.Middleware())

	queryHandler := handlers.NewQueryHandler(orchestrator)
	keyHandler := handlers.NewKeyHandler(sqliteClient)

	app.Get("/health-check", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/api/generate-key", keyHandler.GenerateKey)
	app.Post("/api/query", queryHandler.ProcessQuery)
	app.Get("/metrics", metrics.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
