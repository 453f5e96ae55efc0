package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/cmd/bootstrap"
	"github.com/voicebridge-ai/voicebridge/internal/worker"
	"github.com/voicebridge-ai/voicebridge/pkg/agent"
	"github.com/voicebridge-ai/voicebridge/pkg/cache"
	"github.com/voicebridge-ai/voicebridge/pkg/config"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

func main() {
	mode := flag.String("mode", "", "running environment (development, test, production)")
	initSQL := flag.String("init-sql", "", "path to database init .sql script (optional)")
	flag.Parse()

	if *mode != "" {
		os.Setenv("APP_ENV", *mode)
	}

	if err := config.Load(); err != nil {
		panic("config load failed: " + err.Error())
	}
	cfg := config.GlobalConfig

	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		panic(err)
	}

	db, err := bootstrap.SetupDatabase(&bootstrap.Options{
		InitSQLPath: *initSQL,
		AutoMigrate: true,
	})
	if err != nil {
		logger.Error("database setup failed", zap.Error(err))
		os.Exit(1)
	}

	if err := cache.InitGlobalCache(cfg.Cache); err != nil {
		logger.Error("cache init failed", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator := agent.NewOrchestrator(db, cfg)
	w := worker.New(cfg, orchestrator)

	logger.Info("Voice agent starting",
		zap.String("agent", cfg.AgentName),
		zap.String("dispatcher", cfg.RoomURL),
		zap.String("addr", cfg.Addr))
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Voice agent shut down")
}
