// Package main provides the entry point for the Temper analysis server:
// config -> logger -> store -> API server, with graceful shutdown on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dawgsrlife/temper-core/internal/api"
	"github.com/dawgsrlife/temper-core/internal/config"
	"github.com/dawgsrlife/temper-core/internal/store"
)

func main() {
	fs := pflag.NewFlagSet("temper-server", pflag.ExitOnError)
	fs.String("host", "localhost", "server host")
	fs.Int("port", 8080, "server port")
	fs.String("dataDir", "./data", "data directory")
	fs.String("logLevel", "info", "log level (debug, info, warn, error)")
	configFile := fs.String("config", "", "optional YAML config file")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configFile, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting Temper analysis server",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("dataDir", cfg.DataDir),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.NewStore(logger, cfg.DataDir)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}

	hub := api.NewHub(logger.Named("hub"))
	go hub.Run()

	server := api.NewServer(logger.Named("api"), cfg, st, hub)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	logger.Info("server started successfully",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", cfg.Host, cfg.Port)),
		zap.String("ws", fmt.Sprintf("ws://%s:%d%s", cfg.Host, cfg.Port, cfg.WebSocketPath)),
	)

	<-sigChan
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
