package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/app"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/config"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/logger"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		// No logger yet; exit immediately.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	// Ensure logger flush; ignore sync error (common on some platforms).
	defer func() { _ = log.Sync() }()

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatal("app run failed", zap.Error(err))
	}
}
