package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/duckmesh/tablequery/internal/app"
	"github.com/duckmesh/tablequery/internal/config"
	"github.com/duckmesh/tablequery/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("tablequery-lambda")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	built, err := app.Build(cfg, logger)
	if err != nil {
		logger.Error("failed to build handler", slog.Any("error", err))
		os.Exit(1)
	}

	lambda.StartWithOptions(built.Handler.Invoke, lambda.WithEnableSIGTERM(func() {
		if err := built.Close(); err != nil {
			logger.Warn("failed to close warm engine", slog.Any("error", err))
		}
		logger.Info("shutdown complete")
	}))
}
