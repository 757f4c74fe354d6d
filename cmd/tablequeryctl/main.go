package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/duckmesh/tablequery/internal/app"
	"github.com/duckmesh/tablequery/internal/cli/tablequeryctl"
	"github.com/duckmesh/tablequery/internal/config"
	"github.com/duckmesh/tablequery/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	options := tablequeryctl.Options{
		Build:  build,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	code := tablequeryctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

// build reads configuration after the runner has applied env files and the
// region default.
func build(context.Context) (tablequeryctl.Invoker, func(), error) {
	cfg, err := config.LoadFromEnv("tablequeryctl")
	if err != nil {
		return nil, nil, err
	}
	logger := observability.NewLogger(cfg, os.Stderr)
	built, err := app.Build(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := built.Close(); err != nil {
			logger.Warn("failed to close warm engine", slog.Any("error", err))
		}
	}
	return built.Handler, cleanup, nil
}
