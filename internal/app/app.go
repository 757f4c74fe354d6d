// Package app wires configuration into a ready handler. Both the function
// entry point and the local runner build through here.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/duckmesh/tablequery/internal/awscreds"
	"github.com/duckmesh/tablequery/internal/config"
	"github.com/duckmesh/tablequery/internal/handler"
	"github.com/duckmesh/tablequery/internal/observability"
	"github.com/duckmesh/tablequery/internal/offload"
	"github.com/duckmesh/tablequery/internal/query"
	duckdbengine "github.com/duckmesh/tablequery/internal/query/duckdb"
	s3store "github.com/duckmesh/tablequery/internal/storage/s3"
)

type App struct {
	Handler *handler.Handler
	warm    *duckdbengine.WarmEngine
}

// Close releases the cached database in warm mode. It is a no-op otherwise.
func (a *App) Close() error {
	if a == nil || a.warm == nil {
		return nil
	}
	return a.warm.Close()
}

func Build(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var resolver awscreds.Resolver
	if cfg.AWS.CredentialsMode == config.CredentialsSDK {
		resolver = awscreds.NewSDKResolver(cfg.AWS.Region)
	}

	engine, err := duckdbengine.NewEngine(engineSettings(cfg), resolver, logger)
	if err != nil {
		return nil, fmt.Errorf("init duckdb engine: %w", err)
	}

	result := &App{}
	var opener query.Opener = engine
	if cfg.Handler.SessionMode == config.SessionWarm {
		result.warm = duckdbengine.NewWarmEngine(engine)
		opener = result.warm
	}

	offloader, err := newOffloader(cfg.Offload)
	if err != nil {
		return nil, err
	}

	h, err := handler.New(handler.Options{
		Opener:              opener,
		Logger:              logger,
		ValidateBeforeSetup: cfg.Handler.ValidateBeforeSetup,
		StrictARN:           cfg.Handler.StrictARN,
		Offloader:           offloader,
		Metrics: observability.NewFlusher(
			cfg.Observability.MetricsPushURL,
			cfg.Observability.MetricsJob,
			metricsInstance(),
			nil,
		),
	})
	if err != nil {
		return nil, err
	}
	result.Handler = h

	logger.Info("handler configured",
		slog.String("session_mode", string(cfg.Handler.SessionMode)),
		slog.String("credentials_mode", string(cfg.AWS.CredentialsMode)),
		slog.String("region", cfg.AWS.Region),
		slog.Bool("offload_enabled", offloader != nil),
	)
	return result, nil
}

func engineSettings(cfg config.Config) duckdbengine.Settings {
	return duckdbengine.Settings{
		Extensions:         cfg.DuckDB.Extensions,
		IcebergRepository:  cfg.DuckDB.IcebergRepository,
		HomeDir:            cfg.DuckDB.HomeDir,
		ExtensionDir:       cfg.DuckDB.ExtensionDir,
		MemoryLimit:        cfg.DuckDB.MemoryLimit,
		Threads:            cfg.DuckDB.Threads,
		CatalogAlias:       cfg.Catalog.Alias,
		CatalogType:        cfg.Catalog.Type,
		EndpointType:       cfg.Catalog.EndpointType,
		Region:             cfg.AWS.Region,
		LoadAWSCredentials: cfg.AWS.LoadAWSCredentials,
	}
}

func newOffloader(cfg config.OffloadConfig) (*offload.Offloader, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := s3store.New(s3store.Config{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		Bucket:          cfg.Bucket,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		SessionToken:    cfg.SessionToken,
		UseSSL:          cfg.UseSSL,
		Prefix:          cfg.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("init offload store: %w", err)
	}
	offloader, err := offload.New(store, cfg.ThresholdBytes, cfg.URLExpiry)
	if err != nil {
		return nil, fmt.Errorf("init offloader: %w", err)
	}
	return offloader, nil
}

// metricsInstance groups pushed metrics per function instance.
func metricsInstance() string {
	for _, key := range []string{"AWS_LAMBDA_LOG_STREAM_NAME", "HOSTNAME"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}
