package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type SessionMode string

const (
	SessionPerInvocation SessionMode = "per_invocation"
	SessionWarm          SessionMode = "warm"
)

type CredentialsMode string

const (
	CredentialsChain CredentialsMode = "credential_chain"
	CredentialsSDK   CredentialsMode = "sdk"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	Handler       HandlerConfig
	DuckDB        DuckDBConfig
	Catalog       CatalogConfig
	AWS           AWSConfig
	Offload       OffloadConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HandlerConfig struct {
	SessionMode         SessionMode
	ValidateBeforeSetup bool
	StrictARN           bool
}

type DuckDBConfig struct {
	Extensions        []string
	IcebergRepository string
	HomeDir           string
	ExtensionDir      string
	MemoryLimit       string
	Threads           int
}

type CatalogConfig struct {
	Alias        string
	Type         string
	EndpointType string
}

type AWSConfig struct {
	Region             string
	CredentialsMode    CredentialsMode
	LoadAWSCredentials bool
}

type OffloadConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	UseSSL          bool
	Prefix          string
	ThresholdBytes  int
	URLExpiry       time.Duration
}

type ObservabilityConfig struct {
	LogLevel       slog.Level
	LogJSON        bool
	MetricsPushURL string
	MetricsJob     string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("TABLEQUERY_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid TABLEQUERY_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	// Standard AWS runtime variables first so the prefixed override wins.
	if err := applyString(lookup, "AWS_DEFAULT_REGION", &cfg.AWS.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "AWS_REGION", &cfg.AWS.Region); err != nil {
		return Config{}, err
	}

	steps := []func() error{
		func() error { return applyString(lookup, "TABLEQUERY_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applySessionMode(lookup, "TABLEQUERY_SESSION_MODE", &cfg.Handler.SessionMode) },
		func() error { return applyBool(lookup, "TABLEQUERY_VALIDATE_BEFORE_SETUP", &cfg.Handler.ValidateBeforeSetup) },
		func() error { return applyBool(lookup, "TABLEQUERY_STRICT_ARN", &cfg.Handler.StrictARN) },
		func() error { return applyList(lookup, "TABLEQUERY_DUCKDB_EXTENSIONS", &cfg.DuckDB.Extensions) },
		func() error { return applyString(lookup, "TABLEQUERY_DUCKDB_ICEBERG_REPOSITORY", &cfg.DuckDB.IcebergRepository) },
		func() error { return applyString(lookup, "TABLEQUERY_DUCKDB_HOME_DIR", &cfg.DuckDB.HomeDir) },
		func() error { return applyString(lookup, "TABLEQUERY_DUCKDB_EXTENSION_DIR", &cfg.DuckDB.ExtensionDir) },
		func() error { return applyString(lookup, "TABLEQUERY_DUCKDB_MEMORY_LIMIT", &cfg.DuckDB.MemoryLimit) },
		func() error { return applyInt(lookup, "TABLEQUERY_DUCKDB_THREADS", &cfg.DuckDB.Threads) },
		func() error { return applyString(lookup, "TABLEQUERY_CATALOG_ALIAS", &cfg.Catalog.Alias) },
		func() error { return applyString(lookup, "TABLEQUERY_CATALOG_TYPE", &cfg.Catalog.Type) },
		func() error { return applyString(lookup, "TABLEQUERY_CATALOG_ENDPOINT_TYPE", &cfg.Catalog.EndpointType) },
		func() error { return applyString(lookup, "TABLEQUERY_AWS_REGION", &cfg.AWS.Region) },
		func() error { return applyCredentialsMode(lookup, "TABLEQUERY_CREDENTIALS_MODE", &cfg.AWS.CredentialsMode) },
		func() error { return applyBool(lookup, "TABLEQUERY_LOAD_AWS_CREDENTIALS", &cfg.AWS.LoadAWSCredentials) },
		func() error { return applyBool(lookup, "TABLEQUERY_OFFLOAD_ENABLED", &cfg.Offload.Enabled) },
		func() error { return applyString(lookup, "TABLEQUERY_OFFLOAD_ENDPOINT", &cfg.Offload.Endpoint) },
		func() error { return applyString(lookup, "TABLEQUERY_OFFLOAD_REGION", &cfg.Offload.Region) },
		func() error { return applyString(lookup, "TABLEQUERY_OFFLOAD_BUCKET", &cfg.Offload.Bucket) },
		func() error { return applyString(lookup, "TABLEQUERY_OFFLOAD_ACCESS_KEY", &cfg.Offload.AccessKeyID) },
		func() error { return applyString(lookup, "TABLEQUERY_OFFLOAD_SECRET_KEY", &cfg.Offload.SecretAccessKey) },
		func() error { return applyString(lookup, "TABLEQUERY_OFFLOAD_SESSION_TOKEN", &cfg.Offload.SessionToken) },
		func() error { return applyBool(lookup, "TABLEQUERY_OFFLOAD_USE_SSL", &cfg.Offload.UseSSL) },
		func() error { return applyString(lookup, "TABLEQUERY_OFFLOAD_PREFIX", &cfg.Offload.Prefix) },
		func() error { return applyInt(lookup, "TABLEQUERY_OFFLOAD_THRESHOLD_BYTES", &cfg.Offload.ThresholdBytes) },
		func() error { return applyDuration(lookup, "TABLEQUERY_OFFLOAD_URL_EXPIRY", &cfg.Offload.URLExpiry) },
		func() error { return applyBool(lookup, "TABLEQUERY_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "TABLEQUERY_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyString(lookup, "TABLEQUERY_METRICS_PUSH_URL", &cfg.Observability.MetricsPushURL) },
		func() error { return applyString(lookup, "TABLEQUERY_METRICS_JOB", &cfg.Observability.MetricsJob) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Offload.Region == "" {
		cfg.Offload.Region = cfg.AWS.Region
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.Catalog.Alias == "" {
		return fmt.Errorf("catalog alias is required")
	}
	if c.Catalog.Type == "" {
		return fmt.Errorf("catalog type is required")
	}
	if c.DuckDB.Threads < 0 {
		return fmt.Errorf("duckdb threads must not be negative")
	}
	if c.Offload.Enabled {
		if c.Offload.Endpoint == "" {
			return fmt.Errorf("offload endpoint is required when offload is enabled")
		}
		if c.Offload.Bucket == "" {
			return fmt.Errorf("offload bucket is required when offload is enabled")
		}
		if c.Offload.ThresholdBytes <= 0 {
			return fmt.Errorf("offload threshold must be positive")
		}
		if c.Offload.URLExpiry <= 0 {
			return fmt.Errorf("offload url expiry must be positive")
		}
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "tablequery-lambda"},
		Handler: HandlerConfig{
			SessionMode:         SessionPerInvocation,
			ValidateBeforeSetup: true,
			StrictARN:           false,
		},
		DuckDB: DuckDBConfig{
			Extensions:        []string{"aws", "httpfs", "iceberg", "parquet"},
			IcebergRepository: "core_nightly",
			HomeDir:           "/tmp",
			ExtensionDir:      "/tmp/duckdb_extensions",
		},
		Catalog: CatalogConfig{
			Alias:        "s3_tables_db",
			Type:         "iceberg",
			EndpointType: "s3_tables",
		},
		AWS: AWSConfig{
			Region:             "",
			CredentialsMode:    CredentialsChain,
			LoadAWSCredentials: true,
		},
		Offload: OffloadConfig{
			Enabled:        false,
			Endpoint:       "s3.amazonaws.com",
			UseSSL:         true,
			Prefix:         "tablequery",
			ThresholdBytes: 5 * 1024 * 1024,
			URLExpiry:      15 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:   slog.LevelDebug,
			LogJSON:    true,
			MetricsJob: "tablequery",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.DuckDB.IcebergRepository = ""
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applySessionMode(lookup LookupFunc, key string, dst *SessionMode) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	mode := SessionMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case SessionPerInvocation, SessionWarm:
		*dst = mode
		return nil
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
}

func applyCredentialsMode(lookup LookupFunc, key string, dst *CredentialsMode) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	mode := CredentialsMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case CredentialsChain, CredentialsSDK:
		*dst = mode
		return nil
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
