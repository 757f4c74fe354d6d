package app

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/duckmesh/tablequery/internal/config"
	"github.com/duckmesh/tablequery/internal/handler"
)

func TestBuildPerInvocation(t *testing.T) {
	cfg := mustConfig(t, map[string]string{"TABLEQUERY_PROFILE": "test"})

	built, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if built.Handler == nil {
		t.Fatal("expected handler")
	}
	if built.warm != nil {
		t.Fatal("per-invocation mode should not create a warm engine")
	}
	if err := built.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestBuildWarmWithOffload(t *testing.T) {
	cfg := mustConfig(t, map[string]string{
		"TABLEQUERY_PROFILE":          "test",
		"TABLEQUERY_SESSION_MODE":     "warm",
		"TABLEQUERY_CREDENTIALS_MODE": "sdk",
		"TABLEQUERY_OFFLOAD_ENABLED":  "true",
		"TABLEQUERY_OFFLOAD_ENDPOINT": "http://localhost:9000",
		"TABLEQUERY_OFFLOAD_BUCKET":   "results",
	})

	built, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if built.warm == nil {
		t.Fatal("warm mode should create a warm engine")
	}
	if err := built.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestBuiltHandlerValidatesBeforeOpeningEngine(t *testing.T) {
	cfg := mustConfig(t, map[string]string{"TABLEQUERY_PROFILE": "test"})
	built, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	resp := built.Handler.Handle(context.Background(), handler.Request{Query: "SELECT 1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("StatusCode = %d, body=%s", resp.StatusCode, resp.Body)
	}
	if !strings.Contains(resp.Body, "catalog_arn") {
		t.Fatalf("Body = %s", resp.Body)
	}
}

func TestEngineSettingsFromConfig(t *testing.T) {
	cfg := mustConfig(t, map[string]string{"AWS_REGION": "eu-west-1"})
	settings := engineSettings(cfg)
	if settings.CatalogAlias != "s3_tables_db" || settings.CatalogType != "iceberg" || settings.EndpointType != "s3_tables" {
		t.Fatalf("catalog settings = %#v", settings)
	}
	if settings.Region != "eu-west-1" {
		t.Fatalf("Region = %q", settings.Region)
	}
	if settings.IcebergRepository != "core_nightly" || !settings.LoadAWSCredentials {
		t.Fatalf("settings = %#v", settings)
	}
}

func mustConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("tablequery-lambda", func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}
