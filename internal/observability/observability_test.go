package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/duckmesh/tablequery/internal/config"
)

func TestNewLoggerAddsServiceAttributes(t *testing.T) {
	cfg, err := config.Load("tablequery-lambda", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	var buf bytes.Buffer
	logger := NewLogger(cfg, &buf)
	logger.Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json decode failed: %v (%s)", err, buf.String())
	}
	if entry["service"] != "tablequery-lambda" {
		t.Fatalf("service = %v", entry["service"])
	}
	if entry["profile"] != "dev" {
		t.Fatalf("profile = %v", entry["profile"])
	}
}

func TestNewLoggerTextHandler(t *testing.T) {
	cfg, err := config.Load("tablequery-lambda", func(key string) (string, bool) {
		if key == "TABLEQUERY_LOG_JSON" {
			return "false", true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	var buf bytes.Buffer
	NewLogger(cfg, &buf).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("log line = %q", buf.String())
	}
}

func TestRequestIDContextHelpers(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("RequestIDFromContext() = %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("RequestIDFromContext() = %q, want empty", got)
	}
}

func TestEnsureRequestIDPrecedence(t *testing.T) {
	ctx, id := EnsureRequestID(ContextWithRequestID(context.Background(), "req-ctx"))
	if id != "req-ctx" || RequestIDFromContext(ctx) != "req-ctx" {
		t.Fatalf("EnsureRequestID() = %q", id)
	}

	lambdaCtx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-lambda"})
	ctx, id = EnsureRequestID(lambdaCtx)
	if id != "req-lambda" || RequestIDFromContext(ctx) != "req-lambda" {
		t.Fatalf("EnsureRequestID() = %q", id)
	}

	ctx, id = EnsureRequestID(context.Background())
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("EnsureRequestID() = %q, want uuid: %v", id, err)
	}
	if RequestIDFromContext(ctx) != id {
		t.Fatalf("RequestIDFromContext() = %q, want %q", RequestIDFromContext(ctx), id)
	}
}

func TestObserveInvocationCountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(invocationsTotal.WithLabelValues(OutcomeQueryError))
	ObserveInvocation(OutcomeQueryError, 20*time.Millisecond)
	after := testutil.ToFloat64(invocationsTotal.WithLabelValues(OutcomeQueryError))
	if after-before != 1 {
		t.Fatalf("query_error delta = %v", after-before)
	}
}

func TestIncrementOffloadedResults(t *testing.T) {
	before := testutil.ToFloat64(offloadedResultsTotal)
	IncrementOffloadedResults()
	if got := testutil.ToFloat64(offloadedResultsTotal) - before; got != 1 {
		t.Fatalf("offloaded delta = %v", got)
	}
}

func TestNilFlusherIsNoop(t *testing.T) {
	flusher := NewFlusher("", "tablequery", "", nil)
	if flusher != nil {
		t.Fatal("expected nil flusher for empty url")
	}
	if err := flusher.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestFlusherPushesToGateway(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "tablequery_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	flusher := NewFlusher(srv.URL, "tablequery", "fn-1", registry)
	if err := flusher.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("method = %s", gotMethod)
	}
	if gotPath != "/metrics/job/tablequery/instance/fn-1" {
		t.Fatalf("path = %s", gotPath)
	}
}
