package tablequeryctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const defaultRegion = "us-east-1"

// Invoker runs one invocation payload and returns the function response.
type Invoker interface {
	Invoke(ctx context.Context, payload json.RawMessage) (any, error)
}

// BuildFunc constructs the invoker once the environment is prepared. The
// returned cleanup is called after the invocation.
type BuildFunc func(ctx context.Context) (Invoker, func(), error)

type Options struct {
	Build  BuildFunc
	Stdout io.Writer
	Stderr io.Writer

	Getenv   func(string) string
	Setenv   func(string, string) error
	ReadFile func(string) ([]byte, error)
	LoadEnv  func(...string) error
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	getenv := defaults.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	setenv := defaults.Setenv
	if setenv == nil {
		setenv = os.Setenv
	}
	readFile := defaults.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	loadEnv := defaults.LoadEnv
	if loadEnv == nil {
		loadEnv = godotenv.Load
	}

	fs := flag.NewFlagSet("tablequeryctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	queryText := fs.String("query", "", "SQL to execute against the attached catalog")
	catalogARN := fs.String("catalog-arn", "", "S3 Tables bucket ARN to attach")
	eventFile := fs.String("event", "", "Path to a JSON invocation payload (overrides -query/-catalog-arn)")
	envFile := fs.String("env-file", "", "Optional .env file loaded before the handler is built")
	region := fs.String("region", "", "AWS region (defaults to AWS_DEFAULT_REGION, then "+defaultRegion+")")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %s\n\n", strings.Join(fs.Args(), " "))
		writeUsage(stderr)
		return 2
	}
	if defaults.Build == nil {
		_, _ = fmt.Fprintln(stderr, "no handler configured")
		return 2
	}

	payload, err := buildPayload(*eventFile, *queryText, *catalogARN, readFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	if path := strings.TrimSpace(*envFile); path != "" {
		if err := loadEnv(path); err != nil {
			_, _ = fmt.Fprintf(stderr, "load env file %s: %v\n", path, err)
			return 2
		}
	}
	if err := applyRegion(strings.TrimSpace(*region), getenv, setenv); err != nil {
		_, _ = fmt.Fprintf(stderr, "set region: %v\n", err)
		return 1
	}

	invoker, cleanup, err := defaults.Build(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "build handler: %v\n", err)
		return 1
	}
	if cleanup != nil {
		defer cleanup()
	}

	out, err := invoker.Invoke(ctx, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invoke: %v\n", err)
		return 1
	}

	status, body, err := splitResponse(out)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "decode response: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "status: %d\n", status)
	if pretty, ok := prettyJSON([]byte(body)); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
	} else if body != "" {
		_, _ = fmt.Fprintln(stdout, body)
	}
	if status != http.StatusOK {
		return 1
	}
	return 0
}

func buildPayload(eventFile, queryText, catalogARN string, readFile func(string) ([]byte, error)) (json.RawMessage, error) {
	if path := strings.TrimSpace(eventFile); path != "" {
		raw, err := readFile(path)
		if err != nil {
			return nil, fmt.Errorf("read event file: %w", err)
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("event file %s is not valid JSON", path)
		}
		return raw, nil
	}
	if strings.TrimSpace(queryText) == "" && strings.TrimSpace(catalogARN) == "" {
		return nil, errors.New("either -event or -query/-catalog-arn is required")
	}
	return json.Marshal(map[string]string{"query": queryText, "catalog_arn": catalogARN})
}

// regionKeys are the region variables config and the SDK consult, lowest
// precedence first.
var regionKeys = []string{"AWS_DEFAULT_REGION", "AWS_REGION", "TABLEQUERY_AWS_REGION"}

// applyRegion exports the region the engine and SDK read. An explicit flag
// overwrites every region variable so none of them can shadow it; otherwise
// AWS_DEFAULT_REGION is filled in only when no region is set at all.
func applyRegion(region string, getenv func(string) string, setenv func(string, string) error) error {
	if region != "" {
		for _, key := range regionKeys {
			if err := setenv(key, region); err != nil {
				return err
			}
		}
		return nil
	}
	for _, key := range regionKeys {
		if strings.TrimSpace(getenv(key)) != "" {
			return nil
		}
	}
	return setenv("AWS_DEFAULT_REGION", defaultRegion)
}

// splitResponse extracts status and body from any response shape the
// handler returns.
func splitResponse(out any) (int, string, error) {
	encoded, err := json.Marshal(out)
	if err != nil {
		return 0, "", err
	}
	var envelope struct {
		StatusCode int    `json:"statusCode"`
		Body       string `json:"body"`
	}
	if err := json.Unmarshal(encoded, &envelope); err != nil {
		return 0, "", err
	}
	return envelope.StatusCode, envelope.Body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: tablequeryctl [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "examples:")
	_, _ = fmt.Fprintln(w, "  tablequeryctl -catalog-arn arn:aws:s3tables:us-east-1:111122223333:bucket/analytics \\")
	_, _ = fmt.Fprintln(w, "    -query 'SELECT * FROM s3_tables_db.sales.orders LIMIT 10'")
	_, _ = fmt.Fprintln(w, "  tablequeryctl -event event.json -env-file .env")
}
