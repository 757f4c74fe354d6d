package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/duckmesh/tablequery/internal/awscreds"
	"github.com/duckmesh/tablequery/internal/catalogarn"
	"github.com/duckmesh/tablequery/internal/query"
)

type Settings struct {
	Extensions        []string
	IcebergRepository string
	HomeDir           string
	ExtensionDir      string
	MemoryLimit       string
	Threads           int
	CatalogAlias      string
	CatalogType       string
	EndpointType      string
	Region            string
	// LoadAWSCredentials runs CALL load_aws_credentials() before the secret
	// is created. Only meaningful with the credential_chain provider.
	LoadAWSCredentials bool
}

func (s Settings) validate() error {
	if strings.TrimSpace(s.CatalogAlias) == "" {
		return fmt.Errorf("catalog alias is required")
	}
	if !extensionNamePattern.MatchString(s.CatalogType) {
		return fmt.Errorf("invalid catalog type %q", s.CatalogType)
	}
	if s.EndpointType != "" && !extensionNamePattern.MatchString(s.EndpointType) {
		return fmt.Errorf("invalid catalog endpoint type %q", s.EndpointType)
	}
	return nil
}

type Engine struct {
	Settings Settings
	// Credentials resolves explicit keys for the S3 secret. When nil the
	// secret uses DuckDB's own credential_chain provider.
	Credentials awscreds.Resolver
	Logger      *slog.Logger

	openDB func() (*sql.DB, error)
}

func NewEngine(settings Settings, credentials awscreds.Resolver, logger *slog.Logger) (*Engine, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{Settings: settings, Credentials: credentials, Logger: logger}, nil
}

// Open creates a fresh in-memory database, loads extensions and configures
// credentials. The returned session owns the database.
func (e *Engine) Open(ctx context.Context) (query.Session, error) {
	db, err := e.prepare(ctx)
	if err != nil {
		return nil, err
	}
	return newSession(db, e.Settings, e.createSecret, closeDB), nil
}

func (e *Engine) prepare(ctx context.Context) (*sql.DB, error) {
	db, err := e.open()
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// Secrets and settings are instance-wide, but pinning one connection keeps
	// every statement of the invocation on the same DuckDB connection.
	db.SetMaxOpenConns(1)

	if err := e.setup(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (e *Engine) open() (*sql.DB, error) {
	if e.openDB != nil {
		return e.openDB()
	}
	return sql.Open("duckdb", "")
}

func (e *Engine) setup(ctx context.Context, db *sql.DB) error {
	for _, statement := range settingStatements(e.Settings) {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply setting (%s): %w", statement, err)
		}
	}

	for _, extension := range e.Settings.Extensions {
		statements, err := installStatements(extension)
		if err != nil {
			return err
		}
		if err := execAll(ctx, db, statements); err != nil {
			return fmt.Errorf("extension setup (%s): %w", extension, err)
		}
		e.Logger.DebugContext(ctx, "installed and loaded extension", slog.String("extension", extension))
	}

	if e.Settings.IcebergRepository != "" {
		statements, err := forceInstallStatements("iceberg", e.Settings.IcebergRepository)
		if err != nil {
			return err
		}
		if err := execAll(ctx, db, statements); err != nil {
			return fmt.Errorf("force install iceberg from %s: %w", e.Settings.IcebergRepository, err)
		}
		e.Logger.DebugContext(ctx, "forced iceberg install", slog.String("repository", e.Settings.IcebergRepository))
	}

	return e.configureCredentials(ctx, db)
}

func (e *Engine) configureCredentials(ctx context.Context, db *sql.DB) error {
	if e.Credentials == nil && e.Settings.LoadAWSCredentials {
		if _, err := db.ExecContext(ctx, "CALL load_aws_credentials()"); err != nil {
			return fmt.Errorf("load aws credentials: %w", err)
		}
	}
	return e.createSecret(ctx, db, "")
}

// createSecret (re)creates the S3 secret. A non-empty region overrides the
// configured and resolved regions.
func (e *Engine) createSecret(ctx context.Context, db *sql.DB, region string) error {
	if e.Credentials == nil {
		if region == "" {
			region = e.Settings.Region
		}
		if _, err := db.ExecContext(ctx, credentialChainSecretStatement(region)); err != nil {
			return fmt.Errorf("create s3 secret: %w", err)
		}
		e.Logger.DebugContext(ctx, "configured aws credentials", slog.String("provider", "credential_chain"), slog.String("region", region))
		return nil
	}

	creds, err := e.Credentials.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve aws credentials: %w", err)
	}
	switch {
	case region != "":
		creds.Region = region
	case creds.Region == "":
		creds.Region = e.Settings.Region
	}
	if _, err := db.ExecContext(ctx, staticSecretStatement(creds)); err != nil {
		return fmt.Errorf("create s3 secret: %w", err)
	}
	e.Logger.DebugContext(ctx, "configured aws credentials", slog.String("provider", "sdk"), slog.String("region", creds.Region))
	return nil
}

func execAll(ctx context.Context, db *sql.DB, statements []string) error {
	for _, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}

func closeDB(db *sql.DB) error {
	return db.Close()
}

type secretFunc func(ctx context.Context, db *sql.DB, region string) error

type Session struct {
	db       *sql.DB
	settings Settings
	// rescope recreates the S3 secret for a catalog outside Settings.Region.
	rescope  secretFunc
	release  func(*sql.DB) error

	closeOnce sync.Once
	closeErr  error
}

func newSession(db *sql.DB, settings Settings, rescope secretFunc, release func(*sql.DB) error) *Session {
	return &Session{db: db, settings: settings, rescope: rescope, release: release}
}

func (s *Session) Attach(ctx context.Context, catalogARN string) error {
	if strings.TrimSpace(catalogARN) == "" {
		return fmt.Errorf("catalog arn is required")
	}
	if region := catalogarn.RegionOf(catalogARN); region != "" && region != s.settings.Region && s.rescope != nil {
		if err := s.rescope(ctx, s.db, region); err != nil {
			return fmt.Errorf("scope s3 secret to catalog region %s: %w", region, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, attachStatement(catalogARN, s.settings)); err != nil {
		return fmt.Errorf("attach catalog %q: %w", catalogARN, err)
	}
	return nil
}

// Execute runs sqlText as given. The caller is trusted: no rewriting or
// statement filtering happens beyond dropping trailing semicolons.
func (s *Session) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.release(s.db)
	})
	return s.closeErr
}
