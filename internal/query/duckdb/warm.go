package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/duckmesh/tablequery/internal/query"
)

const releaseTimeout = 10 * time.Second

// WarmEngine keeps one prepared database for the life of the process so that
// extension installation is paid once. Sessions are leased one at a time;
// each lease refreshes the S3 secret and detaches the catalog on release.
// A lease that leaves objects or changed settings behind retires the
// database, so no caller state reaches the next lease.
type WarmEngine struct {
	engine *Engine

	mu       sync.Mutex
	db       *sql.DB
	baseline sessionState
}

type sessionState struct {
	userObjects int64
	settings    string
}

func NewWarmEngine(engine *Engine) *WarmEngine {
	return &WarmEngine{engine: engine}
}

func (w *WarmEngine) Open(ctx context.Context) (query.Session, error) {
	w.mu.Lock()

	if w.db == nil {
		db, err := w.engine.prepare(ctx)
		if err != nil {
			w.mu.Unlock()
			return nil, err
		}
		baseline, err := readSessionState(ctx, db)
		if err != nil {
			_ = db.Close()
			w.mu.Unlock()
			return nil, err
		}
		w.db = db
		w.baseline = baseline
		w.engine.Logger.InfoContext(ctx, "initialized warm duckdb session")
	} else if err := w.engine.configureCredentials(ctx, w.db); err != nil {
		w.discardLocked()
		w.mu.Unlock()
		return nil, err
	}

	return w.leaseLocked(), nil
}

func (w *WarmEngine) leaseLocked() *Session {
	return newSession(w.db, w.engine.Settings, w.engine.createSecret, w.release)
}

// release ends a lease. The database is discarded when the detach fails or
// when the lease left state behind.
func (w *WarmEngine) release(db *sql.DB) error {
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, detachStatement(w.engine.Settings.CatalogAlias)); err != nil {
		w.engine.Logger.Warn("detach failed; discarding warm session", slog.Any("error", err))
		w.discardLocked()
		return fmt.Errorf("detach catalog %q: %w", w.engine.Settings.CatalogAlias, err)
	}

	state, err := readSessionState(ctx, db)
	if err != nil {
		w.engine.Logger.Warn("state check failed; discarding warm session", slog.Any("error", err))
		w.discardLocked()
		return err
	}
	if state != w.baseline {
		w.engine.Logger.Info("lease left state behind; discarding warm session",
			slog.Int64("user_objects", state.userObjects),
			slog.Bool("settings_changed", state.settings != w.baseline.settings),
		)
		w.discardLocked()
	}
	return nil
}

func readSessionState(ctx context.Context, db *sql.DB) (sessionState, error) {
	var state sessionState
	var settings sql.NullString
	if err := db.QueryRowContext(ctx, sessionStateQuery).Scan(&state.userObjects, &settings); err != nil {
		return sessionState{}, fmt.Errorf("read session state: %w", err)
	}
	state.settings = settings.String
	return state, nil
}

func (w *WarmEngine) discardLocked() {
	if w.db == nil {
		return
	}
	_ = w.db.Close()
	w.db = nil
	w.baseline = sessionState{}
}

// Close tears down the cached database. It blocks while a lease is held.
func (w *WarmEngine) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}
