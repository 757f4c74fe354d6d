package query

import (
	"context"
	"time"
)

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Session is one engine connection scoped to a single invocation. Close must
// be safe to call more than once; only the first call releases resources.
type Session interface {
	Attach(ctx context.Context, catalogARN string) error
	Execute(ctx context.Context, sqlText string) (Result, error)
	Close() error
}

// Opener establishes a ready-to-use session: extensions are loaded and
// credentials configured before Open returns.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}
