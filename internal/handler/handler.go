// Package handler implements the single-shot query invocation: open an engine
// session, attach the requested table catalog, run the caller's query and
// shape the result or failure into a function response.
//
// The query text is executed verbatim. Callers of this function are trusted
// to submit safe statements; there is no sanitization at this layer.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/duckmesh/tablequery/internal/catalogarn"
	"github.com/duckmesh/tablequery/internal/observability"
	"github.com/duckmesh/tablequery/internal/offload"
	"github.com/duckmesh/tablequery/internal/query"
)

const flushTimeout = 2 * time.Second

type Request struct {
	Query      string `json:"query"`
	CatalogARN string `json:"catalog_arn"`
}

// missing lists required fields that are absent or empty, in declaration order.
// Values are otherwise taken as given, whitespace included.
func (r Request) missing() []string {
	missing := make([]string, 0, 2)
	if r.Query == "" {
		missing = append(missing, "query")
	}
	if r.CatalogARN == "" {
		missing = append(missing, "catalog_arn")
	}
	return missing
}

type Options struct {
	Opener query.Opener
	Logger *slog.Logger
	// ValidateBeforeSetup rejects incomplete requests before any engine work.
	// When false, setup runs first and its failures take precedence.
	ValidateBeforeSetup bool
	// StrictARN reports a malformed catalog ARN as an attachment failure
	// without asking the engine.
	StrictARN bool
	Offloader *offload.Offloader
	Metrics   *observability.Flusher
}

type Handler struct {
	opener              query.Opener
	logger              *slog.Logger
	validateBeforeSetup bool
	strictARN           bool
	offloader           *offload.Offloader
	metrics             *observability.Flusher
}

func New(opts Options) (*Handler, error) {
	if opts.Opener == nil {
		return nil, errors.New("engine opener is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		opener:              opts.Opener,
		logger:              logger,
		validateBeforeSetup: opts.ValidateBeforeSetup,
		strictARN:           opts.StrictARN,
		offloader:           opts.Offloader,
		metrics:             opts.Metrics,
	}, nil
}

// Handle processes one invocation end to end. It never returns an error:
// every failure, including a panic, is mapped to a response.
func (h *Handler) Handle(ctx context.Context, request Request) (response Response) {
	start := time.Now()
	ctx, logger := h.invocationLogger(ctx)
	outcome := observability.OutcomeUnexpectedError

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.ErrorContext(ctx, "global error",
				slog.Any("error", recovered),
				slog.String("stack", string(debug.Stack())),
			)
			response = unexpectedResponse()
			outcome = observability.OutcomeUnexpectedError
		}
		observability.ObserveInvocation(outcome, time.Since(start))
		logger.InfoContext(ctx, "invocation finished",
			slog.String("outcome", outcome),
			slog.Int("status", response.StatusCode),
			slog.String("duration", time.Since(start).String()),
		)
		h.flushMetrics(ctx, logger)
	}()

	response, outcome = h.handle(ctx, logger, request)
	return response
}

func (h *Handler) handle(ctx context.Context, logger *slog.Logger, request Request) (Response, string) {
	missing := request.missing()
	if h.validateBeforeSetup && len(missing) > 0 {
		logger.WarnContext(ctx, "missing required parameters", slog.Any("missing", missing))
		return validationResponse(missing), observability.OutcomeValidationError
	}

	logger.InfoContext(ctx, "initializing duckdb session")
	setupStart := time.Now()
	session, err := h.opener.Open(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "global error", slog.Any("error", err))
		return unexpectedResponse(), observability.OutcomeUnexpectedError
	}
	observability.ObserveSetup(time.Since(setupStart))
	defer func() {
		if err := session.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close duckdb session", slog.Any("error", err))
		}
	}()

	if len(missing) > 0 {
		logger.WarnContext(ctx, "missing required parameters", slog.Any("missing", missing))
		return validationResponse(missing), observability.OutcomeValidationError
	}

	catalogARN := request.CatalogARN
	if h.strictARN {
		if _, err := catalogarn.Parse(catalogARN); err != nil {
			logger.ErrorContext(ctx, "catalog attachment failed", slog.Any("error", err))
			return attachFailureResponse(err), observability.OutcomeAttachError
		}
	}
	if err := session.Attach(ctx, catalogARN); err != nil {
		logger.ErrorContext(ctx, "catalog attachment failed", slog.String("catalog_arn", catalogARN), slog.Any("error", err))
		return attachFailureResponse(err), observability.OutcomeAttachError
	}
	logger.InfoContext(ctx, "attached catalog",
		slog.String("catalog_arn", catalogARN),
		slog.String("catalog_region", catalogarn.RegionOf(catalogARN)),
	)

	result, err := session.Execute(ctx, request.Query)
	if err != nil {
		logger.ErrorContext(ctx, "query execution failed", slog.Any("error", err))
		return queryFailureResponse(err), observability.OutcomeQueryError
	}
	body, err := encodeSuccess(result)
	if err != nil {
		logger.ErrorContext(ctx, "query execution failed", slog.Any("error", err))
		return queryFailureResponse(fmt.Errorf("encode result: %w", err)), observability.OutcomeQueryError
	}
	observability.ObserveResultRows(len(result.Rows))
	logger.InfoContext(ctx, "query executed",
		slog.Int("row_count", len(result.Rows)),
		slog.String("duration", result.Duration.String()),
	)

	if h.offloader.ShouldOffload(len(body)) {
		if offloaded, ok := h.offload(ctx, logger, result, body); ok {
			body = offloaded
		}
	}
	return Response{StatusCode: http.StatusOK, Body: string(body)}, observability.OutcomeSuccess
}

// offload stores body and returns the pointer payload. On failure the inline
// body is kept.
func (h *Handler) offload(ctx context.Context, logger *slog.Logger, result query.Result, body []byte) ([]byte, bool) {
	location, err := h.offloader.Offload(ctx, observability.RequestIDFromContext(ctx), body)
	if err != nil {
		logger.WarnContext(ctx, "result offload failed; returning inline", slog.Int("bytes", len(body)), slog.Any("error", err))
		return nil, false
	}
	pointer, err := encodeOffloaded(result, location)
	if err != nil {
		logger.WarnContext(ctx, "encode offloaded result failed; returning inline", slog.Any("error", err))
		return nil, false
	}
	observability.IncrementOffloadedResults()
	logger.InfoContext(ctx, "result offloaded", slog.String("bucket", location.Bucket), slog.String("key", location.Key), slog.Int("bytes", len(body)))
	return pointer, true
}

func (h *Handler) invocationLogger(ctx context.Context) (context.Context, *slog.Logger) {
	ctx, requestID := observability.EnsureRequestID(ctx)
	return ctx, h.logger.With(slog.String("request_id", requestID))
}

func (h *Handler) flushMetrics(ctx context.Context, logger *slog.Logger) {
	if h.metrics == nil {
		return
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	if err := h.metrics.Flush(flushCtx); err != nil {
		logger.WarnContext(ctx, "metrics flush failed", slog.Any("error", err))
	}
}
