package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/duckmesh/tablequery/internal/observability"
)

// Invoke is the function entry point. It accepts either a direct payload
// carrying query and catalog_arn, or an API Gateway proxy event whose body
// carries them, and answers in the matching shape.
func (h *Handler) Invoke(ctx context.Context, payload json.RawMessage) (any, error) {
	start := time.Now()
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return h.Handle(ctx, Request{}), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return h.reject(ctx, start, fmt.Errorf("decode payload: %w", err)), nil
	}

	if isProxyEvent(fields) {
		var event events.APIGatewayProxyRequest
		if err := json.Unmarshal(trimmed, &event); err != nil {
			return proxyResponse(h.reject(ctx, start, fmt.Errorf("decode proxy event: %w", err))), nil
		}
		return proxyResponse(h.Handle(ctx, proxyRequest(event))), nil
	}

	var request Request
	if err := json.Unmarshal(trimmed, &request); err != nil {
		return h.reject(ctx, start, fmt.Errorf("decode request: %w", err)), nil
	}
	return h.Handle(ctx, request), nil
}

// reject answers a payload that never reached Handle.
func (h *Handler) reject(ctx context.Context, start time.Time, err error) Response {
	ctx, logger := h.invocationLogger(ctx)
	logger.ErrorContext(ctx, "global error", slog.Any("error", err))
	observability.ObserveInvocation(observability.OutcomeUnexpectedError, time.Since(start))
	h.flushMetrics(ctx, logger)
	return unexpectedResponse()
}

func isProxyEvent(fields map[string]json.RawMessage) bool {
	if _, ok := fields["requestContext"]; ok {
		return true
	}
	if _, ok := fields["httpMethod"]; ok {
		return true
	}
	_, hasBody := fields["body"]
	_, hasQuery := fields["query"]
	return hasBody && !hasQuery
}

// proxyRequest reads the request from the event body. A body that is not a
// JSON object yields an empty request so validation reports both fields.
func proxyRequest(event events.APIGatewayProxyRequest) Request {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return Request{}
		}
		body = decoded
	}
	var request Request
	if err := json.Unmarshal(body, &request); err != nil {
		return Request{}
	}
	return request
}

func proxyResponse(response Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: response.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       response.Body,
	}
}
