package observability

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Flusher pushes the registered metrics to a Prometheus Pushgateway. Function
// instances are not scrapeable, so metrics are flushed after each invocation.
type Flusher struct {
	pusher *push.Pusher
}

// NewFlusher returns nil when url is empty; a nil Flusher is a no-op.
func NewFlusher(url, job, instance string, gatherer prometheus.Gatherer) *Flusher {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	pusher := push.New(url, job).Gatherer(gatherer)
	if strings.TrimSpace(instance) != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	return &Flusher{pusher: pusher}
}

func (f *Flusher) Flush(ctx context.Context) error {
	if f == nil {
		return nil
	}
	if err := f.pusher.AddContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
