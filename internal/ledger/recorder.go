package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kamazennext/catalog/internal/metrics"
	"github.com/kamazennext/catalog/internal/model"
)

// DefaultAppendTimeout bounds one asynchronous append.
const DefaultAppendTimeout = 2 * time.Second

// Appender is the write side of a Ledger.
type Appender interface {
	Append(ctx context.Context, event model.ClickEvent) error
}

// AsyncRecorder appends click events off the request path.
type AsyncRecorder struct {
	ledger  Appender
	timeout time.Duration
	logger  *slog.Logger
	metrics metrics.Recorder

	wg sync.WaitGroup
}

// NewAsyncRecorder creates an AsyncRecorder. A zero timeout uses
// DefaultAppendTimeout.
func NewAsyncRecorder(ledger Appender, timeout time.Duration, logger *slog.Logger, recorder metrics.Recorder) *AsyncRecorder {
	if timeout <= 0 {
		timeout = DefaultAppendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AsyncRecorder{
		ledger:  ledger,
		timeout: timeout,
		logger:  logger.With("component", "ledger.recorder"),
		metrics: recorder,
	}
}

// RecordAsync appends without blocking the caller.
// Errors are logged once and dropped (fire-and-forget).
func (r *AsyncRecorder) RecordAsync(event model.ClickEvent) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.ledger.Append(ctx, event); err != nil {
			r.logger.Warn("failed to record click event",
				"product_id", event.ProductID,
				"event_id", event.ID,
				"error", err,
			)
			r.metrics.IncClickRecorded("dropped")
			return
		}

		r.logger.Debug("click event recorded",
			"product_id", event.ProductID,
			"event_id", event.ID,
		)
		r.metrics.IncClickRecorded("success")
	}()
}

// Wait blocks until in-flight appends finish or ctx is done.
func (r *AsyncRecorder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
