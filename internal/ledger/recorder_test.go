package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kamazennext/catalog/internal/metrics"
	"github.com/kamazennext/catalog/internal/model"
)

type memoryAppender struct {
	mu     sync.Mutex
	events []model.ClickEvent
	err    error
	delay  time.Duration
}

func (m *memoryAppender) Append(ctx context.Context, event model.ClickEvent) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func TestAsyncRecorder_Records(t *testing.T) {
	t.Parallel()

	appender := &memoryAppender{}
	recorder := metrics.NewInMemory()
	r := NewAsyncRecorder(appender, time.Second, nil, recorder)

	r.RecordAsync(testEvent("a", "zen", "home", day(1, 1)))
	r.RecordAsync(testEvent("b", "zen", "home", day(1, 2)))

	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(appender.events) != 2 {
		t.Errorf("events = %d, want 2", len(appender.events))
	}
	if got := recorder.Snapshot().ClicksRecorded; got != 2 {
		t.Errorf("ClicksRecorded = %d, want 2", got)
	}
}

func TestAsyncRecorder_DropsFailures(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()
	r := NewAsyncRecorder(&memoryAppender{err: errors.New("disk full")}, time.Second, nil, recorder)

	r.RecordAsync(testEvent("a", "zen", "home", day(1, 1)))
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if got := recorder.Snapshot().ClicksDropped; got != 1 {
		t.Errorf("ClicksDropped = %d, want 1", got)
	}
}

func TestAsyncRecorder_TimeoutBoundsAppend(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()
	r := NewAsyncRecorder(&memoryAppender{delay: time.Minute}, 20*time.Millisecond, nil, recorder)

	start := time.Now()
	r.RecordAsync(testEvent("a", "zen", "home", day(1, 1)))
	if time.Since(start) > 500*time.Millisecond {
		t.Error("RecordAsync blocked the caller")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := recorder.Snapshot().ClicksDropped; got != 1 {
		t.Errorf("ClicksDropped = %d, want 1", got)
	}
}
