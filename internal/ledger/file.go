package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/kamazennext/catalog/internal/model"
)

const (
	filePrefix = "clicks-"
	fileSuffix = ".jsonl"

	maxLineBytes = 64 * 1024
)

// FileLedger appends one JSON object per line to a file per UTC day,
// named clicks-YYYY-MM-DD.jsonl.
type FileLedger struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex
}

// NewFileLedger creates dir if needed and returns a ledger stored there.
func NewFileLedger(dir string, logger *slog.Logger) (*FileLedger, error) {
	if dir == "" {
		return nil, errors.New("ledger directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileLedger{
		dir:    dir,
		logger: logger.With("component", "ledger.file"),
	}, nil
}

// Dir returns the ledger directory.
func (l *FileLedger) Dir() string {
	return l.dir
}

func (l *FileLedger) fileFor(day time.Time) string {
	return filepath.Join(l.dir, filePrefix+day.UTC().Format(dateLayout)+fileSuffix)
}

// Append writes event to the file of its day.
func (l *FileLedger) Append(ctx context.Context, event model.ClickEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Validate(event); err != nil {
		return err
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.fileFor(event.Timestamp), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append click event: %w", err)
	}
	return f.Close()
}

// Totals counts matching clicks per product.
func (l *FileLedger) Totals(ctx context.Context, filter Filter) ([]model.ProductClickTotal, error) {
	counts := make(map[string]int64)
	err := l.scan(ctx, filter, func(event model.ClickEvent) {
		counts[event.ProductID]++
	})
	if err != nil {
		return nil, err
	}

	totals := make([]model.ProductClickTotal, 0, len(counts))
	for id, n := range counts {
		totals = append(totals, model.ProductClickTotal{ProductID: id, Clicks: n})
	}
	sortTotals(totals)
	return totals, nil
}

// Recent returns the newest matching clicks, at most NormalizeLimit(limit).
func (l *FileLedger) Recent(ctx context.Context, filter Filter, limit int) ([]model.ClickEvent, error) {
	limit = NormalizeLimit(limit)

	var events []model.ClickEvent
	err := l.scan(ctx, filter, func(event model.ClickEvent) {
		events = append(events, event)
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(events)
	if len(events) > limit {
		events = events[:limit]
	}
	if events == nil {
		events = []model.ClickEvent{}
	}
	return events, nil
}

// scan feeds every matching event to fn. Only day files inside the filter
// range are opened. Malformed lines are logged and skipped.
func (l *FileLedger) scan(ctx context.Context, filter Filter, fn func(model.ClickEvent)) error {
	files, err := l.files(filter)
	if err != nil {
		return err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.scanFile(path, filter, fn); err != nil {
			return err
		}
	}
	return nil
}

func (l *FileLedger) scanFile(path string, filter Filter, fn func(model.ClickEvent)) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var event model.ClickEvent
		if err := json.Unmarshal(data, &event); err != nil {
			l.logger.Warn("skipping malformed ledger line",
				"file", filepath.Base(path),
				"line", lineNo,
				"error", err,
			)
			continue
		}
		if filter.Match(event) {
			fn(event)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ledger file %s: %w", filepath.Base(path), err)
	}
	return nil
}

// files lists the day files that can hold events inside filter, oldest first.
func (l *FileLedger) files(filter Filter) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list ledger directory: %w", err)
	}

	lo, hi := filter.lower(), filter.upper()

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		day, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			continue
		}
		if !lo.IsZero() && day.Before(lo) {
			continue
		}
		if !hi.IsZero() && !day.Before(hi) {
			continue
		}
		files = append(files, filepath.Join(l.dir, name))
	}

	sort.Strings(files)
	return files, nil
}
