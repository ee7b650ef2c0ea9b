// Package ledger records one immutable ClickEvent per resolved redirect and
// answers the admin click reports.
package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/kamazennext/catalog/internal/model"
)

// Ledger errors.
var (
	ErrInvalidEvent = errors.New("invalid click event")
	ErrInvalidRange = errors.New("start date is after end date")
)

const (
	// DefaultRecentLimit is used when a caller asks for no particular limit.
	DefaultRecentLimit = 50

	// MaxRecentLimit caps Recent.
	MaxRecentLimit = 200

	dateLayout = "2006-01-02"
)

// Ledger is an append-only click store.
type Ledger interface {
	Append(ctx context.Context, event model.ClickEvent) error
	Totals(ctx context.Context, filter Filter) ([]model.ProductClickTotal, error)
	Recent(ctx context.Context, filter Filter, limit int) ([]model.ClickEvent, error)
}

// Filter narrows a report. Zero fields match everything. Start and End are
// calendar dates in UTC and both are inclusive.
type Filter struct {
	Start     time.Time
	End       time.Time
	ProductID string
	FromPage  string
}

// ParseFilter builds a Filter from YYYY-MM-DD strings. Empty dates are unset.
func ParseFilter(start, end, productID, fromPage string) (Filter, error) {
	f := Filter{ProductID: productID, FromPage: fromPage}

	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return Filter{}, errors.New("start must be a YYYY-MM-DD date")
		}
		f.Start = t
	}
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return Filter{}, errors.New("end must be a YYYY-MM-DD date")
		}
		f.End = t
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.Start.After(f.End) {
		return Filter{}, ErrInvalidRange
	}
	return f, nil
}

// lower is the first instant matched, or zero.
func (f Filter) lower() time.Time {
	if f.Start.IsZero() {
		return time.Time{}
	}
	return truncateDay(f.Start)
}

// upper is the first instant past the range, or zero.
func (f Filter) upper() time.Time {
	if f.End.IsZero() {
		return time.Time{}
	}
	return truncateDay(f.End).AddDate(0, 0, 1)
}

// Match reports whether event falls inside the filter.
func (f Filter) Match(event model.ClickEvent) bool {
	ts := event.Timestamp.UTC()
	if lo := f.lower(); !lo.IsZero() && ts.Before(lo) {
		return false
	}
	if hi := f.upper(); !hi.IsZero() && !ts.Before(hi) {
		return false
	}
	if f.ProductID != "" && event.ProductID != f.ProductID {
		return false
	}
	if f.FromPage != "" && event.FromPage != f.FromPage {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeLimit maps non-positive limits to DefaultRecentLimit and caps at
// MaxRecentLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}

// sortTotals orders by clicks descending, then product id.
func sortTotals(totals []model.ProductClickTotal) {
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Clicks != totals[j].Clicks {
			return totals[i].Clicks > totals[j].Clicks
		}
		return totals[i].ProductID < totals[j].ProductID
	})
}

// sortNewestFirst orders by timestamp descending; ULIDs break ties.
func sortNewestFirst(events []model.ClickEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.After(events[j].Timestamp)
		}
		return events[i].ID > events[j].ID
	})
}
