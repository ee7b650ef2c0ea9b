package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kamazennext/catalog/internal/ledger"
	"github.com/kamazennext/catalog/internal/model"
)

// ClickEventRepository is a Postgres-backed ledger.Ledger.
type ClickEventRepository struct {
	repo *Repository
}

// NewClickEventRepository creates a new ClickEventRepository.
func NewClickEventRepository(repo *Repository) *ClickEventRepository {
	return &ClickEventRepository{repo: repo}
}

// Append inserts one event. Re-appending the same id is a no-op.
func (r *ClickEventRepository) Append(ctx context.Context, event model.ClickEvent) error {
	if err := ledger.Validate(event); err != nil {
		return err
	}

	query := `
		INSERT INTO click_events (
			id, ts, product_id, from_page, referrer, user_agent,
			ip_hash, destination_url, utm_campaign, utm_content
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.repo.pool.Exec(ctx, query,
		event.ID,
		event.Timestamp.UTC(),
		event.ProductID,
		nullableString(event.FromPage),
		nullableString(event.Referrer),
		nullableString(event.UserAgent),
		event.IPHash,
		event.DestinationURL,
		nullableString(event.UTMCampaign),
		nullableString(event.UTMContent),
	)
	if err != nil {
		return fmt.Errorf("insert click event: %w", err)
	}
	return nil
}

// Totals counts matching clicks per product, most clicked first.
func (r *ClickEventRepository) Totals(ctx context.Context, filter ledger.Filter) ([]model.ProductClickTotal, error) {
	where, args := buildWhere(filter)
	query := `
		SELECT product_id, COUNT(*) AS clicks
		FROM click_events` + where + `
		GROUP BY product_id
		ORDER BY clicks DESC, product_id ASC
	`

	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query click totals: %w", err)
	}
	defer rows.Close()

	totals := make([]model.ProductClickTotal, 0)
	for rows.Next() {
		var t model.ProductClickTotal
		if err := rows.Scan(&t.ProductID, &t.Clicks); err != nil {
			return nil, fmt.Errorf("scan click total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Recent returns the newest matching clicks.
func (r *ClickEventRepository) Recent(ctx context.Context, filter ledger.Filter, limit int) ([]model.ClickEvent, error) {
	where, args := buildWhere(filter)
	args = append(args, ledger.NormalizeLimit(limit))

	query := `
		SELECT id, ts, product_id, COALESCE(from_page, ''), COALESCE(referrer, ''),
			COALESCE(user_agent, ''), ip_hash, destination_url,
			COALESCE(utm_campaign, ''), COALESCE(utm_content, '')
		FROM click_events` + where + `
		ORDER BY ts DESC, id DESC
		LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent clicks: %w", err)
	}
	defer rows.Close()

	events := make([]model.ClickEvent, 0)
	for rows.Next() {
		var e model.ClickEvent
		if err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.ProductID,
			&e.FromPage,
			&e.Referrer,
			&e.UserAgent,
			&e.IPHash,
			&e.DestinationURL,
			&e.UTMCampaign,
			&e.UTMContent,
		); err != nil {
			return nil, fmt.Errorf("scan click event: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// buildWhere renders filter as a WHERE clause with positional arguments.
func buildWhere(filter ledger.Filter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if !filter.Start.IsZero() {
		add("ts >= ?", startOfDay(filter.Start))
	}
	if !filter.End.IsZero() {
		add("ts < ?", startOfDay(filter.End).AddDate(0, 0, 1))
	}
	if filter.ProductID != "" {
		add("product_id = ?", filter.ProductID)
	}
	if filter.FromPage != "" {
		add("from_page = ?", filter.FromPage)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "\n\t\tWHERE " + strings.Join(clauses, " AND "), args
}

// nullableString returns nil for empty strings.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
