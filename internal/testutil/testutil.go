package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kamazennext/catalog/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// DropClickEvents removes the click ledger table so a test can recreate it.
func DropClickEvents(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS click_events"); err != nil {
		return fmt.Errorf("drop click_events: %w", err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestProduct creates a product with sensible defaults.
func NewTestProduct(t testing.TB, slug string) model.Product {
	t.Helper()
	return model.Product{
		ID:         slug,
		Slug:       slug,
		Name:       "Test " + slug,
		Category:   "Automation",
		WebsiteURL: "https://example.com/" + slug,
	}
}

// NewTestClickEvent creates a click event for productID at ts.
func NewTestClickEvent(t testing.TB, productID string, ts time.Time) model.ClickEvent {
	t.Helper()
	return model.ClickEvent{
		ID:             UniqueID("click"),
		Timestamp:      ts.UTC(),
		ProductID:      productID,
		FromPage:       "home",
		IPHash:         "0000000000000000000000000000000000000000000000000000000000000000",
		DestinationURL: "https://example.com/" + productID,
		UTMCampaign:    "home",
		UTMContent:     productID,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
