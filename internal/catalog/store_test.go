package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kamazennext/catalog/internal/model"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()

	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "data", "products.json")
	}
	store, err := New(opts)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func rating(v float64) *float64 { return &v }

func sampleProducts() []model.Product {
	return []model.Product{
		{
			ID:         "zen-crm",
			Slug:       "zen-crm",
			Name:       "Zen CRM",
			Category:   "CRM",
			WebsiteURL: "https://zen.example/crm?a=1&b=2",
			Reviews: []model.Review{
				{ID: "r1", Rating: rating(4)},
				{ID: "r2", Rating: rating(5)},
				{ID: "r3", Rating: rating(3)},
			},
		},
		{ID: "flow", Name: "Flow <Automation>", Category: "Automation"},
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t, Options{})

	_, err := store.Load(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if got := store.LoadOrEmpty(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty fallback, got %d products", len(got))
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("missing catalog should be healthy, got %v", err)
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `[{"id": "a", "name": "A"`},
		{"object", `{"id": "a"}`},
		{"empty", ``},
		{"null", `null`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := newTestStore(t, Options{})
			if err := os.WriteFile(store.Path(), []byte(test.content), 0o644); err != nil {
				t.Fatalf("seed: %v", err)
			}

			_, err := store.Load(context.Background())
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
			if err := store.Ping(context.Background()); err == nil {
				t.Fatal("expected Ping to fail on corrupt catalog")
			}
		})
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	if err := store.Save(ctx, sampleProducts()); err != nil {
		t.Fatalf("save: %v", err)
	}

	data := readFile(t, store.Path())
	if !bytes.Contains(data, []byte("https://zen.example/crm?a=1&b=2")) {
		t.Errorf("expected slashes and ampersands unescaped, got:\n%s", data)
	}
	if !bytes.Contains(data, []byte("Flow <Automation>")) {
		t.Errorf("expected HTML characters unescaped, got:\n%s", data)
	}
	if !bytes.Contains(data, []byte("\n    {")) {
		t.Errorf("expected pretty-printed output, got:\n%s", data)
	}

	products, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}

	crm := products[0]
	if crm.Rating == nil || *crm.Rating != 4.0 {
		t.Errorf("Rating = %v, want 4.0", crm.Rating)
	}
	if crm.ReviewCount != 3 {
		t.Errorf("ReviewCount = %d, want 3", crm.ReviewCount)
	}
}

func TestStore_SaveCreatesBackup(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	store := newTestStore(t, Options{Now: func() time.Time { return fixed }})
	ctx := context.Background()

	// First save has nothing to back up.
	if err := store.Save(ctx, sampleProducts()[:1]); err != nil {
		t.Fatalf("first save: %v", err)
	}
	before := readFile(t, store.Path())

	if err := store.Save(ctx, sampleProducts()); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if err := store.Save(ctx, sampleProducts()[1:]); err != nil {
		t.Fatalf("third save: %v", err)
	}

	backups, err := store.ListBackups()
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups, got %d", len(backups))
	}

	// Same-second saves get a numeric suffix and sort newest first.
	if backups[0].Name != "products-20260304-050607-2.json" {
		t.Errorf("newest backup = %s", backups[0].Name)
	}
	if backups[1].Name != "products-20260304-050607.json" {
		t.Errorf("oldest backup = %s", backups[1].Name)
	}

	if got := readFile(t, backups[1].Path); !bytes.Equal(got, before) {
		t.Errorf("oldest backup does not match the pre-write catalog")
	}
}

func TestStore_BackupRetention(t *testing.T) {
	store := newTestStore(t, Options{BackupRetention: 2})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		products := []model.Product{{ID: fmt.Sprintf("p-%d", i), Name: "P"}}
		if err := store.Save(ctx, products); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	backups, err := store.ListBackups()
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("expected 2 retained backups, got %d", len(backups))
	}
}

// A crash after the temp file is written but before the rename must leave the
// canonical file byte-identical.
func TestStore_InterruptedWriteLeavesCatalogIntact(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	if err := store.Save(ctx, sampleProducts()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := readFile(t, store.Path())

	var tmpSeen string
	store.beforeRename = func(tmpPath string) error {
		tmpSeen = tmpPath
		return errors.New("simulated crash")
	}

	err := store.Save(ctx, []model.Product{{ID: "other", Name: "Other"}})
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}

	if after := readFile(t, store.Path()); !bytes.Equal(before, after) {
		t.Fatal("canonical catalog changed after interrupted write")
	}
	if tmpSeen == "" {
		t.Fatal("expected the temp file to be written before the rename")
	}
	if _, err := os.Stat(tmpSeen); !os.IsNotExist(err) {
		t.Errorf("expected temp file %s to be removed", tmpSeen)
	}
}

func TestStore_RejectsDuplicates(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	if err := store.Save(ctx, sampleProducts()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := readFile(t, store.Path())

	tests := []struct {
		name     string
		products []model.Product
		wantErr  error
	}{
		{"duplicate_id", []model.Product{{ID: "a", Name: "A"}, {ID: "a", Name: "B"}}, ErrDuplicateID},
		{"duplicate_slug", []model.Product{{ID: "a", Slug: "x", Name: "A"}, {ID: "b", Slug: "X", Name: "B"}}, ErrDuplicateSlug},
		{"missing_id", []model.Product{{Name: "A"}}, ErrMissingID},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := store.Save(ctx, test.products)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
			if after := readFile(t, store.Path()); !bytes.Equal(before, after) {
				t.Fatal("catalog changed after rejected save")
			}
		})
	}
}

func TestStore_UpdateAbortsOnError(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	if err := store.Save(ctx, sampleProducts()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := readFile(t, store.Path())

	sentinel := errors.New("abort")
	err := store.Update(ctx, func(products []model.Product) ([]model.Product, error) {
		return nil, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if after := readFile(t, store.Path()); !bytes.Equal(before, after) {
		t.Fatal("catalog changed after aborted update")
	}
}

func TestStore_UpdateOnCorruptCatalogFails(t *testing.T) {
	store := newTestStore(t, Options{})
	if err := os.WriteFile(store.Path(), []byte("[{"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	called := false
	err := store.Update(context.Background(), func(products []model.Product) ([]model.Product, error) {
		called = true
		return products, nil
	})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if called {
		t.Fatal("update func must not run against a corrupt catalog")
	}
}

// Concurrent read-modify-write sessions serialize: no append is lost.
func TestStore_ConcurrentUpdatesSerialize(t *testing.T) {
	store := newTestStore(t, Options{LockTimeout: 10 * time.Second})
	ctx := context.Background()

	const writers = 12
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Update(ctx, func(products []model.Product) ([]model.Product, error) {
				return append(products, model.Product{ID: fmt.Sprintf("p-%02d", i), Name: "P"}), nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	products, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(products) != writers {
		t.Fatalf("expected %d products, got %d", writers, len(products))
	}
}

// Two simultaneous whole-collection saves leave exactly one of the two states.
func TestStore_ConcurrentSavesLastWriterWins(t *testing.T) {
	store := newTestStore(t, Options{LockTimeout: 10 * time.Second})
	ctx := context.Background()

	stateA := []model.Product{{ID: "a1", Name: "A1"}, {ID: "a2", Name: "A2"}}
	stateB := []model.Product{{ID: "b1", Name: "B1"}, {ID: "b2", Name: "B2"}, {ID: "b3", Name: "B3"}}

	for round := 0; round < 10; round++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := store.Save(ctx, append([]model.Product(nil), stateA...)); err != nil {
				t.Errorf("save A: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := store.Save(ctx, append([]model.Product(nil), stateB...)); err != nil {
				t.Errorf("save B: %v", err)
			}
		}()
		wg.Wait()

		products, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}

		ids := make([]string, len(products))
		for i, p := range products {
			ids[i] = p.ID
		}
		got := strings.Join(ids, ",")
		if got != "a1,a2" && got != "b1,b2,b3" {
			t.Fatalf("round %d: catalog is a mixture of both states: %s", round, got)
		}
	}
}

func TestStore_LockTimeout(t *testing.T) {
	store := newTestStore(t, Options{LockTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	held, err := acquireLock(ctx, store.lockPath, time.Second)
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer held.release()

	start := time.Now()
	err = store.Save(ctx, sampleProducts())
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected lock timeout to be a write failure, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("lock wait not bounded: %v", elapsed)
	}

	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("catalog must not be written when the lock is not acquired")
	}
}

func TestStore_Backup(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	if _, err := store.Backup(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without a catalog, got %v", err)
	}

	if err := store.Save(ctx, sampleProducts()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	path, err := store.Backup(ctx)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if !bytes.Equal(readFile(t, path), readFile(t, store.Path())) {
		t.Fatal("backup does not match catalog")
	}
	if filepath.Dir(path) != store.BackupDir() {
		t.Errorf("backup written to %s, want %s", filepath.Dir(path), store.BackupDir())
	}
}
