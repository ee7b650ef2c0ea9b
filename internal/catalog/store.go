// Package catalog provides the file-backed product catalog.
//
// The catalog is one JSON array on disk. Every write takes an exclusive
// advisory lock, snapshots the current file into the backups directory,
// writes the new collection to a temp file in the same directory and renames
// it over the canonical path. Readers only ever open the canonical path, so
// they observe either the old or the new document, never a partial one.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kamazennext/catalog/internal/model"
)

// Store errors.
var (
	ErrNotFound      = errors.New("catalog file not found")
	ErrCorrupt       = errors.New("catalog file is corrupt")
	ErrWriteFailed   = errors.New("catalog write failed")
	ErrLockTimeout   = errors.New("timed out waiting for catalog lock")
	ErrDuplicateID   = errors.New("duplicate product id")
	ErrDuplicateSlug = errors.New("duplicate product slug")
	ErrMissingID     = errors.New("product id is required")
)

const (
	// DefaultLockTimeout bounds how long a writer waits for the lock.
	DefaultLockTimeout = 5 * time.Second

	backupPrefix     = "products-"
	backupTimeLayout = "20060102-150405"
	lockSuffix       = ".lock"
	jsonIndent       = "    "
)

// Options configures a Store.
type Options struct {
	Path        string        // canonical catalog file
	BackupDir   string        // defaults to <dir(Path)>/backups
	LockTimeout time.Duration // defaults to DefaultLockTimeout

	// BackupRetention keeps only the newest N backups. Zero keeps all.
	BackupRetention int

	Logger *slog.Logger
	Now    func() time.Time
}

// Store owns the canonical product collection.
type Store struct {
	path            string
	backupDir       string
	lockPath        string
	lockTimeout     time.Duration
	backupRetention int
	logger          *slog.Logger
	now             func() time.Time

	// beforeRename runs after the temp file is fully written and before it
	// replaces the canonical file. Tests use it to simulate a crash.
	beforeRename func(tmpPath string) error
}

// New creates a Store. The catalog directory and backups directory are
// created if missing; the catalog file itself is not.
func New(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("catalog path is required")
	}

	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}

	backupDir := opts.BackupDir
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(path), "backups")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}
	if err := os.MkdirAll(backupDir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		path:            path,
		backupDir:       backupDir,
		lockPath:        path + lockSuffix,
		lockTimeout:     timeout,
		backupRetention: opts.BackupRetention,
		logger:          logger.With("component", "catalog.store"),
		now:             now,
	}, nil
}

// Path returns the canonical catalog path.
func (s *Store) Path() string {
	return s.path
}

// BackupDir returns the directory holding catalog snapshots.
func (s *Store) BackupDir() string {
	return s.backupDir
}

// Load reads and decodes the catalog.
// Returns ErrNotFound if the file does not exist and ErrCorrupt if it is not
// a JSON array of products.
func (s *Store) Load(ctx context.Context) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read()
}

// LoadOrEmpty is Load for read-only display paths: any failure is logged and
// reported as an empty catalog. Never use it ahead of a write.
func (s *Store) LoadOrEmpty(ctx context.Context) []model.Product {
	products, err := s.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("catalog unreadable, serving empty catalog", "error", err)
		}
		return []model.Product{}
	}
	return products
}

// Ping reports whether the catalog can be read. A missing file is healthy.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.Load(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Save replaces the whole catalog with products.
// Derived review fields are recomputed in place before encoding.
func (s *Store) Save(ctx context.Context, products []model.Product) error {
	lock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer s.unlock(lock)

	return s.write(products)
}

// UpdateFunc mutates a loaded catalog and returns the collection to persist.
type UpdateFunc func(products []model.Product) ([]model.Product, error)

// Update runs a read-modify-write session under one lock: the catalog is
// loaded (a missing file is an empty catalog), passed to fn, and the result
// saved. If fn returns an error nothing is written and that error is returned.
func (s *Store) Update(ctx context.Context, fn UpdateFunc) error {
	lock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer s.unlock(lock)

	current, err := s.read()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		current = []model.Product{}
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	return s.write(next)
}

// Backup snapshots the current catalog under the lock and returns the backup
// path. Returns ErrNotFound if there is nothing to snapshot.
func (s *Store) Backup(ctx context.Context) (string, error) {
	lock, err := s.lock(ctx)
	if err != nil {
		return "", err
	}
	defer s.unlock(lock)

	path, err := s.snapshot()
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", ErrNotFound
	}
	return path, nil
}

func (s *Store) lock(ctx context.Context) (*fileLock, error) {
	lock, err := acquireLock(ctx, s.lockPath, s.lockTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return lock, nil
}

func (s *Store) unlock(lock *fileLock) {
	if err := lock.release(); err != nil {
		s.logger.Error("failed to release catalog lock", "error", err)
	}
}

// read decodes the canonical file without taking the lock.
func (s *Store) read() ([]model.Product, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return decode(data)
}

// write assumes the lock is held.
func (s *Store) write(products []model.Product) error {
	if products == nil {
		products = []model.Product{}
	}

	for i := range products {
		products[i].RecomputeRating()
	}

	if err := CheckUnique(products); err != nil {
		return err
	}

	data, err := encode(products)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrWriteFailed, err)
	}

	backupPath, err := s.snapshot()
	if err != nil {
		return err
	}

	if err := s.replace(data); err != nil {
		return err
	}

	s.logger.Info("catalog saved",
		"products", len(products),
		"bytes", len(data),
		"backup", backupPath,
	)

	s.pruneBackups()
	return nil
}

// replace writes data to a temp file beside the catalog and renames it over
// the canonical path.
func (s *Store) replace(data []byte) (err error) {
	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrWriteFailed, err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp file: %w", ErrWriteFailed, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync temp file: %w", ErrWriteFailed, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %w", ErrWriteFailed, err)
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("%w: chmod temp file: %w", ErrWriteFailed, err)
	}

	if s.beforeRename != nil {
		if err = s.beforeRename(tmpPath); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}

	if err = os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: rename: %w", ErrWriteFailed, err)
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename. Best effort.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// decode parses a catalog document. Anything other than a JSON array of
// objects is corrupt.
func decode(data []byte) ([]model.Product, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrCorrupt
	}

	var products []model.Product
	if err := json.Unmarshal(trimmed, &products); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

// encode pretty-prints products without HTML or slash escaping.
func encode(products []model.Product) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", jsonIndent)
	if err := enc.Encode(products); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CheckUnique verifies that ids are unique and non-empty, and that slugs are
// unique (case-insensitively) where present.
func CheckUnique(products []model.Product) error {
	ids := make(map[string]struct{}, len(products))
	slugs := make(map[string]struct{}, len(products))

	for _, p := range products {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%w: product %q", ErrMissingID, p.Name)
		}
		if _, ok := ids[p.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateID, p.ID)
		}
		ids[p.ID] = struct{}{}

		if p.Slug == "" {
			continue
		}
		key := strings.ToLower(p.Slug)
		if _, ok := slugs[key]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateSlug, p.Slug)
		}
		slugs[key] = struct{}{}
	}

	return nil
}
