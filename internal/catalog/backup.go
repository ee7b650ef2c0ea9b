package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BackupInfo describes one catalog snapshot.
type BackupInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// snapshot copies the canonical file into the backups directory as
// products-YYYYMMDD-HHMMSS.json (UTC). It returns "" when there is no
// canonical file yet. Assumes the lock is held.
func (s *Store) snapshot() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: read for backup: %w", ErrWriteFailed, err)
	}

	base := backupPrefix + s.now().UTC().Format(backupTimeLayout)
	name := base + ".json"

	// Several saves within one second must not overwrite each other.
	for i := 2; ; i++ {
		path := filepath.Join(s.backupDir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if errors.Is(err, fs.ErrExist) {
			name = base + "-" + strconv.Itoa(i) + ".json"
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: create backup: %w", ErrWriteFailed, err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("%w: write backup: %w", ErrWriteFailed, err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("%w: close backup: %w", ErrWriteFailed, err)
		}
		return path, nil
	}
}

// ListBackups returns the catalog snapshots, newest first.
func (s *Store) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Name:      name,
			Path:      filepath.Join(s.backupDir, name),
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}

	// Names embed the timestamp, so lexical order is chronological, except
	// that a "-N" collision suffix must sort after its unsuffixed sibling.
	sort.Slice(backups, func(i, j int) bool {
		return backupSortKey(backups[i].Name) > backupSortKey(backups[j].Name)
	})

	return backups, nil
}

// backupSortKey turns products-20260101-101010-3.json into a key that orders
// correctly against products-20260101-101010.json.
func backupSortKey(name string) string {
	stem := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), ".json")
	n := min(len(stem), len(backupTimeLayout))
	_, suffix, _ := strings.Cut(stem[n:], "-")
	seq, err := strconv.Atoi(suffix)
	if err != nil {
		seq = 1
	}
	return fmt.Sprintf("%s-%06d", stem[:n], seq)
}

// pruneBackups removes the oldest snapshots beyond the retention limit.
func (s *Store) pruneBackups() {
	if s.backupRetention <= 0 {
		return
	}

	backups, err := s.ListBackups()
	if err != nil {
		s.logger.Warn("failed to list backups for pruning", "error", err)
		return
	}

	for _, b := range backups[min(len(backups), s.backupRetention):] {
		if err := os.Remove(b.Path); err != nil {
			s.logger.Warn("failed to prune backup", "backup", b.Name, "error", err)
		}
	}
}
