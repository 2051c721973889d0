// Package storage persists extracted records into per-day SQLite shards
// grouped under month directories, so retention is a directory removal and a
// corrupted day never takes a month with it.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/CaixiangyangCD/ksx/internal/domain"
	"github.com/CaixiangyangCD/ksx/internal/ports"
)

const shardFilePrefix = "ksx_"

// ShardedStore is the date-sharded record repository. One SQLite file per
// logical day, lazily created on first write, never created by reads.
type ShardedStore struct {
	baseDir string
	logger  *slog.Logger
	now     func() time.Time

	mu   sync.Mutex
	open map[string]*sql.DB
}

var _ ports.RecordStore = (*ShardedStore)(nil)

// NewShardedStore roots a store at baseDir, creating it if needed.
func NewShardedStore(baseDir string, logger *slog.Logger) (*ShardedStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &ShardedStore{
		baseDir: baseDir,
		logger:  logger,
		now:     time.Now,
		open:    make(map[string]*sql.DB),
	}, nil
}

// Close closes every open shard handle.
func (s *ShardedStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for day, db := range s.open {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close shard %s: %w", day, err)
		}
		delete(s.open, day)
	}
	return firstErr
}

func (s *ShardedStore) shardPath(key domain.ShardKey) string {
	return filepath.Join(s.baseDir, key.Month, shardFilePrefix+key.Day+".db")
}

// shard returns the open database for a day. With create=false a missing
// shard file yields (nil, nil) so reads can treat absence as emptiness.
func (s *ShardedStore) shard(key domain.ShardKey, create bool) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.open[key.Day]; ok {
		return db, nil
	}

	path := s.shardPath(key)
	if !create {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("stat shard %s: %w", key.Day, err)
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create month directory %s: %w", key.Month, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open shard %s: %w", key.Day, err)
	}
	// Single connection avoids "database is locked" under the write path.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if create {
		if err := ensureSchema(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prepare shard %s: %w", key.Day, err)
		}
	}

	s.open[key.Day] = db
	s.logger.Debug("shard opened", "day", key.Day, "created", create)
	return db, nil
}

// ensureSchema creates the records table and its indexes from the field
// registry, so a schema change is a registry change.
func ensureSchema(db *sql.DB) error {
	cols := make([]string, 0, len(domain.Registry())+2)
	cols = append(cols, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, f := range domain.Registry() {
		cols = append(cols, fmt.Sprintf("%q %s", f.Key, f.Kind))
	}
	cols = append(cols, "created_at DATETIME DEFAULT CURRENT_TIMESTAMP")

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS records (%s)", strings.Join(cols, ", ")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_records_raw_id ON records(%q)", domain.FieldRawID),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_records_name ON records(%q)", domain.FieldDisplayName),
		"CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at)",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:strings.IndexByte(stmt, '(')], err)
		}
	}
	return nil
}

// listMonths returns month directory names under baseDir, ascending.
func (s *ShardedStore) listMonths() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data directory: %w", err)
	}
	var months []string
	for _, e := range entries {
		if e.IsDir() && isMonthDir(e.Name()) {
			months = append(months, e.Name())
		}
	}
	sort.Strings(months)
	return months, nil
}

// listShards returns day keys for one month, ascending.
func (s *ShardedStore) listShards(month string) ([]domain.ShardKey, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, month))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read month directory %s: %w", month, err)
	}
	var keys []domain.ShardKey
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, shardFilePrefix) || !strings.HasSuffix(name, ".db") {
			continue
		}
		day := strings.TrimSuffix(strings.TrimPrefix(name, shardFilePrefix), ".db")
		if _, err := time.Parse("2006-01-02", day); err != nil {
			continue
		}
		keys = append(keys, domain.ShardKey{Month: month, Day: day})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Day < keys[j].Day })
	return keys, nil
}

func isMonthDir(name string) bool {
	_, err := time.Parse("2006-01", name)
	return err == nil
}

// Prune removes month directories strictly older than now minus keepMonths
// and returns the removed directory names. keepMonths=1 keeps the current
// and the previous month. Open handles into pruned months are closed first.
func (s *ShardedStore) Prune(ctx context.Context, keepMonths int) ([]string, error) {
	if keepMonths < 1 {
		keepMonths = 1
	}
	months, err := s.listMonths()
	if err != nil {
		return nil, err
	}

	n := s.now()
	cutoff := time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, -keepMonths, 0).
		Format("2006-01")

	var removed []string
	for _, month := range months {
		if month >= cutoff {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		s.closeMonth(month)
		if err := os.RemoveAll(filepath.Join(s.baseDir, month)); err != nil {
			return removed, fmt.Errorf("remove month %s: %w", month, err)
		}
		removed = append(removed, month)
		s.logger.Info("pruned month", "month", month)
	}
	return removed, nil
}

func (s *ShardedStore) closeMonth(month string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for day, db := range s.open {
		if strings.HasPrefix(day, month) {
			_ = db.Close()
			delete(s.open, day)
		}
	}
}

// Info walks the store and reports its physical footprint.
func (s *ShardedStore) Info(ctx context.Context) (domain.StoreInfo, error) {
	info := domain.StoreInfo{BaseDir: s.baseDir}
	months, err := s.listMonths()
	if err != nil {
		return info, err
	}
	for _, month := range months {
		if err := ctx.Err(); err != nil {
			return info, err
		}
		keys, err := s.listShards(month)
		if err != nil {
			return info, err
		}
		mi := domain.MonthInfo{Month: month, Shards: len(keys)}
		for _, key := range keys {
			if st, err := os.Stat(s.shardPath(key)); err == nil {
				mi.SizeBytes += st.Size()
			}
		}
		info.Months = append(info.Months, mi)
		info.Shards += mi.Shards
		info.SizeBytes += mi.SizeBytes
	}
	return info, nil
}

// Watermarks reports, per month, the date of the newest shard present.
func (s *ShardedStore) Watermarks(ctx context.Context) (map[string]time.Time, error) {
	months, err := s.listMonths()
	if err != nil {
		return nil, err
	}
	marks := make(map[string]time.Time, len(months))
	for _, month := range months {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys, err := s.listShards(month)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			continue
		}
		latest, err := time.Parse("2006-01-02", keys[len(keys)-1].Day)
		if err != nil {
			continue
		}
		marks[month] = latest
	}
	return marks, nil
}
