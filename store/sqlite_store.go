package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/tnicklin/update_gate/logger"
	"github.com/tnicklin/update_gate/timeutil"
)

var _ Store = (*SQLiteStore)(nil)

//go:embed schema/migrations/*.sql
var migrations embed.FS

const (
	defaultDebounce = 5 * time.Second
	// Fixed-width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// SQLiteStore keeps state in an in-memory sqlite database and mirrors it
// to a snapshot file with the online backup API.
type SQLiteStore struct {
	mu           sync.RWMutex
	db           *sql.DB
	dsn          string
	snapshotPath string
	logger       logger.Logger

	// Debounced flush
	flushDebounce time.Duration
	flushTimer    *time.Timer
	flushMu       sync.Mutex
	dirty         bool
	ctx           context.Context
	cancel        context.CancelFunc
}

type Params struct {
	Config Config
	Logger logger.Logger
}

func NewSQLiteStore(p Params) *SQLiteStore {
	debounce := p.Config.FlushDebounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &SQLiteStore{
		// Each store gets its own named memory database so that two
		// stores in one process never share state.
		dsn:           fmt.Sprintf("file:update_gate_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString()),
		snapshotPath:  p.Config.Path,
		flushDebounce: debounce,
		logger:        log,
	}
}

// SetFlushDebounce sets the debounce duration for disk flushes.
// Must be called before Open().
func (s *SQLiteStore) SetFlushDebounce(d time.Duration) {
	s.flushDebounce = d
}

func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	database, err := sql.Open("sqlite3", s.dsn)
	if err != nil {
		return err
	}
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)

	if err = database.PingContext(ctx); err != nil {
		_ = database.Close()
		return err
	}

	s.db = database
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s.applyMigrations(ctx)
}

// Close closes the database without flushing. Use Shutdown for graceful shutdown.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushMu.Lock()
	s.stopFlushTimer()
	s.flushMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Shutdown performs a final flush to disk and closes the database.
func (s *SQLiteStore) Shutdown(ctx context.Context) error {
	s.flushMu.Lock()
	s.stopFlushTimer()
	dirty := s.dirty
	s.flushMu.Unlock()

	if dirty && s.snapshotPath != "" {
		if err := s.FlushToDisk(ctx, s.snapshotPath); err != nil {
			s.logger.ErrorW("shutdown flush failed", "path", s.snapshotPath, "error", err)
		}
	}

	return s.Close()
}

func (s *SQLiteStore) RestoreFromDisk(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotOpen
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	fileDB, err := sql.Open("sqlite3", sqliteFileDSN(path))
	if err != nil {
		return err
	}
	defer fileDB.Close()

	if err := backup(ctx, fileDB, s.db); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}

	s.logger.InfoW("restored state from snapshot", "path", path)
	return s.applyMigrations(ctx)
}

func (s *SQLiteStore) FlushToDisk(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(ctx, path); err != nil {
		return err
	}

	s.flushMu.Lock()
	s.dirty = false
	s.flushMu.Unlock()
	return nil
}

func (s *SQLiteStore) GetTime(ctx context.Context, key string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return time.Time{}, false, ErrNotOpen
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	t, err := timeutil.ParseRFC3339(value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("preference %s: %w", key, err)
	}
	return t, true, nil
}

func (s *SQLiteStore) SetTime(ctx context.Context, key string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotOpen
	}

	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, formatTime(t), now,
	)
	if err != nil {
		s.logger.ErrorW("failed to set preference", "key", key, "error", err)
		return err
	}

	s.logger.DebugW("preference updated", "key", key, "value", formatTime(t))
	s.scheduleFlush()
	return nil
}

func (s *SQLiteStore) RecordCheck(ctx context.Context, rec CheckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotOpen
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	var releaseDate string
	if !rec.ReleaseDate.IsZero() {
		releaseDate = formatTime(rec.ReleaseDate)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO check_history
			(id, checked_at, classification, installed_version, store_version, release_date, store_url, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, formatTime(rec.CheckedAt), rec.Classification, rec.InstalledVersion,
		rec.StoreVersion, releaseDate, rec.StoreURL, rec.Error,
	)
	if err != nil {
		s.logger.ErrorW("failed to record check", "id", rec.ID, "error", err)
		return err
	}

	s.scheduleFlush()
	return nil
}

// ListChecks returns up to limit history records, newest first.
// A non-positive limit returns every record.
func (s *SQLiteStore) ListChecks(ctx context.Context, limit int) ([]CheckRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, checked_at, classification, installed_version, store_version, release_date, store_url, error
		FROM check_history
		ORDER BY checked_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckRecord
	for rows.Next() {
		var (
			rec         CheckRecord
			checkedAt   string
			releaseDate string
		)
		if err := rows.Scan(&rec.ID, &checkedAt, &rec.Classification, &rec.InstalledVersion,
			&rec.StoreVersion, &releaseDate, &rec.StoreURL, &rec.Error); err != nil {
			return nil, err
		}
		if rec.CheckedAt, err = timeutil.ParseRFC3339(checkedAt); err != nil {
			return nil, fmt.Errorf("check %s: %w", rec.ID, err)
		}
		if releaseDate != "" {
			if rec.ReleaseDate, err = timeutil.ParseRFC3339(releaseDate); err != nil {
				return nil, fmt.Errorf("check %s: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) scheduleFlush() {
	if s.snapshotPath == "" {
		return
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.dirty = true
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}

	s.flushTimer = time.AfterFunc(s.flushDebounce, s.performScheduledFlush)
}

func (s *SQLiteStore) performScheduledFlush() {
	s.flushMu.Lock()
	if !s.dirty {
		s.flushMu.Unlock()
		return
	}
	s.flushMu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	if err := s.FlushToDisk(ctx, s.snapshotPath); err != nil {
		s.logger.ErrorW("scheduled flush failed", "path", s.snapshotPath, "error", err)
	}
}

// stopFlushTimer must be called with flushMu held.
func (s *SQLiteStore) stopFlushTimer() {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
}

func (s *SQLiteStore) flushLocked(ctx context.Context, path string) error {
	if s.db == nil {
		return ErrNotOpen
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	fileDB, err := sql.Open("sqlite3", sqliteFileDSN(path))
	if err != nil {
		return err
	}
	defer fileDB.Close()

	return backup(ctx, s.db, fileDB)
}

func backup(ctx context.Context, src *sql.DB, dst *sql.DB) error {
	srcConn, err := src.Conn(ctx)
	if err != nil {
		return err
	}
	defer srcConn.Close()

	dstConn, err := dst.Conn(ctx)
	if err != nil {
		return err
	}
	defer dstConn.Close()

	return dstConn.Raw(func(dstDriver any) error {
		return srcConn.Raw(func(srcDriver any) error {
			dstSQLite, ok := dstDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected destination driver: %T", dstDriver)
			}
			srcSQLite, ok := srcDriver.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected source driver: %T", srcDriver)
			}

			b, err := dstSQLite.Backup("main", srcSQLite, "main")
			if err != nil {
				return err
			}
			defer b.Finish()

			_, err = b.Step(-1)
			return err
		})
	})
}

func (s *SQLiteStore) applyMigrations(ctx context.Context) error {
	if s.db == nil {
		return ErrNotOpen
	}

	entries, err := fs.ReadDir(migrations, "schema/migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := fs.ReadFile(migrations, "schema/migrations/"+name)
		if err != nil {
			return err
		}
		sqlText := strings.TrimSpace(string(content))
		if sqlText == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func sqliteFileDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000", path)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
