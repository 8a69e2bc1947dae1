package releasestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lbfeed/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps release records in an embedded SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite initializes or connects to the release database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Name implements Backend.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lookup returns the record for id if present.
func (s *SQLiteStore) Lookup(ctx context.Context, id string) (Record, bool, error) {
	var (
		record Record
		urls   string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, has_front, urls FROM releases WHERE id = ? LIMIT 1", id,
	).Scan(&record.ID, &record.HasFrontCoverArt, &urls)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, services.Wrap(services.ErrStoreIO, "releasestore", "lookup", id, err)
	}
	links, err := DecodeLinks(urls)
	if err != nil {
		return Record{}, false, services.Wrap(services.ErrStoreIO, "releasestore", "lookup", id, err)
	}
	record.ExternalLinks = links
	return record, true, nil
}

// Insert adds a new record. Inserting an existing id fails with a constraint error.
func (s *SQLiteStore) Insert(ctx context.Context, record Record) error {
	urls, err := EncodeLinks(record.ExternalLinks)
	if err != nil {
		return services.Wrap(services.ErrStoreIO, "releasestore", "insert", record.ID, err)
	}
	var res sql.Result
	err = retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			"INSERT INTO releases (id, has_front, urls, cached_at) VALUES (?, ?, ?, ?)",
			record.ID, record.HasFrontCoverArt, urls, time.Now().Unix(),
		)
		return execErr
	})
	if err != nil {
		return services.Wrap(services.ErrStoreIO, "releasestore", "insert", record.ID, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows != 1 {
		return services.Wrap(services.ErrStoreIO, "releasestore", "insert", record.ID,
			fmt.Errorf("expected 1 row affected, got %d", rows))
	}
	return nil
}

// List returns all entries, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, has_front, urls, cached_at FROM releases ORDER BY cached_at DESC, id ASC")
	if err != nil {
		return nil, services.Wrap(services.ErrStoreIO, "releasestore", "list", "", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			urls     string
			cachedAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.HasFrontCoverArt, &urls, &cachedAt); err != nil {
			return nil, services.Wrap(services.ErrStoreIO, "releasestore", "list", "scan", err)
		}
		links, err := DecodeLinks(urls)
		if err != nil {
			return nil, services.Wrap(services.ErrStoreIO, "releasestore", "list", entry.ID, err)
		}
		entry.ExternalLinks = links
		if cachedAt > 0 {
			entry.CachedAt = time.Unix(cachedAt, 0)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStoreIO, "releasestore", "list", "", err)
	}
	return entries, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM releases").Scan(&count); err != nil {
		return 0, services.Wrap(services.ErrStoreIO, "releasestore", "count", "", err)
	}
	return count, nil
}

// Remove deletes one record.
func (s *SQLiteStore) Remove(ctx context.Context, id string) (bool, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, "DELETE FROM releases WHERE id = ?", id)
		return execErr
	})
	if err != nil {
		return false, services.Wrap(services.ErrStoreIO, "releasestore", "remove", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, services.Wrap(services.ErrStoreIO, "releasestore", "remove", id, err)
	}
	return rows > 0, nil
}

// Clear deletes every record and returns how many were removed.
func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, "DELETE FROM releases")
		return execErr
	})
	if err != nil {
		return 0, services.Wrap(services.ErrStoreIO, "releasestore", "clear", "", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, services.Wrap(services.ErrStoreIO, "releasestore", "clear", "", err)
	}
	return int(rows), nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		// New database, or a releases table left by an earlier deployment.
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'lbfeed cache clear' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	hasCachedAt, err := columnExists(ctx, tx, "releases", "cached_at")
	if err != nil {
		return err
	}
	if !hasCachedAt {
		if _, err := tx.ExecContext(ctx, "ALTER TABLE releases ADD COLUMN cached_at INTEGER NOT NULL DEFAULT 0"); err != nil {
			return fmt.Errorf("add cached_at column: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, fmt.Errorf("inspect %s columns: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, fmt.Errorf("scan %s columns: %w", table, err)
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
