// Package cache is the incremental-build cache: keyed by a hash of a
// translation unit's normalized source plus its include files' mtimes,
// it stores the span table internal/optimize settled on for the last
// successful build of that key, so an unchanged rebuild can skip
// straight to re-emitting offsets instead of re-running the widening
// fixed point. Grounded on a reference DBManager
// (internal/database/db_manager.go): the same driver-name switch over a
// pooled *sql.DB keyed by connection id, repurposed here to one pooled
// *sql.DB per cache store plus a session id minted with google/uuid for
// each build invocation that touches it.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// driverFor maps a cache DSN's declared type to the registered
// database/sql driver name, the same dbType-to-driverName switch
// db_manager.go's Connect uses. "sqlite" (the default, cgo-backed
// mattn/go-sqlite3) and "sqlite-pure" (the pure-Go modernc.org/sqlite)
// are kept as two distinct driver names so a build without a C toolchain
// can still get a local cache.
func driverFor(dbType string) (string, error) {
	switch dbType {
	case "sqlite", "sqlite3", "":
		return "sqlite3", nil
	case "sqlite-pure":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("cache: unsupported store type %q", dbType)
	}
}

// Entry is one cached build result for a source key.
type Entry struct {
	Key       string
	Sections  []SectionSpan
	UpdatedAt time.Time
}

// SectionSpan is the per-section span table internal/object.Build
// produces, flattened to what a rebuild needs to decide whether it can
// skip straight to re-emitting bytes: the section's final base/end and
// each bytecode's resolved offset, in append order.
type SectionSpan struct {
	Name    string
	Base    int64
	End     int64
	Offsets []int64
}

// Store is a pooled connection to the incremental-build cache database.
// One Store serves every translation unit a single `asmforge build`
// invocation touches; SessionID distinguishes concurrent invocations
// sharing one store in a listing or log line.
type Store struct {
	db        *sql.DB
	SessionID string
}

// Open connects to the cache database named by dsn, using driver dbType
// (sqlite by default, matching a reference DBManager.Connect default),
// creating the entries table if it does not already exist, and
// configures the same pool limits db_manager.go's Connect does.
func Open(ctx context.Context, dbType, dsn string) (*Store, error) {
	driver, err := driverFor(dbType)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, SessionID: uuid.NewString()}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS build_cache (
		key TEXT PRIMARY KEY,
		sections TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("cache: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Key hashes a translation unit's normalized source together with every
// include file's modification time, so either a source edit or a
// dependency's edit invalidates the entry. normalizedSource should have
// had line endings and trailing whitespace normalized by the caller
// before hashing, so formatting-only edits still hit the cache.
func Key(normalizedSource string, includeFiles []string) (string, error) {
	h := sha256.New()
	h.Write([]byte(normalizedSource))
	for _, f := range includeFiles {
		st, err := os.Stat(f)
		if err != nil {
			return "", fmt.Errorf("cache: stat %s: %w", f, err)
		}
		fmt.Fprintf(h, "|%s@%d", f, st.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Lookup returns the cached entry for key, if any.
func (s *Store) Lookup(ctx context.Context, key string) (*Entry, bool, error) {
	var sectionsJSON, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT sections, updated_at FROM build_cache WHERE key = ?`, key,
	).Scan(&sectionsJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: lookup: %w", err)
	}
	var sections []SectionSpan
	if err := json.Unmarshal([]byte(sectionsJSON), &sections); err != nil {
		return nil, false, fmt.Errorf("cache: decode: %w", err)
	}
	ts, _ := time.Parse(time.RFC3339Nano, updatedAt)
	return &Entry{Key: key, Sections: sections, UpdatedAt: ts}, true, nil
}

// Store persists sections under key, replacing any existing entry.
func (s *Store) Store(ctx context.Context, key string, sections []SectionSpan) error {
	buf, err := json.Marshal(sections)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO build_cache (key, sections, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET sections = excluded.sections, updated_at = excluded.updated_at`,
		key, string(buf), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("cache: store: %w", err)
	}
	return nil
}
