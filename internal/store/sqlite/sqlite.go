package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/maloquacious/embedsvc/internal/store"
	_ "modernc.org/sqlite"
)

// ErrInit wraps every failure returned by Initialize.
var ErrInit = errors.New("store initialization failed")

// Options configures Initialize.
type Options struct {
	// Seed selects the seeding behavior; empty means store.SeedAlways.
	Seed store.SeedMode
}

// SQLiteStore implements the Store interface using modernc.org/sqlite.
//
// A single connection backs the store for the whole process. Every statement
// runs while holding mu, so callers on any goroutine may share one
// *SQLiteStore.
type SQLiteStore struct {
	dbPath string

	mu sync.Mutex
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLiteStore.
func New(dbPath string) *SQLiteStore {
	return &SQLiteStore{
		dbPath: dbPath,
	}
}

// Initialize ensures dir exists, opens or creates userdata.db inside it,
// creates the users table and applies the seed policy.
func Initialize(dir string, opts Options) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %w", ErrInit, err)
	}

	s := New(store.GetDBPath(dir))
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}
	if err := s.InitSchema(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}
	if err := s.Seed(opts.Seed); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}
	return s, nil
}

// Open opens the SQLite database with safe defaults.
func (s *SQLiteStore) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Apply safe defaults
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s.db = db
	return nil
}

// OpenReadOnly opens an existing database without modifying it. No
// journal or sync pragmas are applied, and writes fail.
func (s *SQLiteStore) OpenReadOnly() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dsn := (&url.URL{Scheme: "file", Path: s.dbPath, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database read-only: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// InitSchema creates the users table. Safe to call repeatedly.
func (s *SQLiteStore) InitSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.Exec(usersSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Seed inserts the sample user according to mode.
func (s *SQLiteStore) Seed(mode store.SeedMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	switch mode {
	case "", store.SeedAlways:
	case store.SeedNever:
		return nil
	case store.SeedIfEmpty:
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}
		if count > 0 {
			return nil
		}
	default:
		return fmt.Errorf("unknown seed mode %q", mode)
	}

	if _, err := s.db.Exec(`INSERT INTO users (name) VALUES (?)`, store.SeedUserName); err != nil {
		return fmt.Errorf("failed to insert seed user: %w", err)
	}
	return nil
}

// UserName returns the name stored under id.
func (s *SQLiteStore) UserName(ctx context.Context, id int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return "", false, fmt.Errorf("database not opened")
	}

	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM users WHERE id = ?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query user %d: %w", id, err)
	}
	return name, true, nil
}

// CountUsers returns the number of rows in the users table.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CheckState returns the current state of the datastore.
func (s *SQLiteStore) CheckState() (store.StoreState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return store.StateMissing, fmt.Errorf("database not opened")
	}

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='users'`).Scan(&count)
	if err != nil {
		return store.StateUninitialized, fmt.Errorf("failed to check users table: %w", err)
	}

	if count == 0 {
		return store.StateUninitialized, nil
	}
	return store.StateReady, nil
}
