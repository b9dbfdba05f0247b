package store

import "context"

// StoreState represents the initialization state of the datastore.
type StoreState int

const (
	StateMissing       StoreState = iota // File doesn't exist
	StateUninitialized                   // File exists but no users table
	StateReady                           // Users table present
)

func (s StoreState) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// SeedMode controls whether initialization inserts the sample user row.
type SeedMode string

const (
	// SeedAlways inserts one row on every initialization, so repeated
	// startups accumulate duplicate rows.
	SeedAlways SeedMode = "always"
	// SeedIfEmpty inserts only when the users table has no rows.
	SeedIfEmpty SeedMode = "if_empty"
	// SeedNever leaves the table untouched.
	SeedNever SeedMode = "never"
)

// SeedUserName is the name written by the seed insert.
const SeedUserName = "Test User"

// UserLookup is the read side of the store used by request handlers.
type UserLookup interface {
	// UserName returns the name for id; found is false when no row matches.
	UserName(ctx context.Context, id int64) (name string, found bool, err error)
}

// Store defines the embedsvc datastore contract.
// Implementations must be safe for concurrent use.
type Store interface {
	UserLookup

	// Close closes the datastore connection
	Close() error

	// CountUsers returns the number of rows in the users table
	CountUsers(ctx context.Context) (int, error)

	// CheckState returns the current state of the datastore
	CheckState() (StoreState, error)
}
