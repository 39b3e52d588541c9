// Package store persists resolved chip records in named tables.
//
// Keys are case-insensitive: every key is folded to lowercase before it is
// stored or looked up. Records hold a single "data" object; request-scoped
// fields are stripped before a record reaches the store.
package store

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"flashdetail/internal/chip"
)

var (
	// ErrNotFound is returned when a table or record to delete does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrIO marks a failure to read or write the backing storage. The
	// in-memory state of the store is kept when a write fails.
	ErrIO = errors.New("store: io failure")
)

// Record is one cached resolution.
type Record struct {
	Data chip.Attributes `json:"data"`
}

// Clone returns a copy whose top-level data map is not shared.
func (r Record) Clone() Record {
	return Record{Data: r.Data.Clone()}
}

// UpdateFunc edits rec in place; exists reports whether the record was
// present. Returning remove deletes the record. A returned error leaves the
// store untouched. The function may run more than once when a backend
// retries after a conflicting write, so it must not have side effects.
type UpdateFunc func(rec *Record, exists bool) (remove bool, err error)

// Store is a table-partitioned key/record store. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get returns the record at (table, key). A missing table or key is a
	// clean miss, not an error.
	Get(ctx context.Context, table, key string) (Record, bool, error)
	// Set creates the table if needed and overwrites the record at key.
	Set(ctx context.Context, table, key string, rec Record) error
	// Update runs fn on the record at (table, key) as one read-modify-write
	// that no concurrent mutation can interleave with.
	Update(ctx context.Context, table, key string, fn UpdateFunc) error
	Delete(ctx context.Context, table, key string) error
	ClearTable(ctx context.Context, table string) error
	DeleteTable(ctx context.Context, table string) error
	Keys(ctx context.Context, table string) ([]string, error)
	Tables(ctx context.Context) ([]string, error)
}

// NormalizeKey folds key to lowercase. A new Caser is built per call since
// Casers are not safe for concurrent use.
func NormalizeKey(key string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(key))
}
