// To handle all database interactions. This is our
// data access layer, keeping SQL queries separate from business logic.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrBookmarkNotFound is returned for an unknown bookmark id.
	ErrBookmarkNotFound = errors.New("bookmark not found")
	// ErrBookmarkExists is returned when a source URL is already tracked.
	ErrBookmarkExists = errors.New("bookmark already exists for this source url")
	// ErrVersionNotFound is returned when no download is recorded for a version.
	ErrVersionNotFound = errors.New("chapter version not found")
	// ErrQueueItemNotFound is returned for an unknown download queue id.
	ErrQueueItemNotFound = errors.New("download queue item not found")
	// ErrInvalidQueueTransition is returned when a queue item is not in a
	// state the requested action applies to.
	ErrInvalidQueueTransition = errors.New("download queue item is not in a valid state for this action")
)

// Store provides all functions to interact with the database.
type Store struct {
	db *sqlx.DB
}

// New creates a new Store instance.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "sqlite3")}
}

// WithTx runs fn inside a single transaction. The transaction is committed
// only when fn returns nil; any error rolls back everything fn wrote.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
