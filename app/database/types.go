package database

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

var (
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	ErrInvalidArgument      = errors.New("invalid argument")
)

const (
	MaxSourceLength = 50
	MaxURLLength    = 500
	MaxPointLength  = 1000
	MinYear         = 2000
	MaxYear         = 2100
)

// DB wraps the pooled SQLite handle shared by every repository.
type DB struct {
	*sql.DB
}

// Open connects to the SQLite file at path with foreign keys and WAL enabled.
// The pool holds a single connection so writers never contend for the file lock.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}
