package sideinfo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"
)

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

const schema = `
CREATE TABLE IF NOT EXISTS %[1]s (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    body BLOB NOT NULL
);
`

// SQLiteStorage keeps records in one table of a SQLite database.
type SQLiteStorage struct {
	db    *sql.DB
	table string
}

// OpenSQLite opens or creates the database at path. Several storages may
// share a database file under different table names.
func OpenSQLite(path, table string) (*SQLiteStorage, error) {
	if !tablePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(schema, table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &SQLiteStorage{db: db, table: table}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Put inserts a new row. An existing id is left untouched and reported as
// ErrExists.
func (s *SQLiteStorage) Put(ctx context.Context, id string, data []byte) error {
	if err := ValidID(id); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := fmt.Sprintf(`INSERT INTO %s (id, body) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`, s.table)
	res, err := tx.ExecContext(ctx, q, id, data)
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	return tx.Commit()
}

func (s *SQLiteStorage) Get(ctx context.Context, id string) ([]byte, error) {
	var body []byte
	q := fmt.Sprintf(`SELECT body FROM %s WHERE id = ?`, s.table)
	err := s.db.QueryRowContext(ctx, q, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return body, nil
}

// List returns ids in insertion order.
func (s *SQLiteStorage) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY seq`, s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan record id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
