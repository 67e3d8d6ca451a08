// Package duckdb records comparison runs in a DuckDB database so past
// results stay queryable without rerunning the toolkit.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding recorded comparisons.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS comparison_ids`,
		`CREATE TABLE IF NOT EXISTS comparisons (
			id BIGINT PRIMARY KEY,
			created_at TIMESTAMP,
			first_file VARCHAR,
			first_size BIGINT,
			first_modified TIMESTAMP,
			second_file VARCHAR,
			second_size BIGINT,
			second_modified TIMESTAMP,
			output_dir VARCHAR,
			shared BIGINT,
			only_first BIGINT,
			only_second BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS variants (
			comparison_id BIGINT,
			subset VARCHAR,
			chrom VARCHAR,
			pos BIGINT,
			id VARCHAR,
			ref VARCHAR,
			alts VARCHAR,
			qual DOUBLE,
			rlen BIGINT,
			filter VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
