// Package dataset answers questions about a local CSV file. The file is
// loaded into an in-memory SQLite table and reloaded whenever it changes on
// disk, so statistics and keyword searches run as SQL.
package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const tableName = "dataset"

// Column describes one CSV column as loaded.
type Column struct {
	Name    string
	Numeric bool
}

// Store serves one CSV file.
type Store struct {
	path string

	mu      sync.Mutex
	db      *sql.DB
	modTime time.Time
	size    int64
	loaded  bool
	columns []Column
	rows    int
}

// Open prepares a store for path. The file itself is read lazily, on the
// first query, so a missing file surfaces as a tool error rather than a
// startup failure.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	return &Store{path: path, db: db}, nil
}

// Close releases the in-memory database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the CSV path served by the store.
func (s *Store) Path() string {
	return s.path
}

// refresh reloads the table if the file changed since the last load.
// Callers must hold s.mu.
func (s *Store) refresh(ctx context.Context) error {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("dataset file %s not found", s.path)
		}
		return fmt.Errorf("failed to stat dataset: %w", err)
	}
	if s.loaded && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	columns, rows, err := s.load(ctx, f)
	if err != nil {
		s.loaded = false
		return err
	}

	s.columns = columns
	s.rows = rows
	s.modTime = info.ModTime()
	s.size = info.Size()
	s.loaded = true
	return nil
}

func (s *Store) load(ctx context.Context, r io.Reader) ([]Column, int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, 0, fmt.Errorf("dataset %s is empty", s.path)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("malformed dataset: %w", err)
	}
	names := columnNames(header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("malformed dataset: %w", err)
	}

	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Numeric: numericColumn(records, i)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin load: %w", err)
	}
	defer tx.Rollback()

	defs := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		typ := "TEXT"
		if c.Numeric {
			typ = "REAL"
		}
		defs[i] = quoteIdent(c.Name) + " " + typ
		marks[i] = "?"
	}

	statements := []string{
		`DROP TABLE IF EXISTS ` + tableName,
		`CREATE TABLE ` + tableName + ` (` + strings.Join(defs, ", ") + `)`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, 0, fmt.Errorf("failed to create table: %w", err)
		}
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO `+tableName+` VALUES (`+strings.Join(marks, ", ")+`)`)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insert.Close()

	args := make([]any, len(columns))
	for _, rec := range records {
		for i, c := range columns {
			args[i] = cellValue(rec[i], c.Numeric)
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return nil, 0, fmt.Errorf("failed to insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit load: %w", err)
	}
	return columns, len(records), nil
}

// columnNames fills blank headers and disambiguates repeats the way
// spreadsheet tools usually do: "Unnamed: 3", "name.1".
func columnNames(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func numericColumn(records [][]string, idx int) bool {
	seen := false
	for _, rec := range records {
		v := strings.TrimSpace(rec[idx])
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func cellValue(raw string, numeric bool) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	if numeric {
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return raw
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
