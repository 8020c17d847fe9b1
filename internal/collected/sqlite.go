package collected

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"maps"
	"net/url"
	"slices"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/poseconv/internal/pose"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - columns/rows/cells/meta
const currentSchemaVersion = 1

// FormatName is stored under the "format" meta key.
const FormatName = "poseconv-collected"

// Meta holds free-form provenance entries stored next to the table. The
// "format" and "scorer" keys are reserved.
type Meta map[string]string

// Store is one SQLite-encoded collected table.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies the schema.
//
// The file is a portable artifact that gets renamed into place, so it uses
// a rollback journal rather than WAL: no -wal or -shm files are left behind.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// WriteTable replaces the stored table and meta with t in one transaction.
func (s *Store) WriteTable(ctx context.Context, t *pose.StructuredTable, meta Meta) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, stmt := range []string{"DELETE FROM cells", "DELETE FROM rows", "DELETE FROM columns", "DELETE FROM meta"} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('format', ?), ('scorer', ?)`,
		FormatName, t.Scorer(),
	); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		if k == "format" || k == "scorer" {
			continue
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, meta[k]); err != nil {
			return fmt.Errorf("write meta %q: %w", k, err)
		}
	}

	colStmt, err := tx.PrepareContext(ctx, `INSERT INTO columns (pos, scorer, bodypart, coord) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("write columns: %w", err)
	}
	defer colStmt.Close()
	for i, c := range t.Columns {
		if _, err = colStmt.ExecContext(ctx, i, c.Scorer, c.Bodypart, c.Coord); err != nil {
			return fmt.Errorf("write column %s: %w", c, err)
		}
	}

	rowStmt, err := tx.PrepareContext(ctx, `INSERT INTO rows (pos, idx) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	defer rowStmt.Close()
	cellStmt, err := tx.PrepareContext(ctx, `INSERT INTO cells (row_pos, col_pos, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("write cells: %w", err)
	}
	defer cellStmt.Close()

	for r, idx := range t.Index {
		if _, err = rowStmt.ExecContext(ctx, r, idx); err != nil {
			return fmt.Errorf("write row %q: %w", idx, err)
		}
		for c, v := range t.Values[r] {
			val := sql.NullString{String: v, Valid: v != ""}
			if _, err = cellStmt.ExecContext(ctx, r, c, val); err != nil {
				return fmt.Errorf("write cell %q/%s: %w", idx, t.Columns[c], err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit table: %w", err)
	}
	return nil
}

// ReadTable loads the stored table. Missing cells read as empty.
func (s *Store) ReadTable(ctx context.Context) (*pose.StructuredTable, error) {
	var format string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'format'`).Scan(&format)
	if err == sql.ErrNoRows {
		return nil, pose.InputFormatError(s.path, "not a collected table (no format marker)", nil)
	}
	if err != nil {
		return nil, pose.InputFormatError(s.path, "read meta", err)
	}
	if format != FormatName {
		return nil, pose.InputFormatError(s.path, fmt.Sprintf("unknown format %q", format), nil)
	}

	t := &pose.StructuredTable{}

	cols, err := s.db.QueryContext(ctx, `SELECT pos, scorer, bodypart, coord FROM columns ORDER BY pos`)
	if err != nil {
		return nil, pose.InputFormatError(s.path, "read columns", err)
	}
	defer cols.Close()
	for cols.Next() {
		var pos int
		var c pose.Column
		if err := cols.Scan(&pos, &c.Scorer, &c.Bodypart, &c.Coord); err != nil {
			return nil, pose.InputFormatError(s.path, "scan column", err)
		}
		if pos != len(t.Columns) {
			return nil, pose.InputFormatError(s.path, fmt.Sprintf("column positions not contiguous at %d", pos), nil)
		}
		t.Columns = append(t.Columns, c)
	}
	if err := cols.Err(); err != nil {
		return nil, pose.InputFormatError(s.path, "read columns", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT pos, idx FROM rows ORDER BY pos`)
	if err != nil {
		return nil, pose.InputFormatError(s.path, "read rows", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pos int
		var idx string
		if err := rows.Scan(&pos, &idx); err != nil {
			return nil, pose.InputFormatError(s.path, "scan row", err)
		}
		if pos != len(t.Index) {
			return nil, pose.InputFormatError(s.path, fmt.Sprintf("row positions not contiguous at %d", pos), nil)
		}
		t.Index = append(t.Index, idx)
		t.Values = append(t.Values, make([]string, len(t.Columns)))
	}
	if err := rows.Err(); err != nil {
		return nil, pose.InputFormatError(s.path, "read rows", err)
	}

	cells, err := s.db.QueryContext(ctx, `SELECT row_pos, col_pos, value FROM cells`)
	if err != nil {
		return nil, pose.InputFormatError(s.path, "read cells", err)
	}
	defer cells.Close()
	for cells.Next() {
		var r, c int
		var v sql.NullString
		if err := cells.Scan(&r, &c, &v); err != nil {
			return nil, pose.InputFormatError(s.path, "scan cell", err)
		}
		if r >= len(t.Values) || c >= len(t.Columns) {
			return nil, pose.InputFormatError(s.path, fmt.Sprintf("cell (%d,%d) outside table", r, c), nil)
		}
		t.Values[r][c] = v.String
	}
	if err := cells.Err(); err != nil {
		return nil, pose.InputFormatError(s.path, "read cells", err)
	}
	return t, nil
}

// ReadMeta returns the stored meta entries, reserved keys included.
func (s *Store) ReadMeta(ctx context.Context) (Meta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, pose.InputFormatError(s.path, "read meta", err)
	}
	defer rows.Close()
	meta := Meta{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, pose.InputFormatError(s.path, "scan meta", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, pose.InputFormatError(s.path, "read meta", err)
	}
	return meta, nil
}

// ReadSQLiteMeta reads the meta entries of the binary encoding at path.
func ReadSQLiteMeta(ctx context.Context, path string) (Meta, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	s, err := openReadOnly(path)
	if err != nil {
		return nil, pose.InputFormatError(path, "open", err)
	}
	defer s.Close()
	return s.ReadMeta(ctx)
}

// ReadSQLiteFile reads the binary encoding from path.
func ReadSQLiteFile(ctx context.Context, path string) (*pose.StructuredTable, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	s, err := openReadOnly(path)
	if err != nil {
		return nil, pose.InputFormatError(path, "open", err)
	}
	defer s.Close()
	return s.ReadTable(ctx)
}

// readOnlyDSN builds a read-only URI for path. The path is percent-escaped
// so '#', '?' and '%' in folder names survive URI parsing.
func readOnlyDSN(path string) string {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
}

// openReadOnly opens an existing database without touching its schema.
func openReadOnly(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("get user_version: %w", err)
	}
	if version != currentSchemaVersion {
		db.Close()
		return nil, fmt.Errorf("schema version %d, want %d", version, currentSchemaVersion)
	}
	return &Store{db: db, path: path}, nil
}
