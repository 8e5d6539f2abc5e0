package sqlite

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/arazimproject/dibit/internal/storage/migrations"
	_ "github.com/mattn/go-sqlite3"
)

// DB is a SQLite handle whose schema version lives in PRAGMA user_version.
type DB struct {
	*sql.DB
	path string
}

// migration is one numbered schema step, e.g. 001_initial.sql.
type migration struct {
	version int
	name    string
	sql     string
}

// OpenMigrated opens the database at path, creating its directory, and
// brings the schema up to date.
func OpenMigrated(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Open connects with WAL journaling and a busy timeout so the CLI and the
// daemon can share one file.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	// One writer at a time
	conn.SetMaxOpenConns(1)
	return &DB{DB: conn, path: path}, nil
}

// Migrate applies the embedded migrations newer than the current schema.
func (db *DB) Migrate() error {
	steps, err := loadMigrations(migrations.FS)
	if err != nil {
		return err
	}
	return db.apply(steps)
}

func (db *DB) apply(steps []migration) error {
	current, err := db.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range steps {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin %s: %w", m.name, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.name, err)
		}
		// PRAGMA does not take bind parameters
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("record %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.name, err)
		}
		slog.Debug("applied migration", "db", db.path, "name", m.name, "version", m.version)
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Version returns the schema version recorded in the file.
func (db *DB) Version() (int, error) {
	var v int
	err := db.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

// loadMigrations reads NNN_name.sql files from fsys sorted by version.
// Other files are ignored; two files with the same number are an error.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	var steps []migration
	seen := make(map[int]string)
	for _, name := range names {
		version, ok := parseVersion(name)
		if !ok {
			slog.Warn("ignoring unnumbered migration file", "name", name)
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, name, version)
		}
		seen[version] = name

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		steps = append(steps, migration{version: version, name: name, sql: string(data)})
	}

	slices.SortFunc(steps, func(a, b migration) int { return a.version - b.version })
	return steps, nil
}

// parseVersion reads the numeric prefix of "001_initial.sql".
func parseVersion(name string) (int, bool) {
	prefix, _, ok := strings.Cut(path.Base(name), "_")
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
