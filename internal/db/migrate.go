// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/likevault/internal/errors"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	AppliedAt   time.Time
	Description string
	Checksum    string
}

// Migrator handles database schema migrations.
type Migrator struct {
	db    *sql.DB
	files fs.FS
	dir   string
}

// NewMigrator creates a Migrator reading the embedded schema.
func NewMigrator(db *sql.DB) *Migrator {
	return NewMigratorFS(db, embeddedMigrations, "migrations")
}

// NewMigratorFS creates a Migrator reading V<n>__name.up.sql files from dir in files.
func NewMigratorFS(db *sql.DB, files fs.FS, dir string) *Migrator {
	return &Migrator{
		db:    db,
		files: files,
		dir:   dir,
	}
}

// Migrate initializes the bookkeeping table and applies pending migrations.
func Migrate(db *sql.DB) error {
	m := NewMigrator(db)
	if err := m.Initialize(); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "failed to initialize migrations", err)
	}
	if err := m.Up(); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "failed to migrate schema", err)
	}
	return nil
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations() ([]Migration, error) {
	rows, err := m.db.Query("SELECT version, applied_at, description, checksum FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var migrations []Migration
	for rows.Next() {
		var mig Migration
		var appliedAt int64
		if err := rows.Scan(&mig.Version, &appliedAt, &mig.Description, &mig.Checksum); err != nil {
			return nil, err
		}
		mig.AppliedAt = time.Unix(appliedAt, 0)
		migrations = append(migrations, mig)
	}
	return migrations, rows.Err()
}

type migrationFile struct {
	version int
	name    string
}

// list returns migration files with the given suffix sorted by version.
func (m *Migrator) list(suffix string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(m.files, m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var out []migrationFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		// V1__initial_schema.up.sql
		parts := strings.SplitN(strings.TrimSuffix(entry.Name(), suffix), "__", 2)
		if len(parts) < 2 {
			continue
		}
		version, err := strconv.Atoi(strings.TrimPrefix(parts[0], "V"))
		if err != nil {
			continue
		}
		out = append(out, migrationFile{version: version, name: entry.Name()})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].version < out[j].version
	})
	return out, nil
}

// Up applies all pending migrations. A previously applied migration whose
// file content changed is reported rather than silently skipped.
func (m *Migrator) Up() error {
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	appliedChecksums := make(map[int]string)
	for _, mig := range applied {
		appliedChecksums[mig.Version] = mig.Checksum
	}

	migrations, err := m.list(".up.sql")
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		content, err := fs.ReadFile(m.files, path.Join(m.dir, mig.name))
		if err != nil {
			return fmt.Errorf("failed to read migration file: %w", err)
		}
		checksum := checksumOf(content)

		if existing, ok := appliedChecksums[mig.version]; ok {
			if existing != checksum {
				return fmt.Errorf("migration V%d was modified after being applied", mig.version)
			}
			continue
		}

		if err := m.applyMigration(mig.version, mig.name, content, checksum); err != nil {
			return fmt.Errorf("failed to apply migration V%d: %w", mig.version, err)
		}
	}

	return nil
}

// applyMigration applies a single migration.
func (m *Migrator) applyMigration(version int, filename string, content []byte, checksum string) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	description := strings.TrimSuffix(filename, ".up.sql")
	description = strings.TrimPrefix(description, fmt.Sprintf("V%d__", version))
	query := `INSERT INTO schema_migrations (version, applied_at, description, checksum)
			  VALUES (?, ?, ?, ?)`
	if _, err := tx.Exec(query, version, time.Now().Unix(), description, checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// Down rolls back the last migration.
func (m *Migrator) Down() error {
	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}
	if current == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	downs, err := m.list(".down.sql")
	if err != nil {
		return err
	}
	var name string
	for _, d := range downs {
		if d.version == current {
			name = d.name
			break
		}
	}
	if name == "" {
		return fmt.Errorf("no rollback migration found for version %d", current)
	}

	content, err := fs.ReadFile(m.files, path.Join(m.dir, name))
	if err != nil {
		return fmt.Errorf("failed to read rollback migration: %w", err)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("failed to execute rollback SQL: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", current); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	return tx.Commit()
}

func checksumOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
