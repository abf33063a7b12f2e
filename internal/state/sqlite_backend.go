package state

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/weft-io/weft/internal/ir"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqliteBackend stores serialized state in a SQLite database, one row
// per named workspace. Useful when several stacks share a single
// state database on one machine.
type sqliteBackend struct {
	db   *sql.DB
	name string
}

func newSQLiteBackend(config map[string]string) (Backend, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("sqlite backend requires 'path' configuration")
	}

	name := config["name"]
	if name == "" {
		name = "default"
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	db.SetMaxOpenConns(1)

	b := &sqliteBackend{db: db, name: name}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *sqliteBackend) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(b.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Read(ctx context.Context) (*ir.State, error) {
	var content []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT content FROM states WHERE name = ?`, b.name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state %q: %w", b.name, err)
	}
	return Deserialize(content)
}

func (b *sqliteBackend) Write(ctx context.Context, state *ir.State) error {
	content, err := Serialize(state)
	if err != nil {
		return err
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO states (name, serial, content, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			serial = excluded.serial,
			content = excluded.content,
			updated_at = excluded.updated_at`,
		b.name, state.Serial, content, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write state %q: %w", b.name, err)
	}
	return nil
}

func (b *sqliteBackend) Lock() error {
	now := time.Now().UTC()

	// Drop stale locks left behind by crashed processes.
	_, _ = b.db.Exec(`DELETE FROM locks WHERE name = ? AND created_at < ?`,
		b.name, now.Add(-staleLockAge).Format(time.RFC3339))

	info := fmt.Sprintf("pid=%d", os.Getpid())
	_, err := b.db.Exec(`INSERT INTO locks (name, info, created_at) VALUES (?, ?, ?)`,
		b.name, info, now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("state %q is locked by another process: %w", b.name, err)
	}
	return nil
}

func (b *sqliteBackend) Unlock() error {
	if _, err := b.db.Exec(`DELETE FROM locks WHERE name = ?`, b.name); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
