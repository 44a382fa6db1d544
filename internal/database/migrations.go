package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/jmoiron/sqlx"
)

// Migration is one versioned schema change. Up and Down may use the
// {{serial}} and {{timestamp}} markers, expanded per driver.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// MigrationStatus summarises applied versus available migrations.
type MigrationStatus struct {
	CurrentVersion int  `json:"current_version"`
	LatestVersion  int  `json:"latest_version"`
	PendingCount   int  `json:"pending_count"`
	AppliedCount   int  `json:"applied_count"`
	UpToDate       bool `json:"is_up_to_date"`
}

type MigrationRunner struct {
	db  *sqlx.DB
	log *logger.Logger
}

func NewMigrationRunner(db *sqlx.DB, log *logger.Logger) *MigrationRunner {
	return &MigrationRunner{
		db:  db,
		log: log.WithComponent("migrations"),
	}
}

func GetAllMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create programs, scopes, ignored_assets and history_events",
			Up: `
				CREATE TABLE IF NOT EXISTS programs (
					id {{serial}},
					platform TEXT NOT NULL,
					slug TEXT NOT NULL,
					name TEXT NOT NULL,
					bounty BOOLEAN NOT NULL DEFAULT FALSE,
					last_updated {{timestamp}} NOT NULL,
					UNIQUE (platform, slug)
				);

				CREATE TABLE IF NOT EXISTS scopes (
					id {{serial}},
					program_id BIGINT NOT NULL REFERENCES programs(id) ON DELETE CASCADE,
					value TEXT NOT NULL,
					type TEXT NOT NULL,
					is_in_scope BOOLEAN NOT NULL,
					created_at {{timestamp}} NOT NULL,
					UNIQUE (program_id, value)
				);

				CREATE TABLE IF NOT EXISTS ignored_assets (
					id {{serial}},
					platform TEXT NOT NULL,
					program_slug TEXT NOT NULL,
					value TEXT NOT NULL,
					reason TEXT NOT NULL DEFAULT '',
					created_at {{timestamp}} NOT NULL,
					UNIQUE (platform, program_slug, value)
				);

				CREATE TABLE IF NOT EXISTS history_events (
					id {{serial}},
					program_id BIGINT REFERENCES programs(id) ON DELETE SET NULL,
					platform_name TEXT NOT NULL,
					program_name TEXT NOT NULL,
					event_type TEXT NOT NULL,
					details TEXT NOT NULL DEFAULT '',
					scope_type TEXT,
					category TEXT,
					extra_data TEXT,
					created_at {{timestamp}} NOT NULL
				);
			`,
			Down: `
				DROP TABLE IF EXISTS history_events;
				DROP TABLE IF EXISTS ignored_assets;
				DROP TABLE IF EXISTS scopes;
				DROP TABLE IF EXISTS programs;
			`,
		},
		{
			Version:     2,
			Description: "Index history reads and scope lookups",
			Up: `
				CREATE INDEX IF NOT EXISTS idx_scopes_program_id ON scopes(program_id);
				CREATE INDEX IF NOT EXISTS idx_history_created_at ON history_events(created_at);
				CREATE INDEX IF NOT EXISTS idx_history_platform ON history_events(platform_name, event_type);
			`,
			Down: `
				DROP INDEX IF EXISTS idx_history_platform;
				DROP INDEX IF EXISTS idx_history_created_at;
				DROP INDEX IF EXISTS idx_scopes_program_id;
			`,
		},
	}
}

func dialect(driver string) *strings.Replacer {
	if driver == "postgres" {
		return strings.NewReplacer(
			"{{serial}}", "BIGSERIAL PRIMARY KEY",
			"{{timestamp}}", "TIMESTAMPTZ",
		)
	}
	return strings.NewReplacer(
		"{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{timestamp}}", "TIMESTAMP",
	)
}

func (mr *MigrationRunner) ensureMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			checksum TEXT NOT NULL
		);
	`

	if _, err := mr.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	return nil
}

func (mr *MigrationRunner) getAppliedMigrations(ctx context.Context) (map[int]bool, error) {
	applied := make(map[int]bool)

	var versions []int
	if err := mr.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	for _, v := range versions {
		applied[v] = true
	}

	return applied, nil
}

// RunMigrations applies all pending migrations in version order.
func (mr *MigrationRunner) RunMigrations(ctx context.Context) error {
	if err := mr.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	applied, err := mr.getAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	all := GetAllMigrations()
	sort.Slice(all, func(i, j int) bool {
		return all[i].Version < all[j].Version
	})

	pending := 0
	for _, migration := range all {
		if applied[migration.Version] {
			continue
		}
		if err := mr.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
		pending++
	}

	if pending == 0 {
		mr.log.Debugw("Database schema is up to date",
			"latest_version", all[len(all)-1].Version,
		)
		return nil
	}

	mr.log.Infow("Migrations applied",
		"migrations_applied", pending,
		"latest_version", all[len(all)-1].Version,
	)
	return nil
}

func (mr *MigrationRunner) applyMigration(ctx context.Context, migration Migration) error {
	mr.log.Infow("Applying migration",
		"version", migration.Version,
		"description", migration.Description,
	)

	tx, err := mr.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	up := dialect(mr.db.DriverName()).Replace(migration.Up)
	if _, err := tx.ExecContext(ctx, up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	recordQuery := mr.db.Rebind(`
		INSERT INTO schema_migrations (version, description, applied_at, checksum)
		VALUES (?, ?, ?, ?)
	`)
	checksum := fmt.Sprintf("%x", len(migration.Up))
	if _, err := tx.ExecContext(ctx, recordQuery, migration.Version, migration.Description, time.Now().UTC(), checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

func (mr *MigrationRunner) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	if err := mr.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}

	applied, err := mr.getAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{AppliedCount: len(applied)}
	for _, migration := range GetAllMigrations() {
		if migration.Version > status.LatestVersion {
			status.LatestVersion = migration.Version
		}
		if !applied[migration.Version] {
			status.PendingCount++
		}
	}
	for version := range applied {
		if version > status.CurrentVersion {
			status.CurrentVersion = version
		}
	}
	status.UpToDate = status.PendingCount == 0

	return status, nil
}

// RollbackMigration reverts one applied migration.
func (mr *MigrationRunner) RollbackMigration(ctx context.Context, version int) error {
	mr.log.Warnw("Rolling back migration", "version", version)

	var migration *Migration
	for _, m := range GetAllMigrations() {
		if m.Version == version {
			m := m
			migration = &m
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration version %d not found", version)
	}
	if migration.Down == "" {
		return fmt.Errorf("migration version %d has no rollback SQL", version)
	}

	tx, err := mr.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	down := dialect(mr.db.DriverName()).Replace(migration.Down)
	if _, err := tx.ExecContext(ctx, down); err != nil {
		return fmt.Errorf("failed to execute rollback SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx, mr.db.Rebind("DELETE FROM schema_migrations WHERE version = ?"), version); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollback: %w", err)
	}

	mr.log.Infow("Migration rolled back", "version", version)
	return nil
}
