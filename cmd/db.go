package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run pending database migrations",
	Long: `Apply pending schema migrations. Every command that opens the database
migrates on startup; this command does only that.`,
	RunE: runDBMigrate,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database migration status",
	RunE:  runDBStatus,
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback [version]",
	Short: "Rollback a specific migration",
	Long: `Rollback a specific migration version.

Warning: this drops the tables the migration created, including every
tracked program and its history.`,
	Args: cobra.ExactArgs(1),
	RunE: runDBRollback,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbRollbackCmd)
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	log.Infow("Database migration completed", "driver", cfg.Database.Driver)
	return nil
}

func runDBStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	status, err := store.Migrations().GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Database Migration Status")
	fmt.Fprintln(out, "=========================")
	fmt.Fprintf(out, "Driver:           %s\n", cfg.Database.Driver)
	fmt.Fprintf(out, "Current Version:  %d\n", status.CurrentVersion)
	fmt.Fprintf(out, "Latest Version:   %d\n", status.LatestVersion)
	fmt.Fprintf(out, "Applied:          %d migrations\n", status.AppliedCount)
	fmt.Fprintf(out, "Pending:          %d migrations\n", status.PendingCount)

	if status.UpToDate {
		color.New(color.FgGreen).Fprintln(out, "\nStatus: Database is up to date")
	} else {
		color.New(color.FgYellow).Fprintln(out, "\nStatus: Pending migrations need to be applied")
	}
	return nil
}

func runDBRollback(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version number: %s", args[0])
	}

	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	log.Warnw("Rolling back database migration", "version", version)
	if err := store.Migrations().RollbackMigration(ctx, version); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Rolled back migration %d\n", version)
	return nil
}
