package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/database/postgres"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// migrationStatus is printed by "migrate status".
type migrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s migrationStatus) String() string {
	if s.Version == 0 {
		return "no migrations applied\n"
	}
	if s.Dirty {
		return fmt.Sprintf("version %d (dirty: run \"gastm migrate force\" after fixing the schema)\n", s.Version)
	}
	return fmt.Sprintf("version %d\n", s.Version)
}

// NewMigrateCmd creates the migrate command tree for the postgres result
// store.
func NewMigrateCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres result store schema",
	}
	cmd.PersistentFlags().StringVar(&source, "source", "", "migration directory (default: database.migration_path, else the embedded set)")

	withMigrator := func(run func(cmd *cobra.Command, m *postgres.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			db := cliCtx.Config.Database
			path := db.MigrationPath
			if source != "" {
				path = source
			}
			m, err := postgres.NewMigrator(postgres.ConnString(db), path, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer m.Close()
			return run(cmd, m)
		}
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			return printMigrationStatus(cmd, m)
		}),
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
			if err := m.Down(steps); err != nil {
				return err
			}
			return printMigrationStatus(cmd, m)
		}),
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(printMigrationStatus),
	}

	var version int
	force := &cobra.Command{
		Use:   "force",
		Short: "Mark a version as applied without running it",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
			if version < 0 {
				return errors.InvalidParam(fmt.Sprintf("version must be >= 0, got %d", version))
			}
			if err := m.Force(version); err != nil {
				return err
			}
			return printMigrationStatus(cmd, m)
		}),
	}
	force.Flags().IntVar(&version, "version", -1, "schema version to record")
	_ = force.MarkFlagRequired("version")

	cmd.AddCommand(up, down, status, force)
	return cmd
}

func printMigrationStatus(cmd *cobra.Command, m *postgres.Migrator) error {
	v, dirty, err := m.Status()
	if err != nil {
		return err
	}
	return PrintResult(cmd, migrationStatus{Version: v, Dirty: dirty})
}
