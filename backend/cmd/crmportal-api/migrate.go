package main

import (
	"fmt"
	"io"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/crmportal/crmportal/backend/internal/storage/pg"
	"github.com/crmportal/crmportal/shared/config"
)

type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|version",
		Short:     "Run database migrations",
		Long:      `Apply (up), roll back (down) or report (version) the postgres schema migrations.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.MustLoad(configFolder)
			m, err := pg.NewMigrator(cfg.Pg().URL())
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
			}
			defer m.Close()
			return runMigration(m, args[0], cmd.OutOrStdout())
		},
	}
}

func runMigration(m migrator, action string, out io.Writer) error {
	switch action {
	case "up":
		if err := m.Up(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "migrate up").Wrap(err)
		}
		fmt.Fprintln(out, "migrations applied")
	case "down":
		if err := m.Down(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "migrate down").Wrap(err)
		}
		fmt.Fprintln(out, "migrations rolled back")
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
		}
		fmt.Fprintf(out, "version %d (dirty: %t)\n", version, dirty)
	default:
		return oops.Code("INVALID_ARGUMENT").Errorf("unknown migrate action %q", action)
	}
	return nil
}
