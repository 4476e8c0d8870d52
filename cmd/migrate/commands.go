package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/noah-isme/discussion-api/pkg/config"
	"github.com/noah-isme/discussion-api/pkg/database"
)

// migrator is the subset of *migrate.Migrate the commands drive.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (version uint, dirty bool, err error)
	Close() (sourceErr error, databaseErr error)
}

type migratorFactory func(source string) (migrator, error)

func newMigrator(source string) (migrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if source == "" {
		source = cfg.Migrations.Path
	}
	m, err := migrate.New(source, database.URLDSN(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("open migrations %s: %w", source, err)
	}
	return m, nil
}

func withMigrator(open migratorFactory, source *string, fn func(m migrator) error) error {
	m, err := open(*source)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck
	return fn(m)
}

func upCmd(open migratorFactory, source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "up [N]",
		Short: "Apply all or N pending migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := parseSteps(args)
			if err != nil {
				return err
			}
			return withMigrator(open, source, func(m migrator) error {
				if steps > 0 {
					err = m.Steps(steps)
				} else {
					err = m.Up()
				}
				return reportChange(cmd, err, "up")
			})
		},
	}
}

func downCmd(open migratorFactory, source *string) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "down [N]",
		Short: "Roll back N migrations (default 1), or all with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := parseSteps(args)
			if err != nil {
				return err
			}
			if steps == 0 {
				steps = 1
			}
			return withMigrator(open, source, func(m migrator) error {
				if all {
					err = m.Down()
				} else {
					err = m.Steps(-steps)
				}
				return reportChange(cmd, err, "down")
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "roll back every applied migration")
	return cmd
}

func forceCmd(open migratorFactory, source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrator(open, source, func(m migrator) error {
				if err := m.Force(version); err != nil {
					return fmt.Errorf("force version %d: %w", version, err)
				}
				cmd.Printf("forced version %d\n", version)
				return nil
			})
		},
	}
}

func versionCmd(open migratorFactory, source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(open, source, func(m migrator) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					cmd.Println("no migrations applied")
					return nil
				}
				if err != nil {
					return fmt.Errorf("read version: %w", err)
				}
				cmd.Printf("version %d (dirty=%t)\n", version, dirty)
				return nil
			})
		},
	}
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("step count must be a positive integer, got %q", args[0])
	}
	return n, nil
}

func reportChange(cmd *cobra.Command, err error, direction string) error {
	if errors.Is(err, migrate.ErrNoChange) {
		cmd.Println("no change")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	cmd.Printf("migrate %s complete\n", direction)
	return nil
}
