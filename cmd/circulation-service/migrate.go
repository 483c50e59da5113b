package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"picoyplaca/internal/constants"
	"picoyplaca/internal/logger"
	"picoyplaca/pkg/bootstrap"
	"picoyplaca/pkg/logging"
	"picoyplaca/pkg/migrations"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all of them unless --steps is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(mg *migrations.Migrator) error {
				if err := mg.Down(steps); err != nil {
					return err
				}
				if steps > 0 {
					okColor.Printf("rolled back %d migration(s)\n", steps)
				} else {
					okColor.Println("rolled back all migrations")
				}
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 0, "Number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(mg *migrations.Migrator) error {
					if err := mg.Up(); err != nil {
						return err
					}
					okColor.Println("schema is up to date")
					return nil
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(mg *migrations.Migrator) error {
					version, dirty, ok, err := mg.Version()
					if err != nil {
						return err
					}
					switch {
					case !ok:
						warnColor.Println("no migrations applied")
					case dirty:
						warnColor.Printf("version %d (dirty)\n", version)
					default:
						okColor.Printf("version %d\n", version)
					}
					return nil
				})
			},
		},
	)

	return cmd
}

// withMigrator connects without the startup auto-migration so the
// subcommand controls the schema itself.
func withMigrator(ctx context.Context, fn func(*migrations.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	earlyLog := logging.NewEarlyLog()

	cfg, err := loadConfig(earlyLog)
	if err != nil {
		return err
	}
	cfg.Database.RunMigrations = false

	log, err := logger.New(cfg.Logging, constants.ServiceCirculation)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Sync()

	connector := bootstrap.NewDatabaseConnector(cfg, log)
	defer connector.Close(ctx)

	db, err := connector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}

	mg, err := migrations.NewPostgresMigrator(db)
	if err != nil {
		return err
	}
	return fn(mg)
}
