package main

import (
	"context"
	"fmt"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"os"
	"social-backend/internal/app"
	"time"
)

func main() {
	var (
		driver     string
		sqlitePath string
	)

	rootCmd := &cobra.Command{
		Use:   "socialctl",
		Short: "Maintenance tool for the social backend store",
		Long: `Maintenance tool for the social backend store.

Storage settings are read from the environment (and .env) the same way the
server reads them; flags override the driver and the SQLite database path.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "Storage driver, postgres or sqlite")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "", "SQLite database path")

	open := func(ctx context.Context) (app.Store, func(), error) {
		cfg, err := app.LoadConfig()
		if err != nil {
			return nil, nil, err
		}
		if driver != "" {
			cfg.Storage.Driver = driver
		}
		if sqlitePath != "" {
			cfg.Storage.SQLitePath = sqlitePath
		}

		logger, err := app.NewLogger(cfg)
		if err != nil {
			return nil, nil, err
		}
		return app.OpenStore(ctx, logger.Sugar(), cfg.Storage)
	}

	rootCmd.AddCommand(createMigrateCmd(open))
	rootCmd.AddCommand(createSeedCmd(open))
	rootCmd.AddCommand(createPingCmd(open))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type opener func(ctx context.Context) (app.Store, func(), error)

func createMigrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Migrate(cmd.Context()); err != nil {
				color.Red("Migration failed: %v", err)
				return err
			}
			color.Green("Schema is up to date")
			return nil
		},
	}
}

func createSeedCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <users.json>",
		Short: "Bulk insert users from a JSON file",
		Long: `Bulk insert users from a JSON array of objects with "username" and optional
"known_as" and "created_at" fields. The whole file is inserted in one batch;
a duplicate username aborts it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			users, err := readSeed(f)
			if err != nil {
				color.Red("Invalid seed file: %v", err)
				return err
			}

			store, closeStore, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := store.SeedUsers(cmd.Context(), users)
			if err != nil {
				color.Red("Seeding failed: %v", err)
				return err
			}
			color.Green("Inserted %d users", n)
			return nil
		},
	}
}

func createPingCmd(open opener) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check the store is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			store, closeStore, err := open(ctx)
			if err != nil {
				color.Red("Store is unreachable: %v", err)
				return err
			}
			defer closeStore()

			if err := store.Ping(ctx); err != nil {
				color.Red("Store is unreachable: %v", err)
				return err
			}
			color.Green("Store is reachable")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Time to wait for the store")

	return cmd
}
