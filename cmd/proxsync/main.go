package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/proxsync/proxsync/pkg/api"
	"github.com/proxsync/proxsync/pkg/config"
	"github.com/proxsync/proxsync/pkg/database"
	"github.com/proxsync/proxsync/pkg/log"
)

var (
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "proxsync",
	Short: "Sync Proxmox VE clusters into the record store",
	Long: `proxsync mirrors the nodes, virtual machines, VM interfaces and tags of
one or more Proxmox VE clusters into a CMDB-style record store.

Run "proxsync serve" for the REST API and periodic sync, or
"proxsync sync" for a one-shot run.`,
	Version:       api.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		log.Init(log.Config{
			Level:      log.ParseLevel(cfg.Log.Level),
			JSONOutput: cfg.Log.Format == "json",
			Output:     os.Stderr,
		})
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"proxsync version %s\nCommit: %s\nBuilt: %s\n",
		api.Version, api.GitCommit, api.BuildTime,
	))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (default ./config.yaml or /etc/proxsync/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(connectionCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(migrateCmd)
}

// openDatabase connects with retry and migrates the schema
func openDatabase(ctx context.Context) (*database.DB, error) {
	db, err := database.NewConnectionWithRetry(ctx, cfg, database.RetryConfigFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the record store schema and default data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.BootstrapDefaultData(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
		return nil
	},
}
