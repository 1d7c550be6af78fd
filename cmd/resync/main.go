package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/resyncdb/resync/config"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// storePath is the local database the subcommands operate on.
var (
	storePath  string
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "resync",
		Short: "Inspect and manage a resync local store",
		Long: `resync is the operator tool for local-first resync databases.
It opens the same SQLite store the client library uses and can inspect
tables, bulk-seed records, and clear cached data.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// An explicit --store wins; otherwise the config file (or
			// RESYNC_ environment variables) decide where the store lives.
			if cmd.Flags().Changed("store") {
				return nil
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			storePath = cfg.Store.Path
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&storePath, "store", "resync.db", "path to the local store database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default resync.yaml in the working directory)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(clearCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
