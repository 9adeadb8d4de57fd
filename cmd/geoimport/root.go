package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/igs-portal/geoimport/internal/config"
	"github.com/igs-portal/geoimport/internal/logging"
)

// cfg is populated once by the root command before any subcommand runs.
var cfg *config.Config

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "geoimport",
		Short:        "Import infrastructure object records from CSV, TAB or GeoJSON files",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if it exists (Overload overwrites existing env vars)
			if err := godotenv.Overload(); err == nil {
				slog.Info("loaded .env file (overwriting existing env vars)")
			}

			c, err := config.Load()
			if err != nil {
				return err
			}
			cfg = c

			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}

	root.AddCommand(newImportCmd())
	root.AddCommand(newPreviewCmd())
	root.AddCommand(newTypesCmd())
	return root
}
