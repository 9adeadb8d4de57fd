package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/igs-portal/geoimport/internal/core"
	"github.com/igs-portal/geoimport/internal/source"
)

type importFlags struct {
	file    string
	format  string
	objType string
	mapping string
	userID  int64
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import one file into the object store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.file, "file", "", "Path to the source file (required)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Source format: csv, tab or geojson (required)")
	cmd.Flags().StringVar(&flags.objType, "type", "", "Target object type, e.g. wells (required)")
	cmd.Flags().StringVar(&flags.mapping, "mapping", "", `Field mapping as a JSON object, e.g. '{"NUMBER":"number","LAT":"lat","LON":"lon"}' (required)`)
	cmd.Flags().Int64Var(&flags.userID, "user", 0, "Numeric ID of the importing user (required)")

	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("format")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("mapping")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runImport(ctx context.Context, flags importFlags) error {
	format, err := source.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	mapping, err := core.ParseFieldMapping([]byte(flags.mapping))
	if err != nil {
		return fmt.Errorf("invalid --mapping: %w", err)
	}

	pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := core.NewPgStore(pool)
	imp := core.NewImporter(store, source.Options{
		Encoding:    cfg.Import.DefaultEncoding,
		MaxFileSize: cfg.Import.MaxFileSize,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.Import.Timeout)
	defer cancel()

	res, impErr := imp.Import(ctx, flags.file, filepath.Base(flags.file), format, flags.objType, mapping, flags.userID)

	// The batch log records failed batches too.
	if logErr := store.LogImport(ctx, res, flags.userID); logErr != nil {
		slog.Error("failed to write import log", "error", logErr)
	}

	printResult(res)
	return impErr
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func printResult(res *core.ImportResult) {
	fmt.Printf("Batch %s: %s\n", res.BatchID, res.Status())
	fmt.Printf("  file:     %s (%s)\n", res.FileName, res.Format)
	fmt.Printf("  total:    %d\n", res.Total)
	fmt.Printf("  imported: %d\n", res.Imported)
	fmt.Printf("  failed:   %d\n", res.Failed)
	fmt.Printf("  duration: %s\n", res.Duration.Round(time.Millisecond))

	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	for _, e := range res.Errors {
		fmt.Fprintln(os.Stderr, "error:", e)
	}
	if res.BatchError != "" {
		fmt.Fprintln(os.Stderr, "batch error:", res.BatchError)
	}
}
