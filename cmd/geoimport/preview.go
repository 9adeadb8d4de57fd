package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/igs-portal/geoimport/internal/core"
	"github.com/igs-portal/geoimport/internal/source"
)

func newPreviewCmd() *cobra.Command {
	var (
		file     string
		formatIn string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the columns and first records of a source file without importing",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := source.ParseFormat(formatIn)
			if err != nil {
				return err
			}

			p, err := source.BuildPreview(file, format, source.Options{
				Encoding:    cfg.Import.DefaultEncoding,
				MaxFileSize: cfg.Import.MaxFileSize,
			})
			if err != nil {
				return err
			}

			printPreview(p)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the source file (required)")
	cmd.Flags().StringVar(&formatIn, "format", "", "Source format: csv, tab or geojson (required)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("format")

	return cmd
}

func printPreview(p *source.Preview) {
	for _, w := range p.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}

	fmt.Printf("Rows: %d\n", p.TotalRows)

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(p.Columns, "\t"))
	for _, row := range p.Sample {
		cells := make([]string, len(p.Columns))
		for i, col := range p.Columns {
			cells[i] = row[col]
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the importable object types",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tLABEL\tGEOMETRY\tREQUIRED")
			for _, ot := range core.ObjectTypes() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					ot.Key, ot.Label, ot.Geometry, strings.Join(ot.Required, ","))
			}
			return w.Flush()
		},
	}
}
