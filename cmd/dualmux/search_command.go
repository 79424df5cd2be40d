package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/models"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search the catalog for video titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), cmd.OutOrStdout(), cfg, strings.Join(args, " "), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw catalog objects as JSON")

	return cmd
}

func runSearch(ctx context.Context, stdout io.Writer, cfg *config.Config, query string, asJSON bool) error {
	cl, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer cl.Close()

	records, err := cl.SearchCatalog(ctx, query)
	if err != nil {
		return err
	}
	return printRecords(stdout, records, asJSON)
}

func printRecords(w io.Writer, records []models.CatalogRecord, asJSON bool) error {
	if asJSON {
		raw := make([]json.RawMessage, 0, len(records))
		for _, rec := range records {
			raw = append(raw, rec.Raw)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(raw)
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{rec.Title, rec.NaturalKey})
	}
	fmt.Fprintln(w, renderTable([]string{"Title", "Key"}, rows, nil))
	fmt.Fprintf(w, "%s titles\n", humanize.Comma(int64(len(records))))
	return nil
}
