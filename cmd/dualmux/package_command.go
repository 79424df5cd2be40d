package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/models"
	"github.com/Belphemur/DualMux/internal/packager"
	"github.com/Belphemur/DualMux/internal/publish"
)

func newPackageCommand(ctx *commandContext) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "package KEY[=TITLE]...",
		Short: "Package titles into a dual-language archive",
		Long: `Package resolves, downloads and remuxes each title identified by its
language-agnostic natural key, then zips the results. Titles are looked up in
the catalog unless given as KEY=TITLE. The archive is published unless --out
names a local file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runPackage(cmd.Context(), cmd.OutOrStdout(), cfg, args, out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the archive to this file instead of publishing it")
	cmd.Flags().Int("workers", 0, "Titles processed in parallel (packager.workers)")
	cmd.Flags().String("policy", "", "Failure policy, partial or abort (packager.policy)")
	bindFlag(cmd, "workers", "packager.workers")
	bindFlag(cmd, "policy", "packager.policy")

	return cmd
}

func runPackage(ctx context.Context, stdout io.Writer, cfg *config.Config, args []string, out string) error {
	logger := config.GetLogger()

	selections := parseSelectionArgs(args)

	var bar *progressbar.ProgressBar
	progress := func(sel models.Selection, err error) {
		if bar != nil {
			bar.Describe(sel.Title)
			_ = bar.Add(1)
			return
		}
		if err != nil {
			logger.Warn().Err(err).Str("title", sel.Title).Msg("Title failed")
			return
		}
		logger.Info().Str("title", sel.Title).Msg("Title packaged")
	}

	p, err := newPipeline(ctx, cfg, packager.WithProgress(progress))
	if err != nil {
		return err
	}
	defer p.Close()

	if err := fillTitles(ctx, p.client, selections); err != nil {
		return err
	}

	if isTerminal(os.Stderr) {
		bar = progressbar.NewOptions(len(selections),
			progressbar.OptionSetDescription("packaging"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	result, err := p.packager.Package(ctx, selections)
	if bar != nil {
		_ = bar.Finish()
	}
	if result != nil {
		fmt.Fprintln(stdout, renderTable([]string{"Title", "Key", "Status"}, summaryRows(selections, result), nil))
	}
	if err != nil {
		return err
	}

	size := humanize.IBytes(uint64(len(result.Archive)))
	if out != "" {
		if err := os.WriteFile(out, result.Archive, 0o644); err != nil {
			return fmt.Errorf("write archive: %w", err)
		}
		fmt.Fprintf(stdout, "Wrote %s (%s)\n", out, size)
		return nil
	}

	url, err := p.publisher.Upload(ctx, publish.ArchiveName(), bytes.NewReader(result.Archive), int64(len(result.Archive)))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Published %s: %s\n", size, url)
	return nil
}

// parseSelectionArgs splits KEY=TITLE arguments. Bare keys get an empty title.
func parseSelectionArgs(args []string) []models.Selection {
	selections := make([]models.Selection, 0, len(args))
	for _, arg := range args {
		key, title, _ := strings.Cut(arg, "=")
		selections = append(selections, models.Selection{
			NaturalKey: strings.TrimSpace(key),
			Title:      strings.TrimSpace(title),
		})
	}
	return selections
}

type catalogFetcher interface {
	FetchCatalog(ctx context.Context) ([]models.CatalogRecord, error)
}

// fillTitles looks up missing titles in the catalog. The catalog is only
// fetched when at least one selection lacks a title.
func fillTitles(ctx context.Context, catalog catalogFetcher, selections []models.Selection) error {
	missing := 0
	for _, sel := range selections {
		if sel.NaturalKey == "" {
			return errors.New("empty natural key")
		}
		if sel.Title == "" {
			missing++
		}
	}
	if missing == 0 {
		return nil
	}

	records, err := catalog.FetchCatalog(ctx)
	if err != nil {
		return err
	}
	titles := make(map[string]string, len(records))
	for _, rec := range records {
		titles[rec.NaturalKey] = rec.Title
	}

	var unknown []string
	for i := range selections {
		if selections[i].Title != "" {
			continue
		}
		title, ok := titles[selections[i].NaturalKey]
		if !ok {
			unknown = append(unknown, selections[i].NaturalKey)
			continue
		}
		selections[i].Title = title
	}
	if len(unknown) > 0 {
		return fmt.Errorf("not in catalog: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func summaryRows(selections []models.Selection, result *models.PackageResult) [][]string {
	failed := make(map[int]models.Failure, len(result.Failures))
	for _, f := range result.Failures {
		failed[f.Index] = f
	}

	rows := make([][]string, 0, len(selections))
	for i, sel := range selections {
		status := "ok"
		if f, ok := failed[i]; ok {
			status = fmt.Sprintf("failed at %s: %v", f.Stage, f.Err)
		}
		rows = append(rows, []string{sel.Title, sel.NaturalKey, status})
	}
	return rows
}
