package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Belphemur/DualMux/internal/cache"
	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/language"
	"github.com/Belphemur/DualMux/internal/mux"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check ffmpeg, languages and configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), cfg, nil)
		},
	}
}

// runDoctor prints one row per check and fails when any check fails.
// A nil runner executes the real ffmpeg.
func runDoctor(ctx context.Context, stdout io.Writer, cfg *config.Config, runner mux.Runner) error {
	var (
		rows   [][]string
		failed int
	)
	check := func(name, detail string, err error) {
		status := "ok"
		if err != nil {
			status = "FAIL"
			detail = err.Error()
			failed++
		}
		rows = append(rows, []string{name, status, detail})
	}

	for _, l := range []struct{ role, code string }{
		{"primary language", cfg.Languages.Primary},
		{"secondary language", cfg.Languages.Secondary},
	} {
		lang, err := language.Lookup(l.code)
		if err != nil {
			err = fmt.Errorf("%w (supported: %s)", err, strings.Join(language.Codes(), ", "))
		}
		check(l.role, fmt.Sprintf("%s (%s, %s)", lang.Title, lang.Tag, lang.ISO6392), err)
	}

	engine, err := mux.NewEngine(cfg, runner)
	if err != nil {
		check("ffmpeg", "", err)
	} else {
		version, err := engine.Check(ctx)
		check("ffmpeg", version, err)
	}

	cacheDetail := "disabled"
	if cfg.Cache.Provider != "" {
		cacheDetail = cfg.Cache.Provider
	}
	c, err := cache.FromConfig(cfg, "")
	if c != nil {
		_ = c.Close()
	}
	check("cache", cacheDetail, err)

	check("catalog", cfg.Catalog.URL, nil)
	check("publish", cfg.Publish.Provider, nil)

	fmt.Fprintln(stdout, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
	if failed > 0 {
		return errors.New("some checks failed")
	}
	return nil
}
