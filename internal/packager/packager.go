// Package packager turns a list of selected titles into one zip archive of
// dual-language Matroska files.
package packager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Belphemur/DualMux/internal/apperrors"
	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/metrics"
	"github.com/Belphemur/DualMux/internal/models"
	"github.com/Belphemur/DualMux/internal/mux"
)

// ErrNoSelection is returned when Package is called without titles.
var ErrNoSelection = errors.New("no titles selected")

// Resolver resolves the language pair of a title.
type Resolver interface {
	Resolve(ctx context.Context, naturalKey string) (models.LanguagePair, error)
}

// Fetcher downloads payloads.
type Fetcher interface {
	FetchVideo(ctx context.Context, url string, role models.PayloadRole) (*models.Payload, error)
	FetchSubtitle(ctx context.Context, url string, role models.PayloadRole) (*models.Payload, error)
}

// Muxer remuxes the payloads of one title.
type Muxer interface {
	Mux(ctx context.Context, in mux.Input) (*models.MuxOutput, error)
}

// Policy decides what a failing title does to the rest of the batch.
type Policy string

const (
	// PolicyPartial records the failure and keeps packaging the other titles.
	PolicyPartial Policy = "partial"
	// PolicyAbort cancels the batch on the first failure.
	PolicyAbort Policy = "abort"
)

// ParsePolicy parses a policy name. The empty string is PolicyPartial.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyPartial:
		return PolicyPartial, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown packager policy %q (want %q or %q)", s, PolicyPartial, PolicyAbort)
	}
}

// ProgressFunc is called once per title when it finishes, err is nil on success.
// It may be called concurrently.
type ProgressFunc func(sel models.Selection, err error)

// Option configures a Packager.
type Option func(*Packager)

// WithProgress installs a per-title completion callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Packager) { p.progress = fn }
}

// Packager runs the resolve, fetch and mux pipeline over a batch of titles.
type Packager struct {
	resolver Resolver
	fetcher  Fetcher
	muxer    Muxer
	workers  int
	policy   Policy
	progress ProgressFunc
}

// New creates a Packager using the packager section of cfg.
func New(cfg *config.Config, r Resolver, f Fetcher, m Muxer, opts ...Option) (*Packager, error) {
	policy, err := ParsePolicy(cfg.Packager.Policy)
	if err != nil {
		return nil, err
	}
	workers := cfg.Packager.Workers
	if workers <= 0 {
		workers = 2
	}

	p := &Packager{resolver: r, fetcher: f, muxer: m, workers: workers, policy: policy}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Package processes selections with at most workers titles in flight and
// returns the archive. Entries appear in selection order whatever the order
// titles complete in.
//
// Under PolicyAbort the first failure cancels the batch and is returned with
// no result. Under PolicyPartial failures are listed in the result; when no
// title succeeds the result (with its failures) is returned together with an
// error matching apperrors.ErrNothingPackaged.
func (p *Packager) Package(ctx context.Context, selections []models.Selection) (*models.PackageResult, error) {
	if len(selections) == 0 {
		return nil, ErrNoSelection
	}
	logger := config.GetLogger()
	names := AssignNames(selections)

	outputs := make([]*models.MuxOutput, len(selections))
	failures := make([]*models.Failure, len(selections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, sel := range selections {
		g.Go(func() error {
			out, stage, err := p.processTitle(gctx, sel)
			p.report(sel, err)
			if err != nil {
				metrics.PackagerTitlesTotal.WithLabelValues(metrics.StatusError).Inc()
				logger.Warn().Err(err).
					Str("title", sel.Title).
					Str("naturalKey", sel.NaturalKey).
					Str("stage", string(stage)).
					Msg("Title failed")
				if p.policy == PolicyAbort {
					return fmt.Errorf("title %q (%s) failed at %s: %w", sel.Title, sel.NaturalKey, stage, err)
				}
				failures[i] = &models.Failure{Index: i, Title: sel.Title, NaturalKey: sel.NaturalKey, Stage: stage, Err: err}
				return nil
			}
			metrics.PackagerTitlesTotal.WithLabelValues(metrics.StatusSuccess).Inc()
			out.FileName = names[i]
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &models.PackageResult{}
	var causes []error
	for _, f := range failures {
		if f != nil {
			result.Failures = append(result.Failures, *f)
			causes = append(causes, fmt.Errorf("%s: %w", f.Title, f.Err))
		}
	}

	archive, entries, err := writeArchive(outputs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return result, fmt.Errorf("%w: %w", apperrors.ErrNothingPackaged, errors.Join(causes...))
	}
	result.Archive = archive
	result.Entries = entries

	logger.Info().
		Int("entries", len(entries)).
		Int("failed", len(result.Failures)).
		Int("archiveBytes", len(archive)).
		Msg("Batch packaged")
	return result, nil
}

func (p *Packager) report(sel models.Selection, err error) {
	if p.progress != nil {
		p.progress(sel, err)
	}
}

// processTitle resolves, fetches and muxes one title. Every fetched payload
// is released before it returns.
func (p *Packager) processTitle(ctx context.Context, sel models.Selection) (*models.MuxOutput, models.Stage, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.StageResolve, err
	}

	pair, err := p.resolver.Resolve(ctx, sel.NaturalKey)
	if err != nil {
		return nil, models.StageResolve, err
	}

	var primaryVideo, secondaryVideo, primarySub, secondarySub *models.Payload
	defer func() {
		for _, payload := range []*models.Payload{primaryVideo, secondaryVideo, primarySub, secondarySub} {
			if err := payload.Release(); err != nil {
				config.GetLogger().Warn().Err(err).Str("role", string(payload.Role)).Msg("Failed to release payload")
			}
		}
	}()

	fg, fctx := errgroup.WithContext(ctx)
	fg.Go(func() (err error) {
		primaryVideo, err = p.fetcher.FetchVideo(fctx, pair.Primary.VideoURL, models.RoleVideoPrimary)
		return err
	})
	fg.Go(func() (err error) {
		secondaryVideo, err = p.fetcher.FetchVideo(fctx, pair.Secondary.VideoURL, models.RoleVideoSecondary)
		return err
	})
	fg.Go(func() (err error) {
		primarySub, err = p.fetcher.FetchSubtitle(fctx, pair.Primary.SubtitleURL, models.RoleSubtitlePrimary)
		return err
	})
	fg.Go(func() (err error) {
		secondarySub, err = p.fetcher.FetchSubtitle(fctx, pair.Secondary.SubtitleURL, models.RoleSubtitleSecondary)
		return err
	})
	if err := fg.Wait(); err != nil {
		return nil, models.StageFetch, err
	}

	out, err := p.muxer.Mux(ctx, mux.Input{
		Title:             sel.Title,
		PrimaryVideo:      primaryVideo,
		SecondaryVideo:    secondaryVideo,
		PrimarySubtitle:   primarySub,
		SecondarySubtitle: secondarySub,
	})
	if err != nil {
		return nil, models.StageMux, err
	}
	return out, "", nil
}
