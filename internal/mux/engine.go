package mux

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Belphemur/DualMux/internal/apperrors"
	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/language"
	"github.com/Belphemur/DualMux/internal/metrics"
	"github.com/Belphemur/DualMux/internal/models"
)

// Input holds the fetched payloads of one title. Subtitle payloads are nil
// when the language has no subtitle.
type Input struct {
	Title             string
	PrimaryVideo      *models.Payload
	SecondaryVideo    *models.Payload
	PrimarySubtitle   *models.Payload
	SecondarySubtitle *models.Payload
}

// Engine runs one ffmpeg remux per title. It is safe for concurrent use.
type Engine struct {
	ffmpeg    string
	tempDir   string
	timeout   time.Duration
	primary   language.Language
	secondary language.Language
	runner    Runner
}

// NewEngine creates an Engine from the mux and language settings of cfg.
// A nil runner uses ExecRunner.
func NewEngine(cfg *config.Config, runner Runner) (*Engine, error) {
	primary, err := language.Lookup(cfg.Languages.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary language: %w", err)
	}
	secondary, err := language.Lookup(cfg.Languages.Secondary)
	if err != nil {
		return nil, fmt.Errorf("secondary language: %w", err)
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	ffmpeg := cfg.Mux.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}

	return &Engine{
		ffmpeg:    ffmpeg,
		tempDir:   cfg.Mux.TempDir,
		timeout:   config.ParseDuration("mux.timeout", cfg.Mux.Timeout, 20*time.Minute),
		primary:   primary,
		secondary: secondary,
		runner:    runner,
	}, nil
}

// Mux remuxes one title. In-memory payloads are written to a scratch
// directory that is removed before Mux returns, whatever the outcome.
func (e *Engine) Mux(ctx context.Context, in Input) (*models.MuxOutput, error) {
	logger := config.GetLogger()

	if in.PrimaryVideo == nil || in.SecondaryVideo == nil {
		return nil, &apperrors.ErrMuxFailed{Title: in.Title, ExitCode: -1, Cause: errors.New("both videos are required")}
	}

	dir, err := os.MkdirTemp(e.tempDir, "dualmux-mux-*")
	if err != nil {
		return nil, &apperrors.ErrMuxFailed{Title: in.Title, ExitCode: -1, Cause: fmt.Errorf("create scratch dir: %w", err)}
	}
	// ffmpeg runs inside dir, so every input path must be absolute.
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn().Err(err).Str("dir", dir).Msg("Failed to remove mux scratch directory")
		}
	}()

	planInput := PlanInput{}
	tracks := []struct {
		payload *models.Payload
		lang    language.Language
		dst     *Track
	}{
		{in.PrimaryVideo, e.primary, &planInput.PrimaryVideo},
		{in.SecondaryVideo, e.secondary, &planInput.SecondaryVideo},
		{in.PrimarySubtitle, e.primary, &planInput.PrimarySubtitle},
		{in.SecondarySubtitle, e.secondary, &planInput.SecondarySubtitle},
	}
	for _, tr := range tracks {
		if tr.payload == nil {
			continue
		}
		p, err := materialize(dir, tr.payload)
		if err != nil {
			return nil, &apperrors.ErrMuxFailed{Title: in.Title, ExitCode: -1, Cause: err}
		}
		*tr.dst = Track{Path: p, Language: tr.lang}
	}

	plan, err := BuildPlan(planInput)
	if err != nil {
		return nil, &apperrors.ErrMuxFailed{Title: in.Title, ExitCode: -1, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	logger.Debug().Str("title", in.Title).Str("command", plan.String()).Msg("Running multiplexer")
	start := time.Now()
	res, err := e.runner.Run(ctx, e.ffmpeg, plan.Args, dir)
	metrics.MuxDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MuxTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, &apperrors.ErrMuxFailed{Title: in.Title, ExitCode: res.ExitCode, Stderr: res.Stderr, Cause: err}
	}
	if len(res.Stdout) == 0 {
		metrics.MuxTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, &apperrors.ErrMuxFailed{Title: in.Title, ExitCode: res.ExitCode, Stderr: res.Stderr, Cause: errors.New("empty output")}
	}
	metrics.MuxTotal.WithLabelValues(metrics.StatusSuccess).Inc()

	logger.Info().
		Str("title", in.Title).
		Int("subtitles", plan.SubtitleStreams).
		Str("size", humanize.Bytes(uint64(len(res.Stdout)))).
		Dur("took", time.Since(start)).
		Msg("Title muxed")

	return &models.MuxOutput{FileName: FileName(in.Title), Data: res.Stdout}, nil
}

// Check runs "ffmpeg -version" and returns the first line of its output.
func (e *Engine) Check(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := e.runner.Run(ctx, e.ffmpeg, []string{"-version"}, "")
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", e.ffmpeg, err)
	}
	line, _, _ := bufio.NewReader(bytes.NewReader(res.Stdout)).ReadLine()
	return string(line), nil
}

// materialize returns a path for the payload, writing in-memory payloads
// into dir.
func materialize(dir string, p *models.Payload) (string, error) {
	if p.Path != "" {
		return filepath.Abs(p.Path)
	}
	dst := filepath.Join(dir, string(p.Role)+payloadExt(p))
	if err := os.WriteFile(dst, p.Data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", p.Role, err)
	}
	return dst, nil
}

func payloadExt(p *models.Payload) string {
	if u, err := url.Parse(p.Source); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 6 {
			return ext
		}
	}
	if p.Role.IsSubtitle() {
		return ".vtt"
	}
	return ".mp4"
}
