package packager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Belphemur/DualMux/internal/apperrors"
	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/models"
	"github.com/Belphemur/DualMux/internal/mux"
)

type fakeResolver struct {
	pairs map[string]models.LanguagePair
	delay map[string]time.Duration
}

func (r *fakeResolver) Resolve(ctx context.Context, key string) (models.LanguagePair, error) {
	if d := r.delay[key]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return models.LanguagePair{}, ctx.Err()
		}
	}
	pair, ok := r.pairs[key]
	if !ok {
		return models.LanguagePair{}, &apperrors.ErrResolutionFailed{NaturalKey: key, Language: "CHS", Reason: "status 404"}
	}
	return pair, nil
}

// fakeFetcher spools videos into dir and serves subtitles from memory.
type fakeFetcher struct {
	dir  string
	fail map[string]bool
}

func (f *fakeFetcher) FetchVideo(_ context.Context, url string, role models.PayloadRole) (*models.Payload, error) {
	if f.fail[url] {
		return nil, &apperrors.ErrDownloadFailed{URL: url, Role: string(role), StatusCode: 500}
	}
	file, err := os.CreateTemp(f.dir, "video-*.mp4")
	if err != nil {
		return nil, err
	}
	_, _ = file.WriteString(url)
	_ = file.Close()
	return &models.Payload{Role: role, Source: url, Path: file.Name(), Size: int64(len(url))}, nil
}

func (f *fakeFetcher) FetchSubtitle(_ context.Context, url string, role models.PayloadRole) (*models.Payload, error) {
	if url == "" {
		return nil, nil
	}
	return &models.Payload{Role: role, Source: url, Data: []byte("WEBVTT\n"), Size: 7}, nil
}

// recordingRunner stands in for ffmpeg and answers with the -i operands.
type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingRunner) Run(_ context.Context, _ string, args []string, _ string) (mux.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string(nil), args...))
	r.mu.Unlock()
	return mux.Result{Stdout: []byte(fmt.Sprintf("mkv:%d-inputs", len(values(args, "-i"))))}, nil
}

func values(args []string, flag string) []string {
	var out []string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			out = append(out, args[i+1])
		}
	}
	return out
}

func pair(key string, primarySub, secondarySub bool) models.LanguagePair {
	p := models.LanguagePair{
		NaturalKey: key,
		Primary:    models.MediaAsset{Language: "E", VideoURL: "http://cdn/" + key + "-e.mp4"},
		Secondary:  models.MediaAsset{Language: "CHS", VideoURL: "http://cdn/" + key + "-chs.mp4"},
	}
	if primarySub {
		p.Primary.SubtitleURL = "http://cdn/" + key + "-e.vtt"
	}
	if secondarySub {
		p.Secondary.SubtitleURL = "http://cdn/" + key + "-chs.vtt"
	}
	return p
}

type harness struct {
	resolver *fakeResolver
	fetcher  *fakeFetcher
	runner   *recordingRunner
	cfg      *config.Config
}

func newHarness(t *testing.T, policy string, pairs ...models.LanguagePair) *harness {
	t.Helper()
	h := &harness{
		resolver: &fakeResolver{pairs: map[string]models.LanguagePair{}, delay: map[string]time.Duration{}},
		fetcher:  &fakeFetcher{dir: t.TempDir(), fail: map[string]bool{}},
		runner:   &recordingRunner{},
		cfg:      &config.Config{},
	}
	for _, p := range pairs {
		h.resolver.pairs[p.NaturalKey] = p
	}
	h.cfg.Packager.Policy = policy
	h.cfg.Mux.TempDir = t.TempDir()
	h.cfg.ApplyDefaults()
	return h
}

func (h *harness) packager(t *testing.T, opts ...Option) *Packager {
	t.Helper()
	engine, err := mux.NewEngine(h.cfg, h.runner)
	require.NoError(t, err)
	p, err := New(h.cfg, h.resolver, h.fetcher, engine, opts...)
	require.NoError(t, err)
	return p
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method, "entry %s", f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		out[f.Name] = string(body)
	}
	return out
}

func assertSpoolEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "every payload must be released")
}

func TestPackage_EndToEnd(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "partial", pair("k1", true, false))

	result, err := h.packager(t).Package(context.Background(), []models.Selection{{Title: "A", NaturalKey: "k1"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"A.mkv"}, result.Entries)
	assert.Empty(t, result.Failures)
	assert.Equal(t, map[string]string{"A.mkv": "mkv:3-inputs"}, readArchive(t, result.Archive))

	require.Len(t, h.runner.calls, 1)
	args := h.runner.calls[0]
	assert.Equal(t, []string{"0:v:0", "0:a:0", "1:a:0", "2:s:0"}, values(args, "-map"))
	assert.Equal(t, []string{"title=English", "language=eng"}, values(args, "-metadata:s:a:0"))
	assert.Equal(t, []string{"title=Chinese", "language=chi"}, values(args, "-metadata:s:a:1"))
	assert.Equal(t, []string{"title=English", "language=eng"}, values(args, "-metadata:s:s:0"))

	assertSpoolEmpty(t, h.fetcher.dir)
	assertSpoolEmpty(t, h.cfg.Mux.TempDir)
}

func TestPackage_PartialPolicy(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "partial", pair("k1", false, false), pair("k3", true, true))

	result, err := h.packager(t).Package(context.Background(), []models.Selection{
		{Title: "First", NaturalKey: "k1"},
		{Title: "Missing", NaturalKey: "k2"},
		{Title: "Third", NaturalKey: "k3"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"First.mkv", "Third.mkv"}, result.Entries)
	require.Len(t, result.Failures, 1)
	failure := result.Failures[0]
	assert.Equal(t, 1, failure.Index)
	assert.Equal(t, "Missing", failure.Title)
	assert.Equal(t, "k2", failure.NaturalKey)
	assert.Equal(t, models.StageResolve, failure.Stage)
	assert.ErrorIs(t, failure.Err, &apperrors.ErrResolutionFailed{})

	archive := readArchive(t, result.Archive)
	assert.Equal(t, "mkv:2-inputs", archive["First.mkv"])
	assert.Equal(t, "mkv:4-inputs", archive["Third.mkv"])
}

func TestPackage_FailuresKeepSelectionIndex(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "partial", pair("k1", false, false))

	result, err := h.packager(t).Package(context.Background(), []models.Selection{
		{Title: "Missing", NaturalKey: "k2"},
		{Title: "First", NaturalKey: "k1"},
		{Title: "Missing", NaturalKey: "k2"},
	})
	require.NoError(t, err)

	require.Len(t, result.Failures, 2)
	assert.Equal(t, 0, result.Failures[0].Index)
	assert.Equal(t, 2, result.Failures[1].Index)
	assert.Equal(t, []string{"First.mkv"}, result.Entries)
}

func TestPackage_AbortPolicy(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "abort", pair("k1", false, false), pair("k3", false, false))

	result, err := h.packager(t).Package(context.Background(), []models.Selection{
		{Title: "First", NaturalKey: "k1"},
		{Title: "Missing", NaturalKey: "k2"},
		{Title: "Third", NaturalKey: "k3"},
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, &apperrors.ErrResolutionFailed{})
	assert.Contains(t, err.Error(), `"Missing"`)

	assertSpoolEmpty(t, h.fetcher.dir)
}

func TestPackage_FetchFailureReleasesPayloads(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "partial", pair("k1", true, true), pair("k2", false, false))
	h.fetcher.fail["http://cdn/k1-chs.mp4"] = true

	result, err := h.packager(t).Package(context.Background(), []models.Selection{
		{Title: "Broken", NaturalKey: "k1"},
		{Title: "Fine", NaturalKey: "k2"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Fine.mkv"}, result.Entries)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, models.StageFetch, result.Failures[0].Stage)
	assert.ErrorIs(t, result.Failures[0].Err, &apperrors.ErrDownloadFailed{})
	assertSpoolEmpty(t, h.fetcher.dir)
}

func TestPackage_DuplicateTitlesGetUniqueNames(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "partial", pair("k1", false, false), pair("k2", false, false))

	result, err := h.packager(t).Package(context.Background(), []models.Selection{
		{Title: "A", NaturalKey: "k1"},
		{Title: "A", NaturalKey: "k2"},
		{Title: "A", NaturalKey: "k2"},
	})
	require.NoError(t, err)

	want := []string{"A.mkv", "A [k2].mkv", "A [k2] (2).mkv"}
	assert.Equal(t, want, result.Entries)

	archive := readArchive(t, result.Archive)
	assert.Len(t, archive, 3)
	for _, name := range want {
		assert.Contains(t, archive, name)
	}
}

func TestPackage_OrderIndependentOfCompletion(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "partial", pair("slow", false, false), pair("fast", false, false))
	h.resolver.delay["slow"] = 150 * time.Millisecond

	var order []string
	var mu sync.Mutex
	p := h.packager(t, WithProgress(func(sel models.Selection, err error) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, sel.Title)
	}))

	result, err := p.Package(context.Background(), []models.Selection{
		{Title: "Slow", NaturalKey: "slow"},
		{Title: "Fast", NaturalKey: "fast"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Fast", "Slow"}, order, "fast title completes first")
	assert.Equal(t, []string{"Slow.mkv", "Fast.mkv"}, result.Entries, "archive follows selection order")
}

func TestPackage_AllFail(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "partial")

	result, err := h.packager(t).Package(context.Background(), []models.Selection{
		{Title: "X", NaturalKey: "x"},
		{Title: "Y", NaturalKey: "y"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNothingPackaged))
	require.NotNil(t, result)
	assert.Len(t, result.Failures, 2)
	assert.Empty(t, result.Archive)
}

func TestPackage_Cancelled(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "partial", pair("k1", false, false))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.packager(t).Package(ctx, []models.Selection{{Title: "A", NaturalKey: "k1"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.runner.calls)
}

func TestPackage_NoSelection(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "partial")
	_, err := h.packager(t).Package(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestPackage_WorkerLimit(t *testing.T) {
	t.Parallel()
	var inFlight, peak atomic.Int32
	h := newHarness(t, "partial")
	h.cfg.Packager.Workers = 2

	selections := make([]models.Selection, 6)
	for i := range selections {
		key := fmt.Sprintf("k%d", i)
		h.resolver.pairs[key] = pair(key, false, false)
		selections[i] = models.Selection{Title: key, NaturalKey: key}
	}
	limited := &countingResolver{inner: h.resolver, inFlight: &inFlight, peak: &peak}

	engine, err := mux.NewEngine(h.cfg, h.runner)
	require.NoError(t, err)
	p, err := New(h.cfg, limited, h.fetcher, engine)
	require.NoError(t, err)

	result, err := p.Package(context.Background(), selections)
	require.NoError(t, err)
	assert.Len(t, result.Entries, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

type countingResolver struct {
	inner    Resolver
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (c *countingResolver) Resolve(ctx context.Context, key string) (models.LanguagePair, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		old := c.peak.Load()
		if n <= old || c.peak.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return c.inner.Resolve(ctx, key)
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Policy{"": PolicyPartial, "partial": PolicyPartial, " ABORT ": PolicyAbort} {
		got, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePolicy("retry")
	assert.Error(t, err)
}

func TestAssignNames(t *testing.T) {
	t.Parallel()
	names := AssignNames([]models.Selection{
		{Title: "Be Kind", NaturalKey: "k1"},
		{Title: "Be/Kind", NaturalKey: "k2"},
		{Title: "Be_Kind", NaturalKey: "k3"},
		{Title: "Be Kind", NaturalKey: "k4"},
	})
	assert.Equal(t, []string{"Be Kind.mkv", "Be_Kind.mkv", "Be_Kind [k3].mkv", "Be Kind [k4].mkv"}, names)
}
