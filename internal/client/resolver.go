package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/Belphemur/DualMux/internal/apperrors"
	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/language"
	"github.com/Belphemur/DualMux/internal/models"
	"github.com/Belphemur/DualMux/internal/parser"
)

// maxMetadataBytes bounds a media-items response body.
const maxMetadataBytes = 8 << 20

// Resolve resolves both target languages of a title concurrently.
func (c *client) Resolve(ctx context.Context, naturalKey string) (models.LanguagePair, error) {
	pair := models.LanguagePair{NaturalKey: naturalKey}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		asset, err := c.resolveLanguage(gctx, c.primary, naturalKey)
		pair.Primary = asset
		return err
	})
	g.Go(func() error {
		asset, err := c.resolveLanguage(gctx, c.secondary, naturalKey)
		pair.Secondary = asset
		return err
	})
	if err := g.Wait(); err != nil {
		return models.LanguagePair{}, err
	}

	config.GetLogger().Debug().
		Str("naturalKey", naturalKey).
		Bool("primarySubtitle", pair.Primary.HasSubtitle()).
		Bool("secondarySubtitle", pair.Secondary.HasSubtitle()).
		Msg("Resolved download links")
	return pair, nil
}

func (c *client) resolveLanguage(ctx context.Context, lang language.Language, naturalKey string) (models.MediaAsset, error) {
	endpoint := fmt.Sprintf("%s/%s/%s?clientType=%s",
		c.mediatorURL, url.PathEscape(lang.Code), url.PathEscape(naturalKey), url.QueryEscape(c.clientType))

	fail := func(reason string, cause error) error {
		return &apperrors.ErrResolutionFailed{
			NaturalKey: naturalKey,
			Language:   lang.Code,
			URL:        endpoint,
			Reason:     reason,
			Cause:      cause,
		}
	}

	cacheKey := "media:" + lang.Code + ":" + naturalKey
	body, cached := c.cachedMetadata(ctx, cacheKey)
	if !cached {
		var err error
		body, err = c.fetchMetadata(ctx, endpoint)
		if err != nil {
			var status *statusError
			if errors.As(err, &status) {
				return models.MediaAsset{}, fail(fmt.Sprintf("status %d", status.code), nil)
			}
			return models.MediaAsset{}, fail("request failed", err)
		}
	}

	entry, file, err := parser.DecodeMediaItem(bytes.NewReader(body))
	switch {
	case errors.Is(err, parser.ErrNoMedia):
		return models.MediaAsset{}, fail("no media entries", nil)
	case errors.Is(err, parser.ErrNoFiles):
		return models.MediaAsset{}, fail("no files", nil)
	case err != nil:
		var missing *parser.MissingFieldError
		if errors.As(err, &missing) {
			return models.MediaAsset{}, fail("no download url", err)
		}
		return models.MediaAsset{}, fail("undecodable metadata", err)
	}

	if !cached && c.caches.Media != nil {
		c.caches.Media.Set(ctx, cacheKey, body)
	}

	return models.MediaAsset{
		Language:    lang.Code,
		Title:       entry.Title,
		VideoURL:    file.ProgressiveDownloadURL,
		SubtitleURL: file.SubtitleURL(),
		FileSize:    file.Filesize,
	}, nil
}

func (c *client) cachedMetadata(ctx context.Context, key string) ([]byte, bool) {
	if c.caches.Media == nil {
		return nil, false
	}
	return c.caches.Media.Get(ctx, key)
}

// statusError reports a non-2xx response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (c *client) fetchMetadata(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := newRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
}
