package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/cases"

	"github.com/Belphemur/DualMux/internal/apperrors"
	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/metrics"
	"github.com/Belphemur/DualMux/internal/models"
	"github.com/Belphemur/DualMux/internal/parser"
)

// maxCatalogLine bounds a single feed line. Media items are a few KiB.
const maxCatalogLine = 4 << 20

// StreamCatalog downloads the catalog feed and emits every video media item
// in feed order. Undecodable lines are skipped and counted.
func (c *client) StreamCatalog(ctx context.Context) <-chan models.StreamResult[models.CatalogRecord] {
	ch := make(chan models.StreamResult[models.CatalogRecord], 64)

	go func() {
		defer close(ch)
		logger := config.GetLogger()

		body, err := c.openCatalog(ctx)
		if err != nil {
			sendResult(ctx, ch, models.StreamResult[models.CatalogRecord]{Err: err})
			return
		}
		defer body.Close()

		kept, skipped := 0, 0
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxCatalogLine)
		for line := 1; scanner.Scan(); line++ {
			record, keep, err := parser.DecodeCatalogLine(scanner.Bytes())
			if err != nil {
				skipped++
				metrics.CatalogLinesSkippedTotal.Inc()
				logger.Debug().Err(err).Int("line", line).Msg("Skipping malformed catalog line")
				continue
			}
			if !keep {
				continue
			}
			kept++
			if !sendResult(ctx, ch, models.StreamResult[models.CatalogRecord]{Value: record}) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			sendResult(ctx, ch, models.StreamResult[models.CatalogRecord]{
				Err: &apperrors.ErrCatalogUnavailable{URL: c.catalogURL, Cause: fmt.Errorf("read feed: %w", err)},
			})
			return
		}

		logger.Info().Int("videos", kept).Int("skipped", skipped).Msg("Catalog streamed")
	}()

	return ch
}

// FetchCatalog collects the whole catalog stream.
func (c *client) FetchCatalog(ctx context.Context) ([]models.CatalogRecord, error) {
	return collect(ctx, c.StreamCatalog(ctx), nil)
}

// SearchCatalog returns the catalog records whose title contains query,
// ignoring case. An empty query matches everything.
func (c *client) SearchCatalog(ctx context.Context, query string) ([]models.CatalogRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.FetchCatalog(ctx)
	}
	fold := cases.Fold()
	needle := fold.String(query)
	return collect(ctx, c.StreamCatalog(ctx), func(r models.CatalogRecord) bool {
		return strings.Contains(fold.String(r.Title), needle)
	})
}

// openCatalog returns the decompressed feed. The compressed feed is cached
// whole when a cache is configured; otherwise the body is streamed.
func (c *client) openCatalog(ctx context.Context) (io.ReadCloser, error) {
	cacheKey := "catalog:" + c.catalogURL
	if c.caches.Catalog != nil {
		if data, ok := c.caches.Catalog.Get(ctx, cacheKey); ok {
			config.GetLogger().Debug().Str("url", c.catalogURL).Msg("Catalog feed served from cache")
			return decompressFeed(io.NopCloser(bytes.NewReader(data)))
		}
	}

	req, err := newRequest(ctx, c.catalogURL)
	if err != nil {
		return nil, &apperrors.ErrCatalogUnavailable{URL: c.catalogURL, Cause: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.ErrCatalogUnavailable{URL: c.catalogURL, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &apperrors.ErrCatalogUnavailable{URL: c.catalogURL, StatusCode: resp.StatusCode}
	}

	if c.caches.Catalog == nil {
		return decompressFeed(resp.Body)
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &apperrors.ErrCatalogUnavailable{URL: c.catalogURL, Cause: err}
	}
	config.GetLogger().Info().Str("url", c.catalogURL).Str("size", humanize.Bytes(uint64(len(data)))).Msg("Catalog feed downloaded")
	c.caches.Catalog.Set(ctx, cacheKey, data)
	return decompressFeed(io.NopCloser(bytes.NewReader(data)))
}

// decompressFeed wraps body in a gzip reader when it starts with the gzip
// magic. Feeds already decoded by the transport are read as-is.
func decompressFeed(body io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(body, 64*1024)
	magic, _ := br.Peek(2)
	if len(magic) < 2 || magic[0] != 0x1f || magic[1] != 0x8b {
		return &decompressReadCloser{reader: io.NopCloser(br), originalBody: body}, nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("open gzip feed: %w", err)
	}
	return &decompressReadCloser{reader: zr, originalBody: body}, nil
}

// collect drains a record stream, keeping the records match accepts
// (all of them when match is nil).
func collect(ctx context.Context, stream <-chan models.StreamResult[models.CatalogRecord], match func(models.CatalogRecord) bool) ([]models.CatalogRecord, error) {
	var records []models.CatalogRecord
	for {
		select {
		case result, ok := <-stream:
			if !ok {
				return records, nil
			}
			if result.Err != nil {
				return nil, result.Err
			}
			if match == nil || match(result.Value) {
				records = append(records, result.Value)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// sendResult delivers r unless ctx is cancelled first.
func sendResult[T any](ctx context.Context, ch chan<- models.StreamResult[T], r models.StreamResult[T]) bool {
	select {
	case ch <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
