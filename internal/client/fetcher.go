package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/dustin/go-humanize"

	"github.com/Belphemur/DualMux/internal/apperrors"
	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/metrics"
	"github.com/Belphemur/DualMux/internal/models"
	"github.com/Belphemur/DualMux/internal/parser"
)

// copyChunk is the buffer size used to stream payload bodies.
const copyChunk = 32 << 10

// FetchVideo streams a video to a spool file. The file is removed on every
// error path; on success it belongs to the returned payload.
func (c *client) FetchVideo(ctx context.Context, rawURL string, role models.PayloadRole) (*models.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	resp, err := c.get(ctx, rawURL, role)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	f, err := os.CreateTemp(c.spoolDir, "dualmux-"+string(role)+"-*"+extension(rawURL))
	if err != nil {
		return nil, fmt.Errorf("create spool file for %s: %w", role, err)
	}

	w := &countingWriter{w: f, role: role}
	_, copyErr := io.CopyBuffer(w, resp.Body, make([]byte, copyChunk))
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(f.Name())
		return nil, &apperrors.ErrDownloadFailed{URL: rawURL, Role: string(role), Cause: copyErr}
	}

	config.GetLogger().Debug().
		Str("role", string(role)).
		Str("url", rawURL).
		Str("size", humanize.Bytes(uint64(w.n))).
		Msg("Video fetched")

	return &models.Payload{Role: role, Source: rawURL, Path: f.Name(), Size: w.n}, nil
}

// FetchSubtitle downloads a subtitle into memory and converts it to UTF-8.
// An empty URL means the language has no subtitle: no request is made and
// the payload is nil.
func (c *client) FetchSubtitle(ctx context.Context, rawURL string, role models.PayloadRole) (*models.Payload, error) {
	if rawURL == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	resp, err := c.get(ctx, rawURL, role)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	w := &countingWriter{role: role}
	data, err := io.ReadAll(io.TeeReader(io.LimitReader(resp.Body, c.maxSubtitleBytes+1), w))
	if err != nil {
		return nil, &apperrors.ErrDownloadFailed{URL: rawURL, Role: string(role), Cause: err}
	}
	if int64(len(data)) > c.maxSubtitleBytes {
		return nil, &apperrors.ErrDownloadFailed{
			URL:   rawURL,
			Role:  string(role),
			Cause: fmt.Errorf("subtitle larger than %s", humanize.IBytes(uint64(c.maxSubtitleBytes))),
		}
	}

	data, err = parser.ToUTF8(data, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &apperrors.ErrDownloadFailed{URL: rawURL, Role: string(role), Cause: err}
	}

	return &models.Payload{Role: role, Source: rawURL, Data: data, Size: int64(len(data))}, nil
}

// get issues a GET and maps transport errors and non-2xx statuses to
// ErrDownloadFailed. The caller closes the body of a successful response.
func (c *client) get(ctx context.Context, rawURL string, role models.PayloadRole) (*http.Response, error) {
	req, err := newRequest(ctx, rawURL)
	if err != nil {
		return nil, &apperrors.ErrDownloadFailed{URL: rawURL, Role: string(role), Cause: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.ErrDownloadFailed{URL: rawURL, Role: string(role), Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &apperrors.ErrDownloadFailed{URL: rawURL, Role: string(role), StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// countingWriter counts bytes into the fetch metrics. w may be nil.
type countingWriter struct {
	w    io.Writer
	role models.PayloadRole
	n    int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n := len(p)
	var err error
	if cw.w != nil {
		n, err = cw.w.Write(p)
	}
	cw.n += int64(n)
	metrics.MediaFetchedBytesTotal.WithLabelValues(string(cw.role)).Add(float64(n))
	return n, err
}

// extension returns the file extension of the URL path, e.g. ".mp4".
func extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	if len(ext) > 8 {
		return ""
	}
	return ext
}
