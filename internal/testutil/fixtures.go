package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// CatalogLine renders one catalog feed line for a media item.
func CatalogLine(title, naturalKey, formatCode string) string {
	return fmt.Sprintf(`{"type":"media-item","o":{"title":%q,"keyParts":{"formatCode":%q},"languageAgnosticNaturalKey":%q}}`,
		title, formatCode, naturalKey)
}

// GzipLines joins lines with newlines and gzips them, the shape of the catalog feed.
func GzipLines(lines ...string) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(strings.Join(lines, "\n") + "\n"))
	_ = zw.Close()
	return buf.Bytes()
}

// MediaFileFixture is one rendition in a media-items response.
type MediaFileFixture struct {
	Size        int64
	URL         string
	SubtitleURL string
}

// MediaItemJSON renders a media-items response with a single media entry.
func MediaItemJSON(title string, files ...MediaFileFixture) string {
	type subtitles struct {
		URL string `json:"url"`
	}
	type file struct {
		Filesize               int64      `json:"filesize"`
		ProgressiveDownloadURL string     `json:"progressiveDownloadURL"`
		Subtitles              *subtitles `json:"subtitles,omitempty"`
	}

	rendered := make([]file, 0, len(files))
	for _, f := range files {
		out := file{Filesize: f.Size, ProgressiveDownloadURL: f.URL}
		if f.SubtitleURL != "" {
			out.Subtitles = &subtitles{URL: f.SubtitleURL}
		}
		rendered = append(rendered, out)
	}

	body, _ := json.Marshal(map[string]any{
		"media": []map[string]any{{"title": title, "files": rendered}},
	})
	return string(body)
}
