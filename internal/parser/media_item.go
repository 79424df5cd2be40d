package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNoMedia is returned when a media-item response has an empty media list.
	ErrNoMedia = errors.New("response has no media entries")
	// ErrNoFiles is returned when the first media entry lists no files.
	ErrNoFiles = errors.New("media entry has no files")
)

// MediaItemResponse is the body of the mediator media-items endpoint.
type MediaItemResponse struct {
	Media []MediaEntry `json:"media"`
}

// MediaEntry is one media item in a specific language.
type MediaEntry struct {
	Title string      `json:"title"`
	Files []MediaFile `json:"files"`
}

// MediaFile is one rendition of a media entry.
type MediaFile struct {
	Filesize               int64         `json:"filesize"`
	ProgressiveDownloadURL string        `json:"progressiveDownloadURL"`
	Subtitles              *SubtitleLink `json:"subtitles,omitempty"`
}

// SubtitleLink points at the subtitle file of a rendition.
type SubtitleLink struct {
	URL string `json:"url"`
}

// SubtitleURL returns the subtitle URL of the file, or "" when it has none.
func (f MediaFile) SubtitleURL() string {
	if f.Subtitles == nil {
		return ""
	}
	return f.Subtitles.URL
}

// DecodeMediaItem decodes a media-items response and returns its first media
// entry together with the largest file of that entry.
func DecodeMediaItem(body io.Reader) (MediaEntry, MediaFile, error) {
	var resp MediaItemResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return MediaEntry{}, MediaFile{}, fmt.Errorf("decode media item: %w", err)
	}
	if len(resp.Media) == 0 {
		return MediaEntry{}, MediaFile{}, ErrNoMedia
	}

	entry := resp.Media[0]
	largest, ok := LargestFile(entry.Files)
	if !ok {
		return entry, MediaFile{}, ErrNoFiles
	}
	if largest.ProgressiveDownloadURL == "" {
		return entry, largest, &MissingFieldError{Field: "media[0].files[].progressiveDownloadURL"}
	}
	return entry, largest, nil
}

// LargestFile returns the file with the strictly largest Filesize. On ties the
// first file encountered wins. ok is false for an empty list.
func LargestFile(files []MediaFile) (largest MediaFile, ok bool) {
	for i, f := range files {
		if i == 0 || f.Filesize > largest.Filesize {
			largest = f
		}
	}
	return largest, len(files) > 0
}
