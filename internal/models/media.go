package models

// MediaAsset describes the downloadable files of one title in one language.
type MediaAsset struct {
	Language    string // mediator language code, e.g. "E" or "CHS"
	Title       string
	VideoURL    string
	SubtitleURL string // empty when the language has no subtitle track
	FileSize    int64
}

// HasSubtitle reports whether the asset carries a subtitle link.
func (a MediaAsset) HasSubtitle() bool {
	return a.SubtitleURL != ""
}

// LanguagePair is the resolved asset for both target languages of a title.
// Primary supplies the video track, the first audio track and container metadata.
type LanguagePair struct {
	NaturalKey string
	Primary    MediaAsset
	Secondary  MediaAsset
}
