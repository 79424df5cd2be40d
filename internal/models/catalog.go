package models

import "encoding/json"

// FormatVideo is the keyParts.formatCode of catalog items that carry video.
const FormatVideo = "VIDEO"

// CatalogItemType is the type tag of media entries in the catalog feed.
const CatalogItemType = "media-item"

// KeyParts holds the parts of a catalog item's key that drive filtering.
type KeyParts struct {
	FormatCode string `json:"formatCode"`
}

// CatalogRecord is a single video media item from the catalog feed.
type CatalogRecord struct {
	Title      string          `json:"title"`
	KeyParts   KeyParts        `json:"keyParts"`
	NaturalKey string          `json:"languageAgnosticNaturalKey"`
	Raw        json.RawMessage `json:"-"` // the untouched "o" object, echoed back to API clients
}
