package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Belphemur/DualMux/internal/models"
)

// MissingFieldError reports a catalog or media-item object lacking a required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

type catalogLine struct {
	Type string          `json:"type"`
	O    json.RawMessage `json:"o"`
}

type catalogObject struct {
	Title      *string          `json:"title"`
	KeyParts   *models.KeyParts `json:"keyParts"`
	NaturalKey *string          `json:"languageAgnosticNaturalKey"`
}

// DecodeCatalogLine decodes one line of the catalog feed.
//
// It returns keep=false with a nil error for well-formed lines that are not
// video media items. Lines that are not valid JSON, or video media items that
// lack a title or natural key, return an error; callers skip those lines.
func DecodeCatalogLine(line []byte) (record models.CatalogRecord, keep bool, err error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return models.CatalogRecord{}, false, nil
	}

	var l catalogLine
	if err := json.Unmarshal(line, &l); err != nil {
		return models.CatalogRecord{}, false, fmt.Errorf("decode catalog line: %w", err)
	}
	if l.Type != models.CatalogItemType {
		return models.CatalogRecord{}, false, nil
	}
	if len(l.O) == 0 || bytes.Equal(l.O, []byte("null")) {
		return models.CatalogRecord{}, false, &MissingFieldError{Field: "o"}
	}

	var o catalogObject
	if err := json.Unmarshal(l.O, &o); err != nil {
		return models.CatalogRecord{}, false, fmt.Errorf("decode catalog object: %w", err)
	}
	if o.KeyParts == nil || o.KeyParts.FormatCode != models.FormatVideo {
		return models.CatalogRecord{}, false, nil
	}
	if o.Title == nil || *o.Title == "" {
		return models.CatalogRecord{}, false, &MissingFieldError{Field: "o.title"}
	}
	if o.NaturalKey == nil || *o.NaturalKey == "" {
		return models.CatalogRecord{}, false, &MissingFieldError{Field: "o.languageAgnosticNaturalKey"}
	}

	return models.CatalogRecord{
		Title:      *o.Title,
		KeyParts:   *o.KeyParts,
		NaturalKey: *o.NaturalKey,
		Raw:        append(json.RawMessage(nil), l.O...),
	}, true, nil
}
