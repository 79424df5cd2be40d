package parser

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewUTF8Reader wraps an io.Reader with character encoding detection and
// conversion to UTF-8.
//
// The charset is taken from, in order: a byte order mark, the charset
// parameter of contentType, and finally a heuristic over the first 1024
// bytes only. A body whose first KiB is plain ASCII is read as Windows-1252
// by that heuristic, so callers holding the whole body should use ToUTF8.
func NewUTF8Reader(body io.Reader, contentType string) (io.Reader, error) {
	return charset.NewReader(body, contentType)
}

// ToUTF8 converts a whole subtitle body to UTF-8. The multiplexer reads text
// subtitles as UTF-8 and mangles anything else.
//
// Unless contentType declares a charset other than UTF-8, a body that is
// valid UTF-8 is returned as is, minus any UTF-8 byte order mark. Only other
// bodies go through charset detection.
func ToUTF8(data []byte, contentType string) ([]byte, error) {
	if declared := declaredCharset(contentType); declared == "" || declared == "utf-8" {
		body := bytes.TrimPrefix(data, utf8BOM)
		if utf8.Valid(body) {
			return body, nil
		}
	}

	r, err := NewUTF8Reader(bytes.NewReader(data), contentType)
	if err != nil {
		return nil, fmt.Errorf("detect subtitle charset: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("convert subtitle to UTF-8: %w", err)
	}
	return out, nil
}

// declaredCharset returns the canonical name of the charset parameter of
// contentType, or "" when it is missing or unknown.
func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	enc, name := charset.Lookup(params["charset"])
	if enc == nil {
		return ""
	}
	return name
}
