package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
)

const srtUTF8 = "1\n00:00:01,000 --> 00:00:02,500\n你好，世界 ☺\n\n"

// TestNewUTF8Reader_AlreadyUTF8 tests that UTF-8 subtitles pass through unchanged
func TestNewUTF8Reader_AlreadyUTF8(t *testing.T) {
	t.Parallel()
	reader, err := NewUTF8Reader(bytes.NewReader([]byte(srtUTF8)), "")
	if err != nil {
		t.Fatalf("NewUTF8Reader failed: %v", err)
	}

	output, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("Failed to read from UTF-8 reader: %v", err)
	}

	if string(output) != srtUTF8 {
		t.Errorf("Expected UTF-8 content to pass through unchanged, got %q", output)
	}
}

// TestToUTF8_Windows1252Heuristic tests that non-UTF-8 bytes without a declared
// charset are read as Windows-1252
func TestToUTF8_Windows1252Heuristic(t *testing.T) {
	t.Parallel()
	input := append([]byte("1\n00:00:01,000 --> 00:00:02,000\nCaf"), 0xE9, '\n')

	output, err := ToUTF8(input, "")
	if err != nil {
		t.Fatalf("ToUTF8 failed: %v", err)
	}

	if !bytes.Contains(output, []byte("Café")) {
		t.Errorf("Expected 'Café' in output, got %q", output)
	}
}

// TestToUTF8_ContentTypeCharset tests that a charset parameter in the
// Content-Type header drives the conversion
func TestToUTF8_ContentTypeCharset(t *testing.T) {
	t.Parallel()
	// 0xA4 is the euro sign in ISO-8859-15 but the generic currency sign in ISO-8859-1
	input := []byte{'P', 'r', 'i', 'c', 'e', ' ', 0xA4}

	output, err := ToUTF8(input, "application/x-subrip; charset=iso-8859-15")
	if err != nil {
		t.Fatalf("ToUTF8 failed: %v", err)
	}

	if string(output) != "Price €" {
		t.Errorf("Expected 'Price €', got %q", output)
	}
}

// TestToUTF8_Empty tests that an empty subtitle converts to an empty body
func TestToUTF8_Empty(t *testing.T) {
	t.Parallel()
	output, err := ToUTF8(nil, "")
	if err != nil {
		t.Fatalf("ToUTF8 failed: %v", err)
	}
	if len(output) != 0 {
		t.Errorf("Expected empty output, got %q", output)
	}
}

// TestToUTF8_LongASCIIPrefix tests that a valid UTF-8 body whose first KiB is
// plain ASCII is returned byte for byte
func TestToUTF8_LongASCIIPrefix(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i := 1; b.Len() < 1100; i++ {
		fmt.Fprintf(&b, "%02d:00.000 --> %02d:01.000\nLine number %d of the English track\n\n", i, i, i)
	}
	b.WriteString("Don’t worry 中文\n")
	input := []byte(b.String())

	output, err := ToUTF8(input, "text/vtt")
	if err != nil {
		t.Fatalf("ToUTF8 failed: %v", err)
	}

	if !bytes.Equal(output, input) {
		t.Errorf("Expected %d identical bytes, got %d bytes ending in %q", len(input), len(output), output[len(output)-24:])
	}
}

// TestToUTF8_StripsUTF8BOM tests that a UTF-8 byte order mark is dropped
func TestToUTF8_StripsUTF8BOM(t *testing.T) {
	t.Parallel()
	input := append([]byte{0xEF, 0xBB, 0xBF}, srtUTF8...)

	output, err := ToUTF8(input, "application/x-subrip; charset=utf-8")
	if err != nil {
		t.Fatalf("ToUTF8 failed: %v", err)
	}

	if string(output) != srtUTF8 {
		t.Errorf("Expected BOM to be stripped, got %q", output)
	}
}

// TestToUTF8_DeclaredCharsetWins tests that an explicit non-UTF-8 charset is
// honoured even when the bytes would also be valid UTF-8
func TestToUTF8_DeclaredCharsetWins(t *testing.T) {
	t.Parallel()
	input := []byte("Caf\xc3\xa9")

	output, err := ToUTF8(input, "text/plain; charset=windows-1252")
	if err != nil {
		t.Fatalf("ToUTF8 failed: %v", err)
	}

	if string(output) != "CafÃ©" {
		t.Errorf("Expected Windows-1252 decoding 'CafÃ©', got %q", output)
	}
}
