package packager

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/Belphemur/DualMux/internal/models"
)

// writeArchive zips the non-nil outputs in slice order.
func writeArchive(outputs []*models.MuxOutput) ([]byte, []string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	now := time.Now()
	var entries []string
	for _, out := range outputs {
		if out == nil {
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     out.FileName,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create archive entry %q: %w", out.FileName, err)
		}
		if _, err := w.Write(out.Data); err != nil {
			return nil, nil, fmt.Errorf("write archive entry %q: %w", out.FileName, err)
		}
		entries = append(entries, out.FileName)
	}

	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), entries, nil
}
