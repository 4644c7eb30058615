package batch

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// ArchiveFile is one member of an upload archive.
type ArchiveFile struct {
	Name string
	Data []byte
}

// BuildArchive packs files into an uncompressed zip. Photographic payloads
// are already compressed; storing them avoids wasting CPU on deflate for no
// size win.
func BuildArchive(files []ArchiveFile, at time.Time) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, f := range files {
		hdr := &zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Store,
			Modified: at,
		}
		entry, err := w.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("failed to add %q: %w", f.Name, err)
		}
		if _, err := entry.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write %q: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
