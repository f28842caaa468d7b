package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Asset is one generated video queued for archiving.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets bundles the given assets into a single in-memory zip.
// Any write failure aborts the whole archive; a partial zip would
// download fine and then fail extraction.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, asset := range assets {
		w, err := zw.Create(asset.Filename)
		if err != nil {
			return nil, fmt.Errorf("zip: add %s: %w", asset.Filename, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", asset.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: finalize: %w", err)
	}
	return buf.Bytes(), nil
}
