package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssetsRoundTrip(t *testing.T) {
	archive, err := ArchiveAssets([]Asset{
		{Filename: "a.mp4", MIME: "video/mp4", Data: []byte("first clip")},
		{Filename: "b.mp4", MIME: "video/mp4", Data: []byte("second clip")},
	})
	if err != nil {
		t.Fatalf("ArchiveAssets: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("reading archive back: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d, want 2", len(zr.File))
	}
	want := map[string]string{"a.mp4": "first clip", "b.mp4": "second clip"}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		if string(data) != want[f.Name] {
			t.Fatalf("%s = %q, want %q", f.Name, data, want[f.Name])
		}
	}
}

func TestArchiveAssetsEmptyInput(t *testing.T) {
	archive, err := ArchiveAssets(nil)
	if err != nil {
		t.Fatalf("ArchiveAssets: %v", err)
	}
	if _, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive))); err != nil {
		t.Fatalf("empty archive unreadable: %v", err)
	}
}
