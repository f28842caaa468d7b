package quality

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"server/internal/domain"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func serveBytes(t *testing.T, contentType string, data []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckPass(t *testing.T) {
	srv := serveBytes(t, "image/png", encodePNG(t, 1024, 1024))
	gate := NewGate(Options{HTTPClient: srv.Client()})

	result, err := gate.Check(context.Background(), srv.URL+"/product.png")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Verdict != domain.QualityPass {
		t.Fatalf("verdict = %s, warnings = %v", result.Verdict, result.Warnings)
	}
}

func TestCheckWarnOnSmallImage(t *testing.T) {
	srv := serveBytes(t, "image/png", encodePNG(t, 480, 480))
	gate := NewGate(Options{HTTPClient: srv.Client()})

	result, err := gate.Check(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Verdict != domain.QualityWarn {
		t.Fatalf("verdict = %s, want warn", result.Verdict)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("warn verdict must carry warnings")
	}
}

func TestCheckStopOnTinyImage(t *testing.T) {
	srv := serveBytes(t, "image/png", encodePNG(t, 100, 100))
	gate := NewGate(Options{HTTPClient: srv.Client()})

	result, err := gate.Check(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Verdict != domain.QualityStop {
		t.Fatalf("verdict = %s, want stop", result.Verdict)
	}
}

func TestCheckStopOnNonImageContent(t *testing.T) {
	srv := serveBytes(t, "text/html", []byte("<html>not an image</html>"))
	gate := NewGate(Options{HTTPClient: srv.Client()})

	result, err := gate.Check(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Verdict != domain.QualityStop {
		t.Fatalf("verdict = %s, want stop", result.Verdict)
	}
}

func TestCheckStopOnInvalidURL(t *testing.T) {
	gate := NewGate(Options{})
	result, err := gate.Check(context.Background(), "not-a-url")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Verdict != domain.QualityStop {
		t.Fatalf("verdict = %s, want stop", result.Verdict)
	}
}

func TestCheckerFailureReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gate := NewGate(Options{HTTPClient: srv.Client()})
	if _, err := gate.Check(context.Background(), srv.URL); err == nil {
		t.Fatal("expected checker error, callers downgrade it to a skipped verdict")
	}
}

func TestCheckStopOnMissingImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	gate := NewGate(Options{HTTPClient: srv.Client()})
	result, err := gate.Check(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Verdict != domain.QualityStop {
		t.Fatalf("verdict = %s, want stop", result.Verdict)
	}
}
