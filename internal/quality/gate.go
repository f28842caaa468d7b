package quality

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"server/internal/domain"
)

// Thresholds for the pre-submission image check. Providers upscale poorly
// from tiny sources, so anything under the floor is blocked outright.
const (
	minAcceptedDimension = 300
	warnDimension        = 720
	maxDownloadBytes     = 20 << 20
)

// Options configures the gate.
type Options struct {
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	MaxBytes       int64
}

// Gate performs a best-effort suitability check of a source image before
// any credit is debited. Its own failures are never fatal: callers record a
// skipped verdict and proceed.
type Gate struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewGate constructs a gate with bounded download limits.
func NewGate(opts Options) *Gate {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = maxDownloadBytes
	}
	return &Gate{httpClient: httpClient, maxBytes: maxBytes}
}

// Check fetches the image and classifies it as pass, warn or stop. The
// returned error means the checker itself failed, not that the image is
// unsuitable; unsuitable images come back as a stop verdict with nil error.
func (g *Gate) Check(ctx context.Context, imageURL string) (*domain.QualityResult, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &domain.QualityResult{
			Verdict:  domain.QualityStop,
			Warnings: []string{"source image reference is not a valid URL"},
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("quality: build request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quality: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return &domain.QualityResult{
			Verdict:  domain.QualityStop,
			Warnings: []string{"source image is not reachable"},
		}, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("quality: fetch status %d", resp.StatusCode)
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return &domain.QualityResult{
			Verdict:  domain.QualityStop,
			Warnings: []string{fmt.Sprintf("unsupported content type %q, expected an image", contentType)},
		}, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("quality: read image: %w", err)
	}
	if int64(len(data)) > g.maxBytes {
		return &domain.QualityResult{
			Verdict:  domain.QualityStop,
			Warnings: []string{"source image exceeds the maximum accepted size"},
		}, nil
	}
	if len(data) == 0 {
		return &domain.QualityResult{
			Verdict:  domain.QualityStop,
			Warnings: []string{"source image is empty"},
		}, nil
	}

	return classify(data), nil
}

func classify(data []byte) *domain.QualityResult {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// Formats the stdlib cannot decode still generate fine; flag it.
		return &domain.QualityResult{
			Verdict:  domain.QualityWarn,
			Warnings: []string{"image dimensions could not be verified"},
		}
	}

	var warnings []string
	if cfg.Width < minAcceptedDimension || cfg.Height < minAcceptedDimension {
		return &domain.QualityResult{
			Verdict: domain.QualityStop,
			Warnings: []string{fmt.Sprintf(
				"image is %dx%d, minimum accepted is %dx%d",
				cfg.Width, cfg.Height, minAcceptedDimension, minAcceptedDimension)},
		}
	}
	if cfg.Width < warnDimension && cfg.Height < warnDimension {
		warnings = append(warnings, fmt.Sprintf(
			"image is %dx%d; results improve above %dpx on the long edge",
			cfg.Width, cfg.Height, warnDimension))
	}
	if ratio := aspectRatio(cfg.Width, cfg.Height); ratio > 3 {
		warnings = append(warnings, "extreme aspect ratio may produce heavy cropping")
	}
	if format == "jpeg" && len(data) < 30<<10 {
		warnings = append(warnings, "heavily compressed image may show artifacts in the result")
	}

	if len(warnings) > 0 {
		return &domain.QualityResult{Verdict: domain.QualityWarn, Warnings: warnings}
	}
	return &domain.QualityResult{Verdict: domain.QualityPass}
}

func aspectRatio(w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	if w > h {
		return float64(w) / float64(h)
	}
	return float64(h) / float64(w)
}
