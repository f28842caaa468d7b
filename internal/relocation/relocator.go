package relocation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/storage"
)

// ErrSourceInvalid marks an unrecoverable relocation failure: the provider
// content is gone, malformed or of an unsupported type. Retrying cannot
// help, so the orchestrator fails the task instead of staying in
// Processing.
var ErrSourceInvalid = errors.New("relocation: source content invalid")

const defaultMaxBytes = 512 << 20

// Source describes finished provider content: either a fetchable URL or
// inline bytes, never both required.
type Source struct {
	URL  string
	Data []byte
	MIME string
}

// Options configures a Relocator.
type Options struct {
	HTTPClient      *http.Client
	Store           *storage.FileStore
	Assets          domain.AssetRepository
	Retention       time.Duration
	MaxBytes        int64
	Logger          *infra.Logger
	DownloadTimeout time.Duration
}

// Relocator copies finished provider assets into durable merchant-scoped
// storage. It never falls back to the provider's ephemeral URL: if the
// durable write fails, the relocation fails.
type Relocator struct {
	httpClient *http.Client
	store      *storage.FileStore
	assets     domain.AssetRepository
	retention  time.Duration
	maxBytes   int64
	logger     *infra.Logger
	now        func() time.Time
}

// NewRelocator constructs a Relocator with injected dependencies.
func NewRelocator(opts Options) (*Relocator, error) {
	if opts.Store == nil {
		return nil, errors.New("relocation: store is required")
	}
	if opts.Assets == nil {
		return nil, errors.New("relocation: asset repository is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.DownloadTimeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Relocator{
		httpClient: httpClient,
		store:      opts.Store,
		assets:     opts.Assets,
		retention:  retention,
		maxBytes:   maxBytes,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Relocate downloads or decodes the source, writes it to durable storage
// under a deterministic merchant-scoped key and records the asset row with
// an expiration horizon. Deterministic keys make a duplicate relocation of
// the same task overwrite identical bytes instead of leaking copies.
func (r *Relocator) Relocate(ctx context.Context, src Source, taskID, merchantID string, durationSeconds int) (*domain.GeneratedAsset, error) {
	data := src.Data
	mime := strings.ToLower(strings.TrimSpace(src.MIME))

	if len(data) == 0 {
		if strings.TrimSpace(src.URL) == "" {
			return nil, fmt.Errorf("%w: neither url nor payload", ErrSourceInvalid)
		}
		fetched, fetchedMIME, err := r.download(ctx, src.URL)
		if err != nil {
			return nil, err
		}
		data = fetched
		if fetchedMIME != "" {
			mime = fetchedMIME
		}
	}

	if mime == "" {
		mime = "video/mp4"
	}
	ext, ok := videoExtension(mime)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrSourceInvalid, mime)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrSourceInvalid)
	}

	key := fmt.Sprintf("merchants/%s/videos/%s%s", merchantID, taskID, ext)
	savedKey, err := r.store.Write(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrStorageFailed)
	}

	now := r.now().UTC()
	asset := &domain.GeneratedAsset{
		ID:              uuid.NewString(),
		TaskID:          taskID,
		MerchantID:      merchantID,
		StorageKey:      savedKey,
		MIME:            mime,
		Bytes:           int64(len(data)),
		DurationSeconds: durationSeconds,
		ExpiresAt:       now.Add(r.retention),
		CreatedAt:       now,
	}
	if err := r.assets.Save(ctx, asset); err != nil {
		return nil, fmt.Errorf("record asset row: %w", err)
	}

	r.logger.Info().
		Str("task_id", taskID).
		Str("merchant_id", merchantID).
		Str("storage_key", savedKey).
		Int64("bytes", asset.Bytes).
		Msg("relocation: asset persisted")
	return asset, nil
}

func (r *Relocator) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("%w: invalid source url %q", ErrSourceInvalid, rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("relocation: build download request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("relocation: download: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The provider URL has already expired; no retry will revive it.
		return nil, "", fmt.Errorf("%w: provider url expired (status %d)", ErrSourceInvalid, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, "", fmt.Errorf("relocation: download status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("relocation: read download: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, "", fmt.Errorf("%w: payload exceeds size limit", ErrSourceInvalid)
	}
	mime := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if idx := strings.Index(mime, ";"); idx > 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return data, mime, nil
}

func videoExtension(mime string) (string, bool) {
	switch mime {
	case "video/mp4", "application/octet-stream":
		return ".mp4", true
	case "video/webm":
		return ".webm", true
	case "video/quicktime":
		return ".mov", true
	default:
		return "", false
	}
}
