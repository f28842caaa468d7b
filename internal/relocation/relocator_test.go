package relocation

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"server/internal/domain"
	"server/internal/storage"
)

type memAssets struct {
	mu     sync.Mutex
	byTask map[string]*domain.GeneratedAsset
}

func newMemAssets() *memAssets {
	return &memAssets{byTask: make(map[string]*domain.GeneratedAsset)}
}

func (m *memAssets) Save(_ context.Context, asset *domain.GeneratedAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *asset
	m.byTask[asset.TaskID] = &copied
	return nil
}

func (m *memAssets) GetForMerchant(_ context.Context, id, merchantID string) (*domain.GeneratedAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byTask {
		if a.ID == id && a.MerchantID == merchantID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAssets) ListByMerchant(_ context.Context, merchantID string, limit, offset int) ([]domain.GeneratedAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.GeneratedAsset
	for _, a := range m.byTask {
		if a.MerchantID == merchantID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func newTestRelocator(t *testing.T, assets domain.AssetRepository, client *http.Client) (*Relocator, *storage.FileStore) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost/static")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	r, err := NewRelocator(Options{
		HTTPClient: client,
		Store:      store,
		Assets:     assets,
		Retention:  14 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new relocator: %v", err)
	}
	return r, store
}

func TestRelocateFromURL(t *testing.T) {
	payload := []byte("the-video")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(payload)
	}))
	defer srv.Close()

	assets := newMemAssets()
	reloc, store := newTestRelocator(t, assets, srv.Client())

	asset, err := reloc.Relocate(context.Background(), Source{URL: srv.URL + "/out.mp4"}, "task-1", "m-1", 12)
	if err != nil {
		t.Fatalf("relocate: %v", err)
	}
	if asset.StorageKey != "merchants/m-1/videos/task-1.mp4" {
		t.Fatalf("storage key = %q", asset.StorageKey)
	}
	if asset.DurationSeconds != 12 || asset.Bytes != int64(len(payload)) {
		t.Fatalf("asset = %+v", asset)
	}
	if asset.ExpiresAt.IsZero() {
		t.Fatal("expiration horizon must be set")
	}
	stored, err := store.Read(context.Background(), asset.StorageKey)
	if err != nil {
		t.Fatalf("read stored: %v", err)
	}
	if !bytes.Equal(stored, payload) {
		t.Fatal("stored bytes differ from source")
	}
	if assets.byTask["task-1"] == nil {
		t.Fatal("asset row not recorded")
	}
}

func TestRelocateFromInlinePayload(t *testing.T) {
	assets := newMemAssets()
	reloc, store := newTestRelocator(t, assets, nil)

	asset, err := reloc.Relocate(context.Background(), Source{Data: []byte("inline"), MIME: "video/webm"}, "task-2", "m-1", 8)
	if err != nil {
		t.Fatalf("relocate: %v", err)
	}
	if asset.StorageKey != "merchants/m-1/videos/task-2.webm" {
		t.Fatalf("storage key = %q", asset.StorageKey)
	}
	if _, err := store.Read(context.Background(), asset.StorageKey); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
}

func TestRelocateUnsupportedMIMEIsUnrecoverable(t *testing.T) {
	assets := newMemAssets()
	reloc, _ := newTestRelocator(t, assets, nil)

	_, err := reloc.Relocate(context.Background(), Source{Data: []byte("x"), MIME: "text/html"}, "task-3", "m-1", 0)
	if !errors.Is(err, ErrSourceInvalid) {
		t.Fatalf("expected source-invalid error, got %v", err)
	}
}

func TestRelocateExpiredProviderURLIsUnrecoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assets := newMemAssets()
	reloc, _ := newTestRelocator(t, assets, srv.Client())

	_, err := reloc.Relocate(context.Background(), Source{URL: srv.URL}, "task-4", "m-1", 0)
	if !errors.Is(err, ErrSourceInvalid) {
		t.Fatalf("expected source-invalid error for expired url, got %v", err)
	}
}

func TestRelocateServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	assets := newMemAssets()
	reloc, _ := newTestRelocator(t, assets, srv.Client())

	_, err := reloc.Relocate(context.Background(), Source{URL: srv.URL}, "task-5", "m-1", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrSourceInvalid) {
		t.Fatalf("5xx must stay retryable, got %v", err)
	}
}

func TestRelocateEmptySourceIsUnrecoverable(t *testing.T) {
	assets := newMemAssets()
	reloc, _ := newTestRelocator(t, assets, nil)

	_, err := reloc.Relocate(context.Background(), Source{}, "task-6", "m-1", 0)
	if !errors.Is(err, ErrSourceInvalid) {
		t.Fatalf("expected source-invalid error, got %v", err)
	}
}
