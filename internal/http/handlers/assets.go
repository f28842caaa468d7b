package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	ziputil "server/pkg/zip"
)

func (a *App) ListAssets(w http.ResponseWriter, r *http.Request) {
	merchantID := a.currentMerchantID(r)
	if merchantID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing merchant context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	assets, err := a.Assets.ListByMerchant(r.Context(), merchantID, limit, offset)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	now := time.Now().UTC()
	items := make([]map[string]any, 0, len(assets))
	for _, asset := range assets {
		items = append(items, a.assetItem(asset, now))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) assetItem(asset domain.GeneratedAsset, now time.Time) map[string]any {
	item := map[string]any{
		"id":                asset.ID,
		"generation_id":     asset.TaskID,
		"storage_key":       asset.StorageKey,
		"url":               a.Store.PublicURL(asset.StorageKey),
		"mime":              asset.MIME,
		"bytes":             asset.Bytes,
		"duration_seconds":  asset.DurationSeconds,
		"days_until_expiry": asset.DaysUntilExpiry(now),
		"created_at":        asset.CreatedAt,
	}
	if !asset.ExpiresAt.IsZero() {
		item["expires_at"] = asset.ExpiresAt
	}
	return item
}

func (a *App) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	merchantID := a.currentMerchantID(r)
	if merchantID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing merchant context")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "asset id required")
		return
	}
	asset, err := a.Assets.GetForMerchant(r.Context(), id, merchantID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	data, err := a.Store.Read(r.Context(), asset.StorageKey)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "asset bytes are no longer available")
		return
	}
	w.Header().Set("Content-Type", asset.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(asset.StorageKey)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ArchiveAssets bundles the merchant's newest assets into a single zip
// download. Assets whose bytes have already been reaped are skipped.
func (a *App) ArchiveAssets(w http.ResponseWriter, r *http.Request) {
	merchantID := a.currentMerchantID(r)
	if merchantID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing merchant context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	assets, err := a.Assets.ListByMerchant(r.Context(), merchantID, limit, 0)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	var entries []ziputil.Asset
	for _, asset := range assets {
		data, err := a.Store.Read(r.Context(), asset.StorageKey)
		if err != nil {
			continue
		}
		entries = append(entries, ziputil.Asset{
			Filename: path.Base(asset.StorageKey),
			MIME:     asset.MIME,
			Data:     data,
		})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no downloadable assets")
		return
	}
	archive, err := ziputil.ArchiveAssets(entries)
	if err != nil {
		a.Logger.Error().Err(err).
			Str("merchant_id", merchantID).
			Msg("handler: building asset archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="videos.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
