package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/generation"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/storage"
)

// App is the handler container. Everything is injected so tests can run
// against in-memory implementations.
type App struct {
	Generations *generation.Service
	Ledger      domain.Ledger
	Assets      domain.AssetRepository
	Store       *storage.FileStore
	Logger      infra.Logger
}

func NewApp(generations *generation.Service, ledger domain.Ledger, assets domain.AssetRepository, store *storage.FileStore, logger infra.Logger) *App {
	return &App{
		Generations: generations,
		Ledger:      ledger,
		Assets:      assets,
		Store:       store,
		Logger:      logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// domainError maps the error taxonomy onto HTTP statuses. Unknown errors
// become opaque 500s so internals never leak to merchants.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing merchant context")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrInvalidPrompt):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrInsufficientCredit):
		a.error(w, http.StatusPaymentRequired, "insufficient_credit", "credit balance is too low for this generation")
	case errors.Is(err, domain.ErrDailyRefundCap):
		a.error(w, http.StatusTooManyRequests, "daily_refund_cap", "daily refund limit reached, try again tomorrow")
	case errors.Is(err, domain.ErrAlreadyRefunded):
		a.error(w, http.StatusConflict, "already_refunded", "this generation has already been refunded")
	case errors.Is(err, domain.ErrNotRefundable):
		a.error(w, http.StatusConflict, "not_refundable", "only finished generations can be refunded")
	case errors.Is(err, domain.ErrQualityStop):
		a.error(w, http.StatusUnprocessableEntity, "quality_stop", "source image failed the quality check")
	case errors.Is(err, domain.ErrContentPolicy):
		a.error(w, http.StatusUnprocessableEntity, "content_policy", err.Error())
	case errors.Is(err, domain.ErrProviderRejected):
		a.error(w, http.StatusUnprocessableEntity, "provider_rejected", err.Error())
	default:
		a.Logger.Error().Err(err).
			Str("path", r.URL.Path).
			Msg("handler: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func (a *App) currentMerchantID(r *http.Request) string {
	return middleware.MerchantIDFromContext(r.Context())
}
