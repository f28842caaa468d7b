package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/generation"
	"server/internal/middleware"
)

type generateRequest struct {
	SourceImageURL   string `json:"source_image_url"`
	Prompt           string `json:"prompt"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	AspectRatio      string `json:"aspect_ratio"`
	SkipQualityCheck bool   `json:"skip_quality_check"`
}

type generateResponse struct {
	GenerationID     string   `json:"generation_id"`
	Status           string   `json:"status"`
	ProviderTaskID   string   `json:"provider_task_id,omitempty"`
	EstimatedSeconds int      `json:"estimated_seconds,omitempty"`
	QualityVerdict   string   `json:"quality_verdict,omitempty"`
	QualityWarnings  []string `json:"quality_warnings,omitempty"`
}

func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	merchantID := a.currentMerchantID(r)
	if merchantID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing merchant context")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	result, err := a.Generations.Submit(r.Context(), generation.SubmitCommand{
		MerchantID:       merchantID,
		SourceImageURL:   req.SourceImageURL,
		Prompt:           req.Prompt,
		ProviderKind:     domain.ProviderKind(req.Provider),
		ModelVariant:     req.Model,
		AspectRatio:      req.AspectRatio,
		SkipQualityCheck: req.SkipQualityCheck,
	})
	if err != nil {
		if errors.Is(err, domain.ErrQualityStop) {
			body := map[string]any{"error": errorBody{
				Code:    "quality_stop",
				Message: "source image failed the quality check",
			}}
			if result != nil && result.Quality != nil {
				body["quality_verdict"] = string(result.Quality.Verdict)
				body["quality_warnings"] = result.Quality.Warnings
			}
			a.json(w, http.StatusUnprocessableEntity, body)
			return
		}
		a.domainError(w, r, err)
		return
	}

	a.json(w, http.StatusAccepted, generateResponse{
		GenerationID:     result.GenerationID,
		Status:           string(domain.TaskProcessing),
		ProviderTaskID:   result.ProviderTaskID,
		EstimatedSeconds: result.EstimatedSeconds,
		QualityVerdict:   string(result.Quality.Verdict),
		QualityWarnings:  result.Quality.Warnings,
	})
}

// GenerationStatus polls the provider for non-terminal tasks and serves
// terminal tasks from local state.
func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	merchantID := a.currentMerchantID(r)
	if merchantID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing merchant context")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "generation id required")
		return
	}
	view, err := a.Generations.Poll(r.Context(), id, merchantID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, view)
}

func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	merchantID := a.currentMerchantID(r)
	if merchantID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing merchant context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	views, err := a.Generations.List(r.Context(), merchantID, limit, offset)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": views})
}

type refundRequest struct {
	Reason string `json:"reason"`
}

type refundResponse struct {
	GenerationID          string `json:"generation_id"`
	Refunded              bool   `json:"refunded"`
	CreditsRefunded       int    `json:"credits_refunded"`
	NewBalance            int    `json:"new_balance"`
	RefundsRemainingToday int    `json:"refunds_remaining_today"`
}

func (a *App) RefundGeneration(w http.ResponseWriter, r *http.Request) {
	merchantID := a.currentMerchantID(r)
	if merchantID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing merchant context")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "generation id required")
		return
	}
	// The body is optional; a missing or malformed reason never blocks
	// the refund itself.
	var req refundRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	outcome, err := a.Generations.Refund(r.Context(), id, merchantID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	// Country and reason land in the audit trail for fraud review.
	a.Logger.Info().
		Str("merchant_id", merchantID).
		Str("generation_id", id).
		Str("country", middleware.CountryFromContext(r.Context())).
		Str("reason", strings.TrimSpace(req.Reason)).
		Msg("refund audit")
	a.json(w, http.StatusOK, refundResponse{
		GenerationID:          id,
		Refunded:              true,
		CreditsRefunded:       outcome.CreditsRefunded,
		NewBalance:            outcome.NewBalance,
		RefundsRemainingToday: outcome.RefundsRemainingToday,
	})
}
