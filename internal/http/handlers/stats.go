package handlers

import "net/http"

func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Generations.Stats(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"total_generations": stats.Total,
		"completed":         stats.Completed,
		"failed":            stats.Failed,
		"refunded":          stats.Refunded,
		"success_rate":      stats.SuccessRate,
	})
}
