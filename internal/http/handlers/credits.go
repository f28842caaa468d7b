package handlers

import (
	"net/http"
	"time"
)

type creditsResponse struct {
	Balance               int `json:"balance"`
	RefundsIssuedToday    int `json:"refunds_issued_today"`
	RefundsRemainingToday int `json:"refunds_remaining_today"`
}

func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	merchantID := a.currentMerchantID(r)
	if merchantID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing merchant context")
		return
	}
	account, err := a.Ledger.Account(r.Context(), merchantID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	now := time.Now().UTC()
	a.json(w, http.StatusOK, creditsResponse{
		Balance:               account.Balance,
		RefundsIssuedToday:    account.RefundsIssuedToday,
		RefundsRemainingToday: account.RefundsRemainingToday(now),
	})
}
