package handlers

import "net/http"

type creditsResponse struct {
	Credits int64 `json:"credits"`
}

func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if a.Credits == nil {
		a.error(w, http.StatusServiceUnavailable, "configuration_missing", "credits are not configured")
		return
	}
	balance, err := a.Credits.Balance(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, creditsResponse{Credits: balance})
}
