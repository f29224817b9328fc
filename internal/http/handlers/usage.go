package handlers

import (
	"net/http"
	"time"
)

type usageResponse struct {
	Plan       string    `json:"plan"`
	IsPro      bool      `json:"isPro"`
	PostsUsed  int       `json:"postsUsed"`
	PostsLimit int       `json:"postsLimit"`
	ResetDate  time.Time `json:"resetDate"`
}

// Usage returns the authoritative entitlement snapshot for the caller.
func (a *App) Usage(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	user, err := a.loadUser(r.Context(), userID)
	if err != nil {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "unknown user")
		return
	}
	e := user.Entitlement()
	a.json(w, http.StatusOK, usageResponse{
		Plan:       string(e.Plan),
		IsPro:      e.IsPro(),
		PostsUsed:  e.PostsUsed,
		PostsLimit: e.PostsLimit(),
		ResetDate:  e.ResetAt,
	})
}
