package handlers

import (
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"timestamp":   time.Now().UTC(),
		"environment": a.Config.AppEnv,
	})
}
