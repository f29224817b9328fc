package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type analyticsEvent struct {
	Type       string          `json:"type"`
	Success    bool            `json:"success"`
	LatencyMS  int             `json:"latencyMs"`
	Properties json.RawMessage `json:"properties"`
}

type analyticsBatchRequest struct {
	Events []analyticsEvent `json:"events"`
}

const maxAnalyticsBatch = 100

// AnalyticsBatch stores client-side events as usage_events rows. Best
// effort: a row that fails to insert is logged and skipped.
func (a *App) AnalyticsBatch(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req analyticsBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.Events) > maxAnalyticsBatch {
		req.Events = req.Events[:maxAnalyticsBatch]
	}
	processed := 0
	for _, event := range req.Events {
		if event.Type == "" {
			continue
		}
		a.insertUsageEvent(r, userID, event.Type, event.Success, event.LatencyMS, event.Properties)
		processed++
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "processed": processed})
}

func newEventID() string {
	return uuid.NewString()
}
