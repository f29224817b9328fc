package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"instacap/internal/middleware"
)

func TestAnalyticsBatchStoresEvents(t *testing.T) {
	db := newFakeDB("free", 0)
	app := newTestApp(db, &stubVision{}, &stubLanguage{})

	body := strings.NewReader(`{"events":[
		{"type":"POPUP_OPENED","success":true,"latencyMs":12},
		{"type":"","success":true},
		{"type":"GENERATE_CLICKED","success":false,"latencyMs":840,"properties":{"postType":"travel"}}
	]}`)
	r := httptest.NewRequest(http.MethodPost, "/api/analytics/batch", body)
	r = r.WithContext(middleware.ContextWithUser(r.Context(), db.account.ID, db.account.Email))
	w := httptest.NewRecorder()
	app.AnalyticsBatch(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Success   bool `json:"success"`
		Processed int  `json:"processed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Processed != 2 {
		t.Fatalf("resp = %+v, want 2 processed (empty type skipped)", resp)
	}
	if db.eventCount() != 2 {
		t.Fatalf("stored events = %d, want 2", db.eventCount())
	}
}

func TestAnalyticsBatchRequiresAuth(t *testing.T) {
	db := newFakeDB("free", 0)
	app := newTestApp(db, &stubVision{}, &stubLanguage{})

	r := httptest.NewRequest(http.MethodPost, "/api/analytics/batch", strings.NewReader(`{"events":[]}`))
	w := httptest.NewRecorder()
	app.AnalyticsBatch(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
