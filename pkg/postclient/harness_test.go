package postclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"instacap/internal/domain"
	"instacap/internal/providers/language"
	"instacap/internal/providers/vision"
)

// fakeBackend simulates the API with one account and the real charge
// semantics: generations increment the counter until the plan cap.
type fakeBackend struct {
	mu            sync.Mutex
	plan          string
	posts         int
	verifyStatus  int // 0 means accept
	generateFail  int // non-zero forces this status on generate
	verifyCalls   int
	generateCalls int
}

func (b *fakeBackend) profile() map[string]any {
	return map[string]any{
		"id":             "user-1",
		"email":          "ana@example.com",
		"plan":           b.plan,
		"postsThisMonth": b.posts,
		"postsLimit":     domain.PlanLimit(domain.Plan(b.plan)),
		"resetDate":      domain.NextReset(time.Now()),
	}
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/api/auth/google", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		var req struct {
			IDToken string `json:"id_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"code": "bad_request", "message": "id_token required"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": "fresh-token", "user": b.profile()})
	})
	mux.HandleFunc("/api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.verifyCalls++
		if b.verifyStatus != 0 {
			writeJSON(w, b.verifyStatus, map[string]any{"error": map[string]string{"code": "unauthorized", "message": "token rejected"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": b.profile()})
	})
	mux.HandleFunc("/api/user/me", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"user": b.profile()})
	})
	mux.HandleFunc("/api/generate-post", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.generateCalls++
		if b.generateFail != 0 {
			writeJSON(w, b.generateFail, map[string]any{"error": map[string]string{"code": "provider_error", "message": "upstream failed"}})
			return
		}
		limit := domain.PlanLimit(domain.Plan(b.plan))
		if b.posts >= limit {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"error": map[string]string{"code": "quota_exceeded", "message": "monthly post quota exceeded"},
				"quota": map[string]any{"used": b.posts, "limit": limit, "plan": b.plan},
			})
			return
		}
		b.posts++
		writeJSON(w, http.StatusOK, map[string]any{
			"content": map[string]any{
				"caption":     "Remote caption",
				"hashtags":    []string{"remote"},
				"suggestions": []string{"a", "b", "c"},
			},
			"user": b.profile(),
		})
	})
	return mux
}

type harness struct {
	backend *fakeBackend
	server  *httptest.Server
	storage *MemoryStorage
	store   *EntitlementStore
	rec     *Reconciler
	session *SessionManager
	orch    *Orchestrator
}

func newHarness(t *testing.T, backend *fakeBackend, loggedIn bool, v Annotator, l Generator) *harness {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	api, err := NewClient(ClientOptions{BaseURL: server.URL, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	storage := NewMemoryStorage()
	if loggedIn {
		_ = storage.Set(storageTokenKey, "session-token")
	}
	store := NewEntitlementStore()
	rec := NewReconciler(store)
	session := NewSessionManager(api, storage, rec, zerolog.Nop())
	orch := NewOrchestrator(OrchestratorOptions{
		API:      api,
		Session:  session,
		Store:    store,
		Rec:      rec,
		Vision:   v,
		Language: l,
		Logger:   zerolog.Nop(),
	})
	return &harness{
		backend: backend,
		server:  server,
		storage: storage,
		store:   store,
		rec:     rec,
		session: session,
		orch:    orch,
	}
}

func pngImageData(size int) string {
	sig := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	img := make([]byte, size)
	copy(img, sig)
	return base64.StdEncoding.EncodeToString(img)
}

type directVision struct {
	calls int
	err   error
}

func (d *directVision) Annotate(ctx context.Context, image []byte) (*vision.Analysis, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return &vision.Analysis{Labels: []string{"fallback"}}, nil
}

type directLanguage struct {
	calls int
	err   error
}

func (d *directLanguage) GeneratePost(ctx context.Context, req language.CaptionRequest) (*domain.PostContent, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return &domain.PostContent{
		Caption:     "Fallback caption",
		Hashtags:    []string{"fallback"},
		Suggestions: []string{"a", "b", "c"},
	}, nil
}
