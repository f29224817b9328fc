package postclient

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instacap/internal/domain"
)

func TestOrchestratorRejectsEmptyImage(t *testing.T) {
	backend := &fakeBackend{plan: "free"}
	h := newHarness(t, backend, true, nil, nil)

	_, err := h.orch.Generate(context.Background(), "", domain.PostOptions{})
	assert.ErrorIs(t, err, domain.ErrNoImage)
	assert.Zero(t, backend.generateCalls)
}

func TestOrchestratorRejectsOversizedImage(t *testing.T) {
	backend := &fakeBackend{plan: "free"}
	h := newHarness(t, backend, true, nil, nil)

	huge := make([]byte, domain.MaxImageBytes*4/3+8)
	for i := range huge {
		huge[i] = 'A'
	}
	_, err := h.orch.Generate(context.Background(), string(huge), domain.PostOptions{})
	assert.ErrorIs(t, err, domain.ErrImageTooLarge)
	assert.Zero(t, backend.generateCalls)
}

func TestOrchestratorDeniesLoggedOut(t *testing.T) {
	backend := &fakeBackend{plan: "free"}
	h := newHarness(t, backend, false, nil, nil)

	_, err := h.orch.Generate(context.Background(), pngImageData(128), domain.PostOptions{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Zero(t, backend.generateCalls, "a logged-out attempt must not reach the network")
}

func TestOrchestratorDeniesLocallyExhaustedQuota(t *testing.T) {
	backend := &fakeBackend{plan: "free", posts: 5}
	h := newHarness(t, backend, true, nil, nil)
	h.rec.Apply(domain.Entitlement{Plan: domain.PlanFree, PostsUsed: 5})

	_, err := h.orch.Generate(context.Background(), pngImageData(128), domain.PostOptions{})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Zero(t, backend.generateCalls, "a locally visible quota rejection must not reach the network")
}

func TestOrchestratorSuccessReconcilesCounter(t *testing.T) {
	backend := &fakeBackend{plan: "free", posts: 3}
	h := newHarness(t, backend, true, nil, nil)
	h.rec.Apply(domain.Entitlement{Plan: domain.PlanFree, PostsUsed: 3})

	content, err := h.orch.Generate(context.Background(), pngImageData(128), domain.PostOptions{PostType: "travel"})
	require.NoError(t, err)
	assert.Equal(t, "Remote caption", content.Caption)
	assert.Equal(t, 4, h.store.Get().PostsUsed, "local counter must adopt the server's count")
	assert.Equal(t, 1, backend.generateCalls)
}

func TestOrchestratorServerQuotaOverridesLocalSnapshot(t *testing.T) {
	// Local snapshot thinks there is allowance left; the server disagrees.
	backend := &fakeBackend{plan: "free", posts: 5}
	h := newHarness(t, backend, true, nil, nil)
	h.rec.Apply(domain.Entitlement{Plan: domain.PlanFree, PostsUsed: 2})

	_, err := h.orch.Generate(context.Background(), pngImageData(128), domain.PostOptions{})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, 5, h.store.Get().PostsUsed, "rejection must re-sync the local counter")

	// The next attempt is denied locally, without a round trip.
	before := backend.generateCalls
	_, err = h.orch.Generate(context.Background(), pngImageData(128), domain.PostOptions{})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, before, backend.generateCalls)
}

func TestOrchestratorUnauthorizedLogsOut(t *testing.T) {
	backend := &fakeBackend{plan: "free", generateFail: http.StatusUnauthorized}
	h := newHarness(t, backend, true, nil, nil)

	_, err := h.orch.Generate(context.Background(), pngImageData(128), domain.PostOptions{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, StateLoggedOut, h.session.State())
}

func TestOrchestratorFallsBackWhenBackendErrors(t *testing.T) {
	backend := &fakeBackend{plan: "free", posts: 2, generateFail: http.StatusBadGateway}
	v := &directVision{}
	l := &directLanguage{}
	h := newHarness(t, backend, true, v, l)
	h.rec.Apply(domain.Entitlement{Plan: domain.PlanFree, PostsUsed: 2})

	content, err := h.orch.Generate(context.Background(), pngImageData(128), domain.PostOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Fallback caption", content.Caption)
	assert.Equal(t, 1, v.calls)
	assert.Equal(t, 1, l.calls)
	assert.Equal(t, 2, h.store.Get().PostsUsed, "fallback generations are unmetered")
}

func TestOrchestratorFallbackSharesResultShape(t *testing.T) {
	backend := &fakeBackend{plan: "free", posts: 0, generateFail: http.StatusBadGateway}
	h := newHarness(t, backend, true, &directVision{}, &directLanguage{})

	content, err := h.orch.Generate(context.Background(), pngImageData(128), domain.PostOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, content.Caption)
	assert.NotEmpty(t, content.Hashtags)
	assert.Len(t, content.Suggestions, 3)
}

func TestOrchestratorNoFallbackConfigured(t *testing.T) {
	backend := &fakeBackend{plan: "free", generateFail: http.StatusBadGateway}
	h := newHarness(t, backend, true, nil, nil)

	_, err := h.orch.Generate(context.Background(), pngImageData(128), domain.PostOptions{})
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
}

func TestOrchestratorFallbackFailureReportsBothErrors(t *testing.T) {
	backend := &fakeBackend{plan: "free", generateFail: http.StatusBadGateway}
	v := &directVision{err: domain.ErrProviderFailure}
	h := newHarness(t, backend, true, v, &directLanguage{})

	_, err := h.orch.Generate(context.Background(), pngImageData(128), domain.PostOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
	var statusErr *StatusError
	assert.ErrorAs(t, err, &statusErr)
}

func TestOrchestratorClientErrorDoesNotFallBack(t *testing.T) {
	backend := &fakeBackend{plan: "free", generateFail: http.StatusUnsupportedMediaType}
	v := &directVision{}
	h := newHarness(t, backend, true, v, &directLanguage{})

	_, err := h.orch.Generate(context.Background(), pngImageData(128), domain.PostOptions{})
	require.Error(t, err)
	assert.Zero(t, v.calls, "a payload the backend rejected must not be retried against the providers")
}

func TestOrchestratorRefreshEntitlement(t *testing.T) {
	backend := &fakeBackend{plan: "pro", posts: 17}
	h := newHarness(t, backend, true, nil, nil)

	e, err := h.orch.RefreshEntitlement(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, e.Plan)
	assert.Equal(t, 17, e.PostsUsed)
}

func TestOrchestratorRefreshLoggedOut(t *testing.T) {
	backend := &fakeBackend{plan: "free"}
	h := newHarness(t, backend, false, nil, nil)

	_, err := h.orch.RefreshEntitlement(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
