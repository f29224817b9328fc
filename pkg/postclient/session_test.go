package postclient

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instacap/internal/domain"
)

type cannedAuthFlow struct {
	token string
	err   error
}

func (f *cannedAuthFlow) FetchIDToken(ctx context.Context) (string, error) {
	return f.token, f.err
}

func TestSessionRestoreFromStorage(t *testing.T) {
	h := newHarness(t, &fakeBackend{plan: "pro", posts: 7}, true, nil, nil)
	assert.Equal(t, StateLoggedIn, h.session.State())
	assert.Equal(t, "session-token", h.session.Token())
}

func TestSessionStartsLoggedOut(t *testing.T) {
	h := newHarness(t, &fakeBackend{plan: "free"}, false, nil, nil)
	assert.Equal(t, StateLoggedOut, h.session.State())
	assert.False(t, h.session.Authenticated())
}

func TestSessionValidateKeepsGoodToken(t *testing.T) {
	h := newHarness(t, &fakeBackend{plan: "pro", posts: 7}, true, nil, nil)

	require.NoError(t, h.session.Validate(context.Background()))
	assert.Equal(t, StateLoggedIn, h.session.State())
	assert.Equal(t, domain.PlanPro, h.store.Get().Plan)
	assert.Equal(t, 7, h.store.Get().PostsUsed)
}

func TestSessionValidateRejectionLogsOut(t *testing.T) {
	h := newHarness(t, &fakeBackend{plan: "free", verifyStatus: http.StatusUnauthorized}, true, nil, nil)

	err := h.session.Validate(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, StateLoggedOut, h.session.State())
	assert.Empty(t, h.session.Token())
	_, ok := h.storage.Get(storageTokenKey)
	assert.False(t, ok, "token must be wiped from storage")
}

func TestSessionValidateRejectionLeavesEntitlementUntouched(t *testing.T) {
	h := newHarness(t, &fakeBackend{plan: "pro", posts: 10, verifyStatus: http.StatusForbidden}, true, nil, nil)
	h.rec.Apply(domain.Entitlement{Plan: domain.PlanPro, PostsUsed: 10})

	err := h.session.Validate(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, StateLoggedOut, h.session.State())

	// The snapshot stays stale; the auth gate makes it unreachable anyway.
	assert.Equal(t, domain.PlanPro, h.store.Get().Plan)
	assert.Equal(t, 10, h.store.Get().PostsUsed)
}

func TestSessionValidateNetworkFailureKeepsSession(t *testing.T) {
	h := newHarness(t, &fakeBackend{plan: "pro", posts: 3}, true, nil, nil)
	h.rec.Apply(domain.Entitlement{Plan: domain.PlanPro, PostsUsed: 3})

	// Kill the backend so the validation request fails at the transport.
	h.server.Close()

	err := h.session.Validate(context.Background())
	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr), "transport failure must not look like a rejection")

	assert.Equal(t, StateLoggedIn, h.session.State())
	assert.Equal(t, "session-token", h.session.Token())
	assert.Equal(t, 3, h.store.Get().PostsUsed, "entitlement must survive an unreachable backend")
}

func TestSessionLoginHappyPath(t *testing.T) {
	backend := &fakeBackend{plan: "free", posts: 2}
	h := newHarness(t, backend, false, nil, nil)

	profile, err := h.session.Login(context.Background(), &cannedAuthFlow{token: "google-id-token"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", profile.Email)
	assert.Equal(t, StateLoggedIn, h.session.State())
	assert.Equal(t, "fresh-token", h.session.Token())

	stored, ok := h.storage.Get(storageTokenKey)
	require.True(t, ok)
	assert.Equal(t, "fresh-token", stored)
	assert.Equal(t, 2, h.store.Get().PostsUsed)
}

func TestSessionLoginFlowFailure(t *testing.T) {
	h := newHarness(t, &fakeBackend{plan: "free"}, false, nil, nil)

	_, err := h.session.Login(context.Background(), &cannedAuthFlow{err: errors.New("user closed the popup")})
	require.Error(t, err)
	assert.Equal(t, StateLoggedOut, h.session.State())
	assert.Empty(t, h.session.Token())
}

func TestSessionLogoutAlwaysSucceeds(t *testing.T) {
	h := newHarness(t, &fakeBackend{plan: "pro", posts: 10}, true, nil, nil)
	h.rec.Apply(domain.Entitlement{Plan: domain.PlanPro, PostsUsed: 10})

	// Even with the backend gone, logout completes locally.
	h.server.Close()
	h.session.Logout()

	assert.Equal(t, StateLoggedOut, h.session.State())
	assert.Empty(t, h.session.Token())
	assert.Nil(t, h.session.Profile())
	_, ok := h.storage.Get(storageUserKey)
	assert.False(t, ok, "profile must be wiped from storage")
	assert.Equal(t, domain.PlanPro, h.store.Get().Plan, "logout does not touch the entitlement snapshot")
	assert.Equal(t, 10, h.store.Get().PostsUsed)
}
