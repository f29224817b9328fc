package postclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"instacap/internal/domain"
)

// SessionState is the auth lifecycle of the extension.
type SessionState string

const (
	StateLoggedOut      SessionState = "LOGGED_OUT"
	StateAuthenticating SessionState = "AUTHENTICATING"
	StateLoggedIn       SessionState = "LOGGED_IN"
)

// revalidateInterval is how often a live session is re-checked against the
// backend.
const revalidateInterval = 30 * time.Minute

// AuthFlow obtains a Google ID token interactively; in the extension this is
// the chrome.identity popup, in tests a canned token.
type AuthFlow interface {
	FetchIDToken(ctx context.Context) (string, error)
}

// SessionManager owns the auth token and the logged-in profile. State
// transitions and storage writes happen under one lock, so observers never
// see a token without its profile or vice versa.
type SessionManager struct {
	api     *Client
	storage Storage
	rec     *Reconciler
	logger  zerolog.Logger

	mu      sync.RWMutex
	state   SessionState
	token   string
	profile *Profile
}

func NewSessionManager(api *Client, storage Storage, rec *Reconciler, logger zerolog.Logger) *SessionManager {
	m := &SessionManager{
		api:     api,
		storage: storage,
		rec:     rec,
		logger:  logger,
		state:   StateLoggedOut,
	}
	m.restore()
	return m
}

// restore rehydrates a previous session from storage. The token is trusted
// optimistically here; Validate confirms it on the next cycle.
func (m *SessionManager) restore() {
	token, ok := m.storage.Get(storageTokenKey)
	if !ok || token == "" {
		return
	}
	m.token = token
	m.state = StateLoggedIn
	if raw, ok := m.storage.Get(storageUserKey); ok {
		var p Profile
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			m.profile = &p
			m.rec.Apply(p.Entitlement())
		}
	}
}

// State returns the current lifecycle state.
func (m *SessionManager) State() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns the session token, empty when logged out.
func (m *SessionManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Profile returns the cached account profile, nil when logged out.
func (m *SessionManager) Profile() *Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile
}

// Authenticated reports whether a session token is held.
func (m *SessionManager) Authenticated() bool {
	return m.State() == StateLoggedIn
}

// Login runs the interactive flow and exchanges the resulting ID token for a
// backend session. Only one login may be in flight at a time.
func (m *SessionManager) Login(ctx context.Context, flow AuthFlow) (*Profile, error) {
	m.mu.Lock()
	if m.state == StateAuthenticating {
		m.mu.Unlock()
		return nil, errors.New("postclient: login already in progress")
	}
	m.state = StateAuthenticating
	m.mu.Unlock()

	idToken, err := flow.FetchIDToken(ctx)
	if err != nil {
		m.setLoggedOut()
		return nil, err
	}
	token, profile, err := m.api.ExchangeGoogleToken(ctx, idToken)
	if err != nil {
		m.setLoggedOut()
		return nil, err
	}

	m.adopt(token, profile)
	return profile, nil
}

// Logout clears the session. Purely local and infallible; the backend holds
// no revocable server-side session. The entitlement snapshot is left as is,
// stale but unreachable behind the auth gate until the next login's adopt
// reconciles a fresh one.
func (m *SessionManager) Logout() {
	m.mu.Lock()
	m.state = StateLoggedOut
	m.token = ""
	m.profile = nil
	m.mu.Unlock()

	_ = m.storage.Remove(storageTokenKey)
	_ = m.storage.Remove(storageUserKey)
}

// Validate confirms the stored token against the backend. A definitive
// rejection logs the session out; a transport failure leaves everything as
// it was, an unreachable backend is not evidence the token is bad.
func (m *SessionManager) Validate(ctx context.Context) error {
	token := m.Token()
	if token == "" {
		return nil
	}
	profile, err := m.api.VerifyToken(ctx, token)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			m.logger.Info().Int("status", statusErr.Status).Msg("session rejected, logging out")
			m.Logout()
			return domain.ErrUnauthorized
		}
		m.logger.Warn().Err(err).Msg("session validation unreachable, keeping session")
		return err
	}

	m.adopt(token, profile)
	return nil
}

// StartValidating revalidates the session on a fixed interval until ctx is
// done. Runs in its own goroutine.
func (m *SessionManager) StartValidating(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(revalidateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = m.Validate(ctx)
			}
		}
	}()
}

// adopt installs a confirmed session and feeds the fresh entitlement through
// the reconciler.
func (m *SessionManager) adopt(token string, profile *Profile) {
	m.mu.Lock()
	m.state = StateLoggedIn
	m.token = token
	m.profile = profile
	m.mu.Unlock()

	_ = m.storage.Set(storageTokenKey, token)
	if raw, err := json.Marshal(profile); err == nil {
		_ = m.storage.Set(storageUserKey, string(raw))
	}
	m.rec.Apply(profile.Entitlement())
}

func (m *SessionManager) setLoggedOut() {
	m.mu.Lock()
	m.state = StateLoggedOut
	m.mu.Unlock()
}
