package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"instacap/internal/middleware"
	"instacap/internal/sqlinline"
)

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

type googleLoginResponse struct {
	Token string  `json:"token"`
	User  userDTO `json:"user"`
}

// AuthGoogle verifies a Google ID token, upserts the account and mints the
// session token the extension stores.
func (a *App) AuthGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.IDToken == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "id_token required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	claims, err := a.Google.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("google token rejected")
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "invalid google token")
		return
	}

	row := a.SQL.QueryRow(r.Context(), sqlinline.QUpsertGoogleUser, claims.Subject, claims.Email, claims.Name, claims.Picture)
	var dto userDTO
	if err := row.Scan(&dto.ID, &dto.Email, &dto.Name, &dto.Picture, &dto.Plan, &dto.PostsThisMonth, &dto.ResetDate); err != nil {
		a.Logger.Error().Err(err).Msg("upsert user failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to persist user")
		return
	}
	dto.PostsLimit = planLimitFor(dto.Plan)

	token, err := middleware.SignSessionToken(a.Config.JWTSecret, dto.ID, dto.Email, dto.Plan, a.Config.JWTTTL)
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign session token failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}

	a.json(w, http.StatusOK, googleLoginResponse{Token: token, User: dto})
}

// AuthVerify is the token validation endpoint the client polls. A valid
// token returns the fresh profile; an invalid one never reaches here (the
// middleware answers 401).
func (a *App) AuthVerify(w http.ResponseWriter, r *http.Request) {
	a.respondWithUser(w, r)
}

// Me returns the authenticated profile, entitlement included.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	a.respondWithUser(w, r)
}

func (a *App) respondWithUser(w http.ResponseWriter, r *http.Request) {
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
	a.json(w, http.StatusOK, map[string]any{"user": userToDTO(user)})
}
