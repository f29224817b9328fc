package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"instacap/internal/domain"
	"instacap/internal/infra"
	"instacap/internal/infra/google"
	"instacap/internal/middleware"
	"instacap/internal/providers/language"
	"instacap/internal/providers/vision"
	"instacap/internal/sqlinline"
)

// IDTokenVerifier validates a Google ID token and returns its claims.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, raw string) (*google.IDClaims, error)
}

// Annotator extracts an analysis bag from image bytes.
type Annotator interface {
	Annotate(ctx context.Context, image []byte) (*vision.Analysis, error)
}

// Generator produces post content from an analysis plus options.
type Generator interface {
	GeneratePost(ctx context.Context, req language.CaptionRequest) (*domain.PostContent, error)
}

// App is the handler container; everything it needs is injected.
type App struct {
	Config   *infra.Config
	Logger   zerolog.Logger
	SQL      infra.SQLExecutor
	Google   IDTokenVerifier
	Vision   Annotator
	Language Generator
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error     errorBody      `json:"error"`
	Quota     *quotaPayload  `json:"quota,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// quotaPayload is the structured body attached to quota rejections.
type quotaPayload struct {
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
	Plan  string `json:"plan"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	a.json(w, status, errorEnvelope{
		Error:     errorBody{Code: code, Message: message},
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

func (a *App) quotaError(w http.ResponseWriter, r *http.Request, e domain.Entitlement) {
	a.json(w, http.StatusForbidden, errorEnvelope{
		Error:     errorBody{Code: "quota_exceeded", Message: "monthly post quota exceeded"},
		Quota:     &quotaPayload{Used: e.PostsUsed, Limit: e.PostsLimit(), Plan: string(e.Plan)},
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// loadUser reads one account, with the monthly counter already rolled over
// when the period has elapsed.
func (a *App) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	row := a.SQL.QueryRow(ctx, sqlinline.QSelectUserByID, userID)
	var u domain.User
	var plan string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Picture, &plan, &u.PostsThisMonth, &u.PeriodResetAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u.Plan = domain.Plan(plan)
	return &u, nil
}

// userDTO is the wire shape of an account, entitlement included. The field
// names are part of the extension contract.
type userDTO struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	Picture        string    `json:"picture,omitempty"`
	Plan           string    `json:"plan"`
	PostsThisMonth int       `json:"postsThisMonth"`
	PostsLimit     int       `json:"postsLimit"`
	ResetDate      time.Time `json:"resetDate"`
}

func planLimitFor(plan string) int {
	return domain.PlanLimit(domain.Plan(plan))
}

func userToDTO(u *domain.User) userDTO {
	return userDTO{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Picture:        u.Picture,
		Plan:           string(u.Plan),
		PostsThisMonth: u.PostsThisMonth,
		PostsLimit:     domain.PlanLimit(u.Plan),
		ResetDate:      u.PeriodResetAt,
	}
}
