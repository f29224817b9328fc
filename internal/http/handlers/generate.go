package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"instacap/internal/domain"
	"instacap/internal/middleware"
	"instacap/internal/providers/language"
	"instacap/internal/sqlinline"
)

type generateRequest struct {
	ImageData string             `json:"imageData"` // base64, optionally a data: URL
	Config    domain.PostOptions `json:"config"`
}

type generateResponse struct {
	Content *domain.PostContent `json:"content"`
	User    userDTO             `json:"user"`
}

// GeneratePost runs the authoritative generation pipeline:
// token check (middleware) -> quota check -> provider invoke -> conditional
// increment -> respond with content plus the updated entitlement.
//
// The increment happens after the providers succeed, so a failed generation
// never consumes quota. The increment itself re-checks the cap atomically;
// a concurrent request that wins the race leaves this one with a quota
// rejection instead of an overshoot.
func (a *App) GeneratePost(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	image, err := decodeImage(req.ImageData)
	switch {
	case errors.Is(err, domain.ErrNoImage):
		a.error(w, r, http.StatusBadRequest, "no_image", "imageData required")
		return
	case errors.Is(err, domain.ErrImageTooLarge):
		a.error(w, r, http.StatusRequestEntityTooLarge, "image_too_large", "image exceeds 10MB")
		return
	case errors.Is(err, domain.ErrUnsupportedImage):
		a.error(w, r, http.StatusUnsupportedMediaType, "unsupported_image", "only jpeg, png and webp are accepted")
		return
	case err != nil:
		a.error(w, r, http.StatusBadRequest, "bad_request", "imageData is not valid base64")
		return
	}

	locale := middleware.LocaleFromContext(r.Context())
	req.Config.Normalize(locale)

	user, err := a.loadUser(r.Context(), userID)
	if err != nil {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "unknown user")
		return
	}
	if !user.Entitlement().CanGenerate() {
		a.quotaError(w, r, user.Entitlement())
		return
	}

	started := time.Now()
	analysis, err := a.Vision.Annotate(r.Context(), image)
	if err != nil {
		a.Logger.Error().Err(err).Msg("vision provider failed")
		a.recordUsage(r, userID, "GENERATE", false, started)
		a.error(w, r, http.StatusBadGateway, "provider_error", "image analysis failed")
		return
	}
	content, err := a.Language.GeneratePost(r.Context(), language.CaptionRequest{
		Options:  req.Config,
		Analysis: *analysis,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("language provider failed")
		a.recordUsage(r, userID, "GENERATE", false, started)
		a.error(w, r, http.StatusBadGateway, "provider_error", "caption generation failed")
		return
	}

	row := a.SQL.QueryRow(r.Context(), sqlinline.QChargeGeneration,
		userID, domain.FreeMonthlyPosts, domain.ProMonthlyPosts)
	var plan string
	if err := row.Scan(&plan, &user.PostsThisMonth, &user.PeriodResetAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race against a concurrent request.
			a.quotaError(w, r, user.Entitlement())
			return
		}
		a.Logger.Error().Err(err).Msg("charge generation failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to record usage")
		return
	}
	user.Plan = domain.Plan(plan)

	a.recordUsage(r, userID, "GENERATE", true, started)
	a.json(w, http.StatusOK, generateResponse{Content: content, User: userToDTO(user)})
}

// decodeImage turns the request payload into raw image bytes, enforcing the
// 10MB cap and the jpeg/png/webp whitelist on the sniffed content type.
func decodeImage(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, domain.ErrNoImage
	}
	// The extension strips the data URL prefix before sending, but accept
	// the full form too.
	if strings.HasPrefix(data, "data:") {
		if idx := strings.Index(data, ","); idx >= 0 {
			data = data[idx+1:]
		}
	}
	// Pre-check before decoding: base64 inflates by 4/3.
	if len(data) > domain.MaxImageBytes*4/3+4 {
		return nil, domain.ErrImageTooLarge
	}
	image, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, domain.ErrNoImage
	}
	if len(image) > domain.MaxImageBytes {
		return nil, domain.ErrImageTooLarge
	}
	if !domain.SupportedImageType(sniffImageType(image)) {
		return nil, domain.ErrUnsupportedImage
	}
	return image, nil
}

// sniffImageType detects the actual image format from magic bytes;
// http.DetectContentType covers jpeg/png/webp.
func sniffImageType(image []byte) string {
	return http.DetectContentType(image)
}

func (a *App) recordUsage(r *http.Request, userID, eventType string, success bool, started time.Time) {
	props, _ := json.Marshal(map[string]any{
		"locale": middleware.LocaleFromContext(r.Context()),
	})
	a.insertUsageEvent(r, userID, eventType, success, int(time.Since(started).Milliseconds()), props)
}

func (a *App) insertUsageEvent(r *http.Request, userID, eventType string, success bool, latencyMS int, props []byte) {
	country := middleware.CountryFromContext(r.Context())
	_, err := a.SQL.Exec(r.Context(), sqlinline.QInsertUsageEvent,
		newEventID(), userID, eventType, success, latencyMS, country, props)
	if err != nil {
		a.Logger.Warn().Err(err).Str("event", eventType).Msg("usage event not recorded")
	}
}
