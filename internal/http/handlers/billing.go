package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"instacap/internal/domain"
	"instacap/internal/sqlinline"
)

const billingSignatureHeader = "X-Billing-Signature"

// billingEvent is the payment processor's webhook payload, reduced to the
// fields that drive plan transitions.
type billingEvent struct {
	Type          string `json:"type"`
	CustomerEmail string `json:"customer_email"`
}

// BillingWebhook applies plan-change events from the payment processor.
// A completed checkout upgrades the account to pro; a deleted subscription
// drops it back to free. The usage counter is untouched either way; only
// the limit implied by the plan changes.
func (a *App) BillingWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "unreadable payload")
		return
	}
	if !verifyBillingSignature(payload, r.Header.Get(billingSignatureHeader), a.Config.BillingWebhookSecret) {
		a.error(w, r, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
		return
	}

	var event billingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(event.CustomerEmail) == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "customer_email required")
		return
	}

	var plan domain.Plan
	switch event.Type {
	case "checkout.session.completed", "invoice.payment_succeeded":
		plan = domain.PlanPro
	case "customer.subscription.deleted":
		plan = domain.PlanFree
	default:
		a.Logger.Info().Str("type", event.Type).Msg("unhandled billing event")
		a.json(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	row := a.SQL.QueryRow(r.Context(), sqlinline.QUpdatePlanByEmail, event.CustomerEmail, string(plan))
	var userID string
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Payment for an email we have never seen; acknowledge so the
			// processor stops retrying.
			a.Logger.Warn().Str("email", event.CustomerEmail).Msg("billing event for unknown account")
			a.json(w, http.StatusOK, map[string]any{"received": true})
			return
		}
		a.Logger.Error().Err(err).Msg("plan update failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to apply plan change")
		return
	}

	a.Logger.Info().Str("user_id", userID).Str("plan", string(plan)).Msg("plan updated")
	a.json(w, http.StatusOK, map[string]any{"received": true})
}

// verifyBillingSignature checks the hex HMAC-SHA256 of the raw body.
func verifyBillingSignature(payload []byte, signatureHeader, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret = strings.TrimSpace(secret)
	if sig == "" || secret == "" {
		return false
	}
	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}
