package postclient

import "instacap/internal/domain"

// DenyReason explains a Usage Gate rejection.
type DenyReason string

const (
	ReasonNotAuthenticated DenyReason = "NOT_AUTHENTICATED"
	ReasonQuotaExceeded    DenyReason = "QUOTA_EXCEEDED"
)

// Decision is the Usage Gate's verdict for one generation attempt.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Admit decides whether a generation attempt may spend a call. Pure
// function, no I/O: authentication is checked first, quota second. A quota
// denial is the caller's cue to surface the upgrade path, never to retry.
func Admit(authenticated bool, e domain.Entitlement) Decision {
	if !authenticated {
		return Decision{Reason: ReasonNotAuthenticated}
	}
	if !e.CanGenerate() {
		return Decision{Reason: ReasonQuotaExceeded}
	}
	return Decision{Allowed: true}
}
