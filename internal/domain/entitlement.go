package domain

import "time"

// Plan enumerates billing plans.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Monthly post allowances per plan.
const (
	FreeMonthlyPosts = 5
	ProMonthlyPosts  = 50
)

// PlanLimit returns the monthly post allowance for a plan. The limit is
// always derived from the plan, never stored next to it, so the two cannot
// drift apart.
func PlanLimit(p Plan) int {
	if p == PlanPro {
		return ProMonthlyPosts
	}
	return FreeMonthlyPosts
}

// Entitlement is an account's plan tier plus its usage counter for the
// current monthly period.
type Entitlement struct {
	Plan      Plan      `json:"plan"`
	PostsUsed int       `json:"postsUsed"`
	ResetAt   time.Time `json:"resetDate"`
}

// PostsLimit returns the cap implied by the plan.
func (e Entitlement) PostsLimit() int { return PlanLimit(e.Plan) }

// CanGenerate reports whether one more generation fits under the cap.
func (e Entitlement) CanGenerate() bool { return e.PostsUsed < e.PostsLimit() }

// IsPro reports whether the entitlement is on the paid plan.
func (e Entitlement) IsPro() bool { return e.Plan == PlanPro }

// NextReset returns the first instant of the month after t, when the usage
// counter rolls over to zero.
func NextReset(t time.Time) time.Time {
	year, month, _ := t.UTC().Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
