package domain

import "time"

// User represents an authenticated account within the platform.
type User struct {
	ID             string
	GoogleSub      string
	Email          string
	Name           string
	Picture        string
	Plan           Plan
	PostsThisMonth int
	PeriodResetAt  time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Entitlement derives the account's entitlement snapshot.
func (u User) Entitlement() Entitlement {
	return Entitlement{
		Plan:      u.Plan,
		PostsUsed: u.PostsThisMonth,
		ResetAt:   u.PeriodResetAt,
	}
}

// IsFree reports whether the user is on the free plan.
func (u User) IsFree() bool {
	return u.Plan == PlanFree
}
