package postclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"instacap/internal/domain"
)

func TestAdmit(t *testing.T) {
	cases := []struct {
		name          string
		authenticated bool
		entitlement   domain.Entitlement
		wantAllowed   bool
		wantReason    DenyReason
	}{
		{
			name:          "logged in with allowance",
			authenticated: true,
			entitlement:   domain.Entitlement{Plan: domain.PlanFree, PostsUsed: 2},
			wantAllowed:   true,
		},
		{
			name:          "logged out",
			authenticated: false,
			entitlement:   domain.Entitlement{Plan: domain.PlanFree, PostsUsed: 0},
			wantReason:    ReasonNotAuthenticated,
		},
		{
			name:          "logged out and over quota reports auth first",
			authenticated: false,
			entitlement:   domain.Entitlement{Plan: domain.PlanFree, PostsUsed: 5},
			wantReason:    ReasonNotAuthenticated,
		},
		{
			name:          "free quota spent",
			authenticated: true,
			entitlement:   domain.Entitlement{Plan: domain.PlanFree, PostsUsed: 5},
			wantReason:    ReasonQuotaExceeded,
		},
		{
			name:          "pro under its own cap",
			authenticated: true,
			entitlement:   domain.Entitlement{Plan: domain.PlanPro, PostsUsed: 5},
			wantAllowed:   true,
		},
		{
			name:          "pro quota spent",
			authenticated: true,
			entitlement:   domain.Entitlement{Plan: domain.PlanPro, PostsUsed: 50},
			wantReason:    ReasonQuotaExceeded,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Admit(tc.authenticated, tc.entitlement)
			assert.Equal(t, tc.wantAllowed, d.Allowed)
			assert.Equal(t, tc.wantReason, d.Reason)
		})
	}
}
