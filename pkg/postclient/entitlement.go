package postclient

import (
	"sync"
	"time"

	"instacap/internal/domain"
)

// EntitlementStore is the single source of local truth for plan and usage.
// It is only ever advanced by the Reconciler with a server-authoritative
// snapshot; there is no increment operation, so local state can never drift
// ahead of the backend.
type EntitlementStore struct {
	mu          sync.RWMutex
	entitlement domain.Entitlement
	appliedSeq  uint64
}

// NewEntitlementStore starts from the free-plan default used before the
// first reconciliation.
func NewEntitlementStore() *EntitlementStore {
	return &EntitlementStore{
		entitlement: domain.Entitlement{
			Plan:    domain.PlanFree,
			ResetAt: domain.NextReset(time.Now()),
		},
	}
}

// Get returns the current snapshot. Never blocks on I/O.
func (s *EntitlementStore) Get() domain.Entitlement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entitlement
}

// CanGenerate reports whether the local snapshot still has allowance left.
func (s *EntitlementStore) CanGenerate() bool {
	return s.Get().CanGenerate()
}

// Replace overwrites the snapshot unconditionally. Total overwrite, no merge:
// the server snapshot always supersedes whatever is cached.
func (s *EntitlementStore) Replace(e domain.Entitlement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entitlement = e
}

// replaceIfNewer applies the snapshot only when seq is newer than the last
// applied one; the Reconciler uses this to drop stale out-of-order writes.
func (s *EntitlementStore) replaceIfNewer(seq uint64, e domain.Entitlement) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.appliedSeq {
		return false
	}
	s.appliedSeq = seq
	s.entitlement = e
	return true
}
