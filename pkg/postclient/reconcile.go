package postclient

import (
	"sync/atomic"

	"instacap/internal/domain"
)

// Reconciler merges server-returned entitlement data into the local store
// after each remote call. Snapshots are stamped with a monotonically
// increasing sequence as they arrive, so when responses complete out of
// order the last arrival wins and the stale one is dropped rather than
// clobbering fresher data.
type Reconciler struct {
	store    *EntitlementStore
	arrivals atomic.Uint64
}

func NewReconciler(store *EntitlementStore) *Reconciler {
	return &Reconciler{store: store}
}

// Apply overwrites the local store with an authoritative snapshot. Returns
// false when a concurrent, later-arriving snapshot was already applied.
func (r *Reconciler) Apply(e domain.Entitlement) bool {
	seq := r.arrivals.Add(1)
	return r.store.replaceIfNewer(seq, e)
}
