package domain

// ReconciliationState is the per-shop memory between poll cycles: the last
// good snapshot plus the id sets change detection is keyed on. It lives for
// the shop's monitoring session and is discarded when the shop is removed.
type ReconciliationState struct {
	LastSnapshot       *ShopSnapshot
	SeenTransactionIDs map[int64]struct{}
	SeenReviewIDs      map[int64]struct{}
	AlertedLowStockIDs map[int64]struct{}
}

// NewReconciliationState returns an empty state; the first reconciliation
// against it establishes the baseline without emitting events.
func NewReconciliationState() *ReconciliationState {
	return &ReconciliationState{
		SeenTransactionIDs: make(map[int64]struct{}),
		SeenReviewIDs:      make(map[int64]struct{}),
		AlertedLowStockIDs: make(map[int64]struct{}),
	}
}
