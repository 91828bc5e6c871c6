package application

import (
	"etsy-sync-core/internal/domain"
)

// Reconcile diffs a freshly fetched snapshot against the per-shop state and
// returns the change events, in snapshot order: new transactions first, then
// new reviews, then low-stock alerts. The state is updated in place.
//
// The first snapshot for a shop establishes the baseline: everything present
// is marked seen and no events are emitted. Low-stock alerts are
// edge-triggered; a listing below the threshold alerts once and re-arms only
// after its quantity recovers to the threshold or above.
func Reconcile(state *domain.ReconciliationState, snapshot *domain.ShopSnapshot, threshold int) []domain.Event {
	baseline := state.LastSnapshot == nil

	var events []domain.Event

	for i := range snapshot.Transactions {
		tx := snapshot.Transactions[i]
		if _, seen := state.SeenTransactionIDs[tx.TransactionID]; seen {
			continue
		}
		state.SeenTransactionIDs[tx.TransactionID] = struct{}{}
		if !baseline {
			events = append(events, domain.NewOrderEvent(snapshot.ShopID, tx, snapshot.FetchedAt))
		}
	}

	for i := range snapshot.Reviews {
		review := snapshot.Reviews[i]
		if _, seen := state.SeenReviewIDs[review.ReviewID]; seen {
			continue
		}
		state.SeenReviewIDs[review.ReviewID] = struct{}{}
		if !baseline {
			events = append(events, domain.NewReviewEvent(snapshot.ShopID, review, snapshot.FetchedAt))
		}
	}

	for i := range snapshot.Listings {
		listing := snapshot.Listings[i]
		if listing.Quantity < threshold {
			if _, alerted := state.AlertedLowStockIDs[listing.ListingID]; alerted {
				continue
			}
			state.AlertedLowStockIDs[listing.ListingID] = struct{}{}
			if !baseline {
				events = append(events, domain.NewLowStockEvent(snapshot.ShopID, listing, threshold, snapshot.FetchedAt))
			}
		} else {
			// Quantity recovered, re-arm the alert.
			delete(state.AlertedLowStockIDs, listing.ListingID)
		}
	}

	state.LastSnapshot = snapshot
	return events
}
