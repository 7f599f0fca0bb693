package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Listing lifecycle is monotonic: active -> sold or active -> removed.
// Both end states are terminal; there is no re-activation.
var listingTransitions = map[string]map[string]struct{}{
	domain.ListingStatusActive: {
		domain.ListingStatusSold:    {},
		domain.ListingStatusRemoved: {},
	},
	domain.ListingStatusSold:    {},
	domain.ListingStatusRemoved: {},
}

func normalizeListingStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func canTransitionListing(current, next string) bool {
	current = normalizeListingStatus(current)
	next = normalizeListingStatus(next)
	nextStates, ok := listingTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// transitionListing moves a listing to its next status inside the caller's
// transaction. The status predicate in the UPDATE is the compare-and-swap
// that guarantees at most one caller wins even if lock discipline slips.
func transitionListing(ctx context.Context, tx pgx.Tx, audit *AuditService, listingID int64, current, next string, buyerID, actorID *int64) error {
	if !canTransitionListing(current, next) {
		return fmt.Errorf("invalid listing state transition: %s -> %s", current, next)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE listings
		SET status = $1, buyer_id = COALESCE($2, buyer_id), updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		next, buyerID, listingID, current)
	if err != nil {
		return fmt.Errorf("update listing state: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update listing state affected %d rows", tag.RowsAffected())
	}

	return audit.Write(ctx, tx, "listing", fmt.Sprintf("%d", listingID), actorID,
		"listing."+next, current, next, nil)
}
