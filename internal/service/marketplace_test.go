package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/models"
	"github.com/gbwallet/ledger/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMarketplace(db *pgxpool.Pool) *MarketplaceService {
	return NewMarketplaceService(repository.NewStore(db), repository.NewRepository(db), NewAuditService(), nil)
}

func TestCreateListing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestMarketplace(db)
	ctx := context.Background()

	seedUser(t, db, 1, "seller", 200_000_000, 0)

	listing, err := svc.Create(ctx, 1, "vintage keyboard", 50_000_000)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusActive, listing.Status)
	assert.Equal(t, int64(1), listing.SellerID)
	assert.Nil(t, listing.BuyerID)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, listing.ID, active[0].ID)
}

func TestCreateListing_Validation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestMarketplace(db)
	ctx := context.Background()

	seedUser(t, db, 1, "seller", 200_000_000, 0)

	_, err := svc.Create(ctx, 1, "thing", 0)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.Create(ctx, 1, "   ", 10_000_000)
	assert.ErrorIs(t, err, models.ErrInvalidListing)
}

func TestPurchase(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestMarketplace(db)
	ctx := context.Background()

	seedUser(t, db, 1, "seller", 200_000_000, 0)
	seedUser(t, db, 2, "buyer", 200_000_000, 0)

	listing, err := svc.Create(ctx, 1, "vintage keyboard", 50_000_000)
	require.NoError(t, err)

	result, err := svc.Purchase(ctx, listing.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusSold, result.Listing.Status)
	require.NotNil(t, result.Listing.BuyerID)
	assert.Equal(t, int64(2), *result.Listing.BuyerID)
	assert.Equal(t, domain.TxKindPurchase, result.Transfer.Kind)

	coins, _ := accountBalances(t, db, 1)
	assert.Equal(t, int64(250_000_000), coins)
	coins, _ = accountBalances(t, db, 2)
	assert.Equal(t, int64(150_000_000), coins)

	// Terminal: no second sale, no removal.
	_, err = svc.Purchase(ctx, listing.ID, 2)
	assert.ErrorIs(t, err, models.ErrListingNotActive)
	_, err = svc.Remove(ctx, 1, listing.ID)
	assert.ErrorIs(t, err, models.ErrListingNotActive)
}

func TestPurchase_SelfPurchase(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestMarketplace(db)
	ctx := context.Background()

	seedUser(t, db, 1, "seller", 200_000_000, 0)

	listing, err := svc.Create(ctx, 1, "vintage keyboard", 50_000_000)
	require.NoError(t, err)

	_, err = svc.Purchase(ctx, listing.ID, 1)
	assert.ErrorIs(t, err, models.ErrSelfReference)

	fresh, err := svc.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusActive, fresh.Status)
}

func TestPurchase_InsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestMarketplace(db)
	ctx := context.Background()

	seedUser(t, db, 1, "seller", 200_000_000, 0)
	seedUser(t, db, 2, "buyer", 10_000_000, 0)

	listing, err := svc.Create(ctx, 1, "vintage keyboard", 50_000_000)
	require.NoError(t, err)

	_, err = svc.Purchase(ctx, listing.ID, 2)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	// Listing survives the failed settlement.
	fresh, err := svc.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusActive, fresh.Status)
	assert.Equal(t, 0, countRows(t, db, "transactions", ""))
}

func TestPurchase_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestMarketplace(db)

	seedUser(t, db, 2, "buyer", 200_000_000, 0)

	_, err := svc.Purchase(context.Background(), 424242, 2)
	assert.ErrorIs(t, err, models.ErrListingNotFound)
}

func TestPurchase_ConcurrentBuyers(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestMarketplace(db)
	ctx := context.Background()

	seedUser(t, db, 1, "seller", 0, 0)
	const buyers = 8
	for i := int64(0); i < buyers; i++ {
		seedUser(t, db, 10+i, "buyer", 100_000_000, 0)
	}

	listing, err := svc.Create(ctx, 1, "one of a kind", 50_000_000)
	require.NoError(t, err)

	// All buyers race; the listing lock lets exactly one settle.
	var won, lost atomic.Int64
	var wg sync.WaitGroup
	for i := int64(0); i < buyers; i++ {
		wg.Add(1)
		go func(buyerID int64) {
			defer wg.Done()
			_, err := svc.Purchase(ctx, listing.ID, buyerID)
			switch {
			case err == nil:
				won.Add(1)
			case assert.ErrorIs(t, err, models.ErrListingNotActive):
				lost.Add(1)
			}
		}(10 + i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), won.Load())
	assert.Equal(t, int64(buyers-1), lost.Load())

	coins, _ := accountBalances(t, db, 1)
	assert.Equal(t, int64(50_000_000), coins)
	assert.Equal(t, 1, countRows(t, db, "transactions", "kind = $1", domain.TxKindPurchase))
}

func TestRemoveListing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestMarketplace(db)
	ctx := context.Background()

	seedUser(t, db, 1, "seller", 200_000_000, 0)

	listing, err := svc.Create(ctx, 1, "vintage keyboard", 50_000_000)
	require.NoError(t, err)

	removed, err := svc.Remove(ctx, 1, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusRemoved, removed.Status)

	// Removed listings leave the active feed and stay terminal.
	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = svc.Purchase(ctx, listing.ID, 1)
	assert.ErrorIs(t, err, models.ErrListingNotActive)
	_, err = svc.Remove(ctx, 1, listing.ID)
	assert.ErrorIs(t, err, models.ErrListingNotActive)
}

func TestListingTransitions(t *testing.T) {
	assert.True(t, canTransitionListing(domain.ListingStatusActive, domain.ListingStatusSold))
	assert.True(t, canTransitionListing(domain.ListingStatusActive, domain.ListingStatusRemoved))
	assert.False(t, canTransitionListing(domain.ListingStatusSold, domain.ListingStatusActive))
	assert.False(t, canTransitionListing(domain.ListingStatusSold, domain.ListingStatusRemoved))
	assert.False(t, canTransitionListing(domain.ListingStatusRemoved, domain.ListingStatusSold))
}
