package service

import (
	"context"
	"testing"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func newTestConservation(db *pgxpool.Pool) *ConservationService {
	return NewConservationService(repository.NewStore(db), testInitialCoins)
}

// The sweep must stay green across the full operation mix: transfers,
// exchanges and purchases conserve value, adjustments shift the expected
// supply by their logged delta.
func TestConservation_CleanLedger(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ledger := newTestLedger(db)
	exchange := newTestExchange(db)
	market := newTestMarketplace(db)
	svc := newTestConservation(db)
	ctx := context.Background()

	_, err := ledger.GetAccount(ctx, 1, "alice")
	require.NoError(t, err)
	_, err = ledger.GetAccount(ctx, 2, "david")
	require.NoError(t, err)

	require.NoError(t, svc.Run(ctx))

	_, err = ledger.Transfer(ctx, 1, 2, 10_000_000, domain.CurrencyCoin, "")
	require.NoError(t, err)
	_, err = exchange.CoinsToChips(ctx, 1, 50_000_000, "")
	require.NoError(t, err)

	listing, err := market.Create(ctx, 2, "keyboard", 20_000_000)
	require.NoError(t, err)
	_, err = market.Purchase(ctx, listing.ID, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Run(ctx))

	// Adjustments mint and burn, and the sweep accounts for both.
	_, err = ledger.AdjustAbsolute(ctx, 99, 1, domain.CurrencyCoin, 500_000_000)
	require.NoError(t, err)
	_, err = ledger.AdjustAbsolute(ctx, 99, 2, domain.CurrencyChip, 1_000_000)
	require.NoError(t, err)

	require.NoError(t, svc.Run(ctx))
}
