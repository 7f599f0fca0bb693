package service

import (
	"context"
	"testing"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/models"
	"github.com/gbwallet/ledger/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExchange(db *pgxpool.Pool) *ExchangeService {
	return NewExchangeService(repository.NewStore(db), decimal.RequireFromString("0.1"), testSystemAccountID, nil)
}

func TestCoinsToChips(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestExchange(db)
	ctx := context.Background()

	seedUser(t, db, 1, "alice", 200_000_000, 0)

	// 100 GB -> 10 CHIP at 0.1 chips per coin.
	result, err := svc.CoinsToChips(ctx, 1, 100_000_000, "ex-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000), result.Debited.Amount)
	assert.Equal(t, domain.CurrencyCoin, result.Debited.Currency)
	assert.Equal(t, int64(10_000_000), result.Credited.Amount)
	assert.Equal(t, domain.CurrencyChip, result.Credited.Currency)
	require.Len(t, result.Legs, 2)

	coins, chips := accountBalances(t, db, 1)
	assert.Equal(t, int64(100_000_000), coins)
	assert.Equal(t, int64(10_000_000), chips)

	// The system gains the coins and goes short on chips.
	coins, chips = accountBalances(t, db, testSystemAccountID)
	assert.Equal(t, int64(100_000_000), coins)
	assert.Equal(t, int64(-10_000_000), chips)

	assert.Equal(t, 2, countRows(t, db, "transactions", "kind = $1", domain.TxKindExchange))
}

func TestCoinsToChips_InsufficientCoins(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestExchange(db)
	ctx := context.Background()

	seedUser(t, db, 1, "alice", 50_000_000, 0)

	_, err := svc.CoinsToChips(ctx, 1, 100_000_000, "")
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	// Atomic: neither leg landed.
	coins, chips := accountBalances(t, db, 1)
	assert.Equal(t, int64(50_000_000), coins)
	assert.Equal(t, int64(0), chips)
	assert.Equal(t, 0, countRows(t, db, "transactions", ""))
}

func TestCoinsToChips_RejectsZeroCredit(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestExchange(db)
	ctx := context.Background()

	seedUser(t, db, 1, "alice", 200_000_000, 0)

	// 9 coin micros at 0.1 truncates to 0 chip micros; the debit must not
	// land without the credit.
	_, err := svc.CoinsToChips(ctx, 1, 9, "")
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	coins, chips := accountBalances(t, db, 1)
	assert.Equal(t, int64(200_000_000), coins)
	assert.Equal(t, int64(0), chips)
	assert.Equal(t, 0, countRows(t, db, "transactions", ""))
}

func TestChipsToCoins_RejectsZeroCredit(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	// Inverted rate: 10 chips per coin, so sub-10-micro chip amounts
	// truncate to zero coins.
	svc := NewExchangeService(repository.NewStore(db), decimal.RequireFromString("10"), testSystemAccountID, nil)
	ctx := context.Background()

	seedUser(t, db, 1, "alice", 0, 1_000_000)

	_, err := svc.ChipsToCoins(ctx, 1, 9, "")
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, chips := accountBalances(t, db, 1)
	assert.Equal(t, int64(1_000_000), chips)
	assert.Equal(t, 0, countRows(t, db, "transactions", ""))
}

func TestChipsToCoins(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestExchange(db)
	ctx := context.Background()

	seedUser(t, db, 1, "alice", 100_000_000, 0)

	// Round trip: 100 GB -> 10 CHIP -> 100 GB. The forward leg funds the
	// system with exactly the coins the reverse leg needs.
	_, err := svc.CoinsToChips(ctx, 1, 100_000_000, "")
	require.NoError(t, err)

	result, err := svc.ChipsToCoins(ctx, 1, 10_000_000, "")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), result.Debited.Amount)
	assert.Equal(t, int64(100_000_000), result.Credited.Amount)

	coins, chips := accountBalances(t, db, 1)
	assert.Equal(t, int64(100_000_000), coins)
	assert.Equal(t, int64(0), chips)

	coins, chips = accountBalances(t, db, testSystemAccountID)
	assert.Equal(t, int64(0), coins)
	assert.Equal(t, int64(0), chips)
}

func TestChipsToCoins_SystemShortOnCoins(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestExchange(db)
	ctx := context.Background()

	// User holds chips but the system has no coins to grant back.
	seedUser(t, db, 1, "alice", 0, 10_000_000)

	_, err := svc.ChipsToCoins(ctx, 1, 10_000_000, "")
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	_, chips := accountBalances(t, db, 1)
	assert.Equal(t, int64(10_000_000), chips)
	assert.Equal(t, 0, countRows(t, db, "transactions", ""))
}

func TestExchange_Validation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestExchange(db)
	ctx := context.Background()

	seedUser(t, db, 1, "alice", 200_000_000, 0)

	_, err := svc.CoinsToChips(ctx, 1, 0, "")
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.ChipsToCoins(ctx, 1, -1, "")
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.CoinsToChips(ctx, testSystemAccountID, 1_000_000, "")
	assert.ErrorIs(t, err, models.ErrSelfReference)

	_, err = svc.CoinsToChips(ctx, 999, 1_000_000, "")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestExchange_LegReferences(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := newTestExchange(db)
	ctx := context.Background()

	seedUser(t, db, 1, "alice", 200_000_000, 0)

	_, err := svc.CoinsToChips(ctx, 1, 100_000_000, "ex-42")
	require.NoError(t, err)

	// Each leg gets a distinct reference under the shared key.
	assert.Equal(t, 1, countRows(t, db, "transactions", "reference_id = $1", "ex-42/coins"))
	assert.Equal(t, 1, countRows(t, db, "transactions", "reference_id = $1", "ex-42/chips"))
}
