package service

import (
	"context"
	"fmt"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/observability"
	"github.com/gbwallet/ledger/internal/repository"
	"go.uber.org/zap"
)

// ConservationService verifies ledger integrity invariants: no user balance
// is negative, and the outstanding supply of each currency equals what was
// granted at account creation plus the net of admin adjustments. Transfers,
// exchanges and purchases all conserve value, so any drift means a bug.
type ConservationService struct {
	store              *repository.Store
	initialCoinsMicros int64
}

func NewConservationService(store *repository.Store, initialCoinsMicros int64) *ConservationService {
	return &ConservationService{store: store, initialCoinsMicros: initialCoinsMicros}
}

// Run performs one integrity sweep.
func (s *ConservationService) Run(ctx context.Context) error {
	pool := s.store.Pool()

	rows, err := pool.Query(ctx, `
		SELECT id, coins_micros, chips_micros
		FROM accounts
		WHERE kind = $1 AND (coins_micros < 0 OR chips_micros < 0)`, domain.AccountKindUser)
	if err != nil {
		return fmt.Errorf("scan for negative balances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, coins, chips int64
		if err := rows.Scan(&id, &coins, &chips); err != nil {
			return fmt.Errorf("scan negative balance row: %w", err)
		}
		observability.IncrementConservationViolation("negative_balance")
		zap.L().Error("CRITICAL: negative balance detected",
			zap.Int64("account_id", id),
			zap.Int64("coins_micros", coins),
			zap.Int64("chips_micros", chips))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan for negative balances: %w", err)
	}

	var totalCoins, totalChips, userCount int64
	if err := pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(coins_micros), 0), COALESCE(SUM(chips_micros), 0),
		       COUNT(*) FILTER (WHERE kind = $1)
		FROM accounts`, domain.AccountKindUser,
	).Scan(&totalCoins, &totalChips, &userCount); err != nil {
		return fmt.Errorf("sum balances: %w", err)
	}

	adjusted := map[string]int64{}
	adjRows, err := pool.Query(ctx, `
		SELECT currency, COALESCE(SUM(amount_micros), 0)
		FROM transactions
		WHERE kind = $1
		GROUP BY currency`, domain.TxKindAdjustment)
	if err != nil {
		return fmt.Errorf("sum adjustments: %w", err)
	}
	defer adjRows.Close()
	for adjRows.Next() {
		var currency string
		var net int64
		if err := adjRows.Scan(&currency, &net); err != nil {
			return fmt.Errorf("scan adjustment row: %w", err)
		}
		adjusted[currency] = net
	}
	if err := adjRows.Err(); err != nil {
		return fmt.Errorf("sum adjustments: %w", err)
	}

	expectedCoins := userCount*s.initialCoinsMicros + adjusted[domain.CurrencyCoin]
	expectedChips := adjusted[domain.CurrencyChip]

	balanced := true
	if totalCoins != expectedCoins {
		balanced = false
		observability.IncrementConservationViolation(domain.CurrencyCoin)
		zap.L().Error("CRITICAL: coin supply diverged",
			zap.Int64("actual_micros", totalCoins),
			zap.Int64("expected_micros", expectedCoins))
	}
	if totalChips != expectedChips {
		balanced = false
		observability.IncrementConservationViolation(domain.CurrencyChip)
		zap.L().Error("CRITICAL: chip supply diverged",
			zap.Int64("actual_micros", totalChips),
			zap.Int64("expected_micros", expectedChips))
	}

	if balanced {
		zap.L().Info("ledger conserved",
			zap.Int64("coins_micros", totalCoins),
			zap.Int64("chips_micros", totalChips),
			zap.Int64("user_accounts", userCount))
	}
	return nil
}
