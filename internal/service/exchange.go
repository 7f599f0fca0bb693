package service

import (
	"context"
	"fmt"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/models"
	"github.com/gbwallet/ledger/internal/observability"
	"github.com/gbwallet/ledger/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ExchangeService converts between coins and chips at a fixed configured
// rate. Each conversion is two ledger legs against the system account,
// committed as one unit.
type ExchangeService struct {
	store           *repository.Store
	chipsPerCoin    decimal.Decimal
	systemAccountID int64
	notifier        Notifier
}

// ExchangeResult reports both legs of a completed conversion.
type ExchangeResult struct {
	Debited  domain.Money         `json:"debited"`
	Credited domain.Money         `json:"credited"`
	Legs     []models.Transaction `json:"legs"`
}

func NewExchangeService(store *repository.Store, chipsPerCoin decimal.Decimal, systemAccountID int64, notifier Notifier) *ExchangeService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ExchangeService{
		store:           store,
		chipsPerCoin:    chipsPerCoin,
		systemAccountID: systemAccountID,
		notifier:        notifier,
	}
}

// CoinsToChips converts coinsMicros of the user's coins into chips. The
// system account gains the coins and grants the chips; the chip grant may
// drive the system's chip balance negative (an accepted short position, the
// system need not back chips one-to-one).
func (s *ExchangeService) CoinsToChips(ctx context.Context, userID, coinsMicros int64, referenceID string) (*ExchangeResult, error) {
	if coinsMicros <= 0 {
		return nil, models.ErrInvalidAmount
	}
	if userID == s.systemAccountID {
		return nil, models.ErrSelfReference
	}

	chips := domain.NewMoney(coinsMicros, domain.CurrencyCoin).Convert(domain.CurrencyChip, s.chipsPerCoin)
	// Conversion truncates; an amount too small to yield a single chip micro
	// would debit the coins and credit nothing.
	if chips.Amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	var legs [2]*models.Transaction
	err := s.store.RunInTx(ctx, func(tx pgx.Tx) error {
		locked, err := repository.LockAccounts(ctx, tx, userID, s.systemAccountID)
		if err != nil {
			return err
		}
		if !locked[userID] || !locked[s.systemAccountID] {
			return models.ErrAccountNotFound
		}

		legs[0], err = moveFunds(ctx, tx, fundsMove{
			from:        userID,
			to:          s.systemAccountID,
			amount:      coinsMicros,
			currency:    domain.CurrencyCoin,
			kind:        domain.TxKindExchange,
			referenceID: legReference(referenceID, "coins"),
		})
		if err != nil {
			return err
		}

		legs[1], err = moveFunds(ctx, tx, fundsMove{
			from:              s.systemAccountID,
			to:                userID,
			amount:            chips.Amount,
			currency:          domain.CurrencyChip,
			kind:              domain.TxKindExchange,
			referenceID:       legReference(referenceID, "chips"),
			allowNegativeFrom: true,
		})
		return err
	})
	if err != nil {
		observability.IncrementLedgerOp("exchange_coins_to_chips", opResult(err))
		return nil, err
	}
	observability.IncrementLedgerOp("exchange_coins_to_chips", "ok")

	result := &ExchangeResult{
		Debited:  domain.NewMoney(coinsMicros, domain.CurrencyCoin),
		Credited: chips,
		Legs:     []models.Transaction{*legs[0], *legs[1]},
	}
	s.notifier.Notify(ctx, userID,
		fmt.Sprintf("Exchanged %s for %s.", result.Debited, result.Credited))
	return result, nil
}

// ChipsToCoins converts chipsMicros of the user's chips back into coins.
// Unlike the forward direction, the system account must actually hold the
// coins it grants; both legs fail if it is short.
func (s *ExchangeService) ChipsToCoins(ctx context.Context, userID, chipsMicros int64, referenceID string) (*ExchangeResult, error) {
	if chipsMicros <= 0 {
		return nil, models.ErrInvalidAmount
	}
	if userID == s.systemAccountID {
		return nil, models.ErrSelfReference
	}

	coinsPerChip := decimal.NewFromInt(1).Div(s.chipsPerCoin)
	coins := domain.NewMoney(chipsMicros, domain.CurrencyChip).Convert(domain.CurrencyCoin, coinsPerChip)
	if coins.Amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	var legs [2]*models.Transaction
	err := s.store.RunInTx(ctx, func(tx pgx.Tx) error {
		locked, err := repository.LockAccounts(ctx, tx, userID, s.systemAccountID)
		if err != nil {
			return err
		}
		if !locked[userID] || !locked[s.systemAccountID] {
			return models.ErrAccountNotFound
		}

		legs[0], err = moveFunds(ctx, tx, fundsMove{
			from:        userID,
			to:          s.systemAccountID,
			amount:      chipsMicros,
			currency:    domain.CurrencyChip,
			kind:        domain.TxKindExchange,
			referenceID: legReference(referenceID, "chips"),
		})
		if err != nil {
			return err
		}

		legs[1], err = moveFunds(ctx, tx, fundsMove{
			from:        s.systemAccountID,
			to:          userID,
			amount:      coins.Amount,
			currency:    domain.CurrencyCoin,
			kind:        domain.TxKindExchange,
			referenceID: legReference(referenceID, "coins"),
		})
		return err
	})
	if err != nil {
		observability.IncrementLedgerOp("exchange_chips_to_coins", opResult(err))
		return nil, err
	}
	observability.IncrementLedgerOp("exchange_chips_to_coins", "ok")

	result := &ExchangeResult{
		Debited:  domain.NewMoney(chipsMicros, domain.CurrencyChip),
		Credited: coins,
		Legs:     []models.Transaction{*legs[0], *legs[1]},
	}
	s.notifier.Notify(ctx, userID,
		fmt.Sprintf("Exchanged %s for %s.", result.Debited, result.Credited))
	return result, nil
}

func legReference(referenceID, leg string) string {
	if referenceID == "" {
		return ""
	}
	return referenceID + "/" + leg
}
