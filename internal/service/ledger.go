package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/models"
	"github.com/gbwallet/ledger/internal/observability"
	"github.com/gbwallet/ledger/internal/repository"
	"github.com/jackc/pgx/v5"
)

// LedgerService is the sole writer of account balances. Every mutation runs
// as one unit of work: balance read, balance write and transaction-log
// append commit together or not at all.
type LedgerService struct {
	store              *repository.Store
	repo               *repository.Repository
	audit              *AuditService
	initialCoinsMicros int64
	systemAccountID    int64
}

func NewLedgerService(store *repository.Store, repo *repository.Repository, audit *AuditService, initialCoinsMicros, systemAccountID int64) *LedgerService {
	return &LedgerService{
		store:              store,
		repo:               repo,
		audit:              audit,
		initialCoinsMicros: initialCoinsMicros,
		systemAccountID:    systemAccountID,
	}
}

// EnsureSystemAccount seeds the system account row. Idempotent; called at
// bootstrap before any exchange can reference it.
func (s *LedgerService) EnsureSystemAccount(ctx context.Context) error {
	_, err := s.store.Pool().Exec(ctx, `
		INSERT INTO accounts (id, display_name, kind, coins_micros, chips_micros)
		VALUES ($1, 'System', $2, 0, 0)
		ON CONFLICT (id) DO NOTHING`, s.systemAccountID, domain.AccountKindSystem)
	if err != nil {
		return fmt.Errorf("ensure system account: %w", err)
	}
	return nil
}

// GetAccount returns the account, creating it with the configured initial
// coin balance on first reference. A non-empty displayName newer than the
// stored one is persisted.
func (s *LedgerService) GetAccount(ctx context.Context, id int64, displayName string) (*models.Account, error) {
	account, err := s.repo.GetAccount(ctx, id)
	if errors.Is(err, models.ErrAccountNotFound) {
		name := displayName
		if name == "" {
			name = fmt.Sprintf("user-%d", id)
		}
		// ON CONFLICT guards the race between two first references.
		_, insertErr := s.store.Pool().Exec(ctx, `
			INSERT INTO accounts (id, display_name, kind, coins_micros, chips_micros)
			VALUES ($1, $2, $3, $4, 0)
			ON CONFLICT (id) DO NOTHING`, id, name, domain.AccountKindUser, s.initialCoinsMicros)
		if insertErr != nil {
			return nil, fmt.Errorf("create account %d: %w", id, insertErr)
		}
		account, err = s.repo.GetAccount(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if displayName != "" && displayName != account.DisplayName {
		_, err := s.store.Pool().Exec(ctx,
			`UPDATE accounts SET display_name = $1, updated_at = NOW() WHERE id = $2`, displayName, id)
		if err != nil {
			return nil, fmt.Errorf("refresh display name for %d: %w", id, err)
		}
		account.DisplayName = displayName
	}
	return account, nil
}

// Transfer moves amountMicros of one currency between two accounts. Both
// balance updates and the transaction record are one atomic unit.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID, amountMicros int64, currency, referenceID string) (*models.Transaction, error) {
	if amountMicros <= 0 {
		return nil, models.ErrInvalidAmount
	}
	if fromID == toID {
		return nil, models.ErrSelfReference
	}
	if !domain.ValidCurrency(currency) {
		return nil, models.ErrUnknownCurrency
	}

	if txn, err := s.findByReference(ctx, referenceID); err != nil {
		return nil, err
	} else if txn != nil {
		// A retry must match the settled transaction; a reused reference
		// with different parameters is a caller bug, not a replay.
		if txn.SenderID != fromID || txn.RecipientID != toID ||
			txn.AmountMicros != amountMicros || txn.Currency != currency {
			return nil, models.ErrReferenceConflict
		}
		return txn, nil
	}

	var txn *models.Transaction
	err := s.store.RunInTx(ctx, func(tx pgx.Tx) error {
		locked, err := repository.LockAccounts(ctx, tx, fromID, toID)
		if err != nil {
			return err
		}
		if !locked[fromID] || !locked[toID] {
			return models.ErrAccountNotFound
		}

		txn, err = moveFunds(ctx, tx, fundsMove{
			from:        fromID,
			to:          toID,
			amount:      amountMicros,
			currency:    currency,
			kind:        domain.TxKindTransfer,
			referenceID: referenceID,
		})
		return err
	})
	if err != nil {
		observability.IncrementLedgerOp("transfer", opResult(err))
		return nil, err
	}
	observability.IncrementLedgerOp("transfer", "ok")
	return txn, nil
}

// AdjustAbsolute sets one balance field to an absolute value. This is the
// only operation allowed to mint or burn; the adjustment transaction row
// carries the signed delta and the audit log records prev/next and actor.
func (s *LedgerService) AdjustAbsolute(ctx context.Context, actorID, accountID int64, currency string, newValueMicros int64) (*models.Account, error) {
	if !domain.ValidCurrency(currency) {
		return nil, models.ErrUnknownCurrency
	}
	if newValueMicros < 0 {
		return nil, models.ErrInvalidAmount
	}

	column, err := balanceColumn(currency)
	if err != nil {
		return nil, err
	}

	var account *models.Account
	err = s.store.RunInTx(ctx, func(tx pgx.Tx) error {
		// Admin adjustments target accounts lazily, like any first reference.
		if _, err := tx.Exec(ctx, `
			INSERT INTO accounts (id, display_name, kind, coins_micros, chips_micros)
			VALUES ($1, $2, $3, $4, 0)
			ON CONFLICT (id) DO NOTHING`,
			accountID, fmt.Sprintf("user-%d", accountID), domain.AccountKindUser, s.initialCoinsMicros); err != nil {
			return fmt.Errorf("ensure account %d: %w", accountID, err)
		}

		locked, err := repository.LockAccounts(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if !locked[accountID] {
			return models.ErrAccountNotFound
		}

		var prevValue int64
		if err := tx.QueryRow(ctx, `SELECT `+column+` FROM accounts WHERE id = $1`, accountID).Scan(&prevValue); err != nil {
			return fmt.Errorf("read balance for %d: %w", accountID, err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE accounts SET `+column+` = $1, updated_at = NOW() WHERE id = $2`, newValueMicros, accountID); err != nil {
			return fmt.Errorf("set balance for %d: %w", accountID, err)
		}

		delta := newValueMicros - prevValue
		if _, err := tx.Exec(ctx, `
			INSERT INTO transactions (sender_id, recipient_id, amount_micros, currency, kind)
			VALUES ($1, $2, $3, $4, $5)`,
			s.systemAccountID, accountID, delta, currency, domain.TxKindAdjustment); err != nil {
			return fmt.Errorf("log adjustment: %w", err)
		}

		metadata, _ := json.Marshal(map[string]any{"currency": currency, "delta_micros": delta})
		if err := s.audit.Write(ctx, tx, "account", fmt.Sprintf("%d", accountID), &actorID,
			"balance.adjust", fmt.Sprintf("%d", prevValue), fmt.Sprintf("%d", newValueMicros), metadata); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		observability.IncrementLedgerOp("adjust", opResult(err))
		return nil, err
	}
	observability.IncrementLedgerOp("adjust", "ok")

	account, err = s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Statement returns the account's transaction history in chronological order.
func (s *LedgerService) Statement(ctx context.Context, accountID int64, page, pageSize int) ([]models.Transaction, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize
	return s.repo.Statement(ctx, accountID, pageSize, offset)
}

// SystemAccountID returns the configured system account id.
func (s *LedgerService) SystemAccountID() int64 {
	return s.systemAccountID
}

// TopBalances returns the coin-balance leaderboard, system account excluded.
func (s *LedgerService) TopBalances(ctx context.Context, limit int) ([]models.BalanceEntry, error) {
	if limit < 1 {
		limit = 10
	}
	return s.repo.TopBalances(ctx, limit)
}

// ChipHoldings returns every user's chip balance for the admin view.
func (s *LedgerService) ChipHoldings(ctx context.Context) ([]models.ChipHolding, error) {
	return s.repo.ChipHoldings(ctx)
}

func (s *LedgerService) findByReference(ctx context.Context, referenceID string) (*models.Transaction, error) {
	if referenceID == "" {
		return nil, nil
	}
	var txn models.Transaction
	err := s.store.Pool().QueryRow(ctx, `
		SELECT id, sender_id, recipient_id, amount_micros, currency, kind, COALESCE(reference_id, ''), created_at
		FROM transactions WHERE reference_id = $1`, referenceID,
	).Scan(&txn.ID, &txn.SenderID, &txn.RecipientID, &txn.AmountMicros, &txn.Currency, &txn.Kind, &txn.ReferenceID, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("check transfer reference: %w", err)
	}
	return &txn, nil
}

// fundsMove describes one leg of value movement between two locked accounts.
type fundsMove struct {
	from, to    int64
	amount      int64
	currency    string
	kind        string
	referenceID string
	// allowNegativeFrom lets the system account run a short position when
	// granting chips it has not backed one-to-one.
	allowNegativeFrom bool
}

// moveFunds debits, credits and appends the transaction record. Callers must
// already hold row locks on both accounts.
func moveFunds(ctx context.Context, tx pgx.Tx, m fundsMove) (*models.Transaction, error) {
	column, err := balanceColumn(m.currency)
	if err != nil {
		return nil, err
	}

	if !m.allowNegativeFrom {
		var balance int64
		if err := tx.QueryRow(ctx, `SELECT `+column+` FROM accounts WHERE id = $1`, m.from).Scan(&balance); err != nil {
			return nil, fmt.Errorf("read balance for %d: %w", m.from, err)
		}
		if balance < m.amount {
			return nil, models.ErrInsufficientFunds
		}
	}

	txn := &models.Transaction{
		SenderID:     m.from,
		RecipientID:  m.to,
		AmountMicros: m.amount,
		Currency:     m.currency,
		Kind:         m.kind,
		ReferenceID:  m.referenceID,
	}
	var ref *string
	if m.referenceID != "" {
		ref = &m.referenceID
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (sender_id, recipient_id, amount_micros, currency, kind, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		m.from, m.to, m.amount, m.currency, m.kind, ref,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET `+column+` = `+column+` - $1, updated_at = NOW() WHERE id = $2`, m.amount, m.from); err != nil {
		return nil, fmt.Errorf("debit account %d: %w", m.from, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET `+column+` = `+column+` + $1, updated_at = NOW() WHERE id = $2`, m.amount, m.to); err != nil {
		return nil, fmt.Errorf("credit account %d: %w", m.to, err)
	}
	return txn, nil
}

func balanceColumn(currency string) (string, error) {
	switch currency {
	case domain.CurrencyCoin:
		return "coins_micros", nil
	case domain.CurrencyChip:
		return "chips_micros", nil
	default:
		return "", models.ErrUnknownCurrency
	}
}

func opResult(err error) string {
	if err == nil {
		return "ok"
	}
	for _, domainErr := range []error{
		models.ErrInvalidAmount, models.ErrInsufficientFunds, models.ErrSelfReference,
		models.ErrAccountNotFound, models.ErrUnknownCurrency, models.ErrListingNotFound,
		models.ErrListingNotActive, models.ErrInvalidListing, models.ErrInvalidRating,
		models.ErrAlreadyRated, models.ErrReferenceConflict,
	} {
		if errors.Is(err, domainErr) {
			return "rejected"
		}
	}
	return "error"
}
