package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository holds the read-side queries that do not need transaction scope.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const accountColumns = `id, display_name, kind, coins_micros, chips_micros, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.DisplayName, &a.Kind, &a.CoinsMicros, &a.ChipsMicros, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

func (r *Repository) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *Repository) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	l := &models.Listing{}
	err := r.db.QueryRow(ctx, `
		SELECT id, seller_id, buyer_id, description, price_micros, status, created_at, updated_at
		FROM listings WHERE id = $1`, id,
	).Scan(&l.ID, &l.SellerID, &l.BuyerID, &l.Description, &l.PriceMicros, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrListingNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (r *Repository) ListActiveListings(ctx context.Context) ([]models.Listing, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, seller_id, buyer_id, description, price_micros, status, created_at, updated_at
		FROM listings
		WHERE status = $1
		ORDER BY created_at`, domain.ListingStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.SellerID, &l.BuyerID, &l.Description, &l.PriceMicros, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Statement returns every transaction where the account is sender or
// recipient, oldest first.
func (r *Repository) Statement(ctx context.Context, accountID int64, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sender_id, recipient_id, amount_micros, currency, kind, COALESCE(reference_id, ''), created_at
		FROM transactions
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get statement: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.SenderID, &t.RecipientID, &t.AmountMicros, &t.Currency, &t.Kind, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// TopBalances returns the richest user accounts by coin balance. The system
// account is excluded; it is not a player.
func (r *Repository) TopBalances(ctx context.Context, limit int) ([]models.BalanceEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, display_name, coins_micros
		FROM accounts
		WHERE kind = $1
		ORDER BY coins_micros DESC, id
		LIMIT $2`, domain.AccountKindUser, limit)
	if err != nil {
		return nil, fmt.Errorf("top balances: %w", err)
	}
	defer rows.Close()

	var entries []models.BalanceEntry
	for rows.Next() {
		var e models.BalanceEntry
		if err := rows.Scan(&e.AccountID, &e.DisplayName, &e.CoinsMicros); err != nil {
			return nil, fmt.Errorf("scan balance entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ChipHoldings returns every user account's chip balance, largest first.
func (r *Repository) ChipHoldings(ctx context.Context) ([]models.ChipHolding, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, display_name, chips_micros
		FROM accounts
		WHERE kind = $1
		ORDER BY chips_micros DESC, id`, domain.AccountKindUser)
	if err != nil {
		return nil, fmt.Errorf("chip holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.ChipHolding
	for rows.Next() {
		var h models.ChipHolding
		if err := rows.Scan(&h.AccountID, &h.DisplayName, &h.ChipsMicros); err != nil {
			return nil, fmt.Errorf("scan chip holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}
