package repository

import (
	"context"
	"os"
	"testing"

	"github.com/gbwallet/ledger/internal/db"
	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/models"
	"github.com/gbwallet/ledger/internal/testutil/dblock"
	"github.com/gbwallet/ledger/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func init() {
	_ = godotenv.Load("../../.env") // Load from root
}

func TestMain(m *testing.M) {
	release := dblock.Acquire()
	code := m.Run()
	release()
	os.Exit(code)
}

func setup(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}

	pool, err := db.Connect(context.Background(), os.Getenv("DATABASE_URL"))
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}
	if err := migrations.Apply(context.Background(), pool); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	_, err = pool.Exec(context.Background(),
		"TRUNCATE TABLE audit_log, idempotency_keys, daily_rating_totals, ratings, listings, transactions, accounts CASCADE")
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
	return pool
}

func TestGetAccount(t *testing.T) {
	pool := setup(t)
	defer pool.Close()

	repo := NewRepository(pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO accounts (id, display_name, kind, coins_micros, chips_micros)
		VALUES (101, 'tester', 'user', 200000000, 0)`)
	if err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}

	account, err := repo.GetAccount(ctx, 101)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.ID != 101 || account.DisplayName != "tester" {
		t.Errorf("Unexpected account: %+v", account)
	}
	if account.CoinsMicros != 200000000 {
		t.Errorf("Expected coins 200000000, got %d", account.CoinsMicros)
	}

	if _, err := repo.GetAccount(ctx, 999); err != models.ErrAccountNotFound {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}

func TestListActiveListings(t *testing.T) {
	pool := setup(t)
	defer pool.Close()

	repo := NewRepository(pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO accounts (id, display_name, kind, coins_micros, chips_micros)
		VALUES (101, 'seller', 'user', 0, 0)`)
	if err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO listings (seller_id, description, price_micros, status)
		VALUES (101, 'first', 1000000, 'active'),
		       (101, 'second', 2000000, 'active'),
		       (101, 'gone', 3000000, 'removed')`)
	if err != nil {
		t.Fatalf("Failed to seed listings: %v", err)
	}

	listings, err := repo.ListActiveListings(ctx)
	if err != nil {
		t.Fatalf("ListActiveListings failed: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("Expected 2 active listings, got %d", len(listings))
	}
	if listings[0].Description != "first" {
		t.Errorf("Expected oldest first, got %q", listings[0].Description)
	}

	if _, err := repo.GetListing(ctx, 424242); err != models.ErrListingNotFound {
		t.Errorf("Expected ErrListingNotFound, got %v", err)
	}
}

func TestLockAccounts(t *testing.T) {
	pool := setup(t)
	defer pool.Close()

	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		INSERT INTO accounts (id, display_name, kind, coins_micros, chips_micros)
		VALUES (101, 'a', 'user', 0, 0), (102, 'b', 'user', 0, 0)`)
	if err != nil {
		t.Fatalf("Failed to seed accounts: %v", err)
	}

	store := NewStore(pool)
	err = store.RunInTx(ctx, func(tx pgx.Tx) error {
		// Duplicate and missing ids are tolerated; the map reports existence.
		locked, err := LockAccounts(ctx, tx, 102, 101, 102, 999)
		if err != nil {
			return err
		}
		if !locked[101] || !locked[102] {
			t.Errorf("Expected both seeded accounts locked, got %v", locked)
		}
		if locked[999] {
			t.Errorf("Expected missing account unlocked, got %v", locked)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}

	// Statement covers both directions of a movement.
	_, err = pool.Exec(ctx, `
		INSERT INTO transactions (sender_id, recipient_id, amount_micros, currency, kind)
		VALUES (101, 102, 1000000, $1, $2)`, domain.CurrencyCoin, domain.TxKindTransfer)
	if err != nil {
		t.Fatalf("Failed to seed transaction: %v", err)
	}
	repo := NewRepository(pool)
	for _, id := range []int64{101, 102} {
		txs, err := repo.Statement(ctx, id, 10, 0)
		if err != nil {
			t.Fatalf("Statement failed: %v", err)
		}
		if len(txs) != 1 {
			t.Errorf("Expected 1 transaction for %d, got %d", id, len(txs))
		}
	}
}
