package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/models"
	"github.com/gbwallet/ledger/internal/observability"
	"github.com/gbwallet/ledger/internal/repository"
	"github.com/jackc/pgx/v5"
)

// MarketplaceService owns the listing lifecycle. Purchase settlement runs
// the funds transfer and the status transition in one transaction, with the
// listing row locked first, so two concurrent buyers can never both pay.
type MarketplaceService struct {
	store    *repository.Store
	repo     *repository.Repository
	audit    *AuditService
	notifier Notifier
}

// PurchaseResult reports a settled purchase.
type PurchaseResult struct {
	Listing  models.Listing     `json:"listing"`
	Transfer models.Transaction `json:"transfer"`
}

func NewMarketplaceService(store *repository.Store, repo *repository.Repository, audit *AuditService, notifier Notifier) *MarketplaceService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &MarketplaceService{
		store:    store,
		repo:     repo,
		audit:    audit,
		notifier: notifier,
	}
}

// Create publishes a new active listing priced in coins.
func (s *MarketplaceService) Create(ctx context.Context, sellerID int64, description string, priceMicros int64) (*models.Listing, error) {
	if priceMicros <= 0 {
		return nil, models.ErrInvalidAmount
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, models.ErrInvalidListing
	}

	listing := &models.Listing{
		SellerID:    sellerID,
		Description: description,
		PriceMicros: priceMicros,
		Status:      domain.ListingStatusActive,
	}
	err := s.store.Pool().QueryRow(ctx, `
		INSERT INTO listings (seller_id, description, price_micros, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		sellerID, description, priceMicros, domain.ListingStatusActive,
	).Scan(&listing.ID, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return listing, nil
}

// ListActive returns all active listings, oldest first.
func (s *MarketplaceService) ListActive(ctx context.Context) ([]models.Listing, error) {
	return s.repo.ListActiveListings(ctx)
}

// Get returns a single listing regardless of status.
func (s *MarketplaceService) Get(ctx context.Context, listingID int64) (*models.Listing, error) {
	return s.repo.GetListing(ctx, listingID)
}

// Purchase settles a listing: price moves from buyer to seller and the
// listing transitions to sold, atomically. Exactly one of N concurrent
// buyers succeeds; the rest see ErrListingNotActive.
func (s *MarketplaceService) Purchase(ctx context.Context, listingID, buyerID int64) (*PurchaseResult, error) {
	var (
		listing models.Listing
		txn     *models.Transaction
	)
	err := s.store.RunInTx(ctx, func(tx pgx.Tx) error {
		// Listing lock first, account locks second; every purchase follows
		// this order so purchases cannot deadlock each other.
		err := tx.QueryRow(ctx, `
			SELECT id, seller_id, description, price_micros, status, created_at, updated_at
			FROM listings WHERE id = $1 FOR UPDATE`, listingID,
		).Scan(&listing.ID, &listing.SellerID, &listing.Description, &listing.PriceMicros, &listing.Status, &listing.CreatedAt, &listing.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrListingNotFound
			}
			return fmt.Errorf("lock listing %d: %w", listingID, err)
		}

		if listing.Status != domain.ListingStatusActive {
			return models.ErrListingNotActive
		}
		if listing.SellerID == buyerID {
			return models.ErrSelfReference
		}

		locked, err := repository.LockAccounts(ctx, tx, buyerID, listing.SellerID)
		if err != nil {
			return err
		}
		if !locked[buyerID] || !locked[listing.SellerID] {
			return models.ErrAccountNotFound
		}

		txn, err = moveFunds(ctx, tx, fundsMove{
			from:     buyerID,
			to:       listing.SellerID,
			amount:   listing.PriceMicros,
			currency: domain.CurrencyCoin,
			kind:     domain.TxKindPurchase,
		})
		if err != nil {
			return err
		}

		if err := transitionListing(ctx, tx, s.audit, listingID, listing.Status, domain.ListingStatusSold, &buyerID, &buyerID); err != nil {
			return err
		}
		listing.Status = domain.ListingStatusSold
		listing.BuyerID = &buyerID
		return nil
	})
	if err != nil {
		observability.IncrementLedgerOp("purchase", opResult(err))
		return nil, err
	}
	observability.IncrementLedgerOp("purchase", "ok")

	s.notifier.Notify(ctx, listing.SellerID,
		fmt.Sprintf("Your listing %q was bought for %s.", listing.Description,
			domain.NewMoney(listing.PriceMicros, domain.CurrencyCoin)))
	return &PurchaseResult{Listing: listing, Transfer: *txn}, nil
}

// Remove retires an active listing. Terminal states stay terminal: removing
// a sold or already-removed listing fails with ErrListingNotActive.
func (s *MarketplaceService) Remove(ctx context.Context, actorID, listingID int64) (*models.Listing, error) {
	var listing models.Listing
	err := s.store.RunInTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, seller_id, buyer_id, description, price_micros, status, created_at, updated_at
			FROM listings WHERE id = $1 FOR UPDATE`, listingID,
		).Scan(&listing.ID, &listing.SellerID, &listing.BuyerID, &listing.Description, &listing.PriceMicros, &listing.Status, &listing.CreatedAt, &listing.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrListingNotFound
			}
			return fmt.Errorf("lock listing %d: %w", listingID, err)
		}

		if listing.Status != domain.ListingStatusActive {
			return models.ErrListingNotActive
		}

		if err := transitionListing(ctx, tx, s.audit, listingID, listing.Status, domain.ListingStatusRemoved, nil, &actorID); err != nil {
			return err
		}
		listing.Status = domain.ListingStatusRemoved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &listing, nil
}
