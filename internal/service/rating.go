package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gbwallet/ledger/internal/models"
	"github.com/gbwallet/ledger/internal/observability"
	"github.com/gbwallet/ledger/internal/repository"
	"github.com/jackc/pgx/v5"
)

// ratingRollupLockID keys the advisory lock that serializes the daily
// rollup. Concurrent leaderboard reads racing the "is today's aggregate
// present" check queue on this lock instead of rebuilding twice.
const ratingRollupLockID int64 = 824972101

// leaderboardWindow is the trailing span the daily aggregate sums over. It
// is a fixed day, independent of the configurable per-pair rating cooldown.
const leaderboardWindow = 24 * time.Hour

// RatingService owns rating rows and the derived daily leaderboard. The
// rollup is lazy: the read path rebuilds the aggregate the first time it is
// asked for on a new calendar day.
type RatingService struct {
	store    *repository.Store
	cooldown time.Duration
	now      func() time.Time
}

func NewRatingService(store *repository.Store, cooldown time.Duration) *RatingService {
	return &RatingService{
		store:    store,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Rate records a +1/-1 score from rater to rated. At most one rating per
// (rater, rated) pair may exist inside the cooldown window; the rater's
// account row is locked so the window check and the insert are indivisible.
func (s *RatingService) Rate(ctx context.Context, raterID, ratedID int64, value int) (*models.Rating, error) {
	if value != 1 && value != -1 {
		return nil, models.ErrInvalidRating
	}
	if raterID == ratedID {
		return nil, models.ErrSelfReference
	}

	rating := &models.Rating{RaterID: raterID, RatedID: ratedID, Value: value}
	err := s.store.RunInTx(ctx, func(tx pgx.Tx) error {
		locked, err := repository.LockAccounts(ctx, tx, raterID, ratedID)
		if err != nil {
			return err
		}
		if !locked[raterID] || !locked[ratedID] {
			return models.ErrAccountNotFound
		}

		cutoff := s.now().Add(-s.cooldown)
		var alreadyRated bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM ratings
				WHERE rater_id = $1 AND rated_id = $2 AND created_at > $3
			)`, raterID, ratedID, cutoff).Scan(&alreadyRated)
		if err != nil {
			return fmt.Errorf("check rating cooldown: %w", err)
		}
		if alreadyRated {
			return models.ErrAlreadyRated
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO ratings (rater_id, rated_id, value)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`, raterID, ratedID, value,
		).Scan(&rating.ID, &rating.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert rating: %w", err)
		}
		return nil
	})
	if err != nil {
		observability.IncrementLedgerOp("rate", opResult(err))
		return nil, err
	}
	observability.IncrementLedgerOp("rate", "ok")
	return rating, nil
}

// Leaderboard returns the top accounts by today's aggregate rating points,
// rebuilding the aggregate first if it does not yet reflect today.
func (s *RatingService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit < 1 {
		limit = 10
	}

	if err := s.EnsureRollup(ctx); err != nil {
		return nil, err
	}

	rows, err := s.store.Pool().Query(ctx, `
		SELECT t.account_id, COALESCE(a.display_name, ''), t.points
		FROM daily_rating_totals t
		LEFT JOIN accounts a ON a.id = t.account_id
		WHERE t.day = $1::date
		ORDER BY t.points DESC, t.account_id
		LIMIT $2`, s.today(), limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.AccountID, &e.DisplayName, &e.Points); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// EnsureRollup rebuilds the daily aggregate if it does not reflect today:
// purge rows for prior days, then recompute today's per-user point sums
// from the trailing day of ratings. The advisory lock makes the
// check-and-rebuild indivisible across concurrent callers, so re-running
// within the same day is a no-op.
func (s *RatingService) EnsureRollup(ctx context.Context) error {
	err := s.store.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ratingRollupLockID); err != nil {
			return fmt.Errorf("acquire rollup lock: %w", err)
		}

		var current bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM daily_rating_totals WHERE day = $1::date)`, s.today(),
		).Scan(&current); err != nil {
			return fmt.Errorf("check rollup state: %w", err)
		}
		if current {
			return errRollupCurrent
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM daily_rating_totals WHERE day <> $1::date`, s.today()); err != nil {
			return fmt.Errorf("purge stale aggregates: %w", err)
		}

		cutoff := s.now().Add(-leaderboardWindow)
		if _, err := tx.Exec(ctx, `
			INSERT INTO daily_rating_totals (account_id, points, day)
			SELECT rated_id, SUM(value), $1::date
			FROM ratings
			WHERE created_at > $2
			GROUP BY rated_id`, s.today(), cutoff); err != nil {
			return fmt.Errorf("rebuild daily aggregate: %w", err)
		}
		return nil
	})
	if errors.Is(err, errRollupCurrent) {
		observability.IncrementRollup("current")
		return nil
	}
	if err != nil {
		observability.IncrementRollup("failed")
		return err
	}
	observability.IncrementRollup("rebuilt")
	return nil
}

// errRollupCurrent aborts the rollup transaction early when today's
// aggregate already exists. Internal control flow, never returned.
var errRollupCurrent = errors.New("rollup already current")

func (s *RatingService) today() string {
	return s.now().UTC().Format("2006-01-02")
}
