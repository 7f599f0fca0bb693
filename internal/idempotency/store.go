package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("idempotency key not found")
	ErrHashMismatch = errors.New("idempotency key body mismatch")
	ErrInProgress   = errors.New("idempotency key in progress")
)

const redisKeyPrefix = "idempotency"

type Record struct {
	Key         string
	RequestHash string
	Status      int
	Body        []byte
	ContentType string
	ServedBy    string
}

// Store persists idempotency records in Postgres with a redis read-through
// cache for completed responses. Postgres is the source of truth; redis is
// best-effort and every cache failure degrades to a database read.
type Store struct {
	redis redis.Cmdable
	db    *pgxpool.Pool
	ttl   time.Duration
}

func NewStore(redis redis.Cmdable, db *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{redis: redis, db: db, ttl: ttl}
}

type cacheEnvelope struct {
	Key         string `json:"key"`
	Hash        string `json:"hash"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

func (s *Store) Lookup(ctx context.Context, key, requestHash string) (*Record, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, redisKey(key)).Result()
		if err == nil {
			var env cacheEnvelope
			if json.Unmarshal([]byte(val), &env) == nil {
				if env.Hash != requestHash {
					return nil, ErrHashMismatch
				}
				return &Record{
					Key:         env.Key,
					RequestHash: env.Hash,
					Status:      env.Status,
					Body:        env.Body,
					ContentType: env.ContentType,
					ServedBy:    "redis",
				}, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			zap.L().Warn("redis idempotency lookup failed", zap.Error(err))
		}
	}

	var (
		rec        Record
		inProgress bool
	)
	err := s.db.QueryRow(ctx, `
		SELECT idempotency_key, request_hash, in_progress, response_status, response_body, content_type
		FROM idempotency_keys
		WHERE idempotency_key = $1`, key,
	).Scan(&rec.Key, &rec.RequestHash, &inProgress, &rec.Status, &rec.Body, &rec.ContentType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}

	if rec.RequestHash != requestHash {
		return nil, ErrHashMismatch
	}
	if inProgress {
		return nil, ErrInProgress
	}
	rec.ServedBy = "postgres"
	s.cache(ctx, rec)
	return &rec, nil
}

// Reserve claims the key for the caller. The INSERT ... ON CONFLICT DO
// NOTHING returns no row when someone else already holds the key, which is
// the signal to fall back to Lookup/WaitForCompletion.
func (s *Store) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	var reserved string
	err := s.db.QueryRow(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING idempotency_key`, key, requestHash, method, path,
	).Scan(&reserved)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("reserve idempotency key: %w", err)
}

func (s *Store) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*Record, error) {
	rec := &Record{ServedBy: "postgres"}
	err := s.db.QueryRow(ctx, `
		UPDATE idempotency_keys
		SET in_progress = FALSE, response_status = $1, response_body = $2,
		    content_type = $3, updated_at = NOW()
		WHERE idempotency_key = $4 AND request_hash = $5
		RETURNING idempotency_key, request_hash, response_status, response_body, content_type`,
		status, body, contentType, key, requestHash,
	).Scan(&rec.Key, &rec.RequestHash, &rec.Status, &rec.Body, &rec.ContentType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}
	s.cache(ctx, *rec)
	return rec, nil
}

func (s *Store) WaitForCompletion(ctx context.Context, key, requestHash string) (*Record, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		rec, err := s.Lookup(ctx, key, requestHash)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, ErrInProgress) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
				continue
			}
		}
		return nil, err
	}
}

func (s *Store) cache(ctx context.Context, rec Record) {
	if s.redis == nil {
		return
	}
	env := cacheEnvelope{
		Key:         rec.Key,
		Hash:        rec.RequestHash,
		Status:      rec.Status,
		Body:        rec.Body,
		ContentType: rec.ContentType,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		zap.L().Warn("marshal idempotency cache", zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, redisKey(rec.Key), payload, s.ttl).Err(); err != nil {
		zap.L().Warn("redis idempotency cache set failed", zap.Error(err))
	}
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}
