package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gbwallet/ledger/internal/service"
	"go.uber.org/zap"
)

type RatingHandler struct {
	ratings *service.RatingService
	ledger  *service.LedgerService
	limit   int
}

func NewRatingHandler(ratings *service.RatingService, ledger *service.LedgerService, limit int) *RatingHandler {
	if limit < 1 {
		limit = 10
	}
	return &RatingHandler{ratings: ratings, ledger: ledger, limit: limit}
}

// Rate records a +1/-1 rating from the caller.
func (h *RatingHandler) Rate(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		RatedID int64 `json:"rated_id"`
		Value   int   `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	rating, err := h.ratings.Rate(r.Context(), actorID, req.RatedID, req.Value)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		zap.L().Error("rate failed", zap.Error(err), zap.Int64("rater_id", actorID), zap.Int64("rated_id", req.RatedID))
		RespondError(w, r, http.StatusInternalServerError, "rating/failed", "Failed to record rating")
		return
	}

	RespondJSON(w, http.StatusCreated, rating)
}

// RatingLeaderboard returns today's top rated accounts.
func (h *RatingHandler) RatingLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ratings.Leaderboard(r.Context(), h.queryLimit(r))
	if err != nil {
		zap.L().Error("rating leaderboard failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "rating/leaderboard-failed", "Failed to build leaderboard")
		return
	}
	RespondJSON(w, http.StatusOK, entries)
}

// BalanceLeaderboard returns the richest accounts by coin balance.
func (h *RatingHandler) BalanceLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.TopBalances(r.Context(), h.queryLimit(r))
	if err != nil {
		zap.L().Error("balance leaderboard failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "ledger/leaderboard-failed", "Failed to build leaderboard")
		return
	}
	RespondJSON(w, http.StatusOK, entries)
}

func (h *RatingHandler) queryLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			return n
		}
	}
	return h.limit
}
