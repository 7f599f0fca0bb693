package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/service"
	"go.uber.org/zap"
)

type ExchangeHandler struct {
	svc *service.ExchangeService
}

func NewExchangeHandler(svc *service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{svc: svc}
}

// Create converts the caller's coins into chips at the fixed rate. The
// reverse direction is admin-mediated and lives on the admin surface.
func (h *ExchangeHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	amountMicros, err := domain.ParseAmount(req.Amount)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Invalid amount")
		return
	}

	result, err := h.svc.CoinsToChips(r.Context(), actorID, amountMicros, r.Header.Get("Idempotency-Key"))
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("exchange failed", zap.Error(err), zap.Int64("account_id", actorID))
		RespondError(w, r, http.StatusInternalServerError, "exchange/failed", "Exchange failed")
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}

// ChipsToCoins converts a user's chips back into coins. Admin-mediated: the
// system account must actually hold the coins it grants, so an operator
// approves each cash-out.
func (h *ExchangeHandler) ChipsToCoins(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64  `json:"account_id"`
		Amount    string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.AccountID == 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "account_id is required")
		return
	}

	amountMicros, err := domain.ParseAmount(req.Amount)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Invalid amount")
		return
	}

	result, err := h.svc.ChipsToCoins(r.Context(), req.AccountID, amountMicros, r.Header.Get("Idempotency-Key"))
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("chips-to-coins exchange failed", zap.Error(err), zap.Int64("account_id", req.AccountID))
		RespondError(w, r, http.StatusInternalServerError, "exchange/failed", "Exchange failed")
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}
