package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AdminHandler exposes the operator surface: absolute balance adjustments,
// the system account view and the chip holdings report. All routes sit
// behind RequireRole("admin").
type AdminHandler struct {
	ledger *service.LedgerService
}

func NewAdminHandler(ledger *service.LedgerService) *AdminHandler {
	return &AdminHandler{ledger: ledger}
}

// AdjustBalance sets one currency balance of an account to an absolute
// value. The target account is created on the fly if it does not exist.
func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account ID")
		return
	}

	var req struct {
		Currency string `json:"currency"`
		Value    string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	valueMicros, err := domain.ParseAmount(req.Value)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Invalid value")
		return
	}

	account, err := h.ledger.AdjustAbsolute(r.Context(), actorID, accountID, req.Currency, valueMicros)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("adjust balance failed", zap.Error(err),
			zap.Int64("account_id", accountID), zap.Int64("actor_id", actorID))
		RespondError(w, r, http.StatusInternalServerError, "admin/adjust-failed", "Failed to adjust balance")
		return
	}

	RespondJSON(w, http.StatusOK, account)
}

// SystemAccount returns the liquidity account, short positions included.
func (h *AdminHandler) SystemAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.GetAccount(r.Context(), h.ledger.SystemAccountID(), "")
	if err != nil {
		zap.L().Error("system account read failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "admin/system-account-failed", "Failed to read system account")
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

// ChipHoldings reports every user's chip balance.
func (h *AdminHandler) ChipHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.ledger.ChipHoldings(r.Context())
	if err != nil {
		zap.L().Error("chip holdings read failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "admin/chip-holdings-failed", "Failed to read chip holdings")
		return
	}
	RespondJSON(w, http.StatusOK, holdings)
}
