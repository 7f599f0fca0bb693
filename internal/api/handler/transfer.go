package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gbwallet/ledger/internal/domain"
	"github.com/gbwallet/ledger/internal/service"
	"go.uber.org/zap"
)

type TransferHandler struct {
	svc *service.LedgerService
}

func NewTransferHandler(svc *service.LedgerService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// Create moves value from the caller to another account. Amounts arrive as
// decimal strings ("12.5") and the Idempotency-Key doubles as the ledger
// reference so retried requests settle once.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		RecipientID int64  `json:"recipient_id"`
		Amount      string `json:"amount"`
		Currency    string `json:"currency"`
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
	currency := req.Currency
	if currency == "" {
		currency = domain.CurrencyCoin
	}

	txn, err := h.svc.Transfer(r.Context(), actorID, req.RecipientID, amountMicros, currency, r.Header.Get("Idempotency-Key"))
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("transfer failed", zap.Error(err), zap.Int64("from", actorID), zap.Int64("to", req.RecipientID))
		RespondError(w, r, http.StatusInternalServerError, "transfer/failed", "Transfer failed")
		return
	}

	RespondJSON(w, http.StatusCreated, txn)
}

// FromSystem pays a recipient out of the system account. Admin surface; the
// sender is fixed, never taken from the request.
func (h *TransferHandler) FromSystem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipientID int64  `json:"recipient_id"`
		Amount      string `json:"amount"`
		Currency    string `json:"currency"`
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
	currency := req.Currency
	if currency == "" {
		currency = domain.CurrencyCoin
	}

	systemID := h.svc.SystemAccountID()
	txn, err := h.svc.Transfer(r.Context(), systemID, req.RecipientID, amountMicros, currency, r.Header.Get("Idempotency-Key"))
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("system transfer failed", zap.Error(err), zap.Int64("to", req.RecipientID))
		RespondError(w, r, http.StatusInternalServerError, "transfer/failed", "Transfer failed")
		return
	}

	RespondJSON(w, http.StatusCreated, txn)
}
