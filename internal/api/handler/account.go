package handler

import (
	"net/http"
	"strconv"

	"github.com/gbwallet/ledger/internal/api/middleware"
	"github.com/gbwallet/ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AccountHandler struct {
	svc *service.LedgerService
}

func NewAccountHandler(svc *service.LedgerService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// Me returns the caller's account, creating it with the initial coin grant
// on first contact.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	account, err := h.svc.GetAccount(r.Context(), actorID, middleware.DisplayNameFromContext(r.Context()))
	if err != nil {
		zap.L().Error("get account failed", zap.Error(err), zap.Int64("account_id", actorID))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to get account")
		return
	}

	RespondJSON(w, http.StatusOK, account)
}

// Get returns any account by id. Admin only; regular accounts use /me.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account ID")
		return
	}
	if !isAdmin && accountID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	account, err := h.svc.GetAccount(r.Context(), accountID, "")
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		zap.L().Error("get account failed", zap.Error(err), zap.Int64("account_id", accountID))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to get account")
		return
	}

	RespondJSON(w, http.StatusOK, account)
}

// Statement returns the caller's transaction history, newest page first.
func (h *AccountHandler) Statement(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	accountID := actorID
	if raw := chi.URLParam(r, "id"); raw != "" {
		accountID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "Invalid account ID")
			return
		}
	}
	if !isAdmin && accountID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	entries, err := h.svc.Statement(r.Context(), accountID, page, pageSize)
	if err != nil {
		zap.L().Error("get statement failed", zap.Error(err), zap.Int64("account_id", accountID))
		RespondError(w, r, http.StatusInternalServerError, "account/statement-read-failed", "Failed to get statement")
		return
	}

	RespondJSON(w, http.StatusOK, entries)
}
