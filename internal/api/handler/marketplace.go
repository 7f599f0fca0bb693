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

type MarketplaceHandler struct {
	svc *service.MarketplaceService
}

func NewMarketplaceHandler(svc *service.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{svc: svc}
}

// List returns all active listings.
func (h *MarketplaceHandler) List(w http.ResponseWriter, r *http.Request) {
	listings, err := h.svc.ListActive(r.Context())
	if err != nil {
		zap.L().Error("list listings failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "marketplace/list-failed", "Failed to list listings")
		return
	}
	RespondJSON(w, http.StatusOK, listings)
}

// Get returns one listing regardless of status.
func (h *MarketplaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	listingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-listing-id", "Invalid listing ID")
		return
	}

	listing, err := h.svc.Get(r.Context(), listingID)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		zap.L().Error("get listing failed", zap.Error(err), zap.Int64("listing_id", listingID))
		RespondError(w, r, http.StatusInternalServerError, "marketplace/read-failed", "Failed to get listing")
		return
	}
	RespondJSON(w, http.StatusOK, listing)
}

// Create publishes a new listing owned by the caller.
func (h *MarketplaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		Description string `json:"description"`
		Price       string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	priceMicros, err := domain.ParseAmount(req.Price)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Invalid price")
		return
	}

	listing, err := h.svc.Create(r.Context(), actorID, req.Description, priceMicros)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("create listing failed", zap.Error(err), zap.Int64("seller_id", actorID))
		RespondError(w, r, http.StatusInternalServerError, "marketplace/create-failed", "Failed to create listing")
		return
	}

	RespondJSON(w, http.StatusCreated, listing)
}

// Purchase settles the listing for the caller.
func (h *MarketplaceHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	listingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-listing-id", "Invalid listing ID")
		return
	}

	result, err := h.svc.Purchase(r.Context(), listingID, actorID)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("purchase failed", zap.Error(err), zap.Int64("listing_id", listingID), zap.Int64("buyer_id", actorID))
		RespondError(w, r, http.StatusInternalServerError, "marketplace/purchase-failed", "Purchase failed")
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// Remove retires an active listing. Admin surface; the route sits behind
// RequireRole so there is no ownership check here.
func (h *MarketplaceHandler) Remove(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	listingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-listing-id", "Invalid listing ID")
		return
	}

	removed, err := h.svc.Remove(r.Context(), actorID, listingID)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		zap.L().Error("remove listing failed", zap.Error(err), zap.Int64("listing_id", listingID))
		RespondError(w, r, http.StatusInternalServerError, "marketplace/remove-failed", "Failed to remove listing")
		return
	}

	RespondJSON(w, http.StatusOK, removed)
}
