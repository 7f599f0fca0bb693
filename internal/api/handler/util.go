package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gbwallet/ledger/internal/api/middleware"
	"github.com/gbwallet/ledger/internal/api/problem"
	"github.com/gbwallet/ledger/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestActor(r *http.Request) (int64, bool, error) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		return 0, false, errors.New("missing account in auth context")
	}
	return accountID, middleware.AccountRoleFromContext(r.Context()) == "admin", nil
}

// respondDomainError maps the ledger's sentinel errors onto problem
// responses. Returns false when the error is not a domain rejection.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, models.ErrInvalidAmount):
		RespondError(w, r, http.StatusBadRequest, "ledger/invalid-amount", err.Error())
	case errors.Is(err, models.ErrInsufficientFunds):
		RespondError(w, r, http.StatusUnprocessableEntity, "ledger/insufficient-funds", err.Error())
	case errors.Is(err, models.ErrSelfReference):
		RespondError(w, r, http.StatusUnprocessableEntity, "ledger/self-reference", err.Error())
	case errors.Is(err, models.ErrAccountNotFound):
		RespondError(w, r, http.StatusNotFound, "ledger/account-not-found", err.Error())
	case errors.Is(err, models.ErrUnknownCurrency):
		RespondError(w, r, http.StatusBadRequest, "ledger/unknown-currency", err.Error())
	case errors.Is(err, models.ErrListingNotFound):
		RespondError(w, r, http.StatusNotFound, "marketplace/listing-not-found", err.Error())
	case errors.Is(err, models.ErrInvalidListing):
		RespondError(w, r, http.StatusBadRequest, "marketplace/invalid-listing", err.Error())
	case errors.Is(err, models.ErrListingNotActive):
		RespondError(w, r, http.StatusConflict, "marketplace/listing-not-active", err.Error())
	case errors.Is(err, models.ErrInvalidRating):
		RespondError(w, r, http.StatusBadRequest, "rating/invalid-value", err.Error())
	case errors.Is(err, models.ErrAlreadyRated):
		RespondError(w, r, http.StatusConflict, "rating/cooldown-active", err.Error())
	case errors.Is(err, models.ErrReferenceConflict):
		RespondError(w, r, http.StatusConflict, "ledger/reference-conflict", err.Error())
	default:
		return false
	}
	return true
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
