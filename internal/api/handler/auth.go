package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gbwallet/ledger/internal/api/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// AuthHandler mints access tokens. There is no password store: the caller
// presents the account id issued by the fronting platform and the role is
// derived from the configured admin allowlist.
type AuthHandler struct {
	isAdmin  func(int64) bool
	tokenTTL time.Duration
}

func NewAuthHandler(isAdmin func(int64) bool, tokenTTL time.Duration) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthHandler{isAdmin: isAdmin, tokenTTL: tokenTTL}
}

func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID   int64  `json:"account_id"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.AccountID == 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-account-id", "account_id is required")
		return
	}

	role := "user"
	if h.isAdmin != nil && h.isAdmin(req.AccountID) {
		role = "admin"
	}

	subject := strconv.FormatInt(req.AccountID, 10)
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id":   subject,
		"display_name": req.DisplayName,
		"role":         role,
		"sub":          subject,
		"iss":          middleware.JWTIssuer(),
		"aud":          middleware.JWTAudience(),
		"iat":          now.Unix(),
		"exp":          now.Add(h.tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(middleware.JWTSecret())
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "auth/sign-failed", "Failed to sign token")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"token": tokenString,
		"role":  role,
	})
}
