package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gbwallet/ledger/internal/api/middleware"
	"github.com/gbwallet/ledger/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testRouter wires the HTTP surface with no backing services. Only routes
// that reject before reaching a handler are exercised here; everything that
// touches storage is covered by the service integration tests.
func testRouter(t *testing.T) http.Handler {
	t.Helper()
	middleware.SetJWTSecret(testSecret)
	middleware.SetJWTValidation("gbwallet-ledger", "gbwallet-api")

	cfg := &config.Config{
		JWTSecret:          testSecret,
		JWTIssuer:          "gbwallet-ledger",
		JWTAudience:        "gbwallet-api",
		AdminIDs:           []int64{42},
		LeaderboardLimit:   10,
		PublicRateLimitRPS: 100,
		AuthRateLimitRPS:   100,
	}
	r := NewRouter(cfg, zap.NewNop(), nil, nil, nil, nil, nil, nil, nil)
	return r.Routes()
}

func signToken(t *testing.T, accountID, role string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
		"role":       role,
		"sub":        accountID,
		"iss":        "gbwallet-ledger",
		"aud":        "gbwallet-api",
		"iat":        now.Unix(),
		"exp":        now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestAuth_MissingHeader(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://errors.gbwallet.dev/auth/authorization-header-required", body["type"])
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.Equal(t, "/v1/accounts/me", body["instance"])
}

func TestAuth_MalformedBearer(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/me", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_InvalidSignature(t *testing.T) {
	router := testRouter(t)

	token := signToken(t, "7", "user")
	tampered := token[:len(token)-2] + "xx"
	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/me", nil)
	req.Header.Set("Authorization", "Bearer "+tampered)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_NonNumericAccountID(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "not-a-number", "user"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/chip-holdings", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "7", "user"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://errors.gbwallet.dev/auth/insufficient-permissions", body["type"])

	// System payouts sit behind the same gate.
	req = httptest.NewRequest(http.MethodPost, "/v1/admin/transfers",
		strings.NewReader(`{"recipient_id": 7, "amount": "50"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, "7", "user"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthToken_RoleFromAllowlist(t *testing.T) {
	router := testRouter(t)

	mint := func(accountID string) (string, string) {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/token",
			strings.NewReader(`{"account_id": `+accountID+`, "display_name": "tester"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body["token"], body["role"]
	}

	_, role := mint("7")
	assert.Equal(t, "user", role)

	token, role := mint("42")
	assert.Equal(t, "admin", role)

	// The minted admin token passes RequireRole on the admin surface. The
	// handler then panics on the nil service, which the recover middleware
	// converts to a 500, proving the request cleared both auth gates.
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/chip-holdings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTraceHeaderPropagation(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/me", nil)
	req.Header.Set("X-Trace-ID", "trace-abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "trace-abc", rec.Header().Get("X-Trace-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "trace-abc", body["request_id"])
}

func TestOpenAPIServed(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "GB Wallet Ledger API")
}
