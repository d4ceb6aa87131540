package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTokenRouter(t *testing.T) (*gin.Engine, *OAuthService) {
	db := setupTestDB(t)
	oauthService := NewOAuthService(db, testJWTSecret)
	createTerminal(t, db, models.RoleCashier, "till-1", "till_secret")

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/oauth/token", oauthService.HandleToken)
	return router, oauthService
}

func postToken(router *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestClientCredentialsFlow(t *testing.T) {
	router, _ := setupTokenRouter(t)

	w := postToken(router, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"till-1"},
		"client_secret": {"till_secret"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Bearer", response.TokenType)
	assert.Equal(t, int64(AccessTokenTTL.Seconds()), response.ExpiresIn)
	assert.Equal(t, models.RoleCashier, response.Scope)
	assert.Equal(t, 2, strings.Count(response.AccessToken, "."))
}

func TestClientCredentialsInvalidSecret(t *testing.T) {
	router, _ := setupTokenRouter(t)

	w := postToken(router, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"till-1"},
		"client_secret": {"wrong_secret"},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_client")
}

func TestClientCredentialsRequestValidation(t *testing.T) {
	router, _ := setupTokenRouter(t)

	tests := []struct {
		name   string
		form   url.Values
		status int
		error  string
	}{
		{
			name:   "unsupported grant",
			form:   url.Values{"grant_type": {"password"}, "client_id": {"till-1"}, "client_secret": {"till_secret"}},
			status: http.StatusBadRequest,
			error:  "unsupported_grant_type",
		},
		{
			name:   "missing secret",
			form:   url.Values{"grant_type": {"client_credentials"}, "client_id": {"till-1"}},
			status: http.StatusBadRequest,
			error:  "invalid_request",
		},
		{
			name:   "unknown client",
			form:   url.Values{"grant_type": {"client_credentials"}, "client_id": {"nope"}, "client_secret": {"x"}},
			status: http.StatusUnauthorized,
			error:  "invalid_client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postToken(router, tt.form)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.error)
		})
	}
}
