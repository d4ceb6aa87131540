package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("middleware-test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func staffClaims(role string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"aud":   "till-1",
		"uid":   "7",
		"role":  role,
		"scope": role,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

func setupProtectedRouter(roles ...string) *gin.Engine {
	router := gin.New()
	router.GET("/protected", OAuth2Auth(testSecret), RequireRole(roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   c.GetUint(UserIDKey),
			"role":      c.GetString(UserRoleKey),
			"client_id": c.GetString(ClientIDKey),
		})
	})
	return router
}

func get(router http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestOAuth2AuthAcceptsStaffToken(t *testing.T) {
	router := setupProtectedRouter(models.RoleManager, models.RoleCashier)
	token := signToken(t, staffClaims(models.RoleCashier), jwt.SigningMethodHS512)

	w := get(router, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(7), body["user_id"])
	assert.Equal(t, models.RoleCashier, body["role"])
	assert.Equal(t, "till-1", body["client_id"])
}

func TestOAuth2AuthRejections(t *testing.T) {
	router := setupProtectedRouter(models.RoleManager, models.RoleCashier)

	expired := staffClaims(models.RoleCashier)
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	noExp := staffClaims(models.RoleCashier)
	delete(noExp, "exp")
	future := staffClaims(models.RoleCashier)
	future["iat"] = time.Now().Add(time.Hour).Unix()
	noUID := staffClaims(models.RoleCashier)
	delete(noUID, "uid")

	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS512, staffClaims(models.RoleManager)).SignedString([]byte("other"))
	require.NoError(t, err)

	tests := []struct {
		name          string
		authorization string
		wantError     string
	}{
		{"missing header", "", "authorization_required"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "invalid_request"},
		{"empty bearer", "Bearer ", "invalid_token"},
		{"wrong key", "Bearer " + otherKey, "invalid_token"},
		{"expired", "Bearer " + signToken(t, expired, jwt.SigningMethodHS512), "invalid_token"},
		{"no exp", "Bearer " + signToken(t, noExp, jwt.SigningMethodHS512), "invalid_token"},
		{"issued in the future", "Bearer " + signToken(t, future, jwt.SigningMethodHS512), "invalid_token"},
		{"no uid", "Bearer " + signToken(t, noUID, jwt.SigningMethodHS512), "invalid_token"},
		{"unknown role", "Bearer " + signToken(t, staffClaims("barista"), jwt.SigningMethodHS512), "invalid_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, tt.authorization)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Header().Get("WWW-Authenticate"), tt.wantError)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestRequireRoleForbidsCashierOnManagerRoute(t *testing.T) {
	router := setupProtectedRouter(models.RoleManager)
	token := signToken(t, staffClaims(models.RoleCashier), jwt.SigningMethodHS256)

	w := get(router, "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var apiErr models.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, models.ErrForbidden, apiErr.Code)
	assert.Equal(t, models.RoleCashier, apiErr.Details["user_role"])
}

func TestRequireRoleWithoutAuthentication(t *testing.T) {
	router := gin.New()
	router.GET("/protected", RequireRole(models.RoleManager), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := get(router, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthDisabledActsAsManager(t *testing.T) {
	router := gin.New()
	router.GET("/protected", AuthDisabled(), RequireRole(models.RoleManager), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint(UserIDKey)})
	})

	w := get(router, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":1}`, w.Body.String())
}
