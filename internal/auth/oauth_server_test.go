package auth

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/go-oauth2/oauth2/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "test-jwt-secret-key-32-characters"

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.User{}, &models.OAuthClient{}, &models.OAuthToken{})
	require.NoError(t, err)

	return db
}

// createTerminal stores a staff user and a client registered under it
func createTerminal(t *testing.T, db *gorm.DB, role, clientID, secret string) *models.User {
	user := &models.User{
		Email: clientID + "@coffeepula.test",
		Name:  "Till " + clientID,
		Role:  role,
	}
	require.NoError(t, db.Create(user).Error)

	hashedSecret, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)

	client := &models.OAuthClient{
		ID:         clientID,
		Secret:     string(hashedSecret),
		Name:       "Front counter",
		Domain:     "http://localhost",
		Scopes:     role,
		UserID:     user.ID,
		GrantTypes: "client_credentials",
	}
	require.NoError(t, db.Create(client).Error)
	return user
}

func TestOAuthServerInitialization(t *testing.T) {
	db := setupTestDB(t)

	oauthService := NewOAuthService(db, testJWTSecret)
	assert.NotNil(t, oauthService)
	assert.NotNil(t, oauthService.GetServer())
}

func TestJWTTokenGeneration(t *testing.T) {
	db := setupTestDB(t)
	oauthService := NewOAuthService(db, testJWTSecret)
	user := createTerminal(t, db, models.RoleManager, "till-1", "till_secret")

	tokenInfo, err := oauthService.GetServer().Manager.GenerateAccessToken(context.Background(), oauth2.ClientCredentials, &oauth2.TokenGenerateRequest{
		ClientID:     "till-1",
		ClientSecret: "till_secret",
		Scope:        models.RoleManager,
	})
	require.NoError(t, err)
	require.NotNil(t, tokenInfo)
	assert.Equal(t, AccessTokenTTL, tokenInfo.GetAccessExpiresIn())

	parsed, err := jwt.Parse(tokenInfo.GetAccess(), func(token *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, jwt.SigningMethodHS512.Alg(), parsed.Method.Alg())

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "till-1", claims["aud"])
	assert.Equal(t, strconv.FormatUint(uint64(user.ID), 10), claims["uid"])
	assert.Equal(t, models.RoleManager, claims["role"])
	assert.Equal(t, models.RoleManager, claims["scope"])
}

func TestJWTTokenGenerationRejectsNonStaffRole(t *testing.T) {
	db := setupTestDB(t)
	oauthService := NewOAuthService(db, testJWTSecret)
	createTerminal(t, db, "admin", "legacy", "legacy_secret")

	_, err := oauthService.GetServer().Manager.GenerateAccessToken(context.Background(), oauth2.ClientCredentials, &oauth2.TokenGenerateRequest{
		ClientID:     "legacy",
		ClientSecret: "legacy_secret",
	})
	assert.Error(t, err)
}

func TestClientStoreIntegration(t *testing.T) {
	db := setupTestDB(t)
	createTerminal(t, db, models.RoleCashier, "integration_test_client", "integration_test_secret")

	clientStore := NewGormClientStore(db)
	ctx := context.Background()

	retrievedClient, err := clientStore.GetByID(ctx, "integration_test_client")
	require.NoError(t, err)
	assert.Equal(t, "integration_test_client", retrievedClient.GetID())
	assert.NotEmpty(t, retrievedClient.GetUserID())

	_, err = clientStore.GetByID(ctx, "missing")
	assert.Error(t, err)
}

func TestTokenStorePurgeExpired(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormTokenStore(db)
	ctx := context.Background()
	now := time.Now()

	expired := &models.OAuthToken{
		ClientID:    "till-1",
		AccessToken: "expired-token",
		ExpiresAt:   now.Add(-time.Hour),
	}
	live := &models.OAuthToken{
		ClientID:    "till-1",
		AccessToken: "live-token",
		ExpiresAt:   now.Add(time.Hour),
	}
	require.NoError(t, db.Create(expired).Error)
	require.NoError(t, db.Create(live).Error)

	removed, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.GetByAccess(ctx, "live-token")
	assert.NoError(t, err)
	_, err = store.GetByAccess(ctx, "expired-token")
	assert.Error(t, err)
}

func TestTokenStoreRejectsAuthorizationCodes(t *testing.T) {
	store := NewGormTokenStore(setupTestDB(t))
	_, err := store.GetByCode(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrCodeGrantUnsupported)
	assert.ErrorIs(t, store.RemoveByCode(context.Background(), "abc"), ErrCodeGrantUnsupported)
}
