package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the auth middleware
const (
	UserIDKey   = "userID"
	UserRoleKey = "userRole"
	ClientIDKey = "clientID"
)

// OAuth2Auth validates the Bearer JWT issued by the token endpoint and
// stores the staff uid, role and client id in the request context
func OAuth2Auth(jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "authorization_required",
				"Missing Authorization header. A valid Bearer token is required.")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_request",
				"Authorization header must use Bearer scheme. Format: 'Bearer <token>'")
			return
		}
		if tokenString == "" {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_token", "Bearer token is empty")
			return
		}

		claims, err := parseAndValidateJWT(tokenString, jwtSecret)
		if err != nil {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_token", err.Error())
			return
		}

		if err := extractAndSetClaims(c, claims); err != nil {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_token", err.Error())
			return
		}

		c.Next()
	}
}

// AuthDisabled stands in for OAuth2Auth in local development. Every request
// acts as manager user 1.
func AuthDisabled() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(UserIDKey, uint(1))
		c.Set(UserRoleKey, models.RoleManager)
		c.Next()
	}
}

// respondWithOAuth2Error responds with the RFC 6750 error format
func respondWithOAuth2Error(c *gin.Context, status int, errorCode, description string) {
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", fmt.Sprintf("Bearer error=%q", errorCode))
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":             errorCode,
		"error_description": description,
	})
}

func parseJWTToken(tokenString string, jwtSecret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Reject anything but HMAC to avoid algorithm confusion
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v. Expected HMAC", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims format")
	}
	return claims, nil
}

func parseAndValidateJWT(tokenString string, jwtSecret []byte) (jwt.MapClaims, error) {
	claims, err := parseJWTToken(tokenString, jwtSecret)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	// Tokens without exp are not issued by the token endpoint
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp == nil {
		return nil, fmt.Errorf("token missing required 'exp' claim")
	}
	if exp.Before(now) {
		return nil, fmt.Errorf("token has expired")
	}

	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("invalid iat claim: %w", err)
	}
	if iat != nil && iat.After(now.Add(time.Minute)) {
		return nil, fmt.Errorf("token issued in the future")
	}

	return claims, nil
}

func extractAndSetClaims(c *gin.Context, claims jwt.MapClaims) error {
	userID, err := extractUserID(claims)
	if err != nil {
		return err
	}
	if userID == 0 {
		return fmt.Errorf("invalid user identifier: cannot be zero")
	}

	role, err := extractRole(claims)
	if err != nil {
		return err
	}

	c.Set(UserIDKey, userID)
	c.Set(UserRoleKey, role)

	if aud, ok := claims["aud"].(string); ok && aud != "" {
		c.Set(ClientIDKey, aud)
	} else if audArray, ok := claims["aud"].([]interface{}); ok && len(audArray) > 0 {
		if firstAud, ok := audArray[0].(string); ok && firstAud != "" {
			c.Set(ClientIDKey, firstAud)
		}
	}

	if scope, ok := claims["scope"].(string); ok && scope != "" {
		c.Set("scopes", scope)
	}
	return nil
}

// extractUserID reads the "uid" claim, either a numeric string or a JSON number
func extractUserID(claims jwt.MapClaims) (uint, error) {
	switch uid := claims["uid"].(type) {
	case string:
		parsedID, err := strconv.ParseUint(uid, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid uid claim format: must be a numeric string, got: %s", uid)
		}
		return uint(parsedID), nil
	case float64:
		if uid <= 0 {
			return 0, fmt.Errorf("invalid uid claim: must be positive, got: %f", uid)
		}
		return uint(uid), nil
	default:
		return 0, fmt.Errorf("token missing required 'uid' claim. This token is not valid for this API")
	}
}

func extractRole(claims jwt.MapClaims) (string, error) {
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return "", fmt.Errorf("token missing required 'role' claim")
	}
	if role != models.RoleManager && role != models.RoleCashier {
		return "", fmt.Errorf("invalid role '%s'. Allowed roles: %s, %s", role, models.RoleManager, models.RoleCashier)
	}
	return role, nil
}
