package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-oauth2/oauth2/v4"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
}

// TokenResponse is the body returned by the token endpoint
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// HandleToken issues an access token for the client credentials grant
// @Summary Token Endpoint
// @Description Obtain an access token for a POS terminal using the client credentials grant
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "Must be client_credentials"
// @Param client_id formData string true "Client ID"
// @Param client_secret formData string true "Client Secret"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /oauth/token [post]
func (o *OAuthService) HandleToken(c *gin.Context) {
	if c.PostForm("grant_type") != string(oauth2.ClientCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_grant_type"})
		return
	}

	clientID := c.PostForm("client_id")
	clientSecret := c.PostForm("client_secret")
	if clientID == "" || clientSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	client, err := o.server.Manager.GetClient(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client"})
		return
	}

	scope := c.PostForm("scope")
	if scope == "" {
		if stored, ok := client.(interface{ GetScopes() string }); ok {
			scope = stored.GetScopes()
		}
	}

	// The manager checks the secret against the stored bcrypt hash
	ti, err := o.server.Manager.GenerateAccessToken(c.Request.Context(), oauth2.ClientCredentials, &oauth2.TokenGenerateRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        scope,
		Request:      c.Request,
	})
	if err != nil {
		log.WithError(err).WithField("client_id", clientID).Warn("Token request rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: ti.GetAccess(),
		TokenType:   "Bearer",
		ExpiresIn:   int64(ti.GetAccessExpiresIn().Seconds()),
		Scope:       ti.GetScope(),
	})
}
