package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/coffeepula/pos-api/internal/auth"
	"github.com/coffeepula/pos-api/internal/middleware"
	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
)

// AuthController handles staff accounts and password logins
type AuthController struct {
	userService services.UserService
	jwtSecret   []byte
	now         func() time.Time
}

func NewAuthController(userService services.UserService, jwtSecret string) *AuthController {
	return &AuthController{
		userService: userService,
		jwtSecret:   []byte(jwtSecret),
		now:         time.Now,
	}
}

// LoginRequest is the body of a password login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries a Bearer token for back-office use
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

// CreateUser godoc
// @Summary Create a staff account
// @Description Managers create manager or cashier accounts
// @Tags auth
// @Accept json
// @Produce json
// @Param user body services.UserInput true "Staff account"
// @Success 201 {object} models.User
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/users [post]
func (ac *AuthController) CreateUser(c *gin.Context) {
	var input services.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	user, err := ac.userService.CreateUser(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login godoc
// @Summary Log in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} models.APIError
// @Router /api/v1/auth/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := ac.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var notFound *services.NotFoundError
		var validation *services.ValidationError
		if errors.As(err, &notFound) || errors.As(err, &validation) {
			c.JSON(http.StatusUnauthorized, models.NewAPIError(models.ErrUnauthorized, "Invalid credentials"))
			return
		}
		respondError(c, err)
		return
	}

	token, expiresAt, err := auth.IssueStaffToken(ac.jwtSecret, user, ac.now())
	if err != nil {
		c.JSON(http.StatusForbidden, models.NewAPIError(models.ErrForbidden, err.Error()))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        user,
	})
}

// Me godoc
// @Summary Current staff account
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/auth/me [get]
func (ac *AuthController) Me(c *gin.Context) {
	user, err := ac.userService.GetUserByID(c.Request.Context(), c.GetUint(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
