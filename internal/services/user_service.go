package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/coffeepula/pos-api/internal/models"
	"gorm.io/gorm"
)

// UserInput holds the fields accepted when creating a staff account
type UserInput struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserService manages staff accounts
type UserService interface {
	CreateUser(ctx context.Context, input UserInput) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	// Authenticate returns the user when the password matches
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

type userService struct {
	db *gorm.DB
}

// NewUserService creates a new instance of UserService
func NewUserService(db *gorm.DB) UserService {
	return &userService{db: db}
}

// ValidRole reports whether role is a known staff role
func ValidRole(role string) bool {
	return role == models.RoleManager || role == models.RoleCashier
}

func (s *userService) CreateUser(ctx context.Context, input UserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email", "is not a valid address")
	}
	if !ValidRole(input.Role) {
		return nil, invalid("role", "must be %s or %s", models.RoleManager, models.RoleCashier)
	}
	if len(input.Password) < 8 {
		return nil, invalid("password", "must be at least 8 characters")
	}

	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, invalid("email", "user already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check user email: %w", err)
	}

	user := &models.User{
		Email:    email,
		Name:     strings.TrimSpace(input.Name),
		Role:     input.Role,
		Password: input.Password,
	}
	if err := user.HashPassword(); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	log.WithField("user_id", user.ID).WithField("role", user.Role).Info("User created")
	return user, nil
}

func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "user", email)
	}
	return &user, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "user", fmt.Sprint(id))
	}
	return &user, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, invalid("password", "invalid credentials")
	}
	return user, nil
}
