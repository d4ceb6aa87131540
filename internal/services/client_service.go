package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ClientInput registers a terminal for a staff account
type ClientInput struct {
	Name   string `json:"name" binding:"required"`
	Domain string `json:"domain"`
}

// ClientService manages the OAuth clients used by POS terminals
type ClientService interface {
	// CreateClient stores a new client and returns it with its plain secret,
	// which is never retrievable again
	CreateClient(ctx context.Context, userID uint, input ClientInput) (*models.OAuthClient, string, error)
	GetClientsByUserID(ctx context.Context, userID uint) ([]models.OAuthClient, error)
	GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error)
	DeleteClient(ctx context.Context, clientID string, userID uint) error
}

type clientService struct {
	db *gorm.DB
}

// NewClientService creates a new instance of ClientService
func NewClientService(db *gorm.DB) ClientService {
	return &clientService{db: db}
}

func newClientSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *clientService) CreateClient(ctx context.Context, userID uint, input ClientInput) (*models.OAuthClient, string, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, "", invalid("name", "is required")
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, "", notFoundOr(err, "user", fmt.Sprint(userID))
	}

	secret, err := newClientSecret()
	if err != nil {
		return nil, "", fmt.Errorf("generate client secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash client secret: %w", err)
	}

	client := &models.OAuthClient{
		ID:         uuid.NewString(),
		Secret:     string(hash),
		Name:       strings.TrimSpace(input.Name),
		Domain:     input.Domain,
		UserID:     user.ID,
		Scopes:     user.Role,
		GrantTypes: "client_credentials",
	}
	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return nil, "", fmt.Errorf("create client: %w", err)
	}
	log.WithField("client_id", client.ID).WithField("user_id", userID).Info("OAuth client created")
	return client, secret, nil
}

func (s *clientService) GetClientsByUserID(ctx context.Context, userID uint) ([]models.OAuthClient, error) {
	var clients []models.OAuthClient
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

func (s *clientService) GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&client).Error; err != nil {
		return nil, notFoundOr(err, "client", id)
	}
	return &client, nil
}

func (s *clientService) DeleteClient(ctx context.Context, clientID string, userID uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", clientID, userID).Delete(&models.OAuthClient{})
	if result.Error != nil {
		return fmt.Errorf("delete client: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "client", ID: clientID}
	}
	return nil
}
