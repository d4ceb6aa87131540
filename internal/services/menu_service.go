package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CategoryInput holds the fields accepted when creating a category
type CategoryInput struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// ProductInput holds the fields accepted when creating or updating a product
type ProductInput struct {
	Name        string          `json:"name" binding:"required"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	Image       *string         `json:"image"`
	Available   *bool           `json:"available"`
	CategoryID  *string         `json:"category_id"`
}

// ProductFilter narrows a product listing
type ProductFilter struct {
	CategoryID         string
	IncludeUnavailable bool
}

// ProductCostInput records a new cost entry for a product
type ProductCostInput struct {
	CostPerUnit     decimal.Decimal  `json:"cost_per_unit"`
	RawMaterialCost *decimal.Decimal `json:"raw_material_cost"`
	LaborCost       *decimal.Decimal `json:"labor_cost"`
	OverheadCost    *decimal.Decimal `json:"overhead_cost"`
	Notes           *string          `json:"notes"`
	EffectiveDate   *time.Time       `json:"effective_date"`
}

// MenuService manages categories, products and product costs
type MenuService interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, input CategoryInput) (models.Category, error)

	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (models.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (models.Product, error)
	// UpdateProduct changes the catalog entry; items of existing orders keep
	// the price they were sold at
	UpdateProduct(ctx context.Context, id string, input ProductInput) (models.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	RecordProductCost(ctx context.Context, productID string, input ProductCostInput) (models.ProductCost, error)
	ProductCostHistory(ctx context.Context, productID string) ([]models.ProductCost, error)
}

type menuService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMenuService creates a new instance of MenuService
func NewMenuService(db *gorm.DB) MenuService {
	return &menuService{db: db, now: time.Now}
}

func (s *menuService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *menuService) CreateCategory(ctx context.Context, input CategoryInput) (models.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return models.Category{}, invalid("name", "is required")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Where("name = ?", name).Count(&existing).Error; err != nil {
		return models.Category{}, fmt.Errorf("check category name: %w", err)
	}
	if existing > 0 {
		return models.Category{}, invalid("name", "category %q already exists", name)
	}

	category := models.Category{Name: name, Description: input.Description}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return models.Category{}, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

func (s *menuService) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := s.db.WithContext(ctx).Preload("Category").Order("name")
	if !filter.IncludeUnavailable {
		query = query.Where("available = ?", true)
	}
	if filter.CategoryID != "" {
		query = query.Where("category_id = ?", filter.CategoryID)
	}

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *menuService) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Recipe.Ingredients.Ingredient").
		First(&product, "id = ?", id).Error
	if err != nil {
		return models.Product{}, notFoundOr(err, "product", id)
	}
	return product, nil
}

func (s *menuService) validateProduct(tx *gorm.DB, input ProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return invalid("name", "is required")
	}
	if !input.Price.IsPositive() {
		return invalid("price", "must be greater than zero")
	}
	if input.Cost.IsNegative() {
		return invalid("cost", "must not be negative")
	}
	if input.CategoryID != nil && *input.CategoryID != "" {
		var category models.Category
		if err := tx.First(&category, "id = ?", *input.CategoryID).Error; err != nil {
			return notFoundOr(err, "category", *input.CategoryID)
		}
	}
	return nil
}

func (s *menuService) CreateProduct(ctx context.Context, input ProductInput) (models.Product, error) {
	db := s.db.WithContext(ctx)
	if err := s.validateProduct(db, input); err != nil {
		return models.Product{}, err
	}

	product := models.Product{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Price:       input.Price,
		Cost:        input.Cost,
		Image:       input.Image,
		Available:   input.Available == nil || *input.Available,
		CategoryID:  input.CategoryID,
	}
	if err := db.Create(&product).Error; err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}

	log.WithFields(logrus.Fields{"product_id": product.ID, "name": product.Name}).Info("Product created")
	return s.GetProduct(ctx, product.ID)
}

func (s *menuService) UpdateProduct(ctx context.Context, id string, input ProductInput) (models.Product, error) {
	db := s.db.WithContext(ctx)
	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		return models.Product{}, notFoundOr(err, "product", id)
	}
	if err := s.validateProduct(db, input); err != nil {
		return models.Product{}, err
	}

	available := product.Available
	if input.Available != nil {
		available = *input.Available
	}
	err := db.Model(&product).Select("name", "description", "price", "cost", "image", "available", "category_id").
		Updates(models.Product{
			Name:        strings.TrimSpace(input.Name),
			Description: input.Description,
			Price:       input.Price,
			Cost:        input.Cost,
			Image:       input.Image,
			Available:   available,
			CategoryID:  input.CategoryID,
		}).Error
	if err != nil {
		return models.Product{}, fmt.Errorf("update product: %w", err)
	}
	return s.GetProduct(ctx, id)
}

// DeleteProduct soft deletes the product so historical order items still resolve it
func (s *menuService) DeleteProduct(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "product", ID: id}
	}
	log.WithField("product_id", id).Info("Product deleted")
	return nil
}

// RecordProductCost deactivates the current cost entry, adds a new active one
// and copies the cost onto the product
func (s *menuService) RecordProductCost(ctx context.Context, productID string, input ProductCostInput) (models.ProductCost, error) {
	if input.CostPerUnit.IsNegative() {
		return models.ProductCost{}, invalid("cost_per_unit", "must not be negative")
	}

	entry := models.ProductCost{
		ProductID:       productID,
		CostPerUnit:     input.CostPerUnit,
		RawMaterialCost: input.RawMaterialCost,
		LaborCost:       input.LaborCost,
		OverheadCost:    input.OverheadCost,
		Notes:           input.Notes,
		EffectiveDate:   s.now(),
		IsActive:        true,
	}
	if input.EffectiveDate != nil {
		entry.EffectiveDate = *input.EffectiveDate
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			return notFoundOr(err, "product", productID)
		}
		if err := tx.Model(&models.ProductCost{}).
			Where("product_id = ? AND is_active = ?", productID, true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivate product cost: %w", err)
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("create product cost: %w", err)
		}
		return tx.Model(&product).Update("cost", input.CostPerUnit).Error
	})
	if err != nil {
		return models.ProductCost{}, err
	}
	return entry, nil
}

func (s *menuService) ProductCostHistory(ctx context.Context, productID string) ([]models.ProductCost, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	var history []models.ProductCost
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("effective_date DESC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("list product costs: %w", err)
	}
	return history, nil
}
