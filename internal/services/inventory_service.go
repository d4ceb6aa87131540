package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// IngredientInput holds the fields accepted when creating an ingredient.
// InitialStock is recorded as an IN movement.
type IngredientInput struct {
	Name         string           `json:"name" binding:"required"`
	Unit         string           `json:"unit" binding:"required"`
	CostPerUnit  decimal.Decimal  `json:"cost_per_unit"`
	InitialStock decimal.Decimal  `json:"initial_stock"`
	MinStock     decimal.Decimal  `json:"min_stock"`
	MaxStock     *decimal.Decimal `json:"max_stock"`
	Supplier     *string          `json:"supplier"`
	Description  *string          `json:"description"`
}

// IngredientUpdate changes ingredient metadata. The balance is only changed
// through stock movements.
type IngredientUpdate struct {
	Name        *string          `json:"name"`
	Unit        *string          `json:"unit"`
	CostPerUnit *decimal.Decimal `json:"cost_per_unit"`
	MinStock    *decimal.Decimal `json:"min_stock"`
	MaxStock    *decimal.Decimal `json:"max_stock"`
	Supplier    *string          `json:"supplier"`
	Description *string          `json:"description"`
}

// MovementFilter narrows a movement listing
type MovementFilter struct {
	IngredientID string
	Type         models.MovementType
	Reference    string
	Limit        int
}

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 500
)

// InventoryService manages ingredients and exposes the movement ledger
type InventoryService interface {
	ListIngredients(ctx context.Context, lowStockOnly bool) ([]models.Ingredient, error)
	GetIngredient(ctx context.Context, id string) (models.Ingredient, error)
	CreateIngredient(ctx context.Context, input IngredientInput) (models.Ingredient, error)
	UpdateIngredient(ctx context.Context, id string, input IngredientUpdate) (models.Ingredient, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]models.StockMovement, error)
	// ExportMovements renders the filtered movements as an xlsx workbook
	ExportMovements(ctx context.Context, filter MovementFilter) ([]byte, error)
}

type inventoryService struct {
	db     *gorm.DB
	ledger StockLedger
}

// NewInventoryService creates a new instance of InventoryService
func NewInventoryService(db *gorm.DB, ledger StockLedger) InventoryService {
	return &inventoryService{db: db, ledger: ledger}
}

func (s *inventoryService) ListIngredients(ctx context.Context, lowStockOnly bool) ([]models.Ingredient, error) {
	query := s.db.WithContext(ctx).Order("name")
	if lowStockOnly {
		query = query.Where("current_stock <= min_stock")
	}
	var ingredients []models.Ingredient
	if err := query.Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	return ingredients, nil
}

func (s *inventoryService) GetIngredient(ctx context.Context, id string) (models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).First(&ingredient, "id = ?", id).Error; err != nil {
		return models.Ingredient{}, notFoundOr(err, "ingredient", id)
	}
	return ingredient, nil
}

func (s *inventoryService) CreateIngredient(ctx context.Context, input IngredientInput) (models.Ingredient, error) {
	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		return models.Ingredient{}, invalid("name", "is required")
	case strings.TrimSpace(input.Unit) == "":
		return models.Ingredient{}, invalid("unit", "is required")
	case input.CostPerUnit.IsNegative():
		return models.Ingredient{}, invalid("cost_per_unit", "must not be negative")
	case input.InitialStock.IsNegative():
		return models.Ingredient{}, invalid("initial_stock", "must not be negative")
	case input.MinStock.IsNegative():
		return models.Ingredient{}, invalid("min_stock", "must not be negative")
	case input.MaxStock != nil && input.MaxStock.LessThan(input.MinStock):
		return models.Ingredient{}, invalid("max_stock", "must not be below min_stock")
	}

	ingredient := models.Ingredient{
		Name:         name,
		Unit:         strings.TrimSpace(input.Unit),
		CostPerUnit:  input.CostPerUnit,
		CurrentStock: decimal.Zero,
		MinStock:     input.MinStock,
		MaxStock:     input.MaxStock,
		Supplier:     input.Supplier,
		Description:  input.Description,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Ingredient{}).Where("name = ?", name).Count(&existing).Error; err != nil {
			return fmt.Errorf("check ingredient name: %w", err)
		}
		if existing > 0 {
			return invalid("name", "ingredient %q already exists", name)
		}
		if err := tx.Create(&ingredient).Error; err != nil {
			return fmt.Errorf("create ingredient: %w", err)
		}
		if !input.InitialStock.IsPositive() {
			return nil
		}
		result, err := s.ledger.RecordMovementTx(tx, MovementRequest{
			IngredientID: ingredient.ID,
			Type:         models.MovementIn,
			Quantity:     input.InitialStock,
			Reason:       models.StringPtr("Initial stock"),
		})
		if err != nil {
			return err
		}
		ingredient = result.Ingredient
		return nil
	})
	if err != nil {
		return models.Ingredient{}, err
	}

	log.WithFields(logrus.Fields{
		"ingredient_id": ingredient.ID,
		"name":          ingredient.Name,
		"stock":         ingredient.CurrentStock.String(),
	}).Info("Ingredient created")
	return ingredient, nil
}

func (s *inventoryService) UpdateIngredient(ctx context.Context, id string, input IngredientUpdate) (models.Ingredient, error) {
	updates := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return models.Ingredient{}, invalid("name", "must not be empty")
		}
		updates["name"] = name
	}
	if input.Unit != nil {
		if strings.TrimSpace(*input.Unit) == "" {
			return models.Ingredient{}, invalid("unit", "must not be empty")
		}
		updates["unit"] = strings.TrimSpace(*input.Unit)
	}
	if input.CostPerUnit != nil {
		if input.CostPerUnit.IsNegative() {
			return models.Ingredient{}, invalid("cost_per_unit", "must not be negative")
		}
		updates["cost_per_unit"] = *input.CostPerUnit
	}
	if input.MinStock != nil {
		if input.MinStock.IsNegative() {
			return models.Ingredient{}, invalid("min_stock", "must not be negative")
		}
		updates["min_stock"] = *input.MinStock
	}
	if input.MaxStock != nil {
		updates["max_stock"] = *input.MaxStock
	}
	if input.Supplier != nil {
		updates["supplier"] = *input.Supplier
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}

	ingredient, err := s.GetIngredient(ctx, id)
	if err != nil {
		return models.Ingredient{}, err
	}
	if len(updates) == 0 {
		return ingredient, nil
	}
	if err := s.db.WithContext(ctx).Model(&ingredient).Updates(updates).Error; err != nil {
		return models.Ingredient{}, fmt.Errorf("update ingredient: %w", err)
	}
	return s.GetIngredient(ctx, id)
}

func (s *inventoryService) movementQuery(ctx context.Context, filter MovementFilter) *gorm.DB {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		limit = maxMovementLimit
	}

	query := s.db.WithContext(ctx).Preload("Ingredient").Order("created_at DESC").Limit(limit)
	if filter.IngredientID != "" {
		query = query.Where("ingredient_id = ?", filter.IngredientID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Reference != "" {
		query = query.Where("reference = ?", filter.Reference)
	}
	return query
}

func (s *inventoryService) ListMovements(ctx context.Context, filter MovementFilter) ([]models.StockMovement, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, invalid("type", "must be one of IN, OUT, ADJUST")
	}
	var movements []models.StockMovement
	if err := s.movementQuery(ctx, filter).Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	return movements, nil
}

func (s *inventoryService) ExportMovements(ctx context.Context, filter MovementFilter) ([]byte, error) {
	if filter.Limit == 0 {
		filter.Limit = maxMovementLimit
	}
	movements, err := s.ListMovements(ctx, filter)
	if err != nil {
		return nil, err
	}

	header := []interface{}{"Date", "Ingredient", "Unit", "Type", "Quantity", "Previous", "New", "Reason", "Reference"}
	rows := make([][]interface{}, 0, len(movements))
	for _, m := range movements {
		var name, unit string
		if m.Ingredient != nil {
			name, unit = m.Ingredient.Name, m.Ingredient.Unit
		}
		rows = append(rows, []interface{}{
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			name,
			unit,
			string(m.Type),
			m.Quantity.InexactFloat64(),
			m.PreviousStock.InexactFloat64(),
			m.NewStock.InexactFloat64(),
			derefString(m.Reason),
			derefString(m.Reference),
		})
	}
	return writeWorkbook("Movements", header, rows)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
