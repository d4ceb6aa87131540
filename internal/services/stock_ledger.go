package services

import (
	"context"
	"fmt"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovementRequest describes one change to an ingredient balance
type MovementRequest struct {
	IngredientID string
	Type         models.MovementType
	Quantity     decimal.Decimal
	Reason       *string
	Reference    *string
}

// StockScale is the number of decimal places kept for stock quantities
const StockScale = 3

func (r MovementRequest) validate() error {
	if r.IngredientID == "" {
		return invalid("ingredient_id", "is required")
	}
	if !r.Type.Valid() {
		return invalid("type", "must be one of IN, OUT, ADJUST")
	}
	if !r.Quantity.IsPositive() {
		return invalid("quantity", "must be greater than zero")
	}
	return nil
}

// MovementResult is the ingredient after the movement and the ledger row written for it
type MovementResult struct {
	Ingredient models.Ingredient    `json:"ingredient"`
	Movement   models.StockMovement `json:"movement"`
}

// StockLedger is the only writer of Ingredient.CurrentStock. Every balance
// change is paired with exactly one StockMovement row in the same transaction.
type StockLedger interface {
	// RecordMovement applies a movement in its own transaction
	RecordMovement(ctx context.Context, req MovementRequest) (MovementResult, error)
	// RecordMovementTx applies a movement inside the caller's transaction
	RecordMovementTx(tx *gorm.DB, req MovementRequest) (MovementResult, error)
}

type stockLedger struct {
	db *gorm.DB
}

// NewStockLedger creates a new instance of StockLedger
func NewStockLedger(db *gorm.DB) StockLedger {
	return &stockLedger{db: db}
}

func (l *stockLedger) RecordMovement(ctx context.Context, req MovementRequest) (MovementResult, error) {
	var result MovementResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = l.RecordMovementTx(tx, req)
		return err
	})
	if err != nil {
		return MovementResult{}, err
	}
	log.WithFields(logrus.Fields{
		"ingredient_id": result.Ingredient.ID,
		"type":          result.Movement.Type,
		"quantity":      result.Movement.Quantity.String(),
		"new_stock":     result.Movement.NewStock.String(),
	}).Info("Stock movement recorded")
	return result, nil
}

func (l *stockLedger) RecordMovementTx(tx *gorm.DB, req MovementRequest) (MovementResult, error) {
	req.Quantity = req.Quantity.Round(StockScale)
	if err := req.validate(); err != nil {
		return MovementResult{}, err
	}

	var ingredient models.Ingredient
	if err := lockForUpdate(tx).First(&ingredient, "id = ?", req.IngredientID).Error; err != nil {
		return MovementResult{}, notFoundOr(err, "ingredient", req.IngredientID)
	}
	before := ingredient.CurrentStock

	// Balance changes are expressed in SQL so the check and the write are one
	// statement; a concurrent OUT cannot slip between them.
	// SQLite keeps decimal columns as REAL, so results are rounded back to the
	// column scale on every write.
	scope := tx.Model(&models.Ingredient{})
	var update *gorm.DB
	switch req.Type {
	case models.MovementIn:
		update = scope.Where("id = ?", ingredient.ID).
			Update("current_stock", gorm.Expr("ROUND(current_stock + ?, ?)", req.Quantity, StockScale))
	case models.MovementOut:
		update = scope.Where("id = ? AND ROUND(current_stock - ?, ?) >= 0", ingredient.ID, req.Quantity, StockScale).
			Update("current_stock", gorm.Expr("ROUND(current_stock - ?, ?)", req.Quantity, StockScale))
	case models.MovementAdjust:
		update = scope.Where("id = ?", ingredient.ID).
			Update("current_stock", req.Quantity)
	}
	if update.Error != nil {
		return MovementResult{}, fmt.Errorf("update stock of ingredient %s: %w", ingredient.ID, update.Error)
	}

	if update.RowsAffected == 0 {
		available := before
		if err := tx.First(&ingredient, "id = ?", ingredient.ID).Error; err == nil {
			available = ingredient.CurrentStock.Round(StockScale)
		}
		return MovementResult{}, &InsufficientStockError{
			IngredientID: ingredient.ID,
			Ingredient:   ingredient.Name,
			Unit:         ingredient.Unit,
			Required:     req.Quantity,
			Available:    available,
		}
	}

	if err := tx.First(&ingredient, "id = ?", ingredient.ID).Error; err != nil {
		return MovementResult{}, fmt.Errorf("reload ingredient %s: %w", ingredient.ID, err)
	}

	// Derive the prior balance from the committed result, not the earlier read,
	// so the row stays consistent even without row locks.
	ingredient.CurrentStock = ingredient.CurrentStock.Round(StockScale)
	previous := before.Round(StockScale)
	switch req.Type {
	case models.MovementIn:
		previous = ingredient.CurrentStock.Sub(req.Quantity)
	case models.MovementOut:
		previous = ingredient.CurrentStock.Add(req.Quantity)
	}

	movement := models.StockMovement{
		IngredientID:  ingredient.ID,
		Type:          req.Type,
		Quantity:      req.Quantity,
		PreviousStock: previous,
		NewStock:      ingredient.CurrentStock,
		Reason:        req.Reason,
		Reference:     req.Reference,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return MovementResult{}, fmt.Errorf("record stock movement: %w", err)
	}

	return MovementResult{Ingredient: ingredient, Movement: movement}, nil
}

// lockForUpdate takes row locks where the dialect supports them. SQLite
// serializes writers per database, so it needs none.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
