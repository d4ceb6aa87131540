package models

import (
	"github.com/shopspring/decimal"
)

// Ingredient is a stocked raw material. CurrentStock is written only by the stock ledger.
type Ingredient struct {
	Base
	Name         string           `json:"name" gorm:"uniqueIndex;not null"`
	Unit         string           `json:"unit" gorm:"not null"`
	CostPerUnit  decimal.Decimal  `json:"cost_per_unit" gorm:"type:decimal(12,4);not null"`
	CurrentStock decimal.Decimal  `json:"current_stock" gorm:"type:decimal(14,3);not null"`
	MinStock     decimal.Decimal  `json:"min_stock" gorm:"type:decimal(14,3);not null"`
	MaxStock     *decimal.Decimal `json:"max_stock" gorm:"type:decimal(14,3)"`
	Supplier     *string          `json:"supplier"`
	Description  *string          `json:"description"`
}

// IsLow reports whether the balance is at or below the reorder threshold
func (i Ingredient) IsLow() bool {
	return i.CurrentStock.LessThanOrEqual(i.MinStock)
}

// MovementType is the kind of stock movement
type MovementType string

const (
	MovementIn     MovementType = "IN"
	MovementOut    MovementType = "OUT"
	MovementAdjust MovementType = "ADJUST"
)

// Valid reports whether t is one of the known movement types
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjust:
		return true
	}
	return false
}

// StockMovement is an append-only ledger row. Quantity is always positive;
// its effect on the balance depends on Type.
type StockMovement struct {
	Base
	IngredientID  string          `json:"ingredient_id" gorm:"type:varchar(36);not null;index"`
	Ingredient    *Ingredient     `json:"ingredient,omitempty" gorm:"foreignKey:IngredientID"`
	Type          MovementType    `json:"type" gorm:"type:varchar(10);not null;index"`
	Quantity      decimal.Decimal `json:"quantity" gorm:"type:decimal(14,3);not null"`
	PreviousStock decimal.Decimal `json:"previous_stock" gorm:"type:decimal(14,3);not null"`
	NewStock      decimal.Decimal `json:"new_stock" gorm:"type:decimal(14,3);not null"`
	Reason        *string         `json:"reason"`
	Reference     *string         `json:"reference" gorm:"type:varchar(36);index"`
}
