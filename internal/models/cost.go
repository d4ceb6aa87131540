package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductCost is one entry in a product's cost history. Only the latest entry is active.
type ProductCost struct {
	Base
	ProductID       string           `json:"product_id" gorm:"type:varchar(36);not null;index"`
	Product         *Product         `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	CostPerUnit     decimal.Decimal  `json:"cost_per_unit" gorm:"type:decimal(12,2);not null"`
	RawMaterialCost *decimal.Decimal `json:"raw_material_cost" gorm:"type:decimal(12,2)"`
	LaborCost       *decimal.Decimal `json:"labor_cost" gorm:"type:decimal(12,2)"`
	OverheadCost    *decimal.Decimal `json:"overhead_cost" gorm:"type:decimal(12,2)"`
	Notes           *string          `json:"notes"`
	EffectiveDate   time.Time        `json:"effective_date" gorm:"not null"`
	IsActive        bool             `json:"is_active" gorm:"not null;index"`
}
