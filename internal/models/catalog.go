package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups products on the menu
type Category struct {
	Base
	Name        string  `json:"name" gorm:"uniqueIndex;not null"`
	Description *string `json:"description"`
}

// Product is a sellable menu item. It has at most one Recipe.
type Product struct {
	Base
	Name        string          `json:"name" gorm:"not null"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Cost        decimal.Decimal `json:"cost" gorm:"type:decimal(12,2);not null"`
	Image       *string         `json:"image"`
	Available   bool            `json:"available" gorm:"not null"`
	CategoryID  *string         `json:"category_id" gorm:"type:varchar(36);index"`
	Category    *Category       `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Recipe      *Recipe         `json:"recipe,omitempty" gorm:"foreignKey:ProductID"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`
}
