package models

import (
	"github.com/shopspring/decimal"
)

// Recipe is the bill of materials for one product
type Recipe struct {
	Base
	ProductID    string             `json:"product_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Product      *Product           `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Instructions *string            `json:"instructions"`
	PrepTime     *int               `json:"prep_time"` // minutes
	Ingredients  []RecipeIngredient `json:"ingredients,omitempty" gorm:"foreignKey:RecipeID"`
}

// RecipeIngredient is the amount of one ingredient consumed per unit of product sold
type RecipeIngredient struct {
	Base
	RecipeID     string          `json:"recipe_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_recipe_ingredient"`
	IngredientID string          `json:"ingredient_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_recipe_ingredient"`
	Ingredient   *Ingredient     `json:"ingredient,omitempty" gorm:"foreignKey:IngredientID"`
	Quantity     decimal.Decimal `json:"quantity" gorm:"type:decimal(14,3);not null"`
}
