package services

import (
	"context"
	"testing"

	"github.com/coffeepula/pos-api/internal/database"
	"github.com/coffeepula/pos-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDatabase(database.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// shop wires every service against one database
type shop struct {
	db        *gorm.DB
	ledger    StockLedger
	recipes   RecipeService
	orders    OrderService
	inventory InventoryService
	menu      MenuService
	loyalty   LoyaltyService
}

func newShop(t *testing.T) *shop {
	db := setupTestDB(t)
	ledger := NewStockLedger(db)
	recipes := NewRecipeService(db)
	return &shop{
		db:        db,
		ledger:    ledger,
		recipes:   recipes,
		orders:    NewOrderService(db, ledger, recipes),
		inventory: NewInventoryService(db, ledger),
		menu:      NewMenuService(db),
		loyalty:   NewLoyaltyService(db, 3),
	}
}

func (s *shop) ingredient(t *testing.T, name, unit, stock string) models.Ingredient {
	t.Helper()
	ing, err := s.inventory.CreateIngredient(context.Background(), IngredientInput{
		Name:         name,
		Unit:         unit,
		CostPerUnit:  dec("0.05"),
		InitialStock: dec(stock),
		MinStock:     dec("100"),
	})
	require.NoError(t, err)
	return ing
}

func (s *shop) product(t *testing.T, name, price string) models.Product {
	t.Helper()
	p, err := s.menu.CreateProduct(context.Background(), ProductInput{
		Name:  name,
		Price: dec(price),
		Cost:  dec("10"),
	})
	require.NoError(t, err)
	return p
}

func (s *shop) recipe(t *testing.T, product models.Product, lines map[string]string) models.Recipe {
	t.Helper()
	input := RecipeInput{ProductID: product.ID}
	for ingredientID, qty := range lines {
		input.Ingredients = append(input.Ingredients, RecipeIngredientInput{IngredientID: ingredientID, Quantity: dec(qty)})
	}
	r, err := s.recipes.CreateRecipe(context.Background(), input)
	require.NoError(t, err)
	return r
}

func (s *shop) stock(t *testing.T, ingredientID string) decimal.Decimal {
	t.Helper()
	ing, err := s.inventory.GetIngredient(context.Background(), ingredientID)
	require.NoError(t, err)
	return ing.CurrentStock
}

func (s *shop) countMovements(t *testing.T, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&models.StockMovement{}).Where(query, args...).Count(&n).Error)
	return n
}

// latteShop is a latte that uses 200ml milk and 18g beans per cup
func latteShop(t *testing.T, milkStock string) (*shop, models.Product, models.Ingredient, models.Ingredient) {
	s := newShop(t)
	milk := s.ingredient(t, "Milk", "ml", milkStock)
	beans := s.ingredient(t, "Espresso Beans", "g", "1000")
	latte := s.product(t, "Latte", "55")
	s.recipe(t, latte, map[string]string{milk.ID: "200", beans.ID: "18"})
	return s, latte, milk, beans
}
