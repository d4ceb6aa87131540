package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/coffeepula/pos-api/internal/database"
	"github.com/coffeepula/pos-api/internal/middleware"
	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "controller-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// testAPI is the router over real services on an in-memory database
type testAPI struct {
	db        *gorm.DB
	router    *gin.Engine
	inventory services.InventoryService
	menu      services.MenuService
	recipes   services.RecipeService
	loyalty   services.LoyaltyService
	users     services.UserService
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := database.InitDatabase(database.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	ledger := services.NewStockLedger(db)
	recipes := services.NewRecipeService(db)
	loyalty := services.NewLoyaltyService(db, 3)
	api := &testAPI{
		db:        db,
		inventory: services.NewInventoryService(db, ledger),
		menu:      services.NewMenuService(db),
		recipes:   recipes,
		loyalty:   loyalty,
		users:     services.NewUserService(db),
	}

	orders := NewOrderController(services.NewOrderService(db, ledger, recipes), loyalty)
	inventory := NewInventoryController(api.inventory, ledger)
	authController := NewAuthController(api.users, testJWTSecret)

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", authController.Login)

	staff := v1.Group("", middleware.AuthDisabled())
	staff.POST("/orders", orders.PlaceOrder)
	staff.GET("/orders/:id", orders.GetOrder)
	staff.PATCH("/orders/:id/status", orders.UpdateOrderStatus)
	staff.GET("/inventory/ingredients", inventory.ListIngredients)
	staff.POST("/inventory/movements", inventory.RecordMovement)
	staff.GET("/inventory/movements/export", inventory.ExportMovements)

	api.router = router
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// latte seeds a latte using 200ml milk per cup and returns the product and milk ids
func (a *testAPI) latte(t *testing.T, milkStock string) (string, string) {
	t.Helper()
	ctx := context.Background()
	milk, err := a.inventory.CreateIngredient(ctx, services.IngredientInput{
		Name:         "Milk",
		Unit:         "ml",
		InitialStock: decimal.RequireFromString(milkStock),
	})
	require.NoError(t, err)
	product, err := a.menu.CreateProduct(ctx, services.ProductInput{Name: "Latte", Price: decimal.NewFromInt(55)})
	require.NoError(t, err)
	_, err = a.recipes.CreateRecipe(ctx, services.RecipeInput{
		ProductID:   product.ID,
		Ingredients: []services.RecipeIngredientInput{{IngredientID: milk.ID, Quantity: decimal.NewFromInt(200)}},
	})
	require.NoError(t, err)
	return product.ID, milk.ID
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var apiErr models.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr), w.Body.String())
	return apiErr
}
