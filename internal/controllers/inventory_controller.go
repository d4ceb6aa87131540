package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// InventoryController handles ingredients and stock movements
type InventoryController interface {
	ListIngredients(c *gin.Context)
	GetIngredient(c *gin.Context)
	CreateIngredient(c *gin.Context)
	UpdateIngredient(c *gin.Context)
	// RecordMovement applies a manual IN, OUT or ADJUST movement
	RecordMovement(c *gin.Context)
	ListMovements(c *gin.Context)
	ExportMovements(c *gin.Context)
}

type inventoryController struct {
	inventory services.InventoryService
	ledger    services.StockLedger
}

// NewInventoryController creates a new instance of InventoryController
func NewInventoryController(inventory services.InventoryService, ledger services.StockLedger) InventoryController {
	return &inventoryController{inventory: inventory, ledger: ledger}
}

// MovementRequest is the body of a manual stock movement
type MovementRequest struct {
	IngredientID string              `json:"ingredientId" binding:"required"`
	Type         models.MovementType `json:"type" binding:"required"`
	Quantity     decimal.Decimal     `json:"quantity"`
	Reason       *string             `json:"reason"`
	Reference    *string             `json:"reference"`
}

// ListIngredients godoc
// @Summary List ingredients
// @Tags inventory
// @Produce json
// @Param low_stock query bool false "Only ingredients at or below their minimum"
// @Success 200 {array} models.Ingredient
// @Security BearerAuth
// @Router /api/v1/inventory/ingredients [get]
func (c *inventoryController) ListIngredients(ctx *gin.Context) {
	lowOnly, _ := strconv.ParseBool(ctx.Query("low_stock"))
	ingredients, err := c.inventory.ListIngredients(ctx.Request.Context(), lowOnly)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, ingredients)
}

// GetIngredient godoc
// @Summary Get ingredient by ID
// @Tags inventory
// @Produce json
// @Param id path string true "Ingredient ID"
// @Success 200 {object} models.Ingredient
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/inventory/ingredients/{id} [get]
func (c *inventoryController) GetIngredient(ctx *gin.Context) {
	ingredient, err := c.inventory.GetIngredient(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, ingredient)
}

// CreateIngredient godoc
// @Summary Create an ingredient
// @Description Initial stock is recorded as an IN movement
// @Tags inventory
// @Accept json
// @Produce json
// @Param ingredient body services.IngredientInput true "Ingredient"
// @Success 201 {object} models.Ingredient
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/inventory/ingredients [post]
func (c *inventoryController) CreateIngredient(ctx *gin.Context) {
	var input services.IngredientInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	ingredient, err := c.inventory.CreateIngredient(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, ingredient)
}

// UpdateIngredient godoc
// @Summary Update ingredient details
// @Description Changes metadata only; use stock movements to change the balance
// @Tags inventory
// @Accept json
// @Produce json
// @Param id path string true "Ingredient ID"
// @Param ingredient body services.IngredientUpdate true "Fields to change"
// @Success 200 {object} models.Ingredient
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/inventory/ingredients/{id} [put]
func (c *inventoryController) UpdateIngredient(ctx *gin.Context) {
	var input services.IngredientUpdate
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	ingredient, err := c.inventory.UpdateIngredient(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, ingredient)
}

// RecordMovement godoc
// @Summary Record a stock movement
// @Description IN adds, OUT subtracts and ADJUST sets the balance to the given quantity
// @Tags inventory
// @Accept json
// @Produce json
// @Param movement body MovementRequest true "Movement"
// @Success 201 {object} services.MovementResult
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Failure 500 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/inventory/movements [post]
func (c *inventoryController) RecordMovement(ctx *gin.Context) {
	var req MovementRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}
	result, err := c.ledger.RecordMovement(ctx.Request.Context(), services.MovementRequest{
		IngredientID: req.IngredientID,
		Type:         req.Type,
		Quantity:     req.Quantity,
		Reason:       req.Reason,
		Reference:    req.Reference,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, result)
}

func movementFilter(ctx *gin.Context) services.MovementFilter {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	return services.MovementFilter{
		IngredientID: ctx.Query("ingredient_id"),
		Type:         models.MovementType(ctx.Query("type")),
		Reference:    ctx.Query("reference"),
		Limit:        limit,
	}
}

// ListMovements godoc
// @Summary List stock movements
// @Description Latest movements first (default 50, max 500)
// @Tags inventory
// @Produce json
// @Param ingredient_id query string false "Filter by ingredient"
// @Param type query string false "IN, OUT or ADJUST"
// @Param reference query string false "Filter by reference, such as an order id"
// @Param limit query int false "Maximum number of rows"
// @Success 200 {array} models.StockMovement
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/inventory/movements [get]
func (c *inventoryController) ListMovements(ctx *gin.Context) {
	movements, err := c.inventory.ListMovements(ctx.Request.Context(), movementFilter(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, movements)
}

// ExportMovements godoc
// @Summary Export stock movements
// @Tags inventory
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param ingredient_id query string false "Filter by ingredient"
// @Param type query string false "IN, OUT or ADJUST"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /api/v1/inventory/movements/export [get]
func (c *inventoryController) ExportMovements(ctx *gin.Context) {
	data, err := c.inventory.ExportMovements(ctx.Request.Context(), movementFilter(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	sendWorkbook(ctx, fmt.Sprintf("stock-movements-%s.xlsx", time.Now().Format("20060102")), data)
}

func sendWorkbook(ctx *gin.Context, filename string, data []byte) {
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Data(http.StatusOK, services.XLSXContentType, data)
}
