package controllers

import (
	"net/http"
	"strconv"

	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
)

// MenuController handles categories, products and product costs
type MenuController interface {
	ListCategories(c *gin.Context)
	CreateCategory(c *gin.Context)
	ListProducts(c *gin.Context)
	GetProduct(c *gin.Context)
	CreateProduct(c *gin.Context)
	UpdateProduct(c *gin.Context)
	DeleteProduct(c *gin.Context)
	RecordProductCost(c *gin.Context)
	ProductCostHistory(c *gin.Context)
}

type menuController struct {
	menu services.MenuService
}

// NewMenuController creates a new instance of MenuController
func NewMenuController(menu services.MenuService) MenuController {
	return &menuController{menu: menu}
}

// ListCategories godoc
// @Summary List categories
// @Tags menu
// @Produce json
// @Success 200 {array} models.Category
// @Security BearerAuth
// @Router /api/v1/categories [get]
func (c *menuController) ListCategories(ctx *gin.Context) {
	categories, err := c.menu.ListCategories(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, categories)
}

// CreateCategory godoc
// @Summary Create a category
// @Tags menu
// @Accept json
// @Produce json
// @Param category body services.CategoryInput true "Category"
// @Success 201 {object} models.Category
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/categories [post]
func (c *menuController) CreateCategory(ctx *gin.Context) {
	var input services.CategoryInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	category, err := c.menu.CreateCategory(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, category)
}

// ListProducts godoc
// @Summary List products
// @Description Available products only unless include_unavailable is set
// @Tags menu
// @Produce json
// @Param category_id query string false "Filter by category"
// @Param include_unavailable query bool false "Include products that are not for sale"
// @Success 200 {array} models.Product
// @Security BearerAuth
// @Router /api/v1/products [get]
func (c *menuController) ListProducts(ctx *gin.Context) {
	includeUnavailable, _ := strconv.ParseBool(ctx.Query("include_unavailable"))
	products, err := c.menu.ListProducts(ctx.Request.Context(), services.ProductFilter{
		CategoryID:         ctx.Query("category_id"),
		IncludeUnavailable: includeUnavailable,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, products)
}

// GetProduct godoc
// @Summary Get product by ID
// @Tags menu
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.Product
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/products/{id} [get]
func (c *menuController) GetProduct(ctx *gin.Context) {
	product, err := c.menu.GetProduct(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

// CreateProduct godoc
// @Summary Create a product
// @Tags menu
// @Accept json
// @Produce json
// @Param product body services.ProductInput true "Product"
// @Success 201 {object} models.Product
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/products [post]
func (c *menuController) CreateProduct(ctx *gin.Context) {
	var input services.ProductInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	product, err := c.menu.CreateProduct(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, product)
}

// UpdateProduct godoc
// @Summary Update a product
// @Tags menu
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param product body services.ProductInput true "Product"
// @Success 200 {object} models.Product
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/products/{id} [put]
func (c *menuController) UpdateProduct(ctx *gin.Context) {
	var input services.ProductInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	product, err := c.menu.UpdateProduct(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

// DeleteProduct godoc
// @Summary Delete a product
// @Description Soft delete; past orders keep their reference
// @Tags menu
// @Param id path string true "Product ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/products/{id} [delete]
func (c *menuController) DeleteProduct(ctx *gin.Context) {
	if err := c.menu.DeleteProduct(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// RecordProductCost godoc
// @Summary Record a product cost
// @Description The new entry becomes active and is copied to the product
// @Tags menu
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param cost body services.ProductCostInput true "Cost breakdown"
// @Success 201 {object} models.ProductCost
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/products/{id}/costs [post]
func (c *menuController) RecordProductCost(ctx *gin.Context) {
	var input services.ProductCostInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	cost, err := c.menu.RecordProductCost(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, cost)
}

// ProductCostHistory godoc
// @Summary List product cost history
// @Tags menu
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {array} models.ProductCost
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/products/{id}/costs [get]
func (c *menuController) ProductCostHistory(ctx *gin.Context) {
	costs, err := c.menu.ProductCostHistory(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, costs)
}
