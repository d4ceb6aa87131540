package controllers

import (
	"net/http"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RecipeController handles recipe management
type RecipeController interface {
	ListRecipes(c *gin.Context)
	GetRecipe(c *gin.Context)
	GetRecipeByProduct(c *gin.Context)
	CreateRecipe(c *gin.Context)
	ReplaceRecipe(c *gin.Context)
	DeleteRecipe(c *gin.Context)
}

type recipeController struct {
	recipes services.RecipeService
}

// NewRecipeController creates a new instance of RecipeController
func NewRecipeController(recipes services.RecipeService) RecipeController {
	return &recipeController{recipes: recipes}
}

// RecipeResponse is a recipe with its ingredient cost per unit of product
type RecipeResponse struct {
	models.Recipe
	Cost decimal.Decimal `json:"cost"`
}

func recipeResponse(r models.Recipe) RecipeResponse {
	return RecipeResponse{Recipe: r, Cost: services.RecipeCost(r)}
}

// ListRecipes godoc
// @Summary List recipes
// @Tags recipes
// @Produce json
// @Success 200 {array} RecipeResponse
// @Security BearerAuth
// @Router /api/v1/recipes [get]
func (c *recipeController) ListRecipes(ctx *gin.Context) {
	recipes, err := c.recipes.ListRecipes(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	resp := make([]RecipeResponse, 0, len(recipes))
	for _, r := range recipes {
		resp = append(resp, recipeResponse(r))
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetRecipe godoc
// @Summary Get recipe by ID
// @Tags recipes
// @Produce json
// @Param id path string true "Recipe ID"
// @Success 200 {object} RecipeResponse
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/recipes/{id} [get]
func (c *recipeController) GetRecipe(ctx *gin.Context) {
	recipe, err := c.recipes.GetRecipe(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, recipeResponse(recipe))
}

// GetRecipeByProduct godoc
// @Summary Get the recipe of a product
// @Tags recipes
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} RecipeResponse
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/products/{id}/recipe [get]
func (c *recipeController) GetRecipeByProduct(ctx *gin.Context) {
	recipe, err := c.recipes.GetRecipeByProduct(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, recipeResponse(recipe))
}

// CreateRecipe godoc
// @Summary Create a recipe
// @Description A product has at most one recipe
// @Tags recipes
// @Accept json
// @Produce json
// @Param recipe body services.RecipeInput true "Recipe"
// @Success 201 {object} RecipeResponse
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/recipes [post]
func (c *recipeController) CreateRecipe(ctx *gin.Context) {
	var input services.RecipeInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	recipe, err := c.recipes.CreateRecipe(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, recipeResponse(recipe))
}

// ReplaceRecipe godoc
// @Summary Replace a recipe
// @Description Full replace: the submitted ingredient list becomes the whole recipe
// @Tags recipes
// @Accept json
// @Produce json
// @Param id path string true "Recipe ID"
// @Param recipe body services.RecipeInput true "Complete recipe"
// @Success 200 {object} RecipeResponse
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/recipes/{id} [put]
func (c *recipeController) ReplaceRecipe(ctx *gin.Context) {
	var input services.RecipeInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	recipe, err := c.recipes.ReplaceRecipe(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, recipeResponse(recipe))
}

// DeleteRecipe godoc
// @Summary Delete a recipe
// @Tags recipes
// @Param id path string true "Recipe ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/recipes/{id} [delete]
func (c *recipeController) DeleteRecipe(ctx *gin.Context) {
	if err := c.recipes.DeleteRecipe(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
