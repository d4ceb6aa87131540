package services

import (
	"context"
	"fmt"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RecipeIngredientInput is one ingredient line of a recipe write
type RecipeIngredientInput struct {
	IngredientID string          `json:"ingredient_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// RecipeInput is the complete desired state of a recipe. Updates replace the
// whole ingredient list; callers must always send every ingredient.
type RecipeInput struct {
	ProductID    string                  `json:"product_id"`
	Instructions *string                 `json:"instructions"`
	PrepTime     *int                    `json:"prep_time"`
	Ingredients  []RecipeIngredientInput `json:"ingredients"`
}

// Consumption is the amount of one ingredient used per unit of a product
type Consumption struct {
	IngredientID    string          `json:"ingredient_id"`
	IngredientName  string          `json:"ingredient_name"`
	Unit            string          `json:"unit"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
}

// RecipeService manages recipes and resolves what a product consumes
type RecipeService interface {
	ListRecipes(ctx context.Context) ([]models.Recipe, error)
	GetRecipe(ctx context.Context, id string) (models.Recipe, error)
	GetRecipeByProduct(ctx context.Context, productID string) (models.Recipe, error)
	CreateRecipe(ctx context.Context, input RecipeInput) (models.Recipe, error)
	// ReplaceRecipe deletes every ingredient row of the recipe and inserts the new set
	ReplaceRecipe(ctx context.Context, id string, input RecipeInput) (models.Recipe, error)
	DeleteRecipe(ctx context.Context, id string) error
	// Resolve returns the product's recipe and consumption list. A product
	// without a recipe yields a nil recipe and an empty list, not an error.
	Resolve(ctx context.Context, productID string) (*models.Recipe, []Consumption, error)
	// ResolveTx is Resolve inside the caller's transaction
	ResolveTx(tx *gorm.DB, productID string) (*models.Recipe, []Consumption, error)
}

type recipeService struct {
	db *gorm.DB
}

// NewRecipeService creates a new instance of RecipeService
func NewRecipeService(db *gorm.DB) RecipeService {
	return &recipeService{db: db}
}

// RecipeCost is the ingredient cost of one unit of the recipe's product
func RecipeCost(recipe models.Recipe) decimal.Decimal {
	total := decimal.Zero
	for _, ri := range recipe.Ingredients {
		if ri.Ingredient == nil {
			continue
		}
		total = total.Add(ri.Ingredient.CostPerUnit.Mul(ri.Quantity))
	}
	return total
}

func withRecipeAssociations(db *gorm.DB) *gorm.DB {
	return db.Preload("Product").Preload("Ingredients.Ingredient")
}

func (s *recipeService) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	var recipes []models.Recipe
	if err := withRecipeAssociations(s.db.WithContext(ctx)).Order("created_at").Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return recipes, nil
}

func (s *recipeService) GetRecipe(ctx context.Context, id string) (models.Recipe, error) {
	var recipe models.Recipe
	if err := withRecipeAssociations(s.db.WithContext(ctx)).First(&recipe, "id = ?", id).Error; err != nil {
		return models.Recipe{}, notFoundOr(err, "recipe", id)
	}
	return recipe, nil
}

func (s *recipeService) GetRecipeByProduct(ctx context.Context, productID string) (models.Recipe, error) {
	var recipe models.Recipe
	if err := withRecipeAssociations(s.db.WithContext(ctx)).First(&recipe, "product_id = ?", productID).Error; err != nil {
		return models.Recipe{}, notFoundOr(err, "recipe for product", productID)
	}
	return recipe, nil
}

func (s *recipeService) CreateRecipe(ctx context.Context, input RecipeInput) (models.Recipe, error) {
	if input.ProductID == "" {
		return models.Recipe{}, invalid("product_id", "is required")
	}
	if err := validateRecipeIngredients(input.Ingredients); err != nil {
		return models.Recipe{}, err
	}

	var recipeID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", input.ProductID).Error; err != nil {
			return notFoundOr(err, "product", input.ProductID)
		}

		var existing int64
		if err := tx.Model(&models.Recipe{}).Where("product_id = ?", input.ProductID).Count(&existing).Error; err != nil {
			return fmt.Errorf("check existing recipe: %w", err)
		}
		if existing > 0 {
			return invalid("product_id", "product %s already has a recipe", product.Name)
		}

		recipe := models.Recipe{
			ProductID:    input.ProductID,
			Instructions: input.Instructions,
			PrepTime:     input.PrepTime,
		}
		if err := tx.Create(&recipe).Error; err != nil {
			return fmt.Errorf("create recipe: %w", err)
		}
		recipeID = recipe.ID
		return insertRecipeIngredients(tx, recipe.ID, input.Ingredients)
	})
	if err != nil {
		return models.Recipe{}, err
	}

	log.WithField("recipe_id", recipeID).Info("Recipe created")
	return s.GetRecipe(ctx, recipeID)
}

func (s *recipeService) ReplaceRecipe(ctx context.Context, id string, input RecipeInput) (models.Recipe, error) {
	if err := validateRecipeIngredients(input.Ingredients); err != nil {
		return models.Recipe{}, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe models.Recipe
		if err := tx.First(&recipe, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "recipe", id)
		}

		recipe.Instructions = input.Instructions
		recipe.PrepTime = input.PrepTime
		if err := tx.Save(&recipe).Error; err != nil {
			return fmt.Errorf("update recipe: %w", err)
		}

		if err := tx.Where("recipe_id = ?", id).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return fmt.Errorf("delete recipe ingredients: %w", err)
		}
		return insertRecipeIngredients(tx, id, input.Ingredients)
	})
	if err != nil {
		return models.Recipe{}, err
	}

	log.WithFields(logrus.Fields{
		"recipe_id":   id,
		"ingredients": len(input.Ingredients),
	}).Info("Recipe replaced")
	return s.GetRecipe(ctx, id)
}

func (s *recipeService) DeleteRecipe(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", id).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return fmt.Errorf("delete recipe ingredients: %w", err)
		}
		result := tx.Delete(&models.Recipe{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("delete recipe: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return &NotFoundError{Resource: "recipe", ID: id}
		}
		return nil
	})
}

func (s *recipeService) Resolve(ctx context.Context, productID string) (*models.Recipe, []Consumption, error) {
	return s.ResolveTx(s.db.WithContext(ctx), productID)
}

func (s *recipeService) ResolveTx(tx *gorm.DB, productID string) (*models.Recipe, []Consumption, error) {
	var recipes []models.Recipe
	err := tx.Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at").Order("id")
	}).Preload("Ingredients.Ingredient").
		Where("product_id = ?", productID).
		Limit(1).
		Find(&recipes).Error
	if err != nil {
		return nil, nil, fmt.Errorf("resolve recipe of product %s: %w", productID, err)
	}
	if len(recipes) == 0 {
		return nil, []Consumption{}, nil
	}

	recipe := recipes[0]
	consumption := make([]Consumption, 0, len(recipe.Ingredients))
	for _, ri := range recipe.Ingredients {
		if ri.Ingredient == nil {
			return nil, nil, &NotFoundError{Resource: "ingredient", ID: ri.IngredientID}
		}
		consumption = append(consumption, Consumption{
			IngredientID:    ri.IngredientID,
			IngredientName:  ri.Ingredient.Name,
			Unit:            ri.Ingredient.Unit,
			QuantityPerUnit: ri.Quantity,
		})
	}
	return &recipe, consumption, nil
}

func validateRecipeIngredients(ingredients []RecipeIngredientInput) error {
	seen := make(map[string]bool, len(ingredients))
	for i, ing := range ingredients {
		field := fmt.Sprintf("ingredients[%d]", i)
		if ing.IngredientID == "" {
			return invalid(field+".ingredient_id", "is required")
		}
		if !ing.Quantity.Round(StockScale).IsPositive() {
			return invalid(field+".quantity", "must be at least 0.001")
		}
		if seen[ing.IngredientID] {
			return invalid(field+".ingredient_id", "ingredient %s is listed more than once", ing.IngredientID)
		}
		seen[ing.IngredientID] = true
	}
	return nil
}

func insertRecipeIngredients(tx *gorm.DB, recipeID string, ingredients []RecipeIngredientInput) error {
	for _, ing := range ingredients {
		var count int64
		if err := tx.Model(&models.Ingredient{}).Where("id = ?", ing.IngredientID).Count(&count).Error; err != nil {
			return fmt.Errorf("check ingredient %s: %w", ing.IngredientID, err)
		}
		if count == 0 {
			return &NotFoundError{Resource: "ingredient", ID: ing.IngredientID}
		}

		row := models.RecipeIngredient{
			RecipeID:     recipeID,
			IngredientID: ing.IngredientID,
			Quantity:     ing.Quantity.Round(StockScale),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create recipe ingredient: %w", err)
		}
	}
	return nil
}
