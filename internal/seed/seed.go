package seed

import (
	"context"
	"fmt"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
}

// Services are the writers used to seed; stock enters through the ledger like any delivery
type Services struct {
	Menu      services.MenuService
	Inventory services.InventoryService
	Recipes   services.RecipeService
	Loyalty   services.LoyaltyService
}

type ingredientSeed struct {
	name  string
	unit  string
	cost  string
	stock string
	min   string
}

type productSeed struct {
	name     string
	category string
	price    string
	cost     string
	recipe   map[string]string
}

var ingredientSeeds = []ingredientSeed{
	{name: "Espresso Beans", unit: "g", cost: "0.35", stock: "5000", min: "1000"},
	{name: "Milk", unit: "ml", cost: "0.02", stock: "20000", min: "4000"},
	{name: "Chocolate Syrup", unit: "ml", cost: "0.08", stock: "3000", min: "500"},
	{name: "Matcha Powder", unit: "g", cost: "0.90", stock: "1000", min: "200"},
	{name: "Sugar Syrup", unit: "ml", cost: "0.03", stock: "4000", min: "800"},
	{name: "Cup 12oz", unit: "pcs", cost: "1.50", stock: "500", min: "100"},
}

var productSeeds = []productSeed{
	{name: "Espresso", category: "Coffee", price: "35", cost: "8", recipe: map[string]string{"Espresso Beans": "18", "Cup 12oz": "1"}},
	{name: "Americano", category: "Coffee", price: "45", cost: "9", recipe: map[string]string{"Espresso Beans": "18", "Cup 12oz": "1"}},
	{name: "Latte", category: "Coffee", price: "55", cost: "12", recipe: map[string]string{"Espresso Beans": "18", "Milk": "200", "Cup 12oz": "1"}},
	{name: "Mocha", category: "Coffee", price: "60", cost: "15", recipe: map[string]string{"Espresso Beans": "18", "Milk": "180", "Chocolate Syrup": "30", "Cup 12oz": "1"}},
	{name: "Matcha Latte", category: "Tea", price: "65", cost: "20", recipe: map[string]string{"Matcha Powder": "5", "Milk": "220", "Sugar Syrup": "15", "Cup 12oz": "1"}},
	{name: "Butter Croissant", category: "Bakery", price: "40", cost: "18"},
}

// Run loads the demo menu when the catalog is empty
func Run(ctx context.Context, db *gorm.DB, svc Services) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		log.Info("Database already seeded with initial data")
		return nil
	}
	log.Info("Database is empty, seeding initial data")

	ingredientIDs := make(map[string]string, len(ingredientSeeds))
	for _, s := range ingredientSeeds {
		ing, err := svc.Inventory.CreateIngredient(ctx, services.IngredientInput{
			Name:         s.name,
			Unit:         s.unit,
			CostPerUnit:  decimal.RequireFromString(s.cost),
			InitialStock: decimal.RequireFromString(s.stock),
			MinStock:     decimal.RequireFromString(s.min),
		})
		if err != nil {
			return fmt.Errorf("seed ingredient %s: %w", s.name, err)
		}
		ingredientIDs[s.name] = ing.ID
	}

	categoryIDs := make(map[string]string)
	for _, p := range productSeeds {
		if _, ok := categoryIDs[p.category]; ok {
			continue
		}
		category, err := svc.Menu.CreateCategory(ctx, services.CategoryInput{Name: p.category})
		if err != nil {
			return fmt.Errorf("seed category %s: %w", p.category, err)
		}
		categoryIDs[p.category] = category.ID
	}

	for _, p := range productSeeds {
		categoryID := categoryIDs[p.category]
		product, err := svc.Menu.CreateProduct(ctx, services.ProductInput{
			Name:       p.name,
			Price:      decimal.RequireFromString(p.price),
			Cost:       decimal.RequireFromString(p.cost),
			CategoryID: &categoryID,
		})
		if err != nil {
			return fmt.Errorf("seed product %s: %w", p.name, err)
		}
		if len(p.recipe) == 0 {
			continue
		}

		input := services.RecipeInput{ProductID: product.ID}
		for _, s := range ingredientSeeds {
			qty, ok := p.recipe[s.name]
			if !ok {
				continue
			}
			input.Ingredients = append(input.Ingredients, services.RecipeIngredientInput{
				IngredientID: ingredientIDs[s.name],
				Quantity:     decimal.RequireFromString(qty),
			})
		}
		if _, err := svc.Recipes.CreateRecipe(ctx, input); err != nil {
			return fmt.Errorf("seed recipe for %s: %w", p.name, err)
		}
	}

	silver := models.TierSilver
	rewards := []services.RewardInput{
		{Name: "Free Espresso", PointCost: 50},
		{Name: "Free Latte", PointCost: 80},
		{Name: "Signature Drink", PointCost: 120, RequiredTier: &silver},
	}
	for _, r := range rewards {
		if _, err := svc.Loyalty.CreateReward(ctx, r); err != nil {
			return fmt.Errorf("seed reward %s: %w", r.Name, err)
		}
	}

	log.WithFields(logrus.Fields{
		"ingredients": len(ingredientSeeds),
		"products":    len(productSeeds),
		"rewards":     len(rewards),
	}).Info("Database seeded successfully")
	return nil
}
