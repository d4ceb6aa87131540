package database

import (
	"fmt"

	"github.com/coffeepula/pos-api/internal/models"
	"gorm.io/gorm"
)

// AllModels lists every table in migration order
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.OAuthClient{},
		&models.OAuthToken{},
		&models.Category{},
		&models.Product{},
		&models.ProductCost{},
		&models.Ingredient{},
		&models.StockMovement{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.Member{},
		&models.Order{},
		&models.OrderItem{},
		&models.PointHistory{},
		&models.TierUpgrade{},
		&models.Reward{},
		&models.RewardRedemption{},
		&models.LoyaltyEvent{},
		&models.PointRule{},
		&models.Promotion{},
		&models.Coupon{},
		&models.PromotionUsage{},
		&models.Receipt{},
		&models.PrinterConfig{},
		&models.PrintJob{},
	}
}

// partialIndexes are constraints gorm tags cannot express. Postgres and
// SQLite both accept this syntax.
var partialIndexes = []string{
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_receipts_live_order ON receipts (order_id) WHERE is_voided = false",
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	log.Info("Running database migrations")
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create partial index: %w", err)
		}
	}
	log.Info("Database migrations completed")
	return nil
}
