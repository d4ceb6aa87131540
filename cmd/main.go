package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/coffeepula/pos-api/docs"
	"github.com/coffeepula/pos-api/internal/auth"
	"github.com/coffeepula/pos-api/internal/config"
	"github.com/coffeepula/pos-api/internal/controllers"
	"github.com/coffeepula/pos-api/internal/database"
	"github.com/coffeepula/pos-api/internal/middleware"
	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/seed"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// application holds everything the router needs
type application struct {
	config      *config.Config
	db          *gorm.DB
	oauth       *auth.OAuthService
	tokens      *auth.GormTokenStore
	orders      controllers.OrderController
	inventory   controllers.InventoryController
	recipes     controllers.RecipeController
	menu        controllers.MenuController
	loyalty     controllers.LoyaltyController
	receipts    controllers.ReceiptController
	promotions  controllers.PromotionController
	reports     controllers.ReportController
	authCtl     *controllers.AuthController
	clients     *controllers.ClientController
	loyaltySvc  services.LoyaltyService
	servicesSet seed.Services
}

//go:generate swag init -d ../ -g cmd/main.go -o ../docs

// @title Coffee Shop POS API
// @version 1.0
// @description Point-of-sale backend: orders deduct recipe ingredients from stock in one transaction.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	loadDotenvFile()
	setUpLogger()

	configuration := loadConfig()

	db, err := database.InitDatabase(configuration.Database())
	checkPanicErr(err)
	checkPanicErr(database.Migrate(db))

	app := newApplication(configuration, db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if configuration.SeedData {
		checkPanicErr(seed.Run(ctx, db, app.servicesSet))
	}

	go services.NewLoyaltyDispatcher(app.loyaltySvc, configuration.LoyaltyPollInterval).Run(ctx)
	go app.purgeExpiredTokens(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", configuration.Host, configuration.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// checkPanicErr panics when startup cannot continue
func checkPanicErr(err error) {
	if err != nil {
		panic(err)
	}
}

// loadDotenvFile loads environment variables from a .env file when present
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger applies one level to every package logger. LOG_LEVEL wins over
// the APP_ENV default.
func setUpLogger() {
	log.SetFormatter(&log.JSONFormatter{})
	level := config.LevelForEnvironment(config.GetEnvWithDefault("APP_ENV", "development"))
	if raw := config.GetEnvWithDefault("LOG_LEVEL", ""); raw != "" {
		parsed, err := log.ParseLevel(raw)
		if err != nil {
			log.WithError(err).Warn("Ignoring invalid LOG_LEVEL")
		} else {
			level = parsed
		}
	}
	log.SetLevel(level)
	services.SetLogLevel(level)
	controllers.SetLogLevel(level)
	database.SetLogLevel(level)
}

func loadConfig() *config.Config {
	conf, err := config.LoadConfig()
	checkPanicErr(err)
	return conf
}

func newApplication(conf *config.Config, db *gorm.DB) *application {
	ledger := services.NewStockLedger(db)
	recipeService := services.NewRecipeService(db)
	orderService := services.NewOrderService(db, ledger, recipeService)
	inventoryService := services.NewInventoryService(db, ledger)
	menuService := services.NewMenuService(db)
	loyaltyService := services.NewLoyaltyService(db, conf.LoyaltyMaxAttempts)
	receiptService := services.NewReceiptService(db, services.ShopInfo{
		Name:    conf.ShopName,
		Address: conf.ShopAddress,
		Phone:   conf.ShopPhone,
	})

	return &application{
		config:     conf,
		db:         db,
		oauth:      auth.NewOAuthService(db, conf.JWTSecret),
		tokens:     auth.NewGormTokenStore(db),
		orders:     controllers.NewOrderController(orderService, loyaltyService),
		inventory:  controllers.NewInventoryController(inventoryService, ledger),
		recipes:    controllers.NewRecipeController(recipeService),
		menu:       controllers.NewMenuController(menuService),
		loyalty:    controllers.NewLoyaltyController(loyaltyService),
		receipts:   controllers.NewReceiptController(receiptService),
		promotions: controllers.NewPromotionController(services.NewPromotionService(db)),
		reports:    controllers.NewReportController(services.NewReportService(db)),
		authCtl:    controllers.NewAuthController(services.NewUserService(db), conf.JWTSecret),
		clients:    controllers.NewClientController(services.NewClientService(db)),
		loyaltySvc: loyaltyService,
		servicesSet: seed.Services{
			Menu:      menuService,
			Inventory: inventoryService,
			Recipes:   recipeService,
			Loyalty:   loyaltyService,
		},
	}
}

// purgeExpiredTokens drops stored access tokens once an hour
func (a *application) purgeExpiredTokens(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := a.tokens.PurgeExpired(ctx, now)
			if err != nil {
				log.WithError(err).Warn("Failed to purge expired tokens")
				continue
			}
			if removed > 0 {
				log.WithField("removed", removed).Debug("Expired tokens purged")
			}
		}
	}
}

func (a *application) setupRouter() *gin.Engine {
	if a.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log.StandardLogger()))
	router.Use(middleware.CORS(a.config.CORSOrigins))

	a.setupRoutes(router)
	return router
}

func (a *application) authMiddleware() gin.HandlerFunc {
	if a.config.AuthDisabled {
		log.Warn("AUTH_DISABLED is set: every request acts as manager user 1")
		return middleware.AuthDisabled()
	}
	return middleware.OAuth2Auth([]byte(a.config.JWTSecret))
}

func (a *application) setupRoutes(router *gin.Engine) {
	router.GET("/health", a.healthCheckHandler)
	router.POST("/oauth/token", a.oauth.HandleToken)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	staff := middleware.RequireRole(models.RoleManager, models.RoleCashier)
	manager := middleware.RequireRole(models.RoleManager)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Timeout(a.config.RequestTimeout))
	v1.POST("/auth/login", a.authCtl.Login)

	api := v1.Group("")
	api.Use(a.authMiddleware(), staff)
	{
		api.GET("/auth/me", a.authCtl.Me)
		api.POST("/users", manager, a.authCtl.CreateUser)

		api.POST("/clients", a.clients.CreateClient)
		api.GET("/clients", a.clients.ListClients)
		api.DELETE("/clients/:id", a.clients.DeleteClient)

		api.POST("/orders", a.orders.PlaceOrder)
		api.GET("/orders", a.orders.ListOrders)
		api.GET("/orders/:id", a.orders.GetOrder)
		api.PATCH("/orders/:id/status", a.orders.UpdateOrderStatus)
		api.POST("/orders/:id/discount/quote", a.promotions.QuoteDiscount)
		api.POST("/orders/:id/discount", a.promotions.ApplyDiscount)

		api.GET("/categories", a.menu.ListCategories)
		api.POST("/categories", manager, a.menu.CreateCategory)
		api.GET("/products", a.menu.ListProducts)
		api.GET("/products/:id", a.menu.GetProduct)
		api.POST("/products", manager, a.menu.CreateProduct)
		api.PUT("/products/:id", manager, a.menu.UpdateProduct)
		api.DELETE("/products/:id", manager, a.menu.DeleteProduct)
		api.GET("/products/:id/recipe", a.recipes.GetRecipeByProduct)
		api.GET("/products/:id/costs", manager, a.menu.ProductCostHistory)
		api.POST("/products/:id/costs", manager, a.menu.RecordProductCost)

		api.GET("/recipes", a.recipes.ListRecipes)
		api.GET("/recipes/:id", a.recipes.GetRecipe)
		api.POST("/recipes", manager, a.recipes.CreateRecipe)
		api.PUT("/recipes/:id", manager, a.recipes.ReplaceRecipe)
		api.DELETE("/recipes/:id", manager, a.recipes.DeleteRecipe)

		inventory := api.Group("/inventory")
		inventory.GET("/ingredients", a.inventory.ListIngredients)
		inventory.GET("/ingredients/:id", a.inventory.GetIngredient)
		inventory.POST("/ingredients", manager, a.inventory.CreateIngredient)
		inventory.PUT("/ingredients/:id", manager, a.inventory.UpdateIngredient)
		inventory.GET("/movements", a.inventory.ListMovements)
		inventory.POST("/movements", manager, a.inventory.RecordMovement)
		inventory.GET("/movements/export", manager, a.inventory.ExportMovements)

		loyalty := api.Group("/loyalty")
		loyalty.POST("/members", a.loyalty.CreateMember)
		loyalty.GET("/members", a.loyalty.ListMembers)
		loyalty.GET("/members/:id", a.loyalty.GetMember)
		loyalty.PUT("/members/:id", a.loyalty.UpdateMember)
		loyalty.GET("/member-numbers/:number", a.loyalty.GetMemberByNumber)
		loyalty.GET("/members/:id/history", a.loyalty.PointHistory)
		loyalty.POST("/members/:id/redeem", a.loyalty.Redeem)
		loyalty.GET("/rewards", a.loyalty.ListRewards)
		loyalty.POST("/rewards", manager, a.loyalty.CreateReward)
		loyalty.GET("/point-rules", a.loyalty.ListPointRules)
		loyalty.POST("/point-rules", manager, a.loyalty.CreatePointRule)
		loyalty.GET("/stats", manager, a.loyalty.Stats)
		loyalty.POST("/events/process", manager, a.loyalty.ProcessPending)

		api.POST("/receipts", a.receipts.CreateReceipt)
		api.GET("/receipts", a.receipts.ListReceipts)
		api.GET("/receipts/:id", a.receipts.GetReceipt)
		api.GET("/receipts/:id/text", a.receipts.RenderReceipt)
		api.POST("/receipts/:id/print", a.receipts.PrintReceipt)
		api.POST("/receipts/:id/void", manager, a.receipts.VoidReceipt)
		api.GET("/printers", a.receipts.ListPrinters)
		api.POST("/printers", manager, a.receipts.CreatePrinter)
		api.PUT("/printers/:id", manager, a.receipts.UpdatePrinter)
		api.DELETE("/printers/:id", manager, a.receipts.DeletePrinter)
		api.GET("/print-jobs", a.receipts.ListPrintJobs)

		api.GET("/promotions", a.promotions.ListPromotions)
		api.GET("/promotions/active", a.promotions.ActivePromotions)
		api.POST("/promotions", manager, a.promotions.CreatePromotion)
		api.PUT("/promotions/:id", manager, a.promotions.UpdatePromotion)
		api.DELETE("/promotions/:id", manager, a.promotions.DeletePromotion)
		api.GET("/promotion-usage", manager, a.promotions.ListUsage)
		api.GET("/coupons", manager, a.promotions.ListCoupons)
		api.POST("/coupons", manager, a.promotions.CreateCoupon)
		api.GET("/coupons/:code/validate", a.promotions.ValidateCoupon)

		reports := api.Group("/reports", manager)
		reports.GET("/daily", a.reports.DailyProfit)
		reports.GET("/daily/export", a.reports.ExportDailyProfit)
		reports.GET("/products", a.reports.ProductProfit)
		reports.GET("/analytics", a.reports.ProfitAnalytics)
	}
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check that the service and its database are reachable
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (a *application) healthCheckHandler(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "pos-api",
	})
}
