package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OrderLine is one cart line submitted by the till
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	// Price is the unit price the till displayed. When present it must match
	// the catalog price; the catalog price is always what gets recorded.
	Price *decimal.Decimal `json:"price"`
}

// PlaceOrderRequest is a cart submission
type PlaceOrderRequest struct {
	Items        []OrderLine `json:"items"`
	CustomerName *string     `json:"customerName"`
	MemberID     *string     `json:"memberId"`
	Notes        *string     `json:"notes"`
}

func (r PlaceOrderRequest) validate() error {
	if len(r.Items) == 0 {
		return invalid("items", "at least one item is required")
	}
	for i, line := range r.Items {
		field := fmt.Sprintf("items[%d]", i)
		if line.ProductID == "" {
			return invalid(field+".productId", "is required")
		}
		if line.Quantity < 1 {
			return invalid(field+".quantity", "must be at least 1")
		}
		if line.Price != nil && line.Price.IsNegative() {
			return invalid(field+".price", "must not be negative")
		}
	}
	return nil
}

// LineConsumption is the recipe data resolved for one order line
type LineConsumption struct {
	LineNo      int           `json:"line_no"`
	ProductID   string        `json:"product_id"`
	RecipeID    *string       `json:"recipe_id"`
	Ingredients []Consumption `json:"ingredients"`
}

// PlacedOrder is the committed order with the recipe data used to deduct stock
type PlacedOrder struct {
	Order          models.Order
	Consumption    []LineConsumption
	LoyaltyEventID *string
}

// OrderFilter narrows an order listing
type OrderFilter struct {
	Status models.OrderStatus
	Limit  int
}

// OrderService places and manages orders
type OrderService interface {
	// PlaceOrder creates the order, its items and every stock deduction as
	// one transaction. Any failure leaves no trace.
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlacedOrder, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	GetOrder(ctx context.Context, id string) (models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (models.Order, error)
}

type orderService struct {
	db      *gorm.DB
	ledger  StockLedger
	recipes RecipeService
	now     func() time.Time
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(db *gorm.DB, ledger StockLedger, recipes RecipeService) OrderService {
	return &orderService{db: db, ledger: ledger, recipes: recipes, now: time.Now}
}

// newOrderNumber builds ORD-YYYYMMDD-xxxxxxxx; the suffix comes from a UUID so
// numbers stay unique across concurrent tills
func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

func (s *orderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlacedOrder, error) {
	if err := req.validate(); err != nil {
		return PlacedOrder{}, err
	}

	var placed PlacedOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := loadOrderProducts(tx, req.Items)
		if err != nil {
			return err
		}

		if req.MemberID != nil && *req.MemberID != "" {
			var member models.Member
			if err := tx.First(&member, "id = ?", *req.MemberID).Error; err != nil {
				return notFoundOr(err, "member", *req.MemberID)
			}
			if !member.IsActive {
				return invalid("memberId", "member %s is not active", member.MemberNumber)
			}
		} else {
			req.MemberID = nil
		}

		order := models.Order{
			OrderNumber:  newOrderNumber(s.now()),
			Status:       models.OrderStatusPending,
			CustomerName: req.CustomerName,
			MemberID:     req.MemberID,
			Notes:        req.Notes,
		}
		total := decimal.Zero
		for i, line := range req.Items {
			product := products[line.ProductID]
			price, err := linePrice(product, line, i)
			if err != nil {
				return err
			}
			subtotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			order.Items = append(order.Items, models.OrderItem{
				LineNo:    i + 1,
				ProductID: product.ID,
				Quantity:  line.Quantity,
				Price:     price,
				Subtotal:  subtotal,
			})
			total = total.Add(subtotal)
		}
		order.TotalAmount = total

		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		consumption, needed, err := s.resolveConsumption(tx, order.Items)
		if err != nil {
			return err
		}
		if err := checkStock(tx, needed); err != nil {
			return err
		}
		if err := s.deductStock(tx, order, products, consumption); err != nil {
			return err
		}

		if order.MemberID != nil {
			event := models.LoyaltyEvent{
				OrderID:  order.ID,
				MemberID: *order.MemberID,
				Amount:   order.TotalAmount,
				Status:   models.LoyaltyEventPending,
			}
			if err := tx.Create(&event).Error; err != nil {
				return fmt.Errorf("queue loyalty event: %w", err)
			}
			placed.LoyaltyEventID = &event.ID
		}

		placed.Order = order
		placed.Consumption = consumption
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("lines", len(req.Items)).Warn("Order placement aborted")
		return PlacedOrder{}, err
	}

	if reloaded, err := s.GetOrder(ctx, placed.Order.ID); err == nil {
		placed.Order = reloaded
	} else {
		log.WithError(err).WithField("order_id", placed.Order.ID).Warn("Failed to reload placed order")
	}

	log.WithFields(logrus.Fields{
		"order_id":     placed.Order.ID,
		"order_number": placed.Order.OrderNumber,
		"total":        placed.Order.TotalAmount.String(),
		"lines":        len(placed.Order.Items),
	}).Info("Order placed")
	return placed, nil
}

func loadOrderProducts(tx *gorm.DB, lines []OrderLine) (map[string]models.Product, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	var found []models.Product
	if err := tx.Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	products := make(map[string]models.Product, len(found))
	for _, p := range found {
		products[p.ID] = p
	}

	for i, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, &NotFoundError{Resource: "product", ID: line.ProductID}
		}
		if !product.Available {
			return nil, invalid(fmt.Sprintf("items[%d].productId", i), "%s is not available", product.Name)
		}
	}
	return products, nil
}

func linePrice(product models.Product, line OrderLine, index int) (decimal.Decimal, error) {
	if line.Price != nil && !line.Price.Equal(product.Price) {
		return decimal.Zero, invalid(fmt.Sprintf("items[%d].price", index),
			"price of %s changed (submitted %s, current %s)", product.Name, line.Price.String(), product.Price.String())
	}
	return product.Price, nil
}

// stockNeed is the aggregated requirement for one ingredient across the whole order
type stockNeed struct {
	ingredientID string
	quantity     decimal.Decimal
}

// resolveConsumption resolves every line's recipe in input order and sums the
// requirement per ingredient, keeping first-seen order
func (s *orderService) resolveConsumption(tx *gorm.DB, items []models.OrderItem) ([]LineConsumption, []stockNeed, error) {
	lines := make([]LineConsumption, 0, len(items))
	index := make(map[string]int)
	var needed []stockNeed

	for _, item := range items {
		recipe, consumption, err := s.recipes.ResolveTx(tx, item.ProductID)
		if err != nil {
			return nil, nil, err
		}
		line := LineConsumption{LineNo: item.LineNo, ProductID: item.ProductID, Ingredients: consumption}
		if recipe != nil {
			line.RecipeID = &recipe.ID
		}
		lines = append(lines, line)

		qty := decimal.NewFromInt(int64(item.Quantity))
		for _, c := range consumption {
			amount := c.QuantityPerUnit.Mul(qty).Round(StockScale)
			if i, ok := index[c.IngredientID]; ok {
				needed[i].quantity = needed[i].quantity.Add(amount)
				continue
			}
			index[c.IngredientID] = len(needed)
			needed = append(needed, stockNeed{ingredientID: c.IngredientID, quantity: amount})
		}
	}
	return lines, needed, nil
}

// checkStock verifies every aggregated requirement before anything is deducted
func checkStock(tx *gorm.DB, needed []stockNeed) error {
	if len(needed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(needed))
	for _, n := range needed {
		ids = append(ids, n.ingredientID)
	}
	// Locks are taken in id order so concurrent orders cannot deadlock.
	sort.Strings(ids)

	var ingredients []models.Ingredient
	if err := lockForUpdate(tx).Where("id IN ?", ids).Order("id").Find(&ingredients).Error; err != nil {
		return fmt.Errorf("load ingredients: %w", err)
	}
	byID := make(map[string]models.Ingredient, len(ingredients))
	for _, ing := range ingredients {
		byID[ing.ID] = ing
	}

	for _, n := range needed {
		ing, ok := byID[n.ingredientID]
		if !ok {
			return &NotFoundError{Resource: "ingredient", ID: n.ingredientID}
		}
		available := ing.CurrentStock.Round(StockScale)
		if available.LessThan(n.quantity) {
			return &InsufficientStockError{
				IngredientID: ing.ID,
				Ingredient:   ing.Name,
				Unit:         ing.Unit,
				Required:     n.quantity,
				Available:    available,
			}
		}
	}
	return nil
}

func (s *orderService) deductStock(tx *gorm.DB, order models.Order, products map[string]models.Product, lines []LineConsumption) error {
	orderID := order.ID
	for i, line := range lines {
		item := order.Items[i]
		reason := fmt.Sprintf("Sale - %s", products[line.ProductID].Name)
		qty := decimal.NewFromInt(int64(item.Quantity))
		for _, c := range line.Ingredients {
			_, err := s.ledger.RecordMovementTx(tx, MovementRequest{
				IngredientID: c.IngredientID,
				Type:         models.MovementOut,
				Quantity:     c.QuantityPerUnit.Mul(qty),
				Reason:       &reason,
				Reference:    &orderID,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// preloadOrderItems loads items in line order along with their products,
// including soft-deleted ones. prefix is the association path to the order.
func preloadOrderItems(db *gorm.DB, prefix string) *gorm.DB {
	return db.Preload(prefix+"Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("line_no")
	}).Preload(prefix+"Items.Product", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped()
	})
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := preloadOrderItems(s.db.WithContext(ctx), "").Order("created_at DESC").Limit(limit)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *orderService) GetOrder(ctx context.Context, id string) (models.Order, error) {
	var order models.Order
	if err := preloadOrderItems(s.db.WithContext(ctx), "").First(&order, "id = ?", id).Error; err != nil {
		return models.Order{}, notFoundOr(err, "order", id)
	}
	return order, nil
}

// UpdateStatus moves an order along its lifecycle. Cancelling does not return
// stock; corrections go through a manual IN movement.
func (s *orderService) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (models.Order, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := lockForUpdate(tx).First(&order, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "order", id)
		}
		if !order.Status.CanTransition(status) {
			return invalid("status", "cannot move order from %s to %s", order.Status, status)
		}
		return tx.Model(&order).Update("status", status).Error
	})
	if err != nil {
		return models.Order{}, err
	}
	log.WithFields(logrus.Fields{"order_id": id, "status": status}).Info("Order status updated")
	return s.GetOrder(ctx, id)
}
