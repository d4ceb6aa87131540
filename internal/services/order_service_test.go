package services

import (
	"context"
	"sync"
	"testing"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrderDeductsRecipeIngredients(t *testing.T) {
	s, latte, milk, beans := latteShop(t, "1000")
	ctx := context.Background()

	placed, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{
		Items: []OrderLine{{ProductID: latte.ID, Quantity: 3, Price: decPtr("55")}},
	})
	require.NoError(t, err)

	order := placed.Order
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, order.OrderNumber)
	assert.True(t, order.TotalAmount.Equal(dec("165")))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1, order.Items[0].LineNo)
	assert.True(t, order.Items[0].Subtotal.Equal(dec("165")))
	assert.Nil(t, placed.LoyaltyEventID)

	assert.True(t, s.stock(t, milk.ID).Equal(dec("400")))
	assert.True(t, s.stock(t, beans.ID).Equal(dec("946")))

	movements, err := s.inventory.ListMovements(ctx, MovementFilter{Reference: order.ID})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, models.MovementOut, m.Type)
		assert.Equal(t, "Sale - Latte", *m.Reason)
		assert.Equal(t, order.ID, *m.Reference)
		if m.IngredientID == milk.ID {
			assert.True(t, m.Quantity.Equal(dec("600")))
			assert.True(t, m.PreviousStock.Equal(dec("1000")))
			assert.True(t, m.NewStock.Equal(dec("400")))
		}
	}

	require.Len(t, placed.Consumption, 1)
	assert.NotNil(t, placed.Consumption[0].RecipeID)
	assert.Len(t, placed.Consumption[0].Ingredients, 2)
}

func TestPlaceOrderInsufficientStockLeavesNoTrace(t *testing.T) {
	s, latte, milk, beans := latteShop(t, "100")
	ctx := context.Background()

	_, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{
		Items: []OrderLine{{ProductID: latte.ID, Quantity: 1}},
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, milk.ID, stockErr.IngredientID)
	assert.Equal(t, "Milk", stockErr.Ingredient)
	assert.True(t, stockErr.Required.Equal(dec("200")))
	assert.True(t, stockErr.Available.Equal(dec("100")))

	var orders, items int64
	require.NoError(t, s.db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, s.db.Model(&models.OrderItem{}).Count(&items).Error)
	assert.Zero(t, orders)
	assert.Zero(t, items)
	assert.Zero(t, s.countMovements(t, "type = ?", models.MovementOut))
	assert.True(t, s.stock(t, milk.ID).Equal(dec("100")))
	assert.True(t, s.stock(t, beans.ID).Equal(dec("1000")))
}

func TestPlaceOrderAggregatesIngredientsAcrossLines(t *testing.T) {
	s := newShop(t)
	milk := s.ingredient(t, "Milk", "ml", "500")
	beans := s.ingredient(t, "Espresso Beans", "g", "1000")
	latte := s.product(t, "Latte", "55")
	flatWhite := s.product(t, "Flat White", "50")
	s.recipe(t, latte, map[string]string{milk.ID: "200", beans.ID: "18"})
	s.recipe(t, flatWhite, map[string]string{milk.ID: "150", beans.ID: "18"})

	// 200 + 150 fits on its own but 2x200 + 150 = 550 does not
	_, err := s.orders.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items: []OrderLine{
			{ProductID: latte.ID, Quantity: 2},
			{ProductID: flatWhite.ID, Quantity: 1},
		},
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.True(t, stockErr.Required.Equal(dec("550")))
	assert.True(t, s.stock(t, milk.ID).Equal(dec("500")))

	placed, err := s.orders.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items: []OrderLine{
			{ProductID: latte.ID, Quantity: 1},
			{ProductID: flatWhite.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.True(t, placed.Order.TotalAmount.Equal(dec("155")))
	assert.True(t, s.stock(t, milk.ID).Equal(dec("0")))
	assert.True(t, s.stock(t, beans.ID).Equal(dec("946")))
	assert.Equal(t, int64(4), s.countMovements(t, "reference = ?", placed.Order.ID))
}

func TestPlaceOrderProductWithoutRecipe(t *testing.T) {
	s := newShop(t)
	croissant := s.product(t, "Butter Croissant", "40")

	placed, err := s.orders.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items: []OrderLine{{ProductID: croissant.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.True(t, placed.Order.TotalAmount.Equal(dec("80")))
	require.Len(t, placed.Consumption, 1)
	assert.Nil(t, placed.Consumption[0].RecipeID)
	assert.Empty(t, placed.Consumption[0].Ingredients)
	assert.Zero(t, s.countMovements(t, "reference = ?", placed.Order.ID))
}

func TestPlaceOrderRejections(t *testing.T) {
	s, latte, milk, _ := latteShop(t, "1000")
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		_, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{})
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("zero quantity", func(t *testing.T) {
		_, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: latte.ID, Quantity: 0}}})
		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "items[0].quantity", validation.Field)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{
			{ProductID: latte.ID, Quantity: 1},
			{ProductID: "no-such-product", Quantity: 1},
		}})
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "product", notFound.Resource)
	})

	t.Run("stale price", func(t *testing.T) {
		_, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{
			{ProductID: latte.ID, Quantity: 1, Price: decPtr("50")},
		}})
		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "items[0].price", validation.Field)
	})

	t.Run("unavailable product", func(t *testing.T) {
		off := false
		seasonal := s.product(t, "Pumpkin Latte", "70")
		_, err := s.menu.UpdateProduct(ctx, seasonal.ID, ProductInput{Name: "Pumpkin Latte", Price: dec("70"), Available: &off})
		require.NoError(t, err)

		_, err = s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: seasonal.ID, Quantity: 1}}})
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("unknown member", func(t *testing.T) {
		member := "missing-member"
		_, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{
			Items:    []OrderLine{{ProductID: latte.ID, Quantity: 1}},
			MemberID: &member,
		})
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	var orders int64
	require.NoError(t, s.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
	assert.True(t, s.stock(t, milk.ID).Equal(dec("1000")))
}

func TestPlaceOrderQueuesLoyaltyEvent(t *testing.T) {
	s, latte, _, _ := latteShop(t, "1000")
	ctx := context.Background()

	member, err := s.loyalty.CreateMember(ctx, MemberInput{Name: "Dana", Phone: models.StringPtr("0812345678")})
	require.NoError(t, err)

	placed, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{
		Items:    []OrderLine{{ProductID: latte.ID, Quantity: 2}},
		MemberID: &member.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, placed.LoyaltyEventID)

	var event models.LoyaltyEvent
	require.NoError(t, s.db.First(&event, "id = ?", *placed.LoyaltyEventID).Error)
	assert.Equal(t, models.LoyaltyEventPending, event.Status)
	assert.Equal(t, placed.Order.ID, event.OrderID)
	assert.True(t, event.Amount.Equal(dec("110")))

	// Placement alone never credits points
	reloaded, err := s.loyalty.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, WelcomeBonusPoints, reloaded.AvailablePoints)
}

func TestUpdateOrderStatus(t *testing.T) {
	s, latte, milk, _ := latteShop(t, "1000")
	ctx := context.Background()

	placed, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: latte.ID, Quantity: 1}}})
	require.NoError(t, err)
	id := placed.Order.ID

	order, err := s.orders.UpdateStatus(ctx, id, models.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)

	_, err = s.orders.UpdateStatus(ctx, id, models.OrderStatusCompleted)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)

	order, err = s.orders.UpdateStatus(ctx, id, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.True(t, s.stock(t, milk.ID).Equal(dec("800")), "cancelling does not restock")

	_, err = s.orders.UpdateStatus(ctx, id, models.OrderStatusPending)
	assert.ErrorAs(t, err, &validation)

	_, err = s.orders.UpdateStatus(ctx, "missing", models.OrderStatusConfirmed)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	s, latte, _, _ := latteShop(t, "1000")
	ctx := context.Background()

	first, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: latte.ID, Quantity: 1}}})
	require.NoError(t, err)
	_, err = s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: latte.ID, Quantity: 1}}})
	require.NoError(t, err)
	_, err = s.orders.UpdateStatus(ctx, first.Order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)

	all, err := s.orders.ListOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	confirmed, err := s.orders.ListOrders(ctx, OrderFilter{Status: models.OrderStatusConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, first.Order.ID, confirmed[0].ID)
	require.Len(t, confirmed[0].Items, 1)
	assert.Equal(t, "Latte", confirmed[0].Items[0].Product.Name)
}

func TestPlaceOrderFractionalRecipe(t *testing.T) {
	s := newShop(t)
	syrup := s.ingredient(t, "Vanilla Syrup", "l", "0.3")
	vanilla := s.product(t, "Vanilla Latte", "65")
	s.recipe(t, vanilla, map[string]string{syrup.ID: "0.1"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: vanilla.ID, Quantity: 1}}})
		require.NoError(t, err, "order %d", i+1)
	}
	assert.True(t, s.stock(t, syrup.ID).IsZero())

	_, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: vanilla.ID, Quantity: 1}}})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.True(t, stockErr.Available.IsZero())
}

func TestPlaceOrderConcurrentNeverOversells(t *testing.T) {
	s, latte, milk, _ := latteShop(t, "1000")
	ctx := context.Background()

	const attempts = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		rejected int
	)
	for n := 0; n < attempts; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: latte.ID, Quantity: 1}}})
			mu.Lock()
			defer mu.Unlock()
			var stockErr *InsufficientStockError
			switch {
			case err == nil:
				placed++
			case assert.ErrorAs(t, err, &stockErr):
				rejected++
			}
		}()
	}
	wg.Wait()

	// 1000ml of milk covers five 200ml lattes
	assert.Equal(t, 5, placed)
	assert.Equal(t, attempts-5, rejected)
	assert.True(t, s.stock(t, milk.ID).IsZero())
	assert.False(t, s.stock(t, milk.ID).IsNegative())
	assert.Equal(t, int64(5), s.countMovements(t, "ingredient_id = ? AND type = ?", milk.ID, models.MovementOut))

	var orders int64
	require.NoError(t, s.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(5), orders)
}

func TestOrderItemsKeepPriceAfterCatalogChange(t *testing.T) {
	s, latte, _, _ := latteShop(t, "1000")
	ctx := context.Background()

	placed, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: latte.ID, Quantity: 2}}})
	require.NoError(t, err)

	_, err = s.menu.UpdateProduct(ctx, latte.ID, ProductInput{Name: "Latte", Price: dec("60")})
	require.NoError(t, err)

	order, err := s.orders.GetOrder(ctx, placed.Order.ID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].Price.Equal(dec("55")))
	assert.True(t, order.Items[0].Subtotal.Equal(dec("110")))
	assert.True(t, order.TotalAmount.Equal(dec("110")))

	next, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: latte.ID, Quantity: 1}}})
	require.NoError(t, err)
	assert.True(t, next.Order.Items[0].Price.Equal(dec("60")))
}
