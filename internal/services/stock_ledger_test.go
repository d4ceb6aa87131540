package services

import (
	"context"
	"testing"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMovement(t *testing.T) {
	ctx := context.Background()

	t.Run("IN adds to the balance", func(t *testing.T) {
		s := newShop(t)
		milk := s.ingredient(t, "Milk", "ml", "50")

		result, err := s.ledger.RecordMovement(ctx, MovementRequest{
			IngredientID: milk.ID,
			Type:         models.MovementIn,
			Quantity:     dec("25"),
			Reason:       models.StringPtr("Delivery"),
		})
		require.NoError(t, err)
		assert.True(t, result.Ingredient.CurrentStock.Equal(dec("75")))
		assert.True(t, result.Movement.PreviousStock.Equal(dec("50")))
		assert.True(t, result.Movement.NewStock.Equal(dec("75")))
		assert.Equal(t, "Delivery", *result.Movement.Reason)
	})

	t.Run("OUT subtracts from the balance", func(t *testing.T) {
		s := newShop(t)
		milk := s.ingredient(t, "Milk", "ml", "50")

		result, err := s.ledger.RecordMovement(ctx, MovementRequest{
			IngredientID: milk.ID,
			Type:         models.MovementOut,
			Quantity:     dec("20"),
		})
		require.NoError(t, err)
		assert.True(t, result.Movement.PreviousStock.Equal(dec("50")))
		assert.True(t, result.Movement.NewStock.Equal(dec("30")))
		assert.True(t, s.stock(t, milk.ID).Equal(dec("30")))
	})

	t.Run("ADJUST sets the balance", func(t *testing.T) {
		s := newShop(t)
		milk := s.ingredient(t, "Milk", "ml", "50")

		result, err := s.ledger.RecordMovement(ctx, MovementRequest{
			IngredientID: milk.ID,
			Type:         models.MovementAdjust,
			Quantity:     dec("30"),
			Reason:       models.StringPtr("Stock count"),
		})
		require.NoError(t, err)
		assert.True(t, result.Movement.PreviousStock.Equal(dec("50")))
		assert.True(t, result.Movement.NewStock.Equal(dec("30")))
		assert.True(t, s.stock(t, milk.ID).Equal(dec("30")))
	})

	t.Run("OUT beyond the balance is rejected without side effects", func(t *testing.T) {
		s := newShop(t)
		milk := s.ingredient(t, "Milk", "ml", "50")

		_, err := s.ledger.RecordMovement(ctx, MovementRequest{
			IngredientID: milk.ID,
			Type:         models.MovementOut,
			Quantity:     dec("51"),
		})
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "Milk", stockErr.Ingredient)
		assert.True(t, stockErr.Required.Equal(dec("51")))
		assert.True(t, stockErr.Available.Equal(dec("50")))

		assert.True(t, s.stock(t, milk.ID).Equal(dec("50")))
		assert.Equal(t, int64(0), s.countMovements(t, "ingredient_id = ? AND type = ?", milk.ID, models.MovementOut))
	})

	t.Run("OUT of the whole balance reaches zero", func(t *testing.T) {
		s := newShop(t)
		milk := s.ingredient(t, "Milk", "ml", "50")

		_, err := s.ledger.RecordMovement(ctx, MovementRequest{
			IngredientID: milk.ID,
			Type:         models.MovementOut,
			Quantity:     dec("50"),
		})
		require.NoError(t, err)
		assert.True(t, s.stock(t, milk.ID).IsZero())
	})
}

func TestRecordMovementValidation(t *testing.T) {
	s := newShop(t)
	milk := s.ingredient(t, "Milk", "ml", "50")
	ctx := context.Background()

	tests := []struct {
		name string
		req  MovementRequest
	}{
		{name: "missing ingredient", req: MovementRequest{Type: models.MovementIn, Quantity: dec("1")}},
		{name: "unknown type", req: MovementRequest{IngredientID: milk.ID, Type: "LOSS", Quantity: dec("1")}},
		{name: "zero quantity", req: MovementRequest{IngredientID: milk.ID, Type: models.MovementIn, Quantity: dec("0")}},
		{name: "negative quantity", req: MovementRequest{IngredientID: milk.ID, Type: models.MovementOut, Quantity: dec("-5")}},
		{name: "zero adjust", req: MovementRequest{IngredientID: milk.ID, Type: models.MovementAdjust, Quantity: dec("0")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ledger.RecordMovement(ctx, tt.req)
			var validation *ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}

	_, err := s.ledger.RecordMovement(ctx, MovementRequest{IngredientID: "missing", Type: models.MovementIn, Quantity: dec("1")})
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)

	assert.True(t, s.stock(t, milk.ID).Equal(dec("50")))
}

func TestInitialStockIsRecordedAsMovement(t *testing.T) {
	s := newShop(t)
	milk := s.ingredient(t, "Milk", "ml", "1000")

	movements, err := s.inventory.ListMovements(context.Background(), MovementFilter{IngredientID: milk.ID})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, models.MovementIn, movements[0].Type)
	assert.True(t, movements[0].PreviousStock.IsZero())
	assert.True(t, movements[0].NewStock.Equal(dec("1000")))
	assert.Equal(t, "Initial stock", *movements[0].Reason)
}

func TestRecordMovementFractionalQuantities(t *testing.T) {
	s := newShop(t)
	syrup := s.ingredient(t, "Syrup", "l", "0.3")
	ctx := context.Background()

	for _, qty := range []string{"0.1", "0.2"} {
		_, err := s.ledger.RecordMovement(ctx, MovementRequest{
			IngredientID: syrup.ID,
			Type:         models.MovementOut,
			Quantity:     dec(qty),
		})
		require.NoError(t, err, "OUT %s", qty)
	}
	assert.True(t, s.stock(t, syrup.ID).IsZero(), "stock is %s", s.stock(t, syrup.ID))

	result, err := s.ledger.RecordMovement(ctx, MovementRequest{
		IngredientID: syrup.ID,
		Type:         models.MovementIn,
		Quantity:     dec("0.7"),
	})
	require.NoError(t, err)
	result, err = s.ledger.RecordMovement(ctx, MovementRequest{
		IngredientID: syrup.ID,
		Type:         models.MovementIn,
		Quantity:     dec("0.1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.8", result.Movement.NewStock.String())
	assert.Equal(t, "0.7", result.Movement.PreviousStock.String())

	_, err = s.ledger.RecordMovement(ctx, MovementRequest{
		IngredientID: syrup.ID,
		Type:         models.MovementOut,
		Quantity:     dec("0.8001"),
	})
	require.NoError(t, err, "quantities are kept to three places")
	assert.True(t, s.stock(t, syrup.ID).IsZero())
}

func TestLedgerReplayMatchesBalance(t *testing.T) {
	s := newShop(t)
	milk := s.ingredient(t, "Milk", "ml", "1000")
	ctx := context.Background()

	steps := []struct {
		typ models.MovementType
		qty string
	}{
		{models.MovementOut, "250.5"},
		{models.MovementIn, "120.25"},
		{models.MovementOut, "0.125"},
		{models.MovementAdjust, "700"},
		{models.MovementOut, "33.3"},
		{models.MovementIn, "0.1"},
		{models.MovementOut, "0.2"},
	}
	for _, step := range steps {
		_, err := s.ledger.RecordMovement(ctx, MovementRequest{IngredientID: milk.ID, Type: step.typ, Quantity: dec(step.qty)})
		require.NoError(t, err)
	}

	var movements []models.StockMovement
	require.NoError(t, s.db.Where("ingredient_id = ?", milk.ID).Order("created_at").Find(&movements).Error)
	require.Len(t, movements, len(steps)+1)

	balance := dec("0")
	for i, m := range movements {
		assert.True(t, m.PreviousStock.Equal(balance), "movement %d previous %s, replayed %s", i, m.PreviousStock, balance)
		switch m.Type {
		case models.MovementIn:
			balance = balance.Add(m.Quantity)
		case models.MovementOut:
			balance = balance.Sub(m.Quantity)
		case models.MovementAdjust:
			balance = m.Quantity
		}
		assert.True(t, m.NewStock.Equal(balance), "movement %d new %s, replayed %s", i, m.NewStock, balance)
	}
	assert.True(t, balance.Equal(dec("666.6")))
	assert.True(t, s.stock(t, milk.ID).Equal(balance))
}
