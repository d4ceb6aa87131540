package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrderEndpoint(t *testing.T) {
	api := setupTestAPI(t)
	latteID, milkID := api.latte(t, "1000")

	w := api.do(t, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"items":        []map[string]interface{}{{"productId": latteID, "quantity": 2}},
		"customerName": "Sam",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp PlacedOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.OrderStatusPending, resp.Status)
	assert.Equal(t, "110", resp.TotalAmount.String())
	require.Len(t, resp.Items, 1)
	require.Len(t, resp.Consumption, 1)
	assert.Nil(t, resp.PointsCredited)

	milk, err := api.inventory.GetIngredient(context.Background(), milkID)
	require.NoError(t, err)
	assert.Equal(t, "600", milk.CurrentStock.String())

	w = api.do(t, http.MethodGet, "/api/v1/orders/"+resp.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPlaceOrderEndpointInsufficientStock(t *testing.T) {
	api := setupTestAPI(t)
	latteID, milkID := api.latte(t, "300")

	w := api.do(t, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"productId": latteID, "quantity": 2}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	apiErr := decodeAPIError(t, w)
	assert.Equal(t, models.ErrInsufficientStock, apiErr.Code)
	assert.Equal(t, milkID, apiErr.Details["ingredient_id"])
	assert.Equal(t, "Milk", apiErr.Details["ingredient"])
	assert.Equal(t, float64(400), apiErr.Details["required"])
	assert.Equal(t, float64(300), apiErr.Details["available"])

	var orders int64
	require.NoError(t, api.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestPlaceOrderEndpointCreditsLoyalty(t *testing.T) {
	api := setupTestAPI(t)
	latteID, _ := api.latte(t, "5000")
	member, err := api.loyalty.CreateMember(context.Background(), services.MemberInput{Name: "Dana", Phone: models.StringPtr("0812345678")})
	require.NoError(t, err)

	w := api.do(t, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"items":    []map[string]interface{}{{"productId": latteID, "quantity": 4}},
		"memberId": member.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp PlacedOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.PointsCredited)
	assert.Equal(t, 2, *resp.PointsCredited)
	assert.Empty(t, resp.LoyaltyNote)
}

func TestPlaceOrderEndpointLoyaltyFailureKeepsOrder(t *testing.T) {
	api := setupTestAPI(t)
	latteID, _ := api.latte(t, "1000")
	member, err := api.loyalty.CreateMember(context.Background(), services.MemberInput{Name: "Lapsed", Phone: models.StringPtr("0811111111")})
	require.NoError(t, err)
	require.NoError(t, api.db.Model(&models.Member{}).Where("id = ?", member.ID).Update("is_active", false).Error)

	w := api.do(t, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"items":    []map[string]interface{}{{"productId": latteID, "quantity": 1}},
		"memberId": member.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp PlacedOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.PointsCredited)
	assert.NotEmpty(t, resp.LoyaltyNote)
}

func TestPlaceOrderEndpointErrors(t *testing.T) {
	api := setupTestAPI(t)
	latteID, _ := api.latte(t, "1000")

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"malformed json", `{"items": [`, http.StatusBadRequest, models.ErrBadRequest},
		{"empty cart", map[string]interface{}{"items": []interface{}{}}, http.StatusBadRequest, models.ErrValidationFailed},
		{"unknown product", map[string]interface{}{
			"items": []map[string]interface{}{{"productId": "missing", "quantity": 1}},
		}, http.StatusNotFound, models.ErrNotFound},
		{"stale price", map[string]interface{}{
			"items": []map[string]interface{}{{"productId": latteID, "quantity": 1, "price": "50"}},
		}, http.StatusBadRequest, models.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/api/v1/orders", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeAPIError(t, w).Code)
		})
	}
}

func TestGetOrderNotFound(t *testing.T) {
	api := setupTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrNotFound, decodeAPIError(t, w).Code)
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	api := setupTestAPI(t)
	latteID, _ := api.latte(t, "1000")

	w := api.do(t, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"productId": latteID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var placed PlacedOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &placed))

	w = api.do(t, http.MethodPatch, "/api/v1/orders/"+placed.ID+"/status", map[string]string{"status": "CONFIRMED"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodPatch, "/api/v1/orders/"+placed.ID+"/status", map[string]string{"status": "COMPLETED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPatch, "/api/v1/orders/"+placed.ID+"/status", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrBadRequest, decodeAPIError(t, w).Code)
}
