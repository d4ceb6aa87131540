package controllers

import (
	"net/http"
	"strconv"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// OrderController handles HTTP requests related to orders
type OrderController interface {
	// PlaceOrder creates an order and deducts its ingredients
	PlaceOrder(c *gin.Context)
	// ListOrders lists recent orders
	ListOrders(c *gin.Context)
	// GetOrder retrieves an order by its ID
	GetOrder(c *gin.Context)
	// UpdateOrderStatus moves an order along its lifecycle
	UpdateOrderStatus(c *gin.Context)
}

type orderController struct {
	orders  services.OrderService
	loyalty services.LoyaltyService
}

// NewOrderController creates a new instance of OrderController
func NewOrderController(orders services.OrderService, loyalty services.LoyaltyService) OrderController {
	return &orderController{orders: orders, loyalty: loyalty}
}

// PlacedOrderResponse is the committed order plus the loyalty outcome
type PlacedOrderResponse struct {
	models.Order
	Consumption    []services.LineConsumption `json:"consumption"`
	PointsCredited *int                       `json:"points_credited,omitempty"`
	LoyaltyNote    string                     `json:"loyalty_note,omitempty"`
}

// UpdateStatusRequest is the body of a status change
type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// PlaceOrder godoc
// @Summary Place an order
// @Description Create an order and deduct every recipe ingredient in one transaction. Prices come from the catalog; a submitted price that differs is rejected.
// @Tags orders
// @Accept json
// @Produce json
// @Param order body services.PlaceOrderRequest true "Cart"
// @Success 201 {object} PlacedOrderResponse
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Failure 500 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders [post]
func (c *orderController) PlaceOrder(ctx *gin.Context) {
	var req services.PlaceOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}

	placed, err := c.orders.PlaceOrder(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	resp := PlacedOrderResponse{Order: placed.Order, Consumption: placed.Consumption}
	if placed.LoyaltyEventID != nil {
		// The order is committed; accrual failures are left to the dispatcher
		points, err := c.loyalty.ProcessEvent(ctx.Request.Context(), *placed.LoyaltyEventID)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"order_id": placed.Order.ID,
				"event_id": *placed.LoyaltyEventID,
			}).Warn("Loyalty points not credited")
			resp.LoyaltyNote = "points will be credited later"
		} else {
			resp.PointsCredited = &points
		}
	}

	ctx.JSON(http.StatusCreated, resp)
}

// ListOrders godoc
// @Summary List orders
// @Description List orders newest first
// @Tags orders
// @Produce json
// @Param status query string false "Filter by status"
// @Param limit query int false "Maximum number of orders (default 100)"
// @Success 200 {array} models.Order
// @Failure 500 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders [get]
func (c *orderController) ListOrders(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	orders, err := c.orders.ListOrders(ctx.Request.Context(), services.OrderFilter{
		Status: models.OrderStatus(ctx.Query("status")),
		Limit:  limit,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, orders)
}

// GetOrder godoc
// @Summary Get order by ID
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} models.Order
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders/{id} [get]
func (c *orderController) GetOrder(ctx *gin.Context) {
	order, err := c.orders.GetOrder(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// UpdateOrderStatus godoc
// @Summary Update order status
// @Description Advance an order one step or cancel it. Cancelling does not return stock.
// @Tags orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param status body UpdateStatusRequest true "New status"
// @Success 200 {object} models.Order
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders/{id}/status [patch]
func (c *orderController) UpdateOrderStatus(ctx *gin.Context) {
	var req UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}
	order, err := c.orders.UpdateStatus(ctx.Request.Context(), ctx.Param("id"), req.Status)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}
