package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func completeOrder(t *testing.T, s *shop, orderID string) {
	t.Helper()
	for _, status := range []models.OrderStatus{
		models.OrderStatusConfirmed,
		models.OrderStatusPreparing,
		models.OrderStatusReady,
		models.OrderStatusCompleted,
	} {
		_, err := s.orders.UpdateStatus(context.Background(), orderID, status)
		require.NoError(t, err)
	}
}

func TestDailyProfitCountsCompletedOrdersOnly(t *testing.T) {
	s, latte, _, _ := latteShop(t, "5000")
	ctx := context.Background()
	cookie := s.product(t, "Cookie", "25")

	first, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: latte.ID, Quantity: 3}}})
	require.NoError(t, err)
	completeOrder(t, s, first.Order.ID)

	second, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{
		{ProductID: latte.ID, Quantity: 1},
		{ProductID: cookie.ID, Quantity: 3},
	}})
	require.NoError(t, err)
	completeOrder(t, s, second.Order.ID)

	// pending and cancelled orders are not revenue
	_, err = s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: latte.ID, Quantity: 2}}})
	require.NoError(t, err)
	cancelled, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: cookie.ID, Quantity: 1}}})
	require.NoError(t, err)
	_, err = s.orders.UpdateStatus(ctx, cancelled.Order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	reports := NewReportService(s.db)
	report, err := reports.DailyProfit(ctx, time.Now())
	require.NoError(t, err)

	// revenue 165 + 55 + 75, cost 7 items at 10
	assert.Equal(t, 2, report.Orders)
	assert.True(t, report.Revenue.Equal(dec("295")), report.Revenue.String())
	assert.True(t, report.Cost.Equal(dec("70")), report.Cost.String())
	assert.True(t, report.GrossProfit.Equal(dec("225")))
	assert.True(t, report.Margin.Equal(dec("76.27")), report.Margin.String())
	assert.True(t, report.AverageOrderValue.Equal(dec("147.5")))
	require.Len(t, report.TopProducts, 2)
	assert.Equal(t, "Latte", report.TopProducts[0].ProductName)
	assert.Equal(t, 4, report.TopProducts[0].Quantity)

	yesterday, err := reports.DailyProfit(ctx, time.Now().AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Zero(t, yesterday.Orders)
	assert.True(t, yesterday.Margin.IsZero())
	assert.NotNil(t, yesterday.TopProducts)
}

func TestProductProfitOrdersByProfit(t *testing.T) {
	s, latte, _, _ := latteShop(t, "5000")
	ctx := context.Background()
	cookie := s.product(t, "Cookie", "25")

	placed, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{
		{ProductID: cookie.ID, Quantity: 5},
		{ProductID: latte.ID, Quantity: 2},
	}})
	require.NoError(t, err)
	completeOrder(t, s, placed.Order.ID)

	reports := NewReportService(s.db)
	from, to := dayBounds(time.Now())
	sales, err := reports.ProductProfit(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	// latte: 110 - 20, cookie: 125 - 50
	assert.Equal(t, "Latte", sales[0].ProductName)
	assert.True(t, sales[0].Profit.Equal(dec("90")))
	assert.Equal(t, 5, sales[1].Quantity)
	assert.True(t, sales[1].Margin.Equal(dec("60")))

	_, err = reports.ProductProfit(ctx, to, from)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestProfitAnalyticsBreaksDownByDay(t *testing.T) {
	s, latte, _, _ := latteShop(t, "5000")
	ctx := context.Background()
	cookie := s.product(t, "Cookie", "25")

	today, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: latte.ID, Quantity: 3}}})
	require.NoError(t, err)
	completeOrder(t, s, today.Order.ID)

	earlier, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{
		{ProductID: latte.ID, Quantity: 2},
		{ProductID: cookie.ID, Quantity: 1},
	}})
	require.NoError(t, err)
	completeOrder(t, s, earlier.Order.ID)
	now := time.Now()
	require.NoError(t, s.db.Model(&models.Order{}).Where("id = ?", earlier.Order.ID).
		Update("created_at", now.AddDate(0, 0, -1).UTC()).Error)

	// outside a three day window
	old, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: cookie.ID, Quantity: 4}}})
	require.NoError(t, err)
	completeOrder(t, s, old.Order.ID)
	require.NoError(t, s.db.Model(&models.Order{}).Where("id = ?", old.Order.ID).
		Update("created_at", now.AddDate(0, 0, -5).UTC()).Error)

	reports := NewReportService(s.db)
	report, err := reports.ProfitAnalytics(ctx, now, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Days)
	assert.Equal(t, now.Format("2006-01-02"), report.To)
	assert.Equal(t, now.AddDate(0, 0, -2).Format("2006-01-02"), report.From)
	assert.Equal(t, 2, report.Orders)
	// revenue 165 + 135, cost 6 items at 10
	assert.True(t, report.Revenue.Equal(dec("300")), report.Revenue.String())
	assert.True(t, report.Cost.Equal(dec("60")), report.Cost.String())
	assert.True(t, report.Profit.Equal(dec("240")))
	assert.True(t, report.Margin.Equal(dec("80")), report.Margin.String())

	require.Len(t, report.Daily, 3)
	assert.Zero(t, report.Daily[0].Orders)
	assert.True(t, report.Daily[0].Margin.IsZero())
	assert.Equal(t, now.AddDate(0, 0, -1).Format("2006-01-02"), report.Daily[1].Date)
	assert.True(t, report.Daily[1].Revenue.Equal(dec("135")), report.Daily[1].Revenue.String())
	assert.True(t, report.Daily[1].Profit.Equal(dec("105")))
	assert.True(t, report.Daily[2].Revenue.Equal(dec("165")))
	assert.True(t, report.Daily[2].Cost.Equal(dec("30")))

	require.Len(t, report.TopProducts, 2)
	assert.Equal(t, "Latte", report.TopProducts[0].ProductName)
	assert.Equal(t, 5, report.TopProducts[0].Quantity)
	assert.True(t, report.TopProducts[0].Profit.Equal(dec("225")))
	assert.True(t, report.TopProducts[0].ProfitPerUnit.Equal(dec("45")))
	assert.True(t, report.TopProducts[1].ProfitPerUnit.Equal(dec("15")))

	week, err := reports.ProfitAnalytics(ctx, now, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, week.Days)
	assert.Len(t, week.Daily, 7)
	assert.Equal(t, 3, week.Orders)

	var validation *ValidationError
	_, err = reports.ProfitAnalytics(ctx, now, 400)
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "days", validation.Field)
}

func TestExportDailyProfit(t *testing.T) {
	s, latte, _, _ := latteShop(t, "1000")
	ctx := context.Background()

	placed, err := s.orders.PlaceOrder(ctx, PlaceOrderRequest{Items: []OrderLine{{ProductID: latte.ID, Quantity: 2}}})
	require.NoError(t, err)
	completeOrder(t, s, placed.Order.ID)

	data, err := NewReportService(s.db).ExportDailyProfit(ctx, time.Now())
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer book.Close()

	sheet := book.GetSheetName(0)
	header, err := book.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Product", header)
	name, err := book.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Latte", name)
}
