package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	topProductsLimit    = 5
	topProfitableLimit  = 10
	defaultAnalyticDays = 7
	maxAnalyticDays     = 366
)

// ProductSales is the profit of one product over a period
type ProductSales struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
	Cost        decimal.Decimal `json:"cost"`
	Profit      decimal.Decimal `json:"profit"`
	Margin      decimal.Decimal `json:"margin"`
}

// DailyProfitReport summarises the completed orders of one day
type DailyProfitReport struct {
	Date              string          `json:"date"`
	Orders            int             `json:"orders"`
	Revenue           decimal.Decimal `json:"revenue"`
	Cost              decimal.Decimal `json:"cost"`
	GrossProfit       decimal.Decimal `json:"gross_profit"`
	Margin            decimal.Decimal `json:"margin"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	TopProducts       []ProductSales  `json:"top_products"`
}

// DayProfit is one day of a profit analytics period
type DayProfit struct {
	Date    string          `json:"date"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
	Cost    decimal.Decimal `json:"cost"`
	Profit  decimal.Decimal `json:"profit"`
	Margin  decimal.Decimal `json:"margin"`
}

// ProductProfitability adds the profit earned per unit sold
type ProductProfitability struct {
	ProductSales
	ProfitPerUnit decimal.Decimal `json:"profit_per_unit"`
}

// ProfitAnalytics covers the completed orders of the last Days days
type ProfitAnalytics struct {
	From        string                 `json:"from"`
	To          string                 `json:"to"`
	Days        int                    `json:"days"`
	Orders      int                    `json:"orders"`
	Revenue     decimal.Decimal        `json:"revenue"`
	Cost        decimal.Decimal        `json:"cost"`
	Profit      decimal.Decimal        `json:"profit"`
	Margin      decimal.Decimal        `json:"margin"`
	Daily       []DayProfit            `json:"daily"`
	TopProducts []ProductProfitability `json:"top_products"`
}

// ReportService builds profit reports from completed orders
type ReportService interface {
	DailyProfit(ctx context.Context, day time.Time) (DailyProfitReport, error)
	// ProfitAnalytics reports the days days ending with until's day; zero days means a week
	ProfitAnalytics(ctx context.Context, until time.Time, days int) (ProfitAnalytics, error)
	ProductProfit(ctx context.Context, from, to time.Time) ([]ProductSales, error)
	ExportDailyProfit(ctx context.Context, day time.Time) ([]byte, error)
}

type reportService struct {
	db *gorm.DB
}

// NewReportService creates a new instance of ReportService
func NewReportService(db *gorm.DB) ReportService {
	return &reportService{db: db}
}

func (s *reportService) completedOrders(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := preloadOrderItems(s.db.WithContext(ctx), "").
		Where("status = ? AND created_at >= ? AND created_at < ?", models.OrderStatusCompleted, from.UTC(), to.UTC()).
		Order("created_at").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("load completed orders: %w", err)
	}
	return orders, nil
}

// margin is profit as a percentage of revenue, rounded to two places
func margin(profit, revenue decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return profit.Div(revenue).Mul(hundred).Round(2)
}

// aggregateSales groups order items by product; cost uses the product's current cost
func aggregateSales(orders []models.Order) []ProductSales {
	index := make(map[string]int)
	var sales []ProductSales
	for _, order := range orders {
		for _, item := range order.Items {
			i, ok := index[item.ProductID]
			if !ok {
				name := item.ProductID
				if item.Product != nil {
					name = item.Product.Name
				}
				i = len(sales)
				index[item.ProductID] = i
				sales = append(sales, ProductSales{
					ProductID:   item.ProductID,
					ProductName: name,
					Revenue:     decimal.Zero,
					Cost:        decimal.Zero,
				})
			}
			unitCost := decimal.Zero
			if item.Product != nil {
				unitCost = item.Product.Cost
			}
			qty := decimal.NewFromInt(int64(item.Quantity))
			sales[i].Quantity += item.Quantity
			sales[i].Revenue = sales[i].Revenue.Add(item.Subtotal)
			sales[i].Cost = sales[i].Cost.Add(unitCost.Mul(qty))
		}
	}
	for i := range sales {
		sales[i].Profit = sales[i].Revenue.Sub(sales[i].Cost)
		sales[i].Margin = margin(sales[i].Profit, sales[i].Revenue)
	}
	return sales
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

func (s *reportService) DailyProfit(ctx context.Context, day time.Time) (DailyProfitReport, error) {
	from, to := dayBounds(day)
	orders, err := s.completedOrders(ctx, from, to)
	if err != nil {
		return DailyProfitReport{}, err
	}

	report := DailyProfitReport{
		Date:              from.Format("2006-01-02"),
		Orders:            len(orders),
		Revenue:           decimal.Zero,
		Cost:              decimal.Zero,
		AverageOrderValue: decimal.Zero,
		TopProducts:       []ProductSales{},
	}
	for _, o := range orders {
		report.Revenue = report.Revenue.Add(o.TotalAmount)
	}

	sales := aggregateSales(orders)
	for _, p := range sales {
		report.Cost = report.Cost.Add(p.Cost)
	}
	report.GrossProfit = report.Revenue.Sub(report.Cost)
	report.Margin = margin(report.GrossProfit, report.Revenue)
	if len(orders) > 0 {
		report.AverageOrderValue = report.Revenue.Div(decimal.NewFromInt(int64(len(orders)))).Round(2)
	}

	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Quantity > sales[j].Quantity })
	if len(sales) > topProductsLimit {
		sales = sales[:topProductsLimit]
	}
	report.TopProducts = append(report.TopProducts, sales...)
	return report, nil
}

func (s *reportService) ProfitAnalytics(ctx context.Context, until time.Time, days int) (ProfitAnalytics, error) {
	if days == 0 {
		days = defaultAnalyticDays
	}
	if days < 0 || days > maxAnalyticDays {
		return ProfitAnalytics{}, invalid("days", "must be between 1 and %d", maxAnalyticDays)
	}
	lastDay, to := dayBounds(until)
	from := lastDay.AddDate(0, 0, 1-days)
	orders, err := s.completedOrders(ctx, from, to)
	if err != nil {
		return ProfitAnalytics{}, err
	}

	byDay := make(map[string][]models.Order, days)
	for _, o := range orders {
		key := o.CreatedAt.In(until.Location()).Format("2006-01-02")
		byDay[key] = append(byDay[key], o)
	}

	report := ProfitAnalytics{
		From:        from.Format("2006-01-02"),
		To:          lastDay.Format("2006-01-02"),
		Days:        days,
		Orders:      len(orders),
		Revenue:     decimal.Zero,
		Cost:        decimal.Zero,
		Daily:       make([]DayProfit, 0, days),
		TopProducts: []ProductProfitability{},
	}
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		entry := DayProfit{Date: key, Orders: len(byDay[key]), Revenue: decimal.Zero, Cost: decimal.Zero}
		for _, o := range byDay[key] {
			entry.Revenue = entry.Revenue.Add(o.TotalAmount)
		}
		for _, p := range aggregateSales(byDay[key]) {
			entry.Cost = entry.Cost.Add(p.Cost)
		}
		entry.Profit = entry.Revenue.Sub(entry.Cost)
		entry.Margin = margin(entry.Profit, entry.Revenue)
		report.Daily = append(report.Daily, entry)

		report.Revenue = report.Revenue.Add(entry.Revenue)
		report.Cost = report.Cost.Add(entry.Cost)
	}
	report.Profit = report.Revenue.Sub(report.Cost)
	report.Margin = margin(report.Profit, report.Revenue)

	sales := aggregateSales(orders)
	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Profit.GreaterThan(sales[j].Profit) })
	if len(sales) > topProfitableLimit {
		sales = sales[:topProfitableLimit]
	}
	for _, p := range sales {
		perUnit := decimal.Zero
		if p.Quantity > 0 {
			perUnit = p.Profit.Div(decimal.NewFromInt(int64(p.Quantity))).Round(2)
		}
		report.TopProducts = append(report.TopProducts, ProductProfitability{ProductSales: p, ProfitPerUnit: perUnit})
	}
	return report, nil
}

func (s *reportService) ProductProfit(ctx context.Context, from, to time.Time) ([]ProductSales, error) {
	if !to.After(from) {
		return nil, invalid("to", "must be after from")
	}
	orders, err := s.completedOrders(ctx, from, to)
	if err != nil {
		return nil, err
	}
	sales := aggregateSales(orders)
	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Profit.GreaterThan(sales[j].Profit) })
	return sales, nil
}

func (s *reportService) ExportDailyProfit(ctx context.Context, day time.Time) ([]byte, error) {
	report, err := s.DailyProfit(ctx, day)
	if err != nil {
		return nil, err
	}
	from, to := dayBounds(day)
	products, err := s.ProductProfit(ctx, from, to)
	if err != nil {
		return nil, err
	}

	header := []interface{}{"Product", "Quantity", "Revenue", "Cost", "Profit", "Margin %"}
	rows := make([][]interface{}, 0, len(products)+2)
	for _, p := range products {
		rows = append(rows, []interface{}{
			p.ProductName,
			p.Quantity,
			p.Revenue.InexactFloat64(),
			p.Cost.InexactFloat64(),
			p.Profit.InexactFloat64(),
			p.Margin.InexactFloat64(),
		})
	}
	rows = append(rows, []interface{}{}, []interface{}{
		fmt.Sprintf("Total %s (%d orders)", report.Date, report.Orders),
		"",
		report.Revenue.InexactFloat64(),
		report.Cost.InexactFloat64(),
		report.GrossProfit.InexactFloat64(),
		report.Margin.InexactFloat64(),
	})
	return writeWorkbook("Daily "+report.Date, header, rows)
}
