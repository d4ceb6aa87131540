package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// ReportController serves profit reports
type ReportController interface {
	DailyProfit(c *gin.Context)
	ProductProfit(c *gin.Context)
	ProfitAnalytics(c *gin.Context)
	ExportDailyProfit(c *gin.Context)
}

type reportController struct {
	reports services.ReportService
}

// NewReportController creates a new instance of ReportController
func NewReportController(reports services.ReportService) ReportController {
	return &reportController{reports: reports}
}

// parseDate reads a YYYY-MM-DD query parameter, defaulting to fallback
func parseDate(ctx *gin.Context, key string, fallback time.Time) (time.Time, bool) {
	raw := ctx.Query(key)
	if raw == "" {
		return fallback, true
	}
	day, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", key)))
		return time.Time{}, false
	}
	return day, true
}

// DailyProfit godoc
// @Summary Daily profit report
// @Description Completed orders only; cost uses each product's current cost
// @Tags reports
// @Produce json
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Success 200 {object} services.DailyProfitReport
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/reports/daily [get]
func (c *reportController) DailyProfit(ctx *gin.Context) {
	day, ok := parseDate(ctx, "date", time.Now())
	if !ok {
		return
	}
	report, err := c.reports.DailyProfit(ctx.Request.Context(), day)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// ProductProfit godoc
// @Summary Profit per product
// @Tags reports
// @Produce json
// @Param from query string false "First day (YYYY-MM-DD), defaults to 30 days ago"
// @Param to query string false "Last day (YYYY-MM-DD), defaults to today"
// @Success 200 {array} services.ProductSales
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/reports/products [get]
func (c *reportController) ProductProfit(ctx *gin.Context) {
	today := time.Now()
	from, ok := parseDate(ctx, "from", today.AddDate(0, 0, -30))
	if !ok {
		return
	}
	to, ok := parseDate(ctx, "to", today)
	if !ok {
		return
	}
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	// to is inclusive
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location()).AddDate(0, 0, 1)

	sales, err := c.reports.ProductProfit(ctx.Request.Context(), from, to)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, sales)
}

// ProfitAnalytics godoc
// @Summary Profit analytics over recent days
// @Description Daily revenue, cost and margin with the most profitable products
// @Tags reports
// @Produce json
// @Param days query int false "Number of days ending today, defaults to 7"
// @Success 200 {object} services.ProfitAnalytics
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/reports/analytics [get]
func (c *reportController) ProfitAnalytics(ctx *gin.Context) {
	report, err := c.reports.ProfitAnalytics(ctx.Request.Context(), time.Now(), queryInt(ctx, "days"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// ExportDailyProfit godoc
// @Summary Export the daily profit report
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Success 200 {file} file
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/reports/daily/export [get]
func (c *reportController) ExportDailyProfit(ctx *gin.Context) {
	day, ok := parseDate(ctx, "date", time.Now())
	if !ok {
		return
	}
	data, err := c.reports.ExportDailyProfit(ctx.Request.Context(), day)
	if err != nil {
		respondError(ctx, err)
		return
	}
	sendWorkbook(ctx, fmt.Sprintf("daily-profit-%s.xlsx", day.Format(dateLayout)), data)
}
