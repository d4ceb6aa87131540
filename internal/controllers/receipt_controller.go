package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/coffeepula/pos-api/internal/middleware"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
)

// ReceiptController handles receipts and printers
type ReceiptController interface {
	CreateReceipt(c *gin.Context)
	ListReceipts(c *gin.Context)
	GetReceipt(c *gin.Context)
	// RenderReceipt returns the plain-text layout without queueing a print job
	RenderReceipt(c *gin.Context)
	VoidReceipt(c *gin.Context)
	PrintReceipt(c *gin.Context)
	ListPrinters(c *gin.Context)
	CreatePrinter(c *gin.Context)
	UpdatePrinter(c *gin.Context)
	DeletePrinter(c *gin.Context)
	ListPrintJobs(c *gin.Context)
}

type receiptController struct {
	receipts services.ReceiptService
}

// NewReceiptController creates a new instance of ReceiptController
func NewReceiptController(receipts services.ReceiptService) ReceiptController {
	return &receiptController{receipts: receipts}
}

// VoidRequest is the body of a receipt void
type VoidRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PrintRequest selects a printer and the number of copies
type PrintRequest struct {
	PrinterID string `json:"printer_id"`
	Copies    int    `json:"copies"`
}

// CreateReceipt godoc
// @Summary Issue a receipt for an order
// @Tags receipts
// @Accept json
// @Produce json
// @Param receipt body services.ReceiptInput true "Payment details"
// @Success 201 {object} models.Receipt
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/receipts [post]
func (c *receiptController) CreateReceipt(ctx *gin.Context) {
	var input services.ReceiptInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	receipt, err := c.receipts.CreateReceipt(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, receipt)
}

// ListReceipts godoc
// @Summary List recent receipts
// @Tags receipts
// @Produce json
// @Param limit query int false "Maximum number of receipts"
// @Success 200 {array} models.Receipt
// @Security BearerAuth
// @Router /api/v1/receipts [get]
func (c *receiptController) ListReceipts(ctx *gin.Context) {
	receipts, err := c.receipts.ListReceipts(ctx.Request.Context(), queryInt(ctx, "limit"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, receipts)
}

// GetReceipt godoc
// @Summary Get receipt by ID
// @Tags receipts
// @Produce json
// @Param id path string true "Receipt ID"
// @Success 200 {object} models.Receipt
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/receipts/{id} [get]
func (c *receiptController) GetReceipt(ctx *gin.Context) {
	receipt, err := c.receipts.GetReceipt(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, receipt)
}

// RenderReceipt godoc
// @Summary Render a receipt as text
// @Tags receipts
// @Produce plain
// @Param id path string true "Receipt ID"
// @Param width query int false "Characters per line" default(32)
// @Success 200 {string} string
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/receipts/{id}/text [get]
func (c *receiptController) RenderReceipt(ctx *gin.Context) {
	receipt, err := c.receipts.GetReceipt(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	width, _ := strconv.Atoi(ctx.DefaultQuery("width", "32"))
	ctx.String(http.StatusOK, services.RenderReceipt(receipt, width))
}

// VoidReceipt godoc
// @Summary Void a receipt
// @Tags receipts
// @Accept json
// @Produce json
// @Param id path string true "Receipt ID"
// @Param void body VoidRequest true "Reason"
// @Success 200 {object} models.Receipt
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/receipts/{id}/void [post]
func (c *receiptController) VoidReceipt(ctx *gin.Context) {
	var req VoidRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}
	voidedBy := fmt.Sprint(ctx.GetUint(middleware.UserIDKey))
	receipt, err := c.receipts.VoidReceipt(ctx.Request.Context(), ctx.Param("id"), voidedBy, req.Reason)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, receipt)
}

// PrintReceipt godoc
// @Summary Queue a receipt for printing
// @Description Without printer_id the default printer is used
// @Tags receipts
// @Accept json
// @Produce json
// @Param id path string true "Receipt ID"
// @Param print body PrintRequest false "Printer and copies"
// @Success 201 {object} models.PrintJob
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/receipts/{id}/print [post]
func (c *receiptController) PrintReceipt(ctx *gin.Context) {
	var req PrintRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			respondBindError(ctx, err)
			return
		}
	}
	if req.Copies <= 0 {
		req.Copies = 1
	}
	job, err := c.receipts.PrintReceipt(ctx.Request.Context(), ctx.Param("id"), req.PrinterID, req.Copies)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, job)
}

// ListPrinters godoc
// @Summary List printers
// @Tags receipts
// @Produce json
// @Success 200 {array} models.PrinterConfig
// @Security BearerAuth
// @Router /api/v1/printers [get]
func (c *receiptController) ListPrinters(ctx *gin.Context) {
	printers, err := c.receipts.ListPrinters(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, printers)
}

// CreatePrinter godoc
// @Summary Register a printer
// @Tags receipts
// @Accept json
// @Produce json
// @Param printer body services.PrinterInput true "Printer"
// @Success 201 {object} models.PrinterConfig
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/printers [post]
func (c *receiptController) CreatePrinter(ctx *gin.Context) {
	var input services.PrinterInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	printer, err := c.receipts.CreatePrinter(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, printer)
}

// UpdatePrinter godoc
// @Summary Update a printer
// @Tags receipts
// @Accept json
// @Produce json
// @Param id path string true "Printer ID"
// @Param printer body services.PrinterUpdate true "Changed fields"
// @Success 200 {object} models.PrinterConfig
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/printers/{id} [put]
func (c *receiptController) UpdatePrinter(ctx *gin.Context) {
	var input services.PrinterUpdate
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	printer, err := c.receipts.UpdatePrinter(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, printer)
}

// DeletePrinter godoc
// @Summary Remove a printer
// @Tags receipts
// @Param id path string true "Printer ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/printers/{id} [delete]
func (c *receiptController) DeletePrinter(ctx *gin.Context) {
	if err := c.receipts.DeletePrinter(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// ListPrintJobs godoc
// @Summary List print jobs
// @Tags receipts
// @Produce json
// @Param receipt_id query string false "Only jobs of this receipt"
// @Param printer_id query string false "Only jobs sent to this printer"
// @Param limit query int false "Maximum number of jobs"
// @Success 200 {array} models.PrintJob
// @Security BearerAuth
// @Router /api/v1/print-jobs [get]
func (c *receiptController) ListPrintJobs(ctx *gin.Context) {
	jobs, err := c.receipts.ListPrintJobs(ctx.Request.Context(), services.PrintJobFilter{
		ReceiptID: ctx.Query("receipt_id"),
		PrinterID: ctx.Query("printer_id"),
		Limit:     queryInt(ctx, "limit"),
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, jobs)
}
