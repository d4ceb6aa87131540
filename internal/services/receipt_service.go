package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ShopInfo is printed in the receipt header
type ShopInfo struct {
	Name    string
	Address string
	Phone   string
}

// ReceiptInput holds the fields accepted when issuing a receipt
type ReceiptInput struct {
	OrderID       string               `json:"order_id" binding:"required"`
	Type          models.ReceiptType   `json:"type"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
	PaidAmount    decimal.Decimal      `json:"paid_amount"`
	CustomerPhone *string              `json:"customer_phone"`
	Notes         *string              `json:"notes"`
	FooterMessage *string              `json:"footer_message"`
}

// PrinterInput holds the fields accepted when registering a printer
type PrinterInput struct {
	Name           string  `json:"name" binding:"required"`
	Type           string  `json:"type"`
	Brand          string  `json:"brand"`
	ConnectionType string  `json:"connection_type"`
	IPAddress      *string `json:"ip_address"`
	Port           *int    `json:"port"`
	PaperWidth     int     `json:"paper_width"`
	CharPerLine    int     `json:"char_per_line"`
	IsDefault      bool    `json:"is_default"`
}

// PrinterUpdate changes a printer's settings; nil fields are left alone
type PrinterUpdate struct {
	Name           *string `json:"name"`
	Type           *string `json:"type"`
	Brand          *string `json:"brand"`
	ConnectionType *string `json:"connection_type"`
	IPAddress      *string `json:"ip_address"`
	Port           *int    `json:"port"`
	PaperWidth     *int    `json:"paper_width"`
	CharPerLine    *int    `json:"char_per_line"`
	IsDefault      *bool   `json:"is_default"`
	IsActive       *bool   `json:"is_active"`
}

// PrintJobFilter narrows a print job listing
type PrintJobFilter struct {
	ReceiptID string
	PrinterID string
	Limit     int
}

const defaultCharPerLine = 32

// ReceiptService issues, prints and voids receipts
type ReceiptService interface {
	CreateReceipt(ctx context.Context, input ReceiptInput) (models.Receipt, error)
	ListReceipts(ctx context.Context, limit int) ([]models.Receipt, error)
	GetReceipt(ctx context.Context, id string) (models.Receipt, error)
	VoidReceipt(ctx context.Context, id, voidedBy, reason string) (models.Receipt, error)
	// PrintReceipt renders the receipt for a printer and queues a print job.
	// An empty printerID selects the default printer.
	PrintReceipt(ctx context.Context, id, printerID string, copies int) (models.PrintJob, error)
	ListPrinters(ctx context.Context) ([]models.PrinterConfig, error)
	CreatePrinter(ctx context.Context, input PrinterInput) (models.PrinterConfig, error)
	UpdatePrinter(ctx context.Context, id string, input PrinterUpdate) (models.PrinterConfig, error)
	DeletePrinter(ctx context.Context, id string) error
	ListPrintJobs(ctx context.Context, filter PrintJobFilter) ([]models.PrintJob, error)
}

type receiptService struct {
	db   *gorm.DB
	shop ShopInfo
	now  func() time.Time
}

// NewReceiptService creates a new instance of ReceiptService
func NewReceiptService(db *gorm.DB, shop ShopInfo) ReceiptService {
	return &receiptService{db: db, shop: shop, now: time.Now}
}

func newReceiptNumber(now time.Time) string {
	return fmt.Sprintf("RCP-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

func validPaymentMethod(m models.PaymentMethod) bool {
	switch m {
	case models.PaymentCash, models.PaymentCreditCard, models.PaymentDebitCard,
		models.PaymentMobilePayment, models.PaymentQRCode:
		return true
	}
	return false
}

func (s *receiptService) CreateReceipt(ctx context.Context, input ReceiptInput) (models.Receipt, error) {
	if !validPaymentMethod(input.PaymentMethod) {
		return models.Receipt{}, invalid("payment_method", "unknown payment method %q", input.PaymentMethod)
	}
	if input.Type == "" {
		input.Type = models.ReceiptFull
	}
	switch input.Type {
	case models.ReceiptFull, models.ReceiptSimple, models.ReceiptKitchen:
	default:
		return models.Receipt{}, invalid("type", "unknown receipt type %q", input.Type)
	}

	var receipt models.Receipt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The order row lock serializes receipt issuing per order.
		var order models.Order
		if err := lockForUpdate(tx).First(&order, "id = ?", input.OrderID).Error; err != nil {
			return notFoundOr(err, "order", input.OrderID)
		}
		if order.Status == models.OrderStatusCancelled {
			return invalid("order_id", "order %s is cancelled", order.OrderNumber)
		}

		var issued int64
		if err := tx.Model(&models.Receipt{}).
			Where("order_id = ? AND is_voided = ?", order.ID, false).
			Count(&issued).Error; err != nil {
			return fmt.Errorf("check existing receipt: %w", err)
		}
		if issued > 0 {
			return invalid("order_id", "order %s already has a receipt", order.OrderNumber)
		}

		discount := decimal.Zero
		var usage models.PromotionUsage
		err := tx.First(&usage, "order_id = ?", order.ID).Error
		switch {
		case err == nil:
			discount = usage.DiscountAmount
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("load promotion usage: %w", err)
		}

		total := order.TotalAmount.Sub(discount)
		if input.PaidAmount.LessThan(total) {
			return invalid("paid_amount", "paid %s is less than total %s", input.PaidAmount.StringFixed(2), total.StringFixed(2))
		}

		receipt = models.Receipt{
			OrderID:        order.ID,
			ReceiptNumber:  newReceiptNumber(s.now()),
			Type:           input.Type,
			Status:         models.ReceiptPending,
			CompanyName:    s.shop.Name,
			CompanyAddress: models.StringPtr(s.shop.Address),
			CompanyPhone:   models.StringPtr(s.shop.Phone),
			CustomerName:   order.CustomerName,
			CustomerPhone:  input.CustomerPhone,
			SubtotalAmount: order.TotalAmount,
			DiscountAmount: discount,
			TaxAmount:      decimal.Zero,
			TotalAmount:    total,
			PaidAmount:     input.PaidAmount,
			ChangeAmount:   input.PaidAmount.Sub(total),
			PaymentMethod:  input.PaymentMethod,
			Notes:          input.Notes,
			FooterMessage:  input.FooterMessage,
		}
		return tx.Create(&receipt).Error
	})
	if err != nil {
		return models.Receipt{}, err
	}

	log.WithFields(logrus.Fields{
		"receipt_id":     receipt.ID,
		"receipt_number": receipt.ReceiptNumber,
		"order_id":       receipt.OrderID,
	}).Info("Receipt issued")
	return s.GetReceipt(ctx, receipt.ID)
}

func (s *receiptService) ListReceipts(ctx context.Context, limit int) ([]models.Receipt, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var receipts []models.Receipt
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&receipts).Error; err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, nil
}

func (s *receiptService) GetReceipt(ctx context.Context, id string) (models.Receipt, error) {
	var receipt models.Receipt
	err := preloadOrderItems(s.db.WithContext(ctx).Preload("Order"), "Order.").First(&receipt, "id = ?", id).Error
	if err != nil {
		return models.Receipt{}, notFoundOr(err, "receipt", id)
	}
	return receipt, nil
}

func (s *receiptService) VoidReceipt(ctx context.Context, id, voidedBy, reason string) (models.Receipt, error) {
	if strings.TrimSpace(reason) == "" {
		return models.Receipt{}, invalid("reason", "is required")
	}
	result := s.db.WithContext(ctx).Model(&models.Receipt{}).
		Where("id = ? AND is_voided = ?", id, false).
		Updates(map[string]interface{}{
			"is_voided":   true,
			"voided_at":   s.now(),
			"voided_by":   models.StringPtr(voidedBy),
			"void_reason": reason,
		})
	if result.Error != nil {
		return models.Receipt{}, fmt.Errorf("void receipt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		receipt, err := s.GetReceipt(ctx, id)
		if err != nil {
			return models.Receipt{}, err
		}
		return models.Receipt{}, invalid("receipt", "receipt %s is already voided", receipt.ReceiptNumber)
	}
	log.WithFields(logrus.Fields{"receipt_id": id, "voided_by": voidedBy}).Info("Receipt voided")
	return s.GetReceipt(ctx, id)
}

func (s *receiptService) PrintReceipt(ctx context.Context, id, printerID string, copies int) (models.PrintJob, error) {
	if copies <= 0 {
		copies = 1
	}
	receipt, err := s.GetReceipt(ctx, id)
	if err != nil {
		return models.PrintJob{}, err
	}
	if receipt.IsVoided {
		return models.PrintJob{}, invalid("receipt", "receipt %s is voided", receipt.ReceiptNumber)
	}

	var job models.PrintJob
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var printer models.PrinterConfig
		query := tx.Where("is_active = ?", true)
		if printerID != "" {
			query = query.Where("id = ?", printerID)
		} else {
			query = query.Where("is_default = ?", true)
		}
		found := query.Limit(1).Find(&printer)
		if found.Error != nil {
			return fmt.Errorf("load printer: %w", found.Error)
		}

		width := defaultCharPerLine
		var printerRef *string
		var printerName *string
		if found.RowsAffected > 0 {
			printerRef, printerName = &printer.ID, &printer.Name
			if printer.CharPerLine > 0 {
				width = printer.CharPerLine
			}
		} else if printerID != "" {
			return &NotFoundError{Resource: "printer", ID: printerID}
		}

		now := s.now()
		job = models.PrintJob{
			ReceiptID:   receipt.ID,
			PrinterID:   printerRef,
			Status:      "COMPLETED",
			Content:     RenderReceipt(receipt, width),
			Copies:      copies,
			CompletedAt: &now,
		}
		if err := tx.Create(&job).Error; err != nil {
			return fmt.Errorf("create print job: %w", err)
		}
		return tx.Model(&models.Receipt{}).Where("id = ?", receipt.ID).Updates(map[string]interface{}{
			"status":       models.ReceiptPrinted,
			"printed_at":   now,
			"printer_name": printerName,
			"print_count":  gorm.Expr("print_count + ?", copies),
		}).Error
	})
	if err != nil {
		return models.PrintJob{}, err
	}
	return job, nil
}

func (s *receiptService) ListPrinters(ctx context.Context) ([]models.PrinterConfig, error) {
	var printers []models.PrinterConfig
	if err := s.db.WithContext(ctx).Order("is_default DESC, name").Find(&printers).Error; err != nil {
		return nil, fmt.Errorf("list printers: %w", err)
	}
	return printers, nil
}

// CreatePrinter registers a printer. A new default printer clears the
// default flag on every other printer.
func (s *receiptService) CreatePrinter(ctx context.Context, input PrinterInput) (models.PrinterConfig, error) {
	if strings.TrimSpace(input.Name) == "" {
		return models.PrinterConfig{}, invalid("name", "is required")
	}
	printer := models.PrinterConfig{
		Name:           strings.TrimSpace(input.Name),
		Type:           input.Type,
		Brand:          input.Brand,
		ConnectionType: input.ConnectionType,
		IPAddress:      input.IPAddress,
		Port:           input.Port,
		PaperWidth:     input.PaperWidth,
		CharPerLine:    input.CharPerLine,
		IsDefault:      input.IsDefault,
		IsActive:       true,
	}
	if printer.Type == "" {
		printer.Type = "THERMAL"
	}
	if printer.PaperWidth <= 0 {
		printer.PaperWidth = 58
	}
	if printer.CharPerLine <= 0 {
		printer.CharPerLine = defaultCharPerLine
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if printer.IsDefault {
			if err := tx.Model(&models.PrinterConfig{}).Where("is_default = ?", true).Update("is_default", false).Error; err != nil {
				return fmt.Errorf("clear default printer: %w", err)
			}
		}
		return tx.Create(&printer).Error
	})
	if err != nil {
		return models.PrinterConfig{}, fmt.Errorf("create printer: %w", err)
	}
	return printer, nil
}

func (s *receiptService) getPrinter(db *gorm.DB, id string) (models.PrinterConfig, error) {
	var printer models.PrinterConfig
	if err := db.First(&printer, "id = ?", id).Error; err != nil {
		return models.PrinterConfig{}, notFoundOr(err, "printer", id)
	}
	return printer, nil
}

// UpdatePrinter changes a printer. Making it the default clears the flag on
// every other printer.
func (s *receiptService) UpdatePrinter(ctx context.Context, id string, input PrinterUpdate) (models.PrinterConfig, error) {
	updates := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return models.PrinterConfig{}, invalid("name", "must not be empty")
		}
		updates["name"] = name
	}
	if input.Type != nil {
		updates["type"] = *input.Type
	}
	if input.Brand != nil {
		updates["brand"] = *input.Brand
	}
	if input.ConnectionType != nil {
		updates["connection_type"] = *input.ConnectionType
	}
	if input.IPAddress != nil {
		updates["ip_address"] = *input.IPAddress
	}
	if input.Port != nil {
		updates["port"] = *input.Port
	}
	if input.PaperWidth != nil {
		if *input.PaperWidth <= 0 {
			return models.PrinterConfig{}, invalid("paper_width", "must be greater than zero")
		}
		updates["paper_width"] = *input.PaperWidth
	}
	if input.CharPerLine != nil {
		if *input.CharPerLine < 16 {
			return models.PrinterConfig{}, invalid("char_per_line", "must be at least 16")
		}
		updates["char_per_line"] = *input.CharPerLine
	}
	if input.IsDefault != nil {
		updates["is_default"] = *input.IsDefault
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	var printer models.PrinterConfig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if printer, err = s.getPrinter(tx, id); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if input.IsDefault != nil && *input.IsDefault {
			if err := tx.Model(&models.PrinterConfig{}).Where("id <> ? AND is_default = ?", id, true).
				Update("is_default", false).Error; err != nil {
				return fmt.Errorf("clear default printer: %w", err)
			}
		}
		if err := tx.Model(&printer).Updates(updates).Error; err != nil {
			return fmt.Errorf("update printer: %w", err)
		}
		printer, err = s.getPrinter(tx, id)
		return err
	})
	if err != nil {
		return models.PrinterConfig{}, err
	}
	return printer, nil
}

func (s *receiptService) DeletePrinter(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.PrinterConfig{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete printer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Resource: "printer", ID: id}
	}
	log.WithField("printer_id", id).Info("Printer deleted")
	return nil
}

func (s *receiptService) ListPrintJobs(ctx context.Context, filter PrintJobFilter) ([]models.PrintJob, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if filter.ReceiptID != "" {
		query = query.Where("receipt_id = ?", filter.ReceiptID)
	}
	if filter.PrinterID != "" {
		query = query.Where("printer_id = ?", filter.PrinterID)
	}
	var jobs []models.PrintJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list print jobs: %w", err)
	}
	return jobs, nil
}

// RenderReceipt lays the receipt out as fixed-width text
func RenderReceipt(r models.Receipt, width int) string {
	if width < 24 {
		width = 24
	}
	var b strings.Builder
	rule := strings.Repeat("-", width)

	center := func(s string) {
		if len(s) >= width {
			b.WriteString(s[:width])
		} else {
			b.WriteString(strings.Repeat(" ", (width-len(s))/2))
			b.WriteString(s)
		}
		b.WriteByte('\n')
	}
	pair := func(left, right string) {
		gap := width - len(left) - len(right)
		if gap < 1 {
			left = left[:max(0, width-len(right)-1)]
			gap = 1
		}
		b.WriteString(left)
		b.WriteString(strings.Repeat(" ", gap))
		b.WriteString(right)
		b.WriteByte('\n')
	}

	if r.Type != models.ReceiptKitchen {
		center(r.CompanyName)
		if r.CompanyAddress != nil {
			center(*r.CompanyAddress)
		}
		if r.CompanyPhone != nil {
			center(*r.CompanyPhone)
		}
		b.WriteString(rule + "\n")
	}
	pair("Receipt", r.ReceiptNumber)
	pair("Date", r.CreatedAt.Format("2006-01-02 15:04"))
	if r.Order != nil {
		pair("Order", r.Order.OrderNumber)
	}
	if r.CustomerName != nil {
		pair("Customer", *r.CustomerName)
	}
	b.WriteString(rule + "\n")

	if r.Order != nil && r.Type != models.ReceiptSimple {
		for _, item := range r.Order.Items {
			name := item.ProductID
			if item.Product != nil {
				name = item.Product.Name
			}
			if r.Type == models.ReceiptKitchen {
				pair(name, fmt.Sprintf("x%d", item.Quantity))
				continue
			}
			b.WriteString(name + "\n")
			pair(fmt.Sprintf("  %d x %s", item.Quantity, item.Price.StringFixed(2)), item.Subtotal.StringFixed(2))
		}
		b.WriteString(rule + "\n")
	}

	if r.Type != models.ReceiptKitchen {
		pair("Subtotal", r.SubtotalAmount.StringFixed(2))
		if r.DiscountAmount.IsPositive() {
			pair("Discount", "-"+r.DiscountAmount.StringFixed(2))
		}
		if r.TaxAmount.IsPositive() {
			pair("Tax", r.TaxAmount.StringFixed(2))
		}
		pair("TOTAL", r.TotalAmount.StringFixed(2))
		pair("Paid ("+string(r.PaymentMethod)+")", r.PaidAmount.StringFixed(2))
		pair("Change", r.ChangeAmount.StringFixed(2))
		b.WriteString(rule + "\n")
		if r.FooterMessage != nil {
			center(*r.FooterMessage)
		} else {
			center("Thank you!")
		}
	}
	if r.IsVoided {
		center("*** VOID ***")
	}
	return b.String()
}
