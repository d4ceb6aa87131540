package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptType controls how much detail a printed receipt shows
type ReceiptType string

const (
	ReceiptFull    ReceiptType = "FULL"
	ReceiptSimple  ReceiptType = "SIMPLE"
	ReceiptKitchen ReceiptType = "KITCHEN"
)

// ReceiptStatus is the print state of a receipt
type ReceiptStatus string

const (
	ReceiptPending ReceiptStatus = "PENDING"
	ReceiptPrinted ReceiptStatus = "PRINTED"
	ReceiptFailed  ReceiptStatus = "FAILED"
)

// PaymentMethod is how the customer paid
type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "CASH"
	PaymentCreditCard    PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard     PaymentMethod = "DEBIT_CARD"
	PaymentMobilePayment PaymentMethod = "MOBILE_PAYMENT"
	PaymentQRCode        PaymentMethod = "QR_CODE"
)

// Receipt is issued for a completed order. It reads order totals and never touches inventory.
type Receipt struct {
	Base
	OrderID        string          `json:"order_id" gorm:"type:varchar(36);not null;index"`
	Order          *Order          `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	ReceiptNumber  string          `json:"receipt_number" gorm:"uniqueIndex;not null"`
	Type           ReceiptType     `json:"type" gorm:"type:varchar(20);not null"`
	Status         ReceiptStatus   `json:"status" gorm:"type:varchar(20);not null"`
	CompanyName    string          `json:"company_name"`
	CompanyAddress *string         `json:"company_address"`
	CompanyPhone   *string         `json:"company_phone"`
	CustomerName   *string         `json:"customer_name"`
	CustomerPhone  *string         `json:"customer_phone"`
	SubtotalAmount decimal.Decimal `json:"subtotal_amount" gorm:"type:decimal(12,2);not null"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(12,2);not null"`
	TaxAmount      decimal.Decimal `json:"tax_amount" gorm:"type:decimal(12,2);not null"`
	TotalAmount    decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	PaidAmount     decimal.Decimal `json:"paid_amount" gorm:"type:decimal(12,2);not null"`
	ChangeAmount   decimal.Decimal `json:"change_amount" gorm:"type:decimal(12,2);not null"`
	PaymentMethod  PaymentMethod   `json:"payment_method" gorm:"type:varchar(20);not null"`
	PrintedAt      *time.Time      `json:"printed_at"`
	PrinterName    *string         `json:"printer_name"`
	PrintCount     int             `json:"print_count" gorm:"not null"`
	Notes          *string         `json:"notes"`
	FooterMessage  *string         `json:"footer_message"`
	IsVoided       bool            `json:"is_voided" gorm:"not null"`
	VoidedAt       *time.Time      `json:"voided_at"`
	VoidedBy       *string         `json:"voided_by"`
	VoidReason     *string         `json:"void_reason"`
}

// PrinterConfig describes a receipt printer
type PrinterConfig struct {
	Base
	Name           string  `json:"name" gorm:"uniqueIndex;not null"`
	Type           string  `json:"type" gorm:"not null"` // THERMAL, INKJET
	Brand          string  `json:"brand"`
	ConnectionType string  `json:"connection_type"` // USB, NETWORK, BLUETOOTH
	IPAddress      *string `json:"ip_address"`
	Port           *int    `json:"port"`
	PaperWidth     int     `json:"paper_width" gorm:"not null"`
	CharPerLine    int     `json:"char_per_line" gorm:"not null"`
	IsDefault      bool    `json:"is_default" gorm:"not null"`
	IsActive       bool    `json:"is_active" gorm:"not null"`
}

// PrintJob is rendered receipt content queued for a printer
type PrintJob struct {
	Base
	ReceiptID    string     `json:"receipt_id" gorm:"type:varchar(36);not null;index"`
	PrinterID    *string    `json:"printer_id" gorm:"type:varchar(36)"`
	Status       string     `json:"status" gorm:"type:varchar(20);not null"` // PENDING, COMPLETED, FAILED
	Content      string     `json:"content" gorm:"type:text"`
	Copies       int        `json:"copies" gorm:"not null"`
	CompletedAt  *time.Time `json:"completed_at"`
	ErrorMessage *string    `json:"error_message"`
}
