package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReceiptShop(t *testing.T) (*shop, ReceiptService, string) {
	t.Helper()
	s, latte, _, _ := latteShop(t, "1000")
	receipts := NewReceiptService(s.db, ShopInfo{Name: "Coffeepula", Address: "12 Bean Street", Phone: "02-555-0100"})
	placed, err := s.orders.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items:        []OrderLine{{ProductID: latte.ID, Quantity: 3}},
		CustomerName: models.StringPtr("Sam"),
	})
	require.NoError(t, err)
	return s, receipts, placed.Order.ID
}

func TestCreateReceipt(t *testing.T) {
	_, receipts, orderID := newReceiptShop(t)
	ctx := context.Background()

	receipt, err := receipts.CreateReceipt(ctx, ReceiptInput{
		OrderID:       orderID,
		PaymentMethod: models.PaymentCash,
		PaidAmount:    dec("200"),
	})
	require.NoError(t, err)
	assert.Regexp(t, `^RCP-\d{8}-[0-9A-F]{8}$`, receipt.ReceiptNumber)
	assert.Equal(t, models.ReceiptFull, receipt.Type)
	assert.Equal(t, models.ReceiptPending, receipt.Status)
	assert.True(t, receipt.TotalAmount.Equal(dec("165")))
	assert.True(t, receipt.ChangeAmount.Equal(dec("35")))
	require.NotNil(t, receipt.Order)
	assert.Len(t, receipt.Order.Items, 1)

	_, err = receipts.CreateReceipt(ctx, ReceiptInput{OrderID: orderID, PaymentMethod: models.PaymentCash, PaidAmount: dec("200")})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "order_id", validation.Field)
}

func TestCreateReceiptRejections(t *testing.T) {
	_, receipts, orderID := newReceiptShop(t)

	tests := []struct {
		name  string
		input ReceiptInput
		field string
	}{
		{"underpaid", ReceiptInput{OrderID: orderID, PaymentMethod: models.PaymentCash, PaidAmount: dec("100")}, "paid_amount"},
		{"unknown payment method", ReceiptInput{OrderID: orderID, PaymentMethod: "BARTER", PaidAmount: dec("200")}, "payment_method"},
		{"unknown type", ReceiptInput{OrderID: orderID, Type: "POSTER", PaymentMethod: models.PaymentCash, PaidAmount: dec("200")}, "type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := receipts.CreateReceipt(context.Background(), tt.input)
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}

	t.Run("unknown order", func(t *testing.T) {
		_, err := receipts.CreateReceipt(context.Background(), ReceiptInput{OrderID: "missing", PaymentMethod: models.PaymentCash})
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestReceiptIncludesAppliedDiscount(t *testing.T) {
	s, receipts, orderID := newReceiptShop(t)
	ctx := context.Background()
	promos := NewPromotionService(s.db)

	_, err := promos.CreatePromotion(ctx, PromotionInput{Name: "Fifteen off", Type: models.PromotionFixedAmount, DiscountAmount: decPtr("15")})
	require.NoError(t, err)
	_, err = promos.ApplyToOrder(ctx, orderID, nil)
	require.NoError(t, err)

	receipt, err := receipts.CreateReceipt(ctx, ReceiptInput{OrderID: orderID, PaymentMethod: models.PaymentQRCode, PaidAmount: dec("150")})
	require.NoError(t, err)
	assert.True(t, receipt.DiscountAmount.Equal(dec("15")))
	assert.True(t, receipt.TotalAmount.Equal(dec("150")))
	assert.True(t, receipt.ChangeAmount.IsZero())
}

func TestRenderReceipt(t *testing.T) {
	_, receipts, orderID := newReceiptShop(t)
	receipt, err := receipts.CreateReceipt(context.Background(), ReceiptInput{
		OrderID:       orderID,
		PaymentMethod: models.PaymentCash,
		PaidAmount:    dec("200"),
	})
	require.NoError(t, err)

	text := RenderReceipt(receipt, 32)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		assert.LessOrEqual(t, len(line), 32, line)
	}
	assert.Contains(t, text, "Coffeepula")
	assert.Contains(t, text, "Latte")
	assert.Contains(t, text, "3 x 55.00")
	assert.Contains(t, text, "165.00")
	assert.Contains(t, text, "Thank you!")
	assert.NotContains(t, text, "VOID")

	receipt.Type = models.ReceiptKitchen
	kitchen := RenderReceipt(receipt, 32)
	assert.NotContains(t, kitchen, "Coffeepula")
	assert.Contains(t, kitchen, "x3")
	assert.NotContains(t, kitchen, "TOTAL")
}

func TestPrintAndVoidReceipt(t *testing.T) {
	_, receipts, orderID := newReceiptShop(t)
	ctx := context.Background()

	receipt, err := receipts.CreateReceipt(ctx, ReceiptInput{OrderID: orderID, PaymentMethod: models.PaymentCash, PaidAmount: dec("165")})
	require.NoError(t, err)

	front, err := receipts.CreatePrinter(ctx, PrinterInput{Name: "Front Counter", CharPerLine: 42, IsDefault: true})
	require.NoError(t, err)
	_, err = receipts.CreatePrinter(ctx, PrinterInput{Name: "Bar", IsDefault: true})
	require.NoError(t, err)

	printers, err := receipts.ListPrinters(ctx)
	require.NoError(t, err)
	require.Len(t, printers, 2)
	assert.Equal(t, "Bar", printers[0].Name)
	assert.False(t, printers[1].IsDefault)

	job, err := receipts.PrintReceipt(ctx, receipt.ID, front.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, job.Copies)
	assert.Contains(t, job.Content, receipt.ReceiptNumber)

	printed, err := receipts.GetReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptPrinted, printed.Status)
	assert.Equal(t, 2, printed.PrintCount)

	_, err = receipts.VoidReceipt(ctx, receipt.ID, "1", "")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)

	voided, err := receipts.VoidReceipt(ctx, receipt.ID, "1", "Customer changed order")
	require.NoError(t, err)
	assert.True(t, voided.IsVoided)

	_, err = receipts.VoidReceipt(ctx, receipt.ID, "1", "again")
	require.ErrorAs(t, err, &validation)
	_, err = receipts.PrintReceipt(ctx, receipt.ID, "", 1)
	require.ErrorAs(t, err, &validation)

	// A voided receipt frees the order for a new one
	_, err = receipts.CreateReceipt(ctx, ReceiptInput{OrderID: orderID, PaymentMethod: models.PaymentCash, PaidAmount: dec("165")})
	assert.NoError(t, err)
}

func TestCreateReceiptConcurrentKeepsOneLiveReceipt(t *testing.T) {
	s, receipts, orderID := newReceiptShop(t)
	ctx := context.Background()

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = receipts.CreateReceipt(ctx, ReceiptInput{OrderID: orderID, PaymentMethod: models.PaymentCash, PaidAmount: dec("165")})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	var live int64
	require.NoError(t, s.db.Model(&models.Receipt{}).Where("order_id = ? AND is_voided = ?", orderID, false).Count(&live).Error)
	assert.Equal(t, int64(1), live)
}

func TestLiveReceiptIndexRejectsDuplicates(t *testing.T) {
	s, _, orderID := newReceiptShop(t)

	receipt := func(number string, voided bool) *models.Receipt {
		return &models.Receipt{
			OrderID:       orderID,
			ReceiptNumber: number,
			Type:          models.ReceiptFull,
			Status:        models.ReceiptPending,
			PaymentMethod: models.PaymentCash,
			IsVoided:      voided,
		}
	}
	require.NoError(t, s.db.Create(receipt("RCP-1", true)).Error)
	require.NoError(t, s.db.Create(receipt("RCP-2", true)).Error)
	require.NoError(t, s.db.Create(receipt("RCP-3", false)).Error)
	assert.Error(t, s.db.Create(receipt("RCP-4", false)).Error)
}

func TestManagePrinters(t *testing.T) {
	_, receipts, orderID := newReceiptShop(t)
	ctx := context.Background()

	front, err := receipts.CreatePrinter(ctx, PrinterInput{Name: "Front Counter", IsDefault: true})
	require.NoError(t, err)
	bar, err := receipts.CreatePrinter(ctx, PrinterInput{Name: "Bar"})
	require.NoError(t, err)

	yes, wide := true, 48
	updated, err := receipts.UpdatePrinter(ctx, bar.ID, PrinterUpdate{IsDefault: &yes, CharPerLine: &wide})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, 48, updated.CharPerLine)

	printers, err := receipts.ListPrinters(ctx)
	require.NoError(t, err)
	require.Len(t, printers, 2)
	assert.Equal(t, bar.ID, printers[0].ID)
	assert.False(t, printers[1].IsDefault)

	narrow, blank := 8, " "
	_, err = receipts.UpdatePrinter(ctx, bar.ID, PrinterUpdate{CharPerLine: &narrow})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "char_per_line", validation.Field)
	_, err = receipts.UpdatePrinter(ctx, bar.ID, PrinterUpdate{Name: &blank})
	require.ErrorAs(t, err, &validation)
	_, err = receipts.UpdatePrinter(ctx, "missing", PrinterUpdate{IsDefault: &yes})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	receipt, err := receipts.CreateReceipt(ctx, ReceiptInput{OrderID: orderID, PaymentMethod: models.PaymentCash, PaidAmount: dec("165")})
	require.NoError(t, err)
	_, err = receipts.PrintReceipt(ctx, receipt.ID, "", 1)
	require.NoError(t, err)
	_, err = receipts.PrintReceipt(ctx, receipt.ID, front.ID, 1)
	require.NoError(t, err)

	jobs, err := receipts.ListPrintJobs(ctx, PrintJobFilter{ReceiptID: receipt.ID})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	barJobs, err := receipts.ListPrintJobs(ctx, PrintJobFilter{PrinterID: bar.ID})
	require.NoError(t, err)
	require.Len(t, barJobs, 1)
	assert.Contains(t, barJobs[0].Content, strings.Repeat("-", 48))

	require.NoError(t, receipts.DeletePrinter(ctx, front.ID))
	require.ErrorAs(t, receipts.DeletePrinter(ctx, front.ID), &notFound)
	printers, err = receipts.ListPrinters(ctx)
	require.NoError(t, err)
	assert.Len(t, printers, 1)
}
