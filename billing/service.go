package billing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/kbukum/bookingplatform/database"
	apperrors "github.com/kbukum/bookingplatform/errors"
	"github.com/kbukum/bookingplatform/grpc/server"
	"github.com/kbukum/bookingplatform/logger"
)

// GRPCServiceName is the fully qualified gRPC service name.
const GRPCServiceName = "billing.BillingService"

const (
	defaultCurrency = "USD"
	defaultDueIn    = 7 * 24 * time.Hour
	defaultPage     = 1
	defaultLimit    = 10
)

// Service manages invoices and their payments.
type Service struct {
	src database.Source
	log *logger.Logger
	now func() time.Time
}

// NewService creates a Service on db.
func NewService(src database.Source, log *logger.Logger) *Service {
	return &Service{src: src, log: log.WithComponent("billing"), now: time.Now}
}

// GRPC returns the methods served as billing.BillingService.
func (s *Service) GRPC() server.Service {
	return server.Service{
		Name: GRPCServiceName,
		Methods: map[string]server.UnaryFunc{
			"CreateInvoice":      server.Method(s.CreateInvoice),
			"GetInvoice":         server.Method(s.GetInvoice),
			"ListInvoices":       server.Method(s.ListInvoices),
			"ProcessPayment":     server.Method(s.ProcessPayment),
			"GetInvoicePayments": server.Method(s.GetInvoicePayments),
			"HealthCheck":        server.Method(s.HealthCheck),
		},
	}
}

// CreateInvoice issues a pending invoice.
func (s *Service) CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (InvoiceView, error) {
	now := s.now().UTC()
	inv := &Invoice{
		InvoiceID:     newID("INV", now),
		BookingID:     req.BookingID,
		CustomerID:    req.CustomerID,
		CustomerEmail: req.CustomerEmail,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        InvoicePending,
		DueDate:       now.Add(defaultDueIn),
		IssuedDate:    now,
		Metadata:      req.Metadata,
	}
	if inv.Currency == "" {
		inv.Currency = defaultCurrency
	}
	if req.DueDate != nil {
		inv.DueDate = req.DueDate.UTC()
	}

	if err := s.src.DB().WithContext(ctx).Create(inv).Error; err != nil {
		return InvoiceView{}, database.FromDatabase(err, "invoice", inv.InvoiceID)
	}
	s.log.WithContext(ctx).Info("Invoice created", map[string]interface{}{
		"invoice_id": inv.InvoiceID,
		"booking_id": inv.BookingID,
	})
	return invoiceView(inv), nil
}

// GetInvoice returns one invoice with its payments.
func (s *Service) GetInvoice(ctx context.Context, req *GetInvoiceRequest) (InvoiceView, error) {
	inv, err := s.findInvoice(s.src.DB().WithContext(ctx).Preload("Payments"), req.InvoiceID)
	if err != nil {
		return InvoiceView{}, err
	}
	return invoiceView(inv), nil
}

// ListInvoices pages through invoices, newest first. Payments are
// summarized as payment_status rather than listed.
func (s *Service) ListInvoices(ctx context.Context, req *ListInvoicesRequest) (InvoiceList, error) {
	page, limit := int(req.Page), int(req.Limit)
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	filter := func(db *gorm.DB) *gorm.DB {
		if req.CustomerID != "" {
			db = db.Where("customer_id = ?", req.CustomerID)
		}
		if req.Status != "" {
			db = db.Where("status = ?", req.Status)
		}
		return db
	}

	var total int64
	if err := s.src.DB().WithContext(ctx).Model(&Invoice{}).Scopes(filter).Count(&total).Error; err != nil {
		return InvoiceList{}, database.FromDatabase(err, "invoice", "")
	}
	var rows []Invoice
	err := s.src.DB().WithContext(ctx).Scopes(filter).Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Order("created_at DESC").Order("invoice_id DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&rows).Error
	if err != nil {
		return InvoiceList{}, database.FromDatabase(err, "invoice", "")
	}

	out := InvoiceList{Invoices: make([]InvoiceView, 0, len(rows)), Total: total, Page: page, Limit: limit}
	for i := range rows {
		v := invoiceView(&rows[i])
		v.PaymentStatus = "unpaid"
		if len(v.Payments) > 0 {
			v.PaymentStatus = v.Payments[0].Status
		}
		v.Payments = nil
		out.Invoices = append(out.Invoices, v)
	}
	return out, nil
}

// ProcessPayment records a completed payment and marks the invoice paid,
// in one transaction. Paying a paid invoice is a conflict.
func (s *Service) ProcessPayment(ctx context.Context, req *ProcessPaymentRequest) (PaymentView, error) {
	var (
		payment *Payment
		inv     *Invoice
	)
	err := s.src.DB().WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		inv, err = s.findInvoice(tx, req.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == InvoicePaid {
			return apperrors.Conflict(fmt.Sprintf("Invoice %s is already paid", inv.InvoiceID))
		}

		now := s.now().UTC()
		payment = &Payment{
			PaymentID:      newID("PAY", now),
			InvoiceRef:     inv.ID,
			Amount:         inv.Amount,
			Currency:       inv.Currency,
			Status:         PaymentCompleted,
			PaymentMethod:  req.PaymentMethod,
			TransactionID:  req.TransactionID,
			PaymentDetails: req.PaymentDetails,
			PaidAt:         &now,
		}
		if req.Amount != nil {
			payment.Amount = *req.Amount
		}
		if req.Currency != "" {
			payment.Currency = req.Currency
		}
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		// Only an unpaid invoice may become paid.
		res := tx.Model(&Invoice{}).
			Where("id = ? AND status <> ?", inv.ID, InvoicePaid).
			Update("status", InvoicePaid)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict(fmt.Sprintf("Invoice %s is already paid", inv.InvoiceID))
		}
		return nil
	})
	if err != nil {
		return PaymentView{}, database.FromDatabase(err, "payment", "")
	}

	s.log.WithContext(ctx).Info("Payment processed", map[string]interface{}{
		"invoice_id": inv.InvoiceID,
		"payment_id": payment.PaymentID,
	})
	return paymentView(payment, inv.InvoiceID), nil
}

// GetInvoicePayments lists the payments of one invoice.
func (s *Service) GetInvoicePayments(ctx context.Context, req *GetInvoiceRequest) (PaymentList, error) {
	inv, err := s.findInvoice(s.src.DB().WithContext(ctx), req.InvoiceID)
	if err != nil {
		return PaymentList{}, err
	}
	var rows []Payment
	if err := s.src.DB().WithContext(ctx).Where("invoice_ref = ?", inv.ID).Order("created_at").Find(&rows).Error; err != nil {
		return PaymentList{}, database.FromDatabase(err, "payment", "")
	}
	out := PaymentList{Payments: make([]PaymentView, 0, len(rows))}
	for i := range rows {
		out.Payments = append(out.Payments, paymentView(&rows[i], inv.InvoiceID))
	}
	return out, nil
}

// HealthCheck reports database reachability and the invoice count. A
// database failure is reported in the body, not as an error.
func (s *Service) HealthCheck(ctx context.Context, _ *struct{}) (HealthReport, error) {
	var count int64
	if err := s.src.DB().WithContext(ctx).Model(&Invoice{}).Count(&count).Error; err != nil {
		return HealthReport{Status: "NOT_SERVING", Error: err.Error()}, nil
	}
	return HealthReport{Status: "SERVING", DatabaseConnected: true, TotalInvoices: count}, nil
}

func (s *Service) findInvoice(q *gorm.DB, invoiceID string) (*Invoice, error) {
	var inv Invoice
	if err := q.Where("invoice_id = ?", invoiceID).First(&inv).Error; err != nil {
		if database.IsNotFoundError(err) {
			return nil, apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("Invoice %s not found", invoiceID), http.StatusNotFound)
		}
		return nil, database.FromDatabase(err, "invoice", invoiceID)
	}
	return &inv, nil
}
