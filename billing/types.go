package billing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kbukum/bookingplatform/validation"
)

// FlexInt accepts a JSON number or a numeric string. Query parameters reach
// the service as strings.
type FlexInt int

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	var v int
	if err := json.Unmarshal(b, &v); err == nil {
		*n = FlexInt(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected an integer, got %s", b)
	}
	if s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("expected an integer, got %q", s)
	}
	*n = FlexInt(v)
	return nil
}

type CreateInvoiceRequest struct {
	BookingID     string         `json:"booking_id" validate:"required"`
	CustomerID    string         `json:"customer_id" validate:"required"`
	CustomerEmail string         `json:"customer_email" validate:"omitempty,email"`
	Amount        float64        `json:"amount" validate:"gt=0"`
	Currency      string         `json:"currency" validate:"omitempty,iso4217"`
	DueDate       *time.Time     `json:"due_date"`
	Metadata      map[string]any `json:"metadata"`
}

func (r *CreateInvoiceRequest) Validate() error { return validation.Struct(r) }

type GetInvoiceRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
}

func (r *GetInvoiceRequest) Validate() error { return validation.Struct(r) }

// ListInvoicesRequest filters by customer when CustomerID is set. Page and
// Limit default to 1 and 10.
type ListInvoicesRequest struct {
	CustomerID string  `json:"customer_id"`
	Status     string  `json:"status" validate:"omitempty,oneof=draft pending paid overdue cancelled"`
	Page       FlexInt `json:"page" validate:"gte=0"`
	Limit      FlexInt `json:"limit" validate:"gte=0,max=100"`
}

func (r *ListInvoicesRequest) Validate() error { return validation.Struct(r) }

// ProcessPaymentRequest pays an invoice. Amount and Currency default to the
// invoice's own.
type ProcessPaymentRequest struct {
	InvoiceID      string         `json:"invoice_id" validate:"required"`
	Amount         *float64       `json:"amount" validate:"omitempty,gt=0"`
	Currency       string         `json:"currency" validate:"omitempty,iso4217"`
	PaymentMethod  string         `json:"payment_method" validate:"required"`
	TransactionID  string         `json:"transaction_id"`
	PaymentDetails map[string]any `json:"payment_details"`
}

func (r *ProcessPaymentRequest) Validate() error { return validation.Struct(r) }

type InvoiceView struct {
	InvoiceID     string         `json:"invoice_id"`
	BookingID     string         `json:"booking_id"`
	CustomerID    string         `json:"customer_id"`
	CustomerEmail string         `json:"customer_email,omitempty"`
	Amount        float64        `json:"amount"`
	Currency      string         `json:"currency"`
	Status        string         `json:"status"`
	DueDate       time.Time      `json:"due_date"`
	IssuedDate    time.Time      `json:"issued_date"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Metadata      map[string]any `json:"metadata"`
	PaymentStatus string         `json:"payment_status,omitempty"`
	Payments      []PaymentView  `json:"payments,omitempty"`
}

type PaymentView struct {
	PaymentID      string         `json:"payment_id"`
	InvoiceID      string         `json:"invoice_id"`
	Amount         float64        `json:"amount"`
	Currency       string         `json:"currency"`
	Status         string         `json:"status"`
	PaymentMethod  string         `json:"payment_method"`
	TransactionID  string         `json:"transaction_id,omitempty"`
	PaidAt         *time.Time     `json:"paid_at"`
	CreatedAt      time.Time      `json:"created_at"`
	PaymentDetails map[string]any `json:"payment_details"`
}

type InvoiceList struct {
	Invoices []InvoiceView `json:"invoices"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
}

type PaymentList struct {
	Payments []PaymentView `json:"payments"`
}

type HealthReport struct {
	Status            string `json:"status"`
	DatabaseConnected bool   `json:"database_connected"`
	TotalInvoices     int64  `json:"total_invoices"`
	Error             string `json:"error,omitempty"`
}

func invoiceView(inv *Invoice) InvoiceView {
	v := InvoiceView{
		InvoiceID:     inv.InvoiceID,
		BookingID:     inv.BookingID,
		CustomerID:    inv.CustomerID,
		CustomerEmail: inv.CustomerEmail,
		Amount:        inv.Amount,
		Currency:      inv.Currency,
		Status:        inv.Status,
		DueDate:       inv.DueDate,
		IssuedDate:    inv.IssuedDate,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
		Metadata:      inv.Metadata,
	}
	if v.Metadata == nil {
		v.Metadata = map[string]any{}
	}
	for i := range inv.Payments {
		v.Payments = append(v.Payments, paymentView(&inv.Payments[i], inv.InvoiceID))
	}
	return v
}

func paymentView(p *Payment, invoiceID string) PaymentView {
	v := PaymentView{
		PaymentID:      p.PaymentID,
		InvoiceID:      invoiceID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Status:         p.Status,
		PaymentMethod:  p.PaymentMethod,
		TransactionID:  p.TransactionID,
		PaidAt:         p.PaidAt,
		CreatedAt:      p.CreatedAt,
		PaymentDetails: p.PaymentDetails,
	}
	if v.PaymentDetails == nil {
		v.PaymentDetails = map[string]any{}
	}
	return v
}
