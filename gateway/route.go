package gateway

import (
	"net/http"
	"time"

	"github.com/kbukum/bookingplatform/upstream"
)

// Upstream service names as registered in discovery.
const (
	BillingService = "billing-service"
	BookingService = "booking-service"
)

// Route maps one HTTP route onto one upstream method.
type Route struct {
	Method  string
	Path    string
	Service string
	RPC     string
	// Body forwards the request body. Path parameters are merged into it.
	// Routes without a body send path and query parameters as a flat JSON
	// object.
	Body bool
	// Status is the success status; zero means 200.
	Status int
	// Policy overrides the upstream's default call policy. A per-method
	// policy in the upstream configuration takes precedence over it.
	Policy *upstream.Policy
}

func (r Route) successStatus() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

func policy(timeout time.Duration, retries int, idempotent bool) *upstream.Policy {
	return &upstream.Policy{Timeout: timeout, MaxRetries: retries, Idempotent: idempotent}
}

// DefaultRoutes returns the public API of the gateway.
func DefaultRoutes() []Route {
	return []Route{
		{
			Method: http.MethodPost, Path: "/billing",
			Service: BillingService, RPC: "CreateInvoice",
			Body: true, Status: http.StatusCreated,
			Policy: policy(10*time.Second, 3, true),
		},
		{
			Method: http.MethodGet, Path: "/billing/invoices",
			Service: BillingService, RPC: "ListInvoices",
			Policy: policy(5*time.Second, 2, true),
		},
		{
			Method: http.MethodGet, Path: "/billing/invoices/:invoice_id",
			Service: BillingService, RPC: "GetInvoice",
			Policy: policy(5*time.Second, 2, true),
		},
		{
			Method: http.MethodPost, Path: "/billing/invoices/:invoice_id/payments",
			Service: BillingService, RPC: "ProcessPayment",
			Body: true, Status: http.StatusCreated,
			Policy: policy(10*time.Second, 0, false),
		},
		{
			Method: http.MethodGet, Path: "/billing/invoices/:invoice_id/payments",
			Service: BillingService, RPC: "GetInvoicePayments",
			Policy: policy(5*time.Second, 2, true),
		},
		{
			Method: http.MethodPost, Path: "/bookings",
			Service: BookingService, RPC: "CreateBooking",
			Body: true, Status: http.StatusCreated,
			Policy: policy(10*time.Second, 0, false),
		},
		{
			Method: http.MethodGet, Path: "/bookings",
			Service: BookingService, RPC: "FindAll",
			Policy: policy(5*time.Second, 2, true),
		},
	}
}
