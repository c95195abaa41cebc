// Package billing is the invoice and payment backend. It stores invoices
// and payments with GORM and serves them as the gRPC service
// billing.BillingService, whose methods exchange JSON documents.
package billing
