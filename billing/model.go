package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invoice statuses.
const (
	InvoiceDraft     = "draft"
	InvoicePending   = "pending"
	InvoicePaid      = "paid"
	InvoiceOverdue   = "overdue"
	InvoiceCancelled = "cancelled"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Invoice is a bill for one booking. InvoiceID is the public identifier.
type Invoice struct {
	ID            string         `gorm:"primaryKey;size:36"`
	InvoiceID     string         `gorm:"uniqueIndex;not null"`
	BookingID     string         `gorm:"not null"`
	CustomerID    string         `gorm:"index;not null"`
	CustomerEmail string
	Amount        float64        `gorm:"type:decimal(10,2);not null"`
	Currency      string         `gorm:"default:USD"`
	Status        string         `gorm:"default:draft"`
	DueDate       time.Time      `gorm:"not null"`
	IssuedDate    time.Time
	Metadata      map[string]any `gorm:"serializer:json;type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Payments      []Payment `gorm:"foreignKey:InvoiceRef"`
}

// Payment settles an invoice. InvoiceRef points at Invoice.ID.
type Payment struct {
	ID             string         `gorm:"primaryKey;size:36"`
	PaymentID      string         `gorm:"uniqueIndex;not null"`
	InvoiceRef     string         `gorm:"index;not null;size:36"`
	Amount         float64        `gorm:"type:decimal(10,2);not null"`
	Currency       string         `gorm:"default:USD"`
	Status         string         `gorm:"default:pending"`
	PaymentMethod  string         `gorm:"not null"`
	TransactionID  string
	PaymentDetails map[string]any `gorm:"serializer:json;type:text"`
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Models lists the tables owned by the billing service.
func Models() []interface{} {
	return []interface{}{&Invoice{}, &Payment{}}
}
