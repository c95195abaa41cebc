package booking

import (
	"context"
	"time"

	"github.com/kbukum/bookingplatform/database"
	"github.com/kbukum/bookingplatform/grpc/server"
	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/validation"
)

// GRPCServiceName is the fully qualified gRPC service name.
const GRPCServiceName = "booking.BookingService"

// Booking reserves a room for a time window.
type Booking struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Title     string         `gorm:"not null" json:"title"`
	StartAt   time.Time      `gorm:"not null" json:"start_at"`
	EndAt     time.Time      `gorm:"not null" json:"end_at"`
	Room      string         `gorm:"not null;index" json:"room"`
	Metadata  map[string]any `gorm:"serializer:json;type:text" json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type CreateBookingRequest struct {
	Title    string         `json:"title" validate:"required,max=255"`
	StartAt  time.Time      `json:"start_at" validate:"required"`
	EndAt    time.Time      `json:"end_at" validate:"required,gtfield=StartAt"`
	Room     string         `json:"room" validate:"required,max=64"`
	Metadata map[string]any `json:"metadata"`
}

func (r *CreateBookingRequest) Validate() error { return validation.Struct(r) }

type BookingList struct {
	Bookings []Booking `json:"bookings"`
}

// Service stores bookings.
type Service struct {
	src database.Source
	log *logger.Logger
}

func NewService(src database.Source, log *logger.Logger) *Service {
	return &Service{src: src, log: log.WithComponent("booking")}
}

// Models lists the tables owned by the booking service.
func Models() []interface{} {
	return []interface{}{&Booking{}}
}

// GRPC returns the methods served as booking.BookingService.
func (s *Service) GRPC() server.Service {
	return server.Service{
		Name: GRPCServiceName,
		Methods: map[string]server.UnaryFunc{
			"CreateBooking": server.Method(s.CreateBooking),
			"FindAll":       server.Method(s.FindAll),
		},
	}
}

func (s *Service) CreateBooking(ctx context.Context, req *CreateBookingRequest) (Booking, error) {
	b := Booking{
		Title:    req.Title,
		StartAt:  req.StartAt.UTC(),
		EndAt:    req.EndAt.UTC(),
		Room:     req.Room,
		Metadata: req.Metadata,
	}
	if err := s.src.DB().WithContext(ctx).Create(&b).Error; err != nil {
		return Booking{}, database.FromDatabase(err, "booking", "")
	}
	s.log.WithContext(ctx).Info("Booking created", map[string]interface{}{
		"booking_id": b.ID,
		"room":       b.Room,
	})
	return b, nil
}

// FindAll returns every booking ordered by start time.
func (s *Service) FindAll(ctx context.Context, _ *struct{}) (BookingList, error) {
	out := BookingList{Bookings: []Booking{}}
	if err := s.src.DB().WithContext(ctx).Order("start_at").Order("id").Find(&out.Bookings).Error; err != nil {
		return BookingList{}, database.FromDatabase(err, "booking", "")
	}
	return out, nil
}
