// Package booking is the room booking backend, served as the gRPC service
// booking.BookingService.
package booking
