// Package validation validates request structs with go-playground/validator
// and reports failures as errors.AppError values.
//
//	type CreateBooking struct {
//	    Title   string    `json:"title" validate:"required,max=255"`
//	    StartAt time.Time `json:"start_at" validate:"required"`
//	    EndAt   time.Time `json:"end_at" validate:"required,gtfield=StartAt"`
//	}
//	if err := validation.Struct(req); err != nil {
//	    return nil, err
//	}
package validation
