package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/kbukum/bookingplatform/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return toSnakeCase(fld.Name)
			}
			return name
		})
	})
	return validate
}

// Struct validates s using its `validate` tags. The returned error is an
// *errors.AppError with status 400 listing every invalid field, or nil.
func Struct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation("validation failed")
	}

	fields := make([]FieldError, 0, len(verrs))
	messages := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg := message(e)
		fields = append(fields, FieldError{Field: e.Field(), Message: msg})
		messages = append(messages, e.Field()+" "+msg)
	}
	return apperrors.Validation(strings.Join(messages, "; ")).WithDetail("fields", fields)
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gtfield":
		return "must be after " + toSnakeCase(e.Param())
	case "iso4217":
		return "must be an ISO 4217 currency code"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
