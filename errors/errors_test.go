package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew_DerivesRetryable(t *testing.T) {
	if New(ErrCodeNotFound, "x", http.StatusNotFound).Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
	if !New(ErrCodeTimeout, "x", http.StatusGatewayTimeout).Retryable {
		t.Error("TIMEOUT should be retryable")
	}
}

func TestDependencyUnavailable_IsOpaque(t *testing.T) {
	err := DependencyUnavailable()
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", err.HTTPStatus)
	}
	if err.Code != ErrCodeServiceUnavailable {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %s", err.Code)
	}
	if len(err.Details) != 0 {
		t.Errorf("expected no details, got %v", err.Details)
	}

	body, marshalErr := json.Marshal(err.ToResponse())
	if marshalErr != nil {
		t.Fatalf("marshal: %v", marshalErr)
	}
	if strings.Contains(string(body), "details") {
		t.Errorf("response should omit details: %s", body)
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("invoice", "INV_1")
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected 404, got %d", err.HTTPStatus)
	}
	if err.Details["id"] != "INV_1" {
		t.Errorf("expected id detail, got %v", err.Details)
	}
	if _, ok := NotFound("invoice", "").Details["id"]; ok {
		t.Error("expected no id detail when id is empty")
	}
}

func TestConstructors_Status(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
	}{
		{"conflict", Conflict("already paid"), http.StatusConflict},
		{"already exists", AlreadyExists("booking"), http.StatusConflict},
		{"invalid input", InvalidInput("amount", "must be positive"), http.StatusBadRequest},
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"missing field", MissingField("customer_id"), http.StatusBadRequest},
		{"unauthorized", Unauthorized(""), http.StatusUnauthorized},
		{"forbidden", Forbidden(""), http.StatusForbidden},
		{"not implemented", NotImplemented("Refund"), http.StatusNotImplemented},
		{"timeout", Timeout("CreateInvoice"), http.StatusGatewayTimeout},
		{"service unavailable", ServiceUnavailable("billing"), http.StatusServiceUnavailable},
		{"internal", Internal(nil), http.StatusInternalServerError},
		{"database", DatabaseError(nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.status {
				t.Errorf("expected %d, got %d", tt.status, tt.err.HTTPStatus)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	plain := Conflict("invoice already paid")
	if plain.Error() != "CONFLICT: invoice already paid" {
		t.Errorf("unexpected %q", plain.Error())
	}
	wrapped := Internal(fmt.Errorf("boom"))
	if !strings.Contains(wrapped.Error(), "cause: boom") {
		t.Errorf("expected cause in %q", wrapped.Error())
	}
}

func TestUnwrapAndAs(t *testing.T) {
	root := stderrors.New("disk full")
	err := fmt.Errorf("save: %w", DatabaseError(root))

	if !stderrors.Is(err, root) {
		t.Error("errors.Is should reach the cause")
	}
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != ErrCodeDatabaseError {
		t.Fatalf("AsAppError = %v, %v", appErr, ok)
	}
	if !IsAppError(err) {
		t.Error("IsAppError should be true")
	}
	if IsAppError(root) {
		t.Error("plain error should not be an AppError")
	}
}

func TestToResponse(t *testing.T) {
	resp := InvalidInput("amount", "must be positive").ToResponse()
	if resp.Error.Code != ErrCodeInvalidInput {
		t.Errorf("code = %s", resp.Error.Code)
	}
	if resp.Error.Details["field"] != "amount" {
		t.Errorf("details = %v", resp.Error.Details)
	}
	if resp.Error.Retryable {
		t.Error("invalid input should not be retryable")
	}
}
