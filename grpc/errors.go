package grpc

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/kbukum/bookingplatform/errors"
)

// FromGRPC converts an application-level gRPC status into an AppError,
// keeping the message the downstream service chose for its caller.
// Transport failures are not application errors; callers classify those
// first and never pass them here.
func FromGRPC(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return apperrors.Internal(err)
	}

	msg := st.Message()
	var appErr *apperrors.AppError
	switch st.Code() {
	case codes.InvalidArgument, codes.OutOfRange:
		appErr = apperrors.New(apperrors.ErrCodeInvalidInput, msg, http.StatusBadRequest)
	case codes.NotFound:
		appErr = apperrors.New(apperrors.ErrCodeNotFound, msg, http.StatusNotFound)
	case codes.AlreadyExists:
		appErr = apperrors.New(apperrors.ErrCodeAlreadyExists, msg, http.StatusConflict)
	case codes.FailedPrecondition:
		appErr = apperrors.Conflict(msg)
	case codes.PermissionDenied:
		appErr = apperrors.Forbidden(msg)
	case codes.Unauthenticated:
		appErr = apperrors.Unauthorized(msg)
	case codes.Unimplemented:
		appErr = apperrors.New(apperrors.ErrCodeNotImplemented, msg, http.StatusNotImplemented)
	case codes.ResourceExhausted:
		appErr = apperrors.New(apperrors.ErrCodeRateLimited, msg, http.StatusTooManyRequests)
	case codes.Aborted:
		appErr = apperrors.New(apperrors.ErrCodeConflict, msg, http.StatusConflict)
		appErr.Retryable = true
	default:
		return apperrors.Internal(err)
	}
	if appErr.Message == "" {
		appErr.Message = http.StatusText(appErr.HTTPStatus)
	}
	return appErr.WithCause(err)
}

// ToGRPCStatus converts a handler error into a gRPC status error.
// AppErrors keep their message; anything else becomes Internal with a
// generic message.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, "request canceled")
	}

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return status.Error(codes.Internal, apperrors.Internal(err).Message)
	}

	var code codes.Code
	switch appErr.Code {
	case apperrors.ErrCodeNotFound:
		code = codes.NotFound
	case apperrors.ErrCodeAlreadyExists:
		code = codes.AlreadyExists
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeMissingField:
		code = codes.InvalidArgument
	case apperrors.ErrCodeUnauthorized:
		code = codes.Unauthenticated
	case apperrors.ErrCodeForbidden:
		code = codes.PermissionDenied
	case apperrors.ErrCodeConflict:
		code = codes.FailedPrecondition
	case apperrors.ErrCodeTimeout:
		code = codes.DeadlineExceeded
	case apperrors.ErrCodeRateLimited:
		code = codes.ResourceExhausted
	case apperrors.ErrCodeServiceUnavailable, apperrors.ErrCodeConnectionFailed:
		code = codes.Unavailable
	case apperrors.ErrCodeNotImplemented:
		code = codes.Unimplemented
	default:
		code = codes.Internal
	}
	return status.Error(code, appErr.Message)
}

// IsConnectionError reports whether err looks like a transport failure.
// grpc-go reports most of them as Unavailable; the string patterns catch
// dial errors surfaced before a status is attached.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.Unavailable {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"transport is closing",
		"connection closed",
		"client connection is closing",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
