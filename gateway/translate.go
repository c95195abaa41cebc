package gateway

import (
	"context"
	"errors"

	"github.com/kbukum/bookingplatform/discovery"
	apperrors "github.com/kbukum/bookingplatform/errors"
	grpccfg "github.com/kbukum/bookingplatform/grpc"
	"github.com/kbukum/bookingplatform/upstream"
)

// Forward outcomes, used as metric labels and span attributes.
const (
	OutcomeOK          = "ok"
	OutcomeApplication = "application_error"
	OutcomeUnavailable = "unavailable"
	OutcomeInternal    = "internal"
)

// Translate turns a forwarding error into the error returned to the HTTP
// client. Application errors keep the upstream's status and message. Every
// availability failure collapses into one opaque DependencyUnavailable
// error that names no address, registry entry or attempt count.
func Translate(err error) *apperrors.AppError {
	appErr, _ := translate(err)
	return appErr
}

func translate(err error) (*apperrors.AppError, string) {
	if err == nil {
		return nil, OutcomeOK
	}

	var callErr *upstream.CallError
	if errors.As(err, &callErr) && callErr.Kind == upstream.KindTerminal {
		appErr := grpccfg.FromGRPC(callErr.Err)
		if appErr.Code == apperrors.ErrCodeInternal {
			return appErr, OutcomeInternal
		}
		return appErr, OutcomeApplication
	}

	switch {
	case errors.Is(err, upstream.ErrBootstrapExhausted),
		errors.Is(err, upstream.ErrCallTimeout),
		errors.Is(err, upstream.ErrCallFailed),
		errors.Is(err, upstream.ErrClosed),
		errors.Is(err, discovery.ErrRegistryUnavailable),
		errors.Is(err, discovery.ErrServiceNotFound),
		errors.Is(err, discovery.ErrNoHealthyEndpoint),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return apperrors.DependencyUnavailable().WithCause(err), OutcomeUnavailable
	}

	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr, OutcomeApplication
	}
	return apperrors.Internal(err), OutcomeInternal
}
