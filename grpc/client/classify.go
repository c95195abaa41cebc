package client

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpccfg "github.com/kbukum/bookingplatform/grpc"
	"github.com/kbukum/bookingplatform/upstream"
)

// Classify maps a gRPC call error to a retry kind. Internal and Unknown are
// terminal: the service ran the request and failed, so repeating it is not
// safe in general.
func Classify(err error) upstream.Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return upstream.KindTimeout
	case errors.Is(err, context.Canceled):
		return upstream.KindCanceled
	}

	st, ok := status.FromError(err)
	if !ok {
		if grpccfg.IsConnectionError(err) {
			return upstream.KindConnection
		}
		return upstream.KindTerminal
	}

	switch st.Code() {
	case codes.DeadlineExceeded:
		return upstream.KindTimeout
	case codes.Unavailable:
		return upstream.KindConnection
	case codes.ResourceExhausted, codes.Aborted:
		return upstream.KindTransient
	case codes.Canceled:
		return upstream.KindCanceled
	default:
		return upstream.KindTerminal
	}
}
