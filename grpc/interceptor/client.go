package interceptor

import (
	"context"
	"path"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/observability"
)

// UnaryClientLoggingInterceptor logs each outgoing call with method,
// target, duration and status. Failures log at Warn because the caller
// decides whether they are fatal.
func UnaryClientLoggingInterceptor(log *logger.Logger) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		fields := map[string]interface{}{
			"service":            path.Dir(method)[1:],
			logger.FieldMethod:   path.Base(method),
			"target":             cc.Target(),
			logger.FieldDuration: time.Since(start).Milliseconds(),
		}
		if err != nil {
			st := status.Convert(err)
			fields["status"] = st.Code().String()
			fields[logger.FieldError] = st.Message()
			log.WithContext(ctx).Warn("gRPC call failed", fields)
			return err
		}
		fields["status"] = "OK"
		log.WithContext(ctx).Debug("gRPC call completed", fields)
		return nil
	}
}

// UnaryClientTimeoutInterceptor applies a default timeout to calls that do
// not already carry a deadline.
func UnaryClientTimeoutInterceptor(timeout time.Duration) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		if _, ok := ctx.Deadline(); !ok && timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// UnaryClientMetricsInterceptor records the count and duration of each
// outgoing call by service, method and status code.
func UnaryClientMetricsInterceptor(m *observability.RPCMetrics) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		m.Record(ctx, path.Dir(method)[1:], path.Base(method), status.Code(err).String(), time.Since(start))
		return err
	}
}
