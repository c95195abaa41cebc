package interceptor

import (
	"context"
	"fmt"
	"path"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpccfg "github.com/kbukum/bookingplatform/grpc"
	"github.com/kbukum/bookingplatform/logger"
)

// UnaryServerRecoveryInterceptor turns a handler panic into an Internal
// status instead of crashing the process.
func UnaryServerRecoveryInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic in gRPC handler", map[string]interface{}{
					logger.FieldMethod: info.FullMethod,
					"panic":            fmt.Sprint(r),
					"stack":            string(debug.Stack()),
				})
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// UnaryServerErrorInterceptor converts handler errors into gRPC statuses so
// application errors reach the caller with the right code and message.
func UnaryServerErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, grpccfg.ToGRPCStatus(err)
		}
		return resp, nil
	}
}

// UnaryServerLoggingInterceptor logs each handled call. Health checks log
// at Debug.
func UnaryServerLoggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		st := status.Convert(err)
		fields := map[string]interface{}{
			"service":            path.Dir(info.FullMethod)[1:],
			logger.FieldMethod:   path.Base(info.FullMethod),
			"status":             st.Code().String(),
			logger.FieldDuration: time.Since(start).Milliseconds(),
		}
		switch {
		case st.Code() == codes.Internal || st.Code() == codes.Unknown:
			fields[logger.FieldError] = st.Message()
			log.Error("gRPC request failed", fields)
		case err != nil:
			fields[logger.FieldError] = st.Message()
			log.Info("gRPC request rejected", fields)
		case path.Dir(info.FullMethod) == "/grpc.health.v1.Health":
			log.Debug("gRPC health check", fields)
		default:
			log.Info("gRPC request handled", fields)
		}
		return resp, err
	}
}
