package interceptors

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RecoveryInterceptor turns a panicking handler into an Internal error. Any
// list transaction open at the time has already been rolled back by the
// store before the panic reaches here. m may be nil.
func RecoveryInterceptor(logger *zap.Logger, m *GRPCMetrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			m.panicRecovered(info.FullMethod)
			Logger(ctx, logger).Error("handler panicked",
				zap.String("method", info.FullMethod),
				zap.String("list", listName(req)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			resp, err = nil, status.Error(codes.Internal, "internal server error")
		}()

		return handler(ctx, req)
	}
}
