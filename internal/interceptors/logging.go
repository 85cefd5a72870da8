package interceptors

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const requestIDHeader = "x-request-id"

type (
	loggerKey    struct{}
	requestIDKey struct{}
)

// Logger returns the request-scoped logger installed by LoggingInterceptor,
// or fallback outside a request.
func Logger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return fallback
}

// RequestID returns the id LoggingInterceptor assigned to the request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LoggingInterceptor tags every request with an id, taken from the
// x-request-id header when the client sent one, echoes it back as a header
// and logs the outcome. Handlers reach the tagged logger through Logger.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		started := time.Now()

		requestID := incomingRequestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("request_id", requestID),
		}
		if list := listName(req); list != "" {
			fields = append(fields, zap.String("list", list))
		}
		reqLogger := logger.With(fields...)

		ctx = context.WithValue(ctx, loggerKey{}, reqLogger)
		ctx = context.WithValue(ctx, requestIDKey{}, requestID)

		reqLogger.Debug("request received")

		resp, err := handler(ctx, req)
		elapsed := zap.Duration("duration", time.Since(started))

		switch code := status.Code(err); {
		case err == nil:
			reqLogger.Info("request served", elapsed)
		case callerFault(code):
			reqLogger.Warn("request rejected", elapsed, zap.Stringer("code", code), zap.Error(err))
		default:
			reqLogger.Error("request failed", elapsed, zap.Stringer("code", code), zap.Error(err))
		}

		return resp, err
	}
}

// callerFault reports codes produced by bad input or a lost race rather than
// by the server.
func callerFault(code codes.Code) bool {
	switch code {
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.Aborted, codes.Canceled:
		return true
	}
	return false
}

// listName extracts the list a ListService request addresses.
func listName(req any) string {
	s, ok := req.(*structpb.Struct)
	if !ok {
		return ""
	}
	return s.GetFields()["list"].GetStringValue()
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(requestIDHeader); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.NewString()
}
