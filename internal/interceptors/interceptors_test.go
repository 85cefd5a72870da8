package interceptors

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var moveInfo = &grpc.UnaryServerInfo{FullMethod: "/listforge.v1.ListService/MoveLower"}

func request(t *testing.T) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(map[string]any{"list": "uploads", "id": 1})
	require.NoError(t, err)
	return req
}

func TestListName(t *testing.T) {
	assert.Equal(t, "uploads", listName(request(t)))
	assert.Equal(t, "", listName(&structpb.Struct{}))
	assert.Equal(t, "", listName("not a struct"))
}

func TestIncomingRequestID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDHeader, "req-1"))
	assert.Equal(t, "req-1", incomingRequestID(ctx))

	generated := incomingRequestID(context.Background())
	assert.Len(t, generated, 36)
	assert.NotEqual(t, generated, incomingRequestID(context.Background()))
}

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	fallback := zap.NewNop()
	interceptor := LoggingInterceptor(zap.New(core))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDHeader, "req-7"))
	_, err := interceptor(ctx, request(t), moveInfo, func(ctx context.Context, req any) (any, error) {
		assert.Equal(t, "req-7", RequestID(ctx))
		assert.NotSame(t, fallback, Logger(ctx, fallback))
		Logger(ctx, fallback).Info("inside handler")
		return "ok", nil
	})
	require.NoError(t, err)

	inside := logs.FilterMessage("inside handler").All()
	require.Len(t, inside, 1)
	assert.Equal(t, "req-7", inside[0].ContextMap()["request_id"])
	assert.Equal(t, "uploads", inside[0].ContextMap()["list"])

	served := logs.FilterMessage("request served").All()
	require.Len(t, served, 1)
	assert.Equal(t, moveInfo.FullMethod, served[0].ContextMap()["method"])

	_, err = interceptor(context.Background(), request(t), moveInfo, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "item not found")
	})
	require.Error(t, err)
	rejected := logs.FilterMessage("request rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)

	_, err = interceptor(context.Background(), request(t), moveInfo, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.Internal, "internal server error")
	})
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("request failed").Len())
}

func TestLogger_Fallback(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, Logger(context.Background(), fallback))
	assert.Empty(t, RequestID(context.Background()))
}

func TestRecoveryInterceptor(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	m := NewGRPCMetrics(prometheus.NewRegistry(), "listforge")
	interceptor := RecoveryInterceptor(zap.New(core), m)

	resp, err := interceptor(context.Background(), request(t), moveInfo, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, 1, logs.FilterMessage("handler panicked").Len())
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.panicsTotal.WithLabelValues(moveInfo.FullMethod)))

	resp, err = interceptor(context.Background(), request(t), moveInfo, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = RecoveryInterceptor(zap.NewNop(), nil)(context.Background(), request(t), moveInfo, func(ctx context.Context, req any) (any, error) {
		panic("without metrics")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestMetricsInterceptor(t *testing.T) {
	m := NewGRPCMetrics(prometheus.NewRegistry(), "listforge")
	interceptor := MetricsInterceptor(m)

	_, err := interceptor(context.Background(), request(t), moveInfo, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = interceptor(context.Background(), request(t), moveInfo, func(ctx context.Context, req any) (any, error) {
		return nil, errors.New("plain error")
	})
	require.Error(t, err)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.requestsTotal.WithLabelValues(moveInfo.FullMethod, "uploads", "OK")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.requestsTotal.WithLabelValues(moveInfo.FullMethod, "uploads", "Unknown")))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(m.activeRequests.WithLabelValues(moveInfo.FullMethod)))
}
