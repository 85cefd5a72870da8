package interceptors

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// GRPCMetrics holds the request metrics recorded by MetricsInterceptor.
type GRPCMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  *prometheus.GaugeVec
	panicsTotal     *prometheus.CounterVec
}

func NewGRPCMetrics(reg prometheus.Registerer, namespace string) *GRPCMetrics {
	factory := promauto.With(reg)

	return &GRPCMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grpc_requests_total",
				Help:      "Total number of gRPC requests",
			},
			[]string{"method", "list", "code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "grpc_request_duration_seconds",
				Help:      "Histogram of gRPC request durations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		activeRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "grpc_active_requests",
				Help:      "Number of active gRPC requests",
			},
			[]string{"method"},
		),
		panicsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grpc_panics_recovered_total",
				Help:      "Total number of handler panics turned into Internal errors",
			},
			[]string{"method"},
		),
	}
}

func (m *GRPCMetrics) panicRecovered(method string) {
	if m == nil {
		return
	}
	m.panicsTotal.WithLabelValues(method).Inc()
}

func MetricsInterceptor(m *GRPCMetrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()

		m.activeRequests.WithLabelValues(info.FullMethod).Inc()
		defer m.activeRequests.WithLabelValues(info.FullMethod).Dec()

		resp, err = handler(ctx, req)

		duration := time.Since(start).Seconds()
		m.requestDuration.WithLabelValues(info.FullMethod).Observe(duration)

		code := "OK"
		if err != nil {
			st, _ := status.FromError(err)
			code = st.Code().String()
		}
		m.requestsTotal.WithLabelValues(info.FullMethod, listName(req), code).Inc()

		return resp, err
	}
}
