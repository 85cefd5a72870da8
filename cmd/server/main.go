package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	listforgev1 "github.com/dmehra2102/ListForge/api/listforgev1"
	"github.com/dmehra2102/ListForge/internal/app"
	"github.com/dmehra2102/ListForge/internal/infrastructure/config"
	infrapostgres "github.com/dmehra2102/ListForge/internal/infrastructure/postgres"
	"github.com/dmehra2102/ListForge/internal/interceptors"
	"github.com/dmehra2102/ListForge/internal/orderedlist"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

const (
	serviceName    = "list-service"
	serviceVersion = "1.0.0"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "listforge",
		Short:         "Ordered list service for gallery uploads and pages",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(infrapostgres.Up), string(infrapostgres.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return infrapostgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath, infrapostgres.Direction(args[0]))
		},
	})

	return root
}

func serve() error {
	// Load Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting list service",
		zap.String("version", serviceVersion),
		zap.String("environment", cfg.Environment),
	)

	// Initialize OpenTelemetry
	if cfg.Observability.EnableTracing {
		shutdown, err := initTracer(cfg.Observability.TracingEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	// Initialize database
	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := infrapostgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath, infrapostgres.Up); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	lists, err := initLists(cfg, db, logger, registry)
	if err != nil {
		logger.Fatal("Failed to initialize lists", zap.Error(err))
	}

	grpcServer := initGRPCServer(cfg, logger, registry)

	// Service Registry
	listService := app.NewListServiceServer(lists, logger)
	listforgev1.RegisterListServiceServer(grpcServer, listService)

	// Register health service
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(listforgev1.ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Register reflection for development
	if cfg.Server.EnableReflection || !cfg.IsProduction() {
		reflection.Register(grpcServer)
	}

	var metricsServer *http.Server
	if cfg.Observability.EnableMetrics {
		metricsServer = startMetricsServer(cfg.Observability.MetricsPort, registry, logger)
	}

	// Start server
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		logger.Fatal("Failed to listen", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server starting",
			zap.Int("port", cfg.Server.Port),
			zap.Strings("lists", lists.Names()),
		)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("Failed to serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")
	healthServer.Shutdown()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Server stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout exceeded, forcing stop")
		grpcServer.Stop()
	}

	return nil
}

func initLogger(cfg *config.Config) *zap.Logger {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Observability.LogLevel)
	if err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	zcfg.Encoding = cfg.Observability.LogFormat

	logger, err := zcfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return logger.With(zap.String("service", serviceName))
}

func initTracer(endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		)),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func initDatabase(dbCfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(dbCfg.ConnMaxIdleTime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), dbCfg.Timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func initLists(cfg *config.Config, db *sql.DB, logger *zap.Logger, reg prometheus.Registerer) (*orderedlist.Registry, error) {
	defs, err := config.LoadLists(cfg.ListsPath)
	if err != nil {
		return nil, err
	}

	var repoOpts []infrapostgres.Option
	if cfg.Database.Serializable {
		repoOpts = append(repoOpts, infrapostgres.WithIsolation(sql.LevelSerializable))
	}

	var listOpts []orderedlist.Option
	if cfg.Observability.EnableMetrics {
		listOpts = append(listOpts, orderedlist.WithMetrics(orderedlist.NewMetrics(reg, cfg.Observability.PrometheusNamespace)))
	}

	lists := make([]*orderedlist.List, 0, len(defs))
	for _, def := range defs {
		resolved, err := def.Resolve()
		if err != nil {
			return nil, err
		}

		repo := infrapostgres.NewListRepository(db, resolved.Table(), repoOpts...)
		list, err := orderedlist.New(resolved, repo, logger, listOpts...)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}

	return orderedlist.NewRegistry(lists...)
}

func startMetricsServer(port int, gatherer prometheus.Gatherer, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server starting", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return srv
}

func initGRPCServer(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) *grpc.Server {
	var metrics *interceptors.GRPCMetrics
	if cfg.Observability.EnableMetrics {
		metrics = interceptors.NewGRPCMetrics(reg, cfg.Observability.PrometheusNamespace)
	}

	unary := []grpc.UnaryServerInterceptor{
		interceptors.RecoveryInterceptor(logger, metrics),
		interceptors.LoggingInterceptor(logger),
	}
	if metrics != nil {
		unary = append(unary, interceptors.MetricsInterceptor(metrics))
	}

	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Minute,
			Time:                  5 * time.Minute,
			Timeout:               1 * time.Minute,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             1 * time.Minute,
			PermitWithoutStream: true,
		}),

		grpc.MaxRecvMsgSize(4 * 1024 * 1024),
		grpc.MaxSendMsgSize(4 * 1024 * 1024),

		grpc.ChainUnaryInterceptor(unary...),
	}

	if cfg.Observability.EnableTracing {
		opts = append(opts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}

	// TLS configuration for production
	if cfg.Server.TLS.Enabled {
		creds, err := credentials.NewServerTLSFromFile(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		if err != nil {
			logger.Fatal("Failed to load TLS credentials", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}

	return grpc.NewServer(opts...)
}
