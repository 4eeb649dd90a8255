package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/grpc/middleware"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

// ServiceName is the health service name reported for the listing API.
const ServiceName = "classifieds.ListingService"

// NewGRPCServer returns a server exposing the standard health service, with
// tracing, logging and panic recovery. cleanup stops it gracefully.
func NewGRPCServer(appLogger *logger.Logger) (*grpc.Server, *health.Server, func()) {
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			middleware.LoggingInterceptor(appLogger),
			middleware.RecoveryInterceptor(appLogger),
		),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	cleanup := func() {
		appLogger.Info("Calling gRPC server's GracefulStop...")
		healthServer.Shutdown()
		server.GracefulStop()
		appLogger.Info("gRPC server GracefulStop completed.")
	}
	return server, healthServer, cleanup
}

// HealthSetter is implemented by *health.Server.
type HealthSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// WatchHealth runs check every interval and reports the result as the serving
// status of ServiceName until ctx is done.
func WatchHealth(ctx context.Context, hs HealthSetter, check func(context.Context) error, interval time.Duration, log *logger.Logger) {
	report := func() {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		if err := check(checkCtx); err != nil {
			log.Warn("Health check failed", "service", ServiceName, "error", err)
			hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
			return
		}
		hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	}

	report()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report()
		}
	}
}
