package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

// serviceRequest matches health check requests, which name the service
// being checked.
type serviceRequest interface {
	GetService() string
}

// LoggingInterceptor logs each unary call with its caller and status code.
// Health checks for an unknown service are expected and logged as warnings.
func LoggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []interface{}{
			"method", info.FullMethod,
			"peer", peerAddr(ctx),
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		}
		if sr, ok := req.(serviceRequest); ok {
			fields = append(fields, "health_service", sr.GetService())
		}

		switch status.Code(err) {
		case codes.OK:
			log.Debug("gRPC request completed", fields...)
		case codes.NotFound, codes.Canceled:
			log.Warn("gRPC request rejected", append(fields, "error", err)...)
		default:
			log.Error("gRPC request failed", append(fields, "error", err)...)
		}
		return resp, err
	}
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}
