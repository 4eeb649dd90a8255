package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/cache/memory"
	redisAdapter "github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/cache/redis"
	grpcAdapter "github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/grpc"
	natsAdapter "github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/messaging/nats"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/repository/cache"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/repository/mongodb"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/rest"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/adapter/storage/s3"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/keyword"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/usecase"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/tracer"
)

const healthInterval = 15 * time.Second

func main() {
	configPath := flag.String("config", "config", "config file or directory holding config.yaml")
	flag.Parse()

	// 1. Configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	appLogger, err := logger.NewLogger(&logger.LoggerConfig{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputFile: cfg.Log.OutputFile,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info("Configuration loaded",
		"http_port", cfg.HTTP.Port,
		"grpc_port", cfg.GRPC.Port,
		"redis_enabled", cfg.Redis.Address != "",
		"nats_enabled", cfg.NATS.URL != "",
		"minio_enabled", cfg.MinIO.Endpoint != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Tracing
	tp, err := tracer.InitTracer(ctx, cfg.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		appLogger.Fatal("Failed to initialize tracer", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Failed to shutdown tracer provider", "error", err)
		}
	}()

	// 4. Metrics
	var metricsManager *metrics.MetricsManager
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsManager = metrics.NewMetricsManager("classifieds")
		metricsHandler = metricsManager.Handler()
	}

	// 5. Storage
	mongoClient, err := mongodb.NewMongoDBConnection(&cfg.Mongo)
	if err != nil {
		appLogger.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			appLogger.Error("Error disconnecting from MongoDB", "error", err)
		}
	}()
	appLogger.Info("Connected to MongoDB", "database", cfg.Mongo.Database)

	appLogger.Info("Listing schema",
		"version", domain.ListingMigrations.Current(),
		"migration_steps", domain.ListingMigrations.Versions(),
	)

	normalizer := keyword.NewEnglishNormalizer()
	listingRepo := mongodb.NewListingRepository(mongoClient.Database(cfg.Mongo.Database), normalizer, appLogger.Named("mongo"))
	if err := listingRepo.EnsureIndexes(ctx); err != nil {
		appLogger.Fatal("Failed to ensure indexes", "error", err)
	}

	// 6. Cache backend
	backend, closeBackend, err := newCacheBackend(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize cache backend", "error", err)
	}
	defer closeBackend()

	listingCache := cache.NewListingCache(backend, listingRepo, cfg.Cache.ListingTTL, appLogger.Named("cache"), metricsManager)
	shardCache := cache.NewShardCache(backend, listingRepo, cfg.Cache.ShardTTL, appLogger.Named("cache"), metricsManager)
	invalidator := usecase.NewInvalidator(listingCache, shardCache, appLogger.Named("invalidator"))

	// 7. Messaging
	var events usecase.EventPublisher
	if cfg.NATS.URL != "" {
		nc, err := natsAdapter.Connect(&cfg.NATS, appLogger.Named("nats"))
		if err != nil {
			appLogger.Fatal("Failed to connect to NATS", "error", err)
		}
		defer drainNATS(nc, appLogger)

		events = natsAdapter.NewPublisher(nc, appLogger.Named("nats"))
		subscriber := natsAdapter.NewSubscriber(nc, cfg.NATS.InvalidateSubject, cfg.NATS.QueueGroup, invalidator, appLogger.Named("nats"))
		if err := subscriber.Start(); err != nil {
			appLogger.Fatal("Failed to start invalidation subscriber", "error", err)
		}
		defer subscriber.Stop()
	}

	// 8. Usecases
	listingUsecase := usecase.NewListingUsecase(listingRepo, listingCache, invalidator, normalizer, events, appLogger.Named("listing"))
	searchUsecase := usecase.NewSearchUsecase(listingCache, shardCache, normalizer, appLogger.Named("search"), metricsManager)

	// 9. Photo store and garbage collection
	var photoService rest.PhotoService
	if cfg.MinIO.Endpoint != "" {
		photos, err := s3.NewPhotoStore(ctx, cfg.MinIO, cfg.Photos, appLogger.Named("photos"))
		if err != nil {
			appLogger.Fatal("Failed to initialize photo store", "error", err)
		}
		photoService = photos
		go photos.RunGC(ctx, cfg.Photos.GCInterval)
	}

	// 10. gRPC health server
	grpcServer, healthServer, grpcCleanup := grpcAdapter.NewGRPCServer(appLogger.Named("grpc"))
	reflection.Register(grpcServer)
	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		appLogger.Fatal("Failed to listen for gRPC", "port", cfg.GRPC.Port, "error", err)
	}
	go func() {
		appLogger.Info("Starting gRPC server", "port", cfg.GRPC.Port)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			appLogger.Error("gRPC server Serve error", "error", err)
			stop()
		}
	}()
	go grpcAdapter.WatchHealth(ctx, healthServer, func(ctx context.Context) error {
		return mongoClient.Ping(ctx, readpref.Primary())
	}, healthInterval, appLogger.Named("health"))

	// 11. HTTP API
	handler := rest.NewListingHandler(listingUsecase, searchUsecase, photoService, appLogger.Named("http"))
	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      rest.NewRouter(handler, metricsHandler, appLogger.Named("http")),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		appLogger.Info("Starting HTTP server", "port", cfg.HTTP.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	// 12. Graceful shutdown
	<-ctx.Done()
	appLogger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}
	grpcCleanup()
	appLogger.Info("Application shutting down...")
}

// newCacheBackend returns redis when configured, the in-process LRU otherwise.
func newCacheBackend(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (domain.CacheBackend, func(), error) {
	if cfg.Redis.Address == "" {
		appLogger.Warn("Redis address not set, using in-process cache", "size", cfg.Cache.LocalSize)
		b, err := memory.NewBackend(cfg.Cache.LocalSize)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil
	}

	client, err := redisAdapter.NewRedisClient(ctx, cfg.Redis, appLogger.Named("redis"))
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	b := redisAdapter.NewBackend(client, appLogger.Named("redis"))
	return b, func() {
		if err := b.Close(); err != nil {
			appLogger.Error("Error closing Redis client", "error", err)
		}
	}, nil
}

func drainNATS(nc *natsgo.Conn, appLogger *logger.Logger) {
	if nc.IsClosed() {
		return
	}
	if err := nc.Drain(); err != nil {
		appLogger.Error("Error draining NATS connection", "error", err)
	}
}
