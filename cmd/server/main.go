package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	catalogapp "github.com/hobbylab/backend/internal/application/catalog"
	eventapp "github.com/hobbylab/backend/internal/application/event"
	"github.com/hobbylab/backend/internal/domain/catalog"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/hobbylab/backend/internal/infrastructure/broker"
	"github.com/hobbylab/backend/internal/infrastructure/cache"
	"github.com/hobbylab/backend/internal/infrastructure/config"
	"github.com/hobbylab/backend/internal/infrastructure/event"
	"github.com/hobbylab/backend/internal/infrastructure/logger"
	"github.com/hobbylab/backend/internal/infrastructure/persistence"
	"github.com/hobbylab/backend/internal/integration/materials"
	"github.com/hobbylab/backend/internal/interfaces/http/handler"
	"github.com/hobbylab/backend/internal/interfaces/http/middleware"
	"github.com/hobbylab/backend/internal/interfaces/http/router"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Hobbylab Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Event type registries. The domain registry and the integration
	// registry are separate on purpose: internal event names and contract
	// names live in different namespaces and may collide.
	domainRegistry := event.NewTypeRegistry()
	domainRegistry.MustRegister(
		catalog.MaterialCreated{},
		catalog.MaterialPackagePriceChanged{},
		catalog.MaterialArchived{},
	)

	integrationRegistry := event.NewTypeRegistry()
	if err := materials.Register(integrationRegistry); err != nil {
		log.Fatal("Failed to register integration contracts", zap.Error(err))
	}

	domainSerializer := event.NewEnvelopeSerializer(domainRegistry)
	integrationSerializer := event.NewEnvelopeSerializer(integrationRegistry)

	// Outbox writers
	domainWriter := event.NewOutboxWriter(domainRegistry)
	integrationWriter := event.NewIntegrationOutboxWriter(integrationRegistry)

	// Repositories and application services
	materialRepo := persistence.NewGormMaterialRepository(db.DB, domainWriter)
	materialService := catalogapp.NewMaterialService(materialRepo)

	outboxService := eventapp.NewOutboxService(
		event.NewGormOutboxRepository(db.DB, event.TableOutbox),
		event.NewGormOutboxRepository(db.DB, event.TableIntegrationOutbox),
		cfg.Event.MaxAttempts,
		log,
	)

	// Metrics
	meterProvider := sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(meterProvider)
	metrics, err := event.NewMetrics(meterProvider.Meter("hobbylab/event"))
	if err != nil {
		log.Fatal("Failed to create event metrics", zap.Error(err))
	}

	// Domain event routing: the materials translator turns internal
	// catalog events into integration contracts.
	domainRouter := event.NewRouter()
	translator := materials.NewTranslator(db.DB, integrationWriter)
	domainRouter.Register(translator, translator.Keys()...)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Dispatcher over the domain outbox
	var dispatcher *event.Dispatcher
	if cfg.Event.DispatcherEnabled {
		opts := []event.DispatcherOption{event.WithMetrics(metrics)}

		if cfg.Event.IdempotencyEnabled {
			store, err := cache.NewRedisIdempotencyStore(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				// Fast path is advisory; run without it rather than die.
				log.Warn("Redis idempotency store unavailable, continuing without fast path", zap.Error(err))
			} else {
				defer store.Close()
				opts = append(opts, event.WithFastPathStore(store))
			}
		}

		dispatcher = event.NewDispatcher(db.DB, event.TableOutbox, domainSerializer, domainRouter,
			event.DispatcherConfig{
				BatchSize:    cfg.Event.BatchSize,
				PollInterval: cfg.Event.PollInterval,
				MaxAttempts:  cfg.Event.MaxAttempts,
				LeaseBatches: cfg.Event.LeaseBatches,
				Idempotency: shared.IdempotencyConfig{
					TTL:     cfg.Event.IdempotencyTTL,
					Enabled: cfg.Event.IdempotencyEnabled,
				},
			}, log, opts...)
		if err := dispatcher.Start(rootCtx); err != nil {
			log.Fatal("Failed to start outbox dispatcher", zap.Error(err))
		}
	}

	// Broker, integration publisher and consumer
	var (
		redisBroker *broker.RedisBroker
		publisher   *event.IntegrationPublisher
		consumer    *event.IntegrationConsumer
	)
	if cfg.Event.PublisherEnabled || cfg.Consumer.Enabled {
		redisBroker, err = broker.NewRedisBroker(broker.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis broker", zap.Error(err))
		}
	}

	if cfg.Event.PublisherEnabled {
		publisher = event.NewIntegrationPublisher(db.DB, integrationRegistry, redisBroker,
			event.PublisherConfig{
				BatchSize:     cfg.Event.BatchSize,
				PollInterval:  cfg.Event.PollInterval,
				MaxAttempts:   cfg.Event.MaxAttempts,
				DefaultModule: cfg.Event.DefaultModule,
			}, log, metrics)
		if err := publisher.Start(rootCtx); err != nil {
			log.Fatal("Failed to start integration publisher", zap.Error(err))
		}
	}

	if cfg.Consumer.Enabled {
		// Handlers for inbound contracts are registered here as other
		// contexts grow their own subscriptions.
		integrationRouter := event.NewRouter()
		consumer = event.NewIntegrationConsumer(db.DB, redisBroker, integrationSerializer,
			integrationRouter,
			event.ConsumerConfig{
				Identity: cfg.Consumer.Identity,
				Patterns: cfg.Consumer.Patterns,
			}, log, metrics)
		if err := consumer.Start(rootCtx); err != nil {
			log.Fatal("Failed to start integration consumer", zap.Error(err))
		}
	}

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Metadata())

	router.NewRouter(engine).
		Register(handler.NewHealthHandler()).
		Register(handler.NewMaterialHandler(materialService)).
		Register(handler.NewOutboxHandler(outboxService)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop taking requests, then drain the background
	// loops, then drop connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if consumer != nil {
		if err := consumer.Stop(ctx); err != nil {
			log.Error("Consumer shutdown error", zap.Error(err))
		}
	}
	if publisher != nil {
		if err := publisher.Stop(ctx); err != nil {
			log.Error("Publisher shutdown error", zap.Error(err))
		}
	}
	if dispatcher != nil {
		if err := dispatcher.Stop(ctx); err != nil {
			log.Error("Dispatcher shutdown error", zap.Error(err))
		}
	}
	if redisBroker != nil {
		if err := redisBroker.Close(); err != nil {
			log.Error("Broker close error", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
