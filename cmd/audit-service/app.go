package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"picoyplaca/internal/audit"
	"picoyplaca/internal/broker"
	"picoyplaca/internal/config"
	"picoyplaca/internal/constants"
	"picoyplaca/internal/logger"
	"picoyplaca/pkg/bootstrap"
	"picoyplaca/pkg/health"
	"picoyplaca/pkg/metrics"
	"picoyplaca/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	mongoClient    *mongo.Client
	consumer       broker.Consumer
	archive        *audit.MongoRepository
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log, constants.ServiceAudit),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if a.Config.Database.MongoDB.URI == "" {
		return fmt.Errorf("database.mongodb.uri is required by the audit service")
	}

	tp, err := tracing.Init(ctx, a.Config.Tracing, constants.ServiceAudit)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize MongoDB: %w", err)
	}
	a.mongoClient = mongoClient
	a.archive = audit.NewMongoRepository(mongoClient.Database(a.Config.Database.MongoDB.Database))

	// Dead letters need a producer.
	a.InitProducer()

	consumer, err := a.NewConsumer(a.Config.Broker.Kafka.AuditTopic, a.Config.Broker.Kafka.GroupID+"-audit")
	if err != nil {
		return fmt.Errorf("failed to initialize consumer: %w", err)
	}
	a.consumer = consumer

	metrics.RegisterAuditMetrics()
	metrics.RegisterBrokerMetrics()

	a.initHTTPServer()
	return nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	mux.Handle("/health", health.NewRegistry().
		Require("mongodb", health.Mongo(a.mongoClient)).
		Optional("kafka", health.Kafka(a.Config.Broker.Kafka.Brokers)))
	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: a.Config.Server.ReadTimeout(),
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	handler := audit.EventHandler(a.archive, a.Logger)
	g.Go(func() error {
		return a.consumer.Consume(gCtx, handler)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer cancel()

		if a.server != nil {
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return errs
	}

	err := a.Base.Shutdown(ctx, additionalShutdown)
	return errors.Join(err, a.dbConnector.Close(ctx))
}
