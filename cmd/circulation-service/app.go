package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"picoyplaca/internal/audit"
	"picoyplaca/internal/auth"
	"picoyplaca/internal/checker"
	"picoyplaca/internal/circulation"
	"picoyplaca/internal/config"
	"picoyplaca/internal/constants"
	"picoyplaca/internal/logger"
	"picoyplaca/internal/management"
	"picoyplaca/internal/rulecache"
	"picoyplaca/pkg/bootstrap"
	"picoyplaca/pkg/health"
	"picoyplaca/pkg/metrics"
	"picoyplaca/pkg/middleware"
	"picoyplaca/pkg/ratelimit"
	"picoyplaca/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	location       *time.Location
	ruleCache      *rulecache.CachedSource
	recorder       *audit.Recorder
	limiter        *ratelimit.Limiter
	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log, constants.ServiceCirculation),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	loc, err := circulation.LoadLocation(a.Config.Circulation.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}
	a.location = loc

	tp, err := tracing.Init(ctx, a.Config.Tracing, constants.ServiceCirculation)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	a.InitProducer()

	metrics.RegisterCirculationMetrics()
	metrics.RegisterAuditMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterHTTPMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeout(),
		WriteTimeout: a.Config.Server.WriteTimeout(),
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Redis unavailable, rule cache disabled", "error", err)
	} else {
		a.redisClient = redisClient
	}

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "MongoDB unavailable, continuing without the audit archive", "error", err)
	} else {
		a.mongoClient = mongoClient
	}

	return nil
}

func (a *App) initRouter(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceCirculation))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	repo := management.NewRepository(a.db)

	var rules checker.RuleSource = repo
	serviceOpts := []management.ServiceOption{
		management.WithChangeLog(management.NewChangeLog(a.db)),
	}

	if a.Config.Circulation.RuleCache.Enabled && a.redisClient != nil {
		a.ruleCache = rulecache.NewCachedSource(
			repo,
			rulecache.NewRedisStore(a.redisClient),
			a.Config.Circulation.RuleCache,
			a.Config.CircuitBreaker,
			a.Logger,
		)
		rules = a.ruleCache
		serviceOpts = append(serviceOpts, management.WithCacheInvalidator(a.ruleCache))
		a.Logger.InfowCtx(ctx, "Rule cache enabled", "ttl", a.Config.Circulation.RuleCache.TTL())
	}

	if a.Producer != nil && a.Config.Broker.Kafka.RuleUpdateTopic != "" {
		serviceOpts = append(serviceOpts, management.WithRuleEvents(
			management.NewRuleEventProducer(a.Producer, a.Config.Broker.Kafka.RuleUpdateTopic, constants.ServiceCirculation),
		))
	}

	sinks, err := a.auditSinks()
	if err != nil {
		return err
	}
	a.recorder = audit.NewRecorder(a.Config.Audit, constants.ServiceCirculation, a.Logger, sinks...)

	managementService := management.NewService(repo, a.Logger, serviceOpts...)
	checkerService := checker.NewService(repo, rules, repo, a.location, a.Logger,
		checker.WithAuditRecorder(a.recorder),
	)

	api := router.Group("/api/v1")
	api.Use(auth.Authenticate(auth.NewVerifier(a.Config.Auth), a.Logger))

	if a.Config.RateLimit.Enabled {
		a.limiter = ratelimit.NewLimiter(ratelimit.Config{
			RPS:             a.Config.RateLimit.RPS,
			Burst:           a.Config.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.RateLimit.CleanupIntervalSeconds) * time.Second,
			MaxAge:          time.Duration(a.Config.RateLimit.MaxAgeSeconds) * time.Second,
		})
		api.Use(ratelimit.Middleware(a.limiter, callerKey))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", a.Config.RateLimit.RPS, "burst", a.Config.RateLimit.Burst)
	}

	management.NewHandler(managementService, a.Logger).RegisterRoutes(api)
	checker.NewHandler(checkerService, a.Logger).RegisterRoutes(api)
	if reader := a.auditReader(); reader != nil {
		audit.NewHandler(reader, a.location, a.Logger).RegisterRoutes(api)
	}

	healthRegistry := health.NewRegistry().Require("postgres", health.Postgres(a.db))
	if a.redisClient != nil {
		healthRegistry.Optional("redis", health.Redis(a.redisClient))
	}
	if a.mongoClient != nil {
		healthRegistry.Optional("mongodb", health.Mongo(a.mongoClient))
	}
	if a.KafkaEnabled() {
		healthRegistry.Optional("kafka", health.Kafka(a.Config.Broker.Kafka.Brokers))
	}
	router.GET("/health", gin.WrapH(healthRegistry))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

// auditSinks builds the configured audit destinations. A sink whose backend
// is not connected is skipped with a warning.
func (a *App) auditSinks() ([]audit.Sink, error) {
	var sinks []audit.Sink
	for _, name := range a.Config.Audit.Sinks {
		switch name {
		case constants.AuditSinkPostgres:
			sinks = append(sinks, audit.NewPostgresRepository(a.db))
		case constants.AuditSinkKafka:
			if a.Producer == nil {
				a.Logger.Warnw("Kafka audit sink configured without brokers, skipping")
				continue
			}
			sinks = append(sinks, audit.NewKafkaPublisher(a.Producer, a.Config.Broker.Kafka.AuditTopic, constants.ServiceCirculation))
		case constants.AuditSinkMongoDB:
			if a.mongoClient == nil {
				a.Logger.Warnw("MongoDB audit sink configured without a connection, skipping")
				continue
			}
			sinks = append(sinks, audit.NewMongoRepository(a.mongoClient.Database(a.Config.Database.MongoDB.Database)))
		default:
			return nil, fmt.Errorf("unknown audit sink %q", name)
		}
	}
	return sinks, nil
}

// auditReader serves the /logs endpoints from Postgres, which always holds
// the relational copy when the postgres sink is on.
func (a *App) auditReader() audit.Reader {
	for _, name := range a.Config.Audit.Sinks {
		if name == constants.AuditSinkPostgres {
			return audit.NewPostgresRepository(a.db)
		}
	}
	return nil
}

// callerKey charges authenticated requests to the caller and falls back to
// the client IP.
func callerKey(c *gin.Context) string {
	if p := auth.PrincipalFrom(c); p != nil && p.ID != "" {
		return "user:" + p.ID
	}
	return ratelimit.ClientIPKey(c)
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	a.recorder.Start(gCtx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.limiter != nil {
		g.Go(func() error {
			a.limiter.Cleanup(gCtx)
			return nil
		})
	}

	if a.ruleCache != nil && a.KafkaEnabled() {
		// Every instance needs every change, so each one joins its own group.
		groupID := a.Config.Broker.Kafka.GroupID + "-rules-" + uuid.NewString()
		consumer, err := a.NewConsumer(a.Config.Broker.Kafka.RuleUpdateTopic, groupID)
		if err != nil {
			a.Logger.WarnwCtx(ctx, "Rule change consumer disabled", "error", err)
		} else {
			handler := rulecache.EventHandler(a.ruleCache, a.Logger)
			g.Go(func() error {
				return consumer.Consume(gCtx, handler)
			})
		}
	}

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
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		// The recorder flushes through the producer and the database, so it
		// closes before either.
		if a.recorder != nil {
			if err := a.recorder.Close(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("audit recorder shutdown error: %w", err))
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
