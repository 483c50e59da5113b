package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"picoyplaca/internal/config"
	"picoyplaca/internal/logger"
	"picoyplaca/pkg/migrations"
	"picoyplaca/pkg/retry"
)

// connectPolicy covers stores that come up a few seconds after the service,
// as in docker compose.
var connectPolicy = retry.Policy{
	MaxAttempts:     5,
	InitialInterval: time.Second,
	MaxInterval:     8 * time.Second,
	Multiplier:      2,
}

// DatabaseConnector opens the stores named in the database config section
// and remembers them so Close can release everything it opened.
type DatabaseConnector struct {
	cfg     config.DatabaseConfig
	log     logger.Logger
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func(context.Context) error
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{cfg: cfg.Database, log: log}
}

// PostgresDSN renders the connection URL for cfg.
func PostgresDSN(cfg config.PostgresConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// InitPostgreSQL opens the pool, waits for the server and applies pending
// migrations when run_migrations is set.
func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	pg := dc.cfg.Postgres
	db, err := sql.Open("postgres", PostgresDSN(pg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(pg.MaxOpenConns)
	db.SetMaxIdleConns(pg.MaxIdleConns)
	db.SetConnMaxLifetime(pg.ConnMaxLifetime())

	if err := dc.waitFor(ctx, "postgres", db.PingContext); err != nil {
		db.Close()
		return nil, err
	}

	if dc.cfg.RunMigrations {
		if err := migrations.MigratePostgres(db); err != nil {
			db.Close()
			return nil, err
		}
		dc.log.Info("PostgreSQL migrations applied")
	}

	dc.track("postgres", func(context.Context) error { return db.Close() })
	dc.log.Infow("PostgreSQL connected", "host", pg.Host, "database", pg.DBName)
	return db, nil
}

// InitRedis returns nil when no redis host is configured.
func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	rc := dc.cfg.Redis
	if rc.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(rc.Host, strconv.Itoa(rc.Port)),
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := dc.waitFor(ctx, "redis", func(ctx context.Context) error { return client.Ping(ctx).Err() }); err != nil {
		client.Close()
		return nil, err
	}

	dc.track("redis", func(context.Context) error { return client.Close() })
	dc.log.Infow("Redis connected", "addr", client.Options().Addr)
	return client, nil
}

// InitMongoDB returns nil when no URI is configured. Index creation runs
// with the migrations.
func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	mc := dc.cfg.MongoDB
	if mc.URI == "" {
		return nil, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mc.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := dc.waitFor(ctx, "mongodb", func(ctx context.Context) error { return client.Ping(ctx, nil) }); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	if dc.cfg.RunMigrations {
		if err := migrations.EnsureAuditCollection(ctx, client.Database(mc.Database)); err != nil {
			client.Disconnect(ctx)
			return nil, err
		}
	}

	dc.track("mongodb", client.Disconnect)
	dc.log.Infow("MongoDB connected", "database", mc.Database)
	return client, nil
}

func (dc *DatabaseConnector) waitFor(ctx context.Context, name string, ping func(context.Context) error) error {
	err := retry.RetryWithCallback(ctx, connectPolicy, func() error {
		return ping(ctx)
	}, func(attempt int, err error, next time.Duration) {
		dc.log.Warnw("Store not reachable yet", "store", name, "attempt", attempt, "retry_in", next, "error", err)
	})
	if err != nil {
		return fmt.Errorf("failed to ping %s: %w", name, err)
	}
	return nil
}

func (dc *DatabaseConnector) track(name string, fn func(context.Context) error) {
	dc.closers = append(dc.closers, namedCloser{name: name, close: fn})
}

// Close releases every store opened through dc, newest first.
func (dc *DatabaseConnector) Close(ctx context.Context) error {
	var errs []error
	for i := len(dc.closers) - 1; i >= 0; i-- {
		c := dc.closers[i]
		if err := c.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s close error: %w", c.name, err))
		}
	}
	dc.closers = nil
	return errors.Join(errs...)
}
