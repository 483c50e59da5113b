// Package health aggregates dependency probes into a single readiness report.
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

const probeTimeout = 3 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Probe checks one dependency. Nil means reachable.
type Probe func(ctx context.Context) error

type Report struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type entry struct {
	name     string
	probe    Probe
	optional bool
}

// Registry runs every probe in parallel. A failing optional probe degrades
// the report; a failing required one makes it unhealthy.
type Registry struct {
	entries []entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Require(name string, probe Probe) *Registry {
	r.entries = append(r.entries, entry{name: name, probe: probe})
	return r
}

func (r *Registry) Optional(name string, probe Probe) *Registry {
	r.entries = append(r.entries, entry{name: name, probe: probe, optional: true})
	return r
}

func (r *Registry) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(r.entries))
		status = StatusHealthy
	)

	g, gCtx := errgroup.WithContext(ctx)
	for _, e := range r.entries {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gCtx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := e.probe(probeCtx)
			result := CheckResult{Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Message = err.Error()
				result.Status = StatusUnhealthy
				if e.optional {
					result.Status = StatusDegraded
				}
				status = worse(status, result.Status)
			}
			checks[e.name] = result
			// probe failures are reported, never returned
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: status, Timestamp: time.Now().UTC(), Checks: checks}
}

func worse(a, b Status) Status {
	if a == StatusUnhealthy || b == StatusUnhealthy {
		return StatusUnhealthy
	}
	if a == StatusDegraded || b == StatusDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// ServeHTTP writes the report as JSON, with 503 when unhealthy.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	report := r.Check(req.Context())
	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

func Postgres(db *sql.DB) Probe {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
		return nil
	}
}

func Redis(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	}
}

func Mongo(client *mongo.Client) Probe {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongodb ping: %w", err)
		}
		return nil
	}
}

// Kafka succeeds as soon as one broker accepts a connection.
func Kafka(brokers []string) Probe {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("no brokers configured")
		}
		dialer := &kafka.Dialer{Timeout: probeTimeout}
		var errs []error
		for _, broker := range brokers {
			conn, err := dialer.DialContext(ctx, "tcp", broker)
			if err == nil {
				return conn.Close()
			}
			errs = append(errs, err)
		}
		return fmt.Errorf("kafka dial: %w", errors.Join(errs...))
	}
}
