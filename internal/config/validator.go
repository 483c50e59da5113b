package config

import (
	"errors"
	"fmt"

	"picoyplaca/internal/circulation"
	"picoyplaca/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks values that can be verified without connecting to
// anything. All violations are reported together.
func ValidateStatic(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(cfg.Server)...)
	errs = append(errs, validateDatabase(cfg.Database)...)
	errs = append(errs, validateKafka(cfg.Broker.Kafka)...)
	errs = append(errs, validateLogging(cfg.Logging)...)
	errs = append(errs, validateAuth(cfg.Auth)...)
	errs = append(errs, validateCirculation(cfg.Circulation)...)
	errs = append(errs, validateAudit(cfg.Audit, cfg.Database.MongoDB.URI)...)
	errs = append(errs, validateRateLimit(cfg.RateLimit)...)
	errs = append(errs, validateCircuitBreaker(cfg.CircuitBreaker)...)
	errs = append(errs, validateTracing(cfg.Tracing)...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func validateServer(cfg ServerConfig) []error {
	var errs []error
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, invalid("server.port", "port must be between 1 and 65535, got %d", cfg.Port))
	}
	if cfg.ReadTimeoutSeconds <= 0 {
		errs = append(errs, invalid("server.read_timeout_seconds", "read timeout must be positive"))
	}
	if cfg.WriteTimeoutSeconds <= 0 {
		errs = append(errs, invalid("server.write_timeout_seconds", "write timeout must be positive"))
	}
	return errs
}

func validateDatabase(cfg DatabaseConfig) []error {
	var errs []error
	if cfg.Postgres.Host == "" {
		errs = append(errs, invalid("database.postgres.host", "postgres host is required"))
	}
	if cfg.Postgres.DBName == "" {
		errs = append(errs, invalid("database.postgres.dbname", "postgres database name is required"))
	}
	if cfg.Postgres.Port < 1 || cfg.Postgres.Port > 65535 {
		errs = append(errs, invalid("database.postgres.port", "port must be between 1 and 65535, got %d", cfg.Postgres.Port))
	}
	if cfg.Redis.Host != "" && (cfg.Redis.Port < 1 || cfg.Redis.Port > 65535) {
		errs = append(errs, invalid("database.redis.port", "port must be between 1 and 65535, got %d", cfg.Redis.Port))
	}
	if cfg.MongoDB.URI != "" && cfg.MongoDB.Database == "" {
		errs = append(errs, invalid("database.mongodb.database", "database is required when uri is set"))
	}
	return errs
}

func validateKafka(cfg KafkaConfig) []error {
	if len(cfg.Brokers) == 0 {
		return nil
	}

	var errs []error
	for i, broker := range cfg.Brokers {
		if broker == "" {
			errs = append(errs, invalid(fmt.Sprintf("broker.kafka.brokers[%d]", i), "broker address cannot be empty"))
		}
	}
	if cfg.GroupID == "" {
		errs = append(errs, invalid("broker.kafka.group_id", "Kafka consumer group ID is required"))
	}
	if cfg.AuditTopic == "" {
		errs = append(errs, invalid("broker.kafka.audit_topic", "audit topic is required"))
	}
	if cfg.RuleUpdateTopic == "" {
		errs = append(errs, invalid("broker.kafka.rule_update_topic", "rule update topic is required"))
	}
	errs = append(errs, validateRetry("broker.kafka.retry", cfg.Retry)...)
	return errs
}

func validateRetry(prefix string, cfg RetryConfig) []error {
	var errs []error
	if cfg.MaxAttempts < 0 {
		errs = append(errs, invalid(prefix+".max_attempts", "max_attempts must be non-negative"))
	}
	if cfg.InitialInterval < 0 {
		errs = append(errs, invalid(prefix+".initial_interval", "initial_interval must be non-negative"))
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		errs = append(errs, invalid(prefix+".max_interval", "max_interval must not be lower than initial_interval"))
	}
	if cfg.Multiplier != 0 && cfg.Multiplier < 1 {
		errs = append(errs, invalid(prefix+".multiplier", "multiplier must be at least 1"))
	}
	return errs
}

func validateLogging(cfg LoggingConfig) []error {
	var errs []error
	switch cfg.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, invalid("logging.level", "unknown level %q", cfg.Level))
	}
	switch cfg.Format {
	case "", "json", "console":
	default:
		errs = append(errs, invalid("logging.format", "must be json or console, got %q", cfg.Format))
	}
	return errs
}

func validateAuth(cfg AuthConfig) []error {
	if len(cfg.JWTSecret) < 16 {
		return []error{invalid("auth.jwt_secret", "secret must be at least 16 characters")}
	}
	return nil
}

func validateCirculation(cfg CirculationConfig) []error {
	var errs []error
	if _, err := circulation.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, invalid("circulation.timezone", "%v", err))
	}
	if cfg.RuleCache.Enabled && cfg.RuleCache.TTLSeconds <= 0 {
		errs = append(errs, invalid("circulation.rule_cache.ttl_seconds", "ttl must be positive when the cache is enabled"))
	}
	return errs
}

func validateAudit(cfg AuditConfig, mongoURI string) []error {
	var errs []error
	if cfg.QueueSize <= 0 {
		errs = append(errs, invalid("audit.queue_size", "queue size must be positive"))
	}
	if cfg.Workers <= 0 {
		errs = append(errs, invalid("audit.workers", "at least one worker is required"))
	}
	for i, sink := range cfg.Sinks {
		switch sink {
		case constants.AuditSinkPostgres, constants.AuditSinkKafka:
		case constants.AuditSinkMongoDB:
			if mongoURI == "" {
				errs = append(errs, invalid(fmt.Sprintf("audit.sinks[%d]", i), "mongodb sink requires database.mongodb.uri"))
			}
		default:
			errs = append(errs, invalid(fmt.Sprintf("audit.sinks[%d]", i), "unknown sink %q (supported: postgres, kafka, mongodb)", sink))
		}
	}
	errs = append(errs, validateRetry("audit.retry", cfg.Retry)...)
	return errs
}

func validateRateLimit(cfg RateLimitConfig) []error {
	if !cfg.Enabled {
		return nil
	}
	var errs []error
	if cfg.RPS <= 0 {
		errs = append(errs, invalid("rate_limit.rps", "rps must be positive"))
	}
	if cfg.Burst <= 0 {
		errs = append(errs, invalid("rate_limit.burst", "burst must be positive"))
	}
	if cfg.CleanupIntervalSeconds <= 0 {
		errs = append(errs, invalid("rate_limit.cleanup_interval_seconds", "cleanup interval must be positive"))
	}
	return errs
}

func validateCircuitBreaker(cfg CircuitBreakerConfig) []error {
	if !cfg.Enabled {
		return nil
	}
	var errs []error
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		errs = append(errs, invalid("circuit_breaker.failure_ratio", "failure ratio must be in (0, 1], got %v", cfg.FailureRatio))
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, invalid("circuit_breaker.timeout", "timeout must be positive"))
	}
	return errs
}

func validateTracing(cfg TracingConfig) []error {
	if !cfg.Enabled {
		return nil
	}
	var errs []error
	if cfg.OTLP.Endpoint == "" {
		errs = append(errs, invalid("tracing.otlp.endpoint", "endpoint is required when tracing is enabled"))
	}
	switch cfg.Sampler.Type {
	case "", "always_on", "always_off", "parentbased_always_on":
	case "traceidratio", "parentbased_traceidratio":
		if cfg.Sampler.Param < 0 || cfg.Sampler.Param > 1 {
			errs = append(errs, invalid("tracing.sampler.param", "ratio must be between 0 and 1"))
		}
	default:
		errs = append(errs, invalid("tracing.sampler.type", "unknown sampler %q", cfg.Sampler.Type))
	}
	return errs
}
