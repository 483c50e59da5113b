package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"picoyplaca/internal/circulation"
	"picoyplaca/internal/constants"
)

// Load reads configFile, applies environment overrides and validates the
// result. Environment variables use the key path with "." replaced by "_",
// e.g. DATABASE_POSTGRES_HOST.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnvVariables(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(v, &cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)

	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 20)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime_seconds", 1800)
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)
	v.SetDefault("database.run_migrations", true)

	v.SetDefault("broker.kafka.group_id", "picoyplaca")
	v.SetDefault("broker.kafka.audit_topic", constants.DefaultAuditTopic)
	v.SetDefault("broker.kafka.rule_update_topic", constants.DefaultRuleUpdateTopic)
	v.SetDefault("broker.kafka.dlq_topic", constants.DefaultDLQTopic)
	v.SetDefault("broker.kafka.retry.max_attempts", 3)
	v.SetDefault("broker.kafka.retry.initial_interval", "500ms")
	v.SetDefault("broker.kafka.retry.max_interval", "10s")
	v.SetDefault("broker.kafka.retry.multiplier", 2.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("circulation.timezone", circulation.DefaultTimezone)
	v.SetDefault("circulation.rule_cache.enabled", true)
	v.SetDefault("circulation.rule_cache.ttl_seconds", 300)

	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("audit.workers", 2)
	v.SetDefault("audit.sinks", []string{constants.AuditSinkPostgres})
	v.SetDefault("audit.retry.max_attempts", 3)
	v.SetDefault("audit.retry.initial_interval", "200ms")
	v.SetDefault("audit.retry.max_interval", "5s")
	v.SetDefault("audit.retry.multiplier", 2.0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.cleanup_interval_seconds", 300)
	v.SetDefault("rate_limit.max_age_seconds", 600)

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.failure_ratio", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 3)

	v.SetDefault("tracing.sampler.type", "always_on")
}

func bindEnvVariables(v *viper.Viper) error {
	keys := []string{
		"server.port",
		"database.postgres.host",
		"database.postgres.port",
		"database.postgres.user",
		"database.postgres.password",
		"database.postgres.dbname",
		"database.postgres.sslmode",
		"database.redis.host",
		"database.redis.port",
		"database.redis.password",
		"database.mongodb.uri",
		"database.mongodb.database",
		"broker.kafka.group_id",
		"broker.kafka.audit_topic",
		"broker.kafka.rule_update_topic",
		"broker.kafka.dlq_topic",
		"logging.level",
		"logging.format",
		"auth.jwt_secret",
		"auth.issuer",
		"auth.audience",
		"circulation.timezone",
		"tracing.enabled",
		"tracing.otlp.endpoint",
	}
	for _, key := range keys {
		if err := v.BindEnv(key, envName(key)); err != nil {
			return err
		}
	}
	return nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// applyEnvOverrides handles values viper cannot split on its own.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if brokersEnv := v.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := splitList(brokersEnv)
		if len(brokers) > 0 {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if sinksEnv := v.GetString("AUDIT_SINKS"); sinksEnv != "" {
		cfg.Audit.Sinks = splitList(sinksEnv)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
