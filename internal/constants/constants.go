package constants

import "time"

const (
	ServiceCirculation = "circulation-service"
	ServiceAudit       = "audit-service"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultAuditTopic      = "audit_topic"
	DefaultRuleUpdateTopic = "rule_update_topic"
	DefaultDLQTopic        = "dlq_topic"
)

const (
	DefaultMongoDBName   = "picoyplaca"
	AuditMongoCollection = "audit_logs"
	RuleCacheKeyPrefix   = "rules:city:"
	RuleCacheGenPrefix   = "rules:gen:"
	RuleCacheBreakerName = "rule-cache"
)

const (
	AuditSinkPostgres = "postgres"
	AuditSinkKafka    = "kafka"
	AuditSinkMongoDB  = "mongodb"
)

const (
	ShutdownTimeout = 10 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
