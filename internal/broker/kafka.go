package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"picoyplaca/internal/config"
	"picoyplaca/internal/constants"
	"picoyplaca/internal/logger"
	pkgerrors "picoyplaca/pkg/errors"
	"picoyplaca/pkg/logging"
	"picoyplaca/pkg/metrics"
	"picoyplaca/pkg/models"
	"picoyplaca/pkg/retry"
	"picoyplaca/pkg/tracing"
)

const (
	headerEventType   = "event_type"
	headerDLQReason   = "dlq_reason"
	headerDLQSource   = "dlq_source_topic"
	headerDLQFailedAt = "dlq_failed_at"
)

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

func NewKafkaProducer(cfg config.KafkaConfig, serviceName string, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: w, logger: log, serviceName: serviceName}
}

// Publish writes env to topic. Messages sharing a key land on the same
// partition, which keeps per-city rule events ordered.
func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, env *models.EventEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if key == "" {
		key = env.ID
	}

	headers := []kafka.Header{{Key: headerEventType, Value: []byte(env.Type)}}
	headers = tracing.InjectTraceContext(ctx, headers)

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   body,
		Headers: headers,
		Time:    start,
	})
	metrics.ObserveKafkaWriteDuration(p.serviceName, topic, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(p.serviceName, topic)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads one topic as part of a consumer group. Messages that
// keep failing after the retry policy are forwarded to the DLQ topic.
type KafkaConsumer struct {
	cfg         config.KafkaConfig
	topic       string
	reader      messageReader
	dlq         *KafkaProducer
	logger      logger.Logger
	serviceName string
	policy      retry.Policy
}

func NewKafkaConsumer(cfg config.KafkaConfig, topic, groupID, serviceName string, log logger.Logger) *KafkaConsumer {
	cfg.GroupID = groupID
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	c := newConsumer(cfg, topic, reader, serviceName, log)
	if cfg.DLQTopic != "" {
		c.dlq = NewKafkaProducer(cfg, serviceName, log)
	}
	return c
}

func newConsumer(cfg config.KafkaConfig, topic string, reader messageReader, serviceName string, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         cfg,
		topic:       topic,
		reader:      reader,
		logger:      log,
		serviceName: serviceName,
		policy: retry.Policy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			Multiplier:      cfg.Retry.Multiplier,
			MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
		},
	}
}

func (c *KafkaConsumer) Consume(ctx context.Context, handler HandlerFunc) error {
	ctx = logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(ctx, "Started consuming", "topic", c.topic, "group_id", c.cfg.GroupID)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfowCtx(ctx, "Stopped consuming", "topic", c.topic)
				return nil
			}
			c.logger.ErrorwCtx(ctx, "Error fetching kafka message", "error", err, "topic", c.topic)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		metrics.IncKafkaMessagesRead(c.serviceName, c.topic)
		c.handleMessage(ctx, m, handler)

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.ErrorwCtx(ctx, "Failed to commit message", "error", err, "topic", c.topic)
		}
	}
}

// handleMessage never fails: a message that cannot be processed is either
// parked in the DLQ or dropped with an error log so the partition keeps moving.
func (c *KafkaConsumer) handleMessage(ctx context.Context, m kafka.Message, handler HandlerFunc) {
	msgCtx, span := tracing.StartConsumerSpan(ctx, m)
	defer span.End()

	var env models.EventEnvelope
	err := json.Unmarshal(m.Value, &env)
	if err == nil {
		err = models.ValidateEnvelope(&env)
	}
	if err != nil {
		c.logger.ErrorwCtx(msgCtx, "Discarding malformed message", "error", err, "topic", c.topic)
		c.forwardToDLQ(msgCtx, m, err, "malformed")
		return
	}

	if traceID := span.SpanContext().TraceID(); traceID.IsValid() {
		msgCtx = logging.WithTraceID(msgCtx, traceID.String())
	}

	if err := c.processWithRetry(msgCtx, &env, handler); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to process message after retries",
			"error", err,
			"topic", c.topic,
			"event_id", env.ID,
			"event_type", env.Type,
		)
		c.forwardToDLQ(msgCtx, m, err, "max_retries_exceeded")
	}
}

func (c *KafkaConsumer) processWithRetry(ctx context.Context, env *models.EventEnvelope, handler HandlerFunc) error {
	return retry.RetryWithCallback(ctx, c.policy, func() error {
		return pkgerrors.Guard(func() error { return handler(ctx, env) })
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, c.topic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
			"topic", c.topic,
		)
	})
}

func (c *KafkaConsumer) forwardToDLQ(ctx context.Context, m kafka.Message, cause error, reason string) {
	if c.dlq == nil {
		c.logger.WarnwCtx(ctx, "No DLQ configured, dropping message", "topic", c.topic, "reason", reason)
		return
	}

	headers := append([]kafka.Header{}, m.Headers...)
	headers = append(headers,
		kafka.Header{Key: headerDLQReason, Value: []byte(cause.Error())},
		kafka.Header{Key: headerDLQSource, Value: []byte(c.topic)},
		kafka.Header{Key: headerDLQFailedAt, Value: []byte(time.Now().UTC().Format(time.RFC3339))},
	)

	err := c.dlq.writer.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
	})
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to send message to DLQ", "error", err, "topic", c.topic)
		return
	}

	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, c.topic, reason).Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ", "source_topic", c.topic, "dlq_topic", c.cfg.DLQTopic, "reason", reason)
}

func (c *KafkaConsumer) Close() error {
	err := c.reader.Close()
	if c.dlq != nil {
		if closeErr := c.dlq.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
