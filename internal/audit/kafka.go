package audit

import (
	"context"

	"picoyplaca/internal/broker"
	"picoyplaca/internal/constants"
	"picoyplaca/pkg/models"
)

// KafkaPublisher forwards records to the audit topic for the archive service.
type KafkaPublisher struct {
	producer broker.Producer
	topic    string
	source   string
}

func NewKafkaPublisher(producer broker.Producer, topic, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, source: source}
}

func (p *KafkaPublisher) Name() string {
	return constants.AuditSinkKafka
}

func (p *KafkaPublisher) Write(ctx context.Context, rec Record) error {
	env, err := models.NewEnvelope(models.EventTypeAuditRecorded, p.source, rec)
	if err != nil {
		return err
	}
	// envelope id follows the record so redeliveries are idempotent downstream
	env.ID = rec.ID
	return p.producer.Publish(ctx, p.topic, rec.ID, env)
}
