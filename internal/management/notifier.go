package management

import (
	"context"
	"time"

	"picoyplaca/internal/broker"
	"picoyplaca/pkg/models"
)

// RuleEventProducer publishes rule changes so every instance can drop its
// cached snapshots.
type RuleEventProducer struct {
	producer broker.Producer
	topic    string
	source   string
}

func NewRuleEventProducer(producer broker.Producer, topic, source string) *RuleEventProducer {
	return &RuleEventProducer{
		producer: producer,
		topic:    topic,
		source:   source,
	}
}

func (p *RuleEventProducer) PublishRuleChange(ctx context.Context, event models.RuleChangeEvent) error {
	if p.producer == nil || p.topic == "" {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	env, err := models.NewEnvelope(models.EventTypeRuleChanged, p.source, event)
	if err != nil {
		return err
	}
	// keyed by city so changes to one city stay ordered
	return p.producer.Publish(ctx, p.topic, event.CityID, env)
}
