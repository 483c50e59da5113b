package broker

import (
	"context"

	"github.com/segmentio/kafka-go"

	"picoyplaca/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic, key string, env *models.EventEnvelope) error
	Close() error
}

type Consumer interface {
	// Consume blocks until ctx is done, handing each decoded envelope to handler.
	Consume(ctx context.Context, handler HandlerFunc) error
	Close() error
}

type HandlerFunc func(ctx context.Context, env *models.EventEnvelope) error

// messageReader is the subset of *kafka.Reader the consumer relies on.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
