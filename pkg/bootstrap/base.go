package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"picoyplaca/internal/broker"
	"picoyplaca/internal/config"
	"picoyplaca/internal/logger"
)

// Base holds what every service binary needs: config, logger and the Kafka
// clients it opened.
type Base struct {
	Config      *config.Config
	Logger      logger.Logger
	ServiceName string
	Producer    broker.Producer
	Consumers   []broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger, serviceName string) *Base {
	return &Base{
		Config:      cfg,
		Logger:      log,
		ServiceName: serviceName,
	}
}

// KafkaEnabled reports whether any broker is configured.
func (b *Base) KafkaEnabled() bool {
	return len(b.Config.Broker.Kafka.Brokers) > 0
}

// InitProducer opens the shared producer. It is a no-op without brokers.
func (b *Base) InitProducer() {
	if !b.KafkaEnabled() || b.Producer != nil {
		return
	}
	b.Producer = broker.NewKafkaProducer(b.Config.Broker.Kafka, b.ServiceName, b.Logger)
}

// NewConsumer opens a consumer on topic and tracks it for shutdown.
func (b *Base) NewConsumer(topic, groupID string) (broker.Consumer, error) {
	if !b.KafkaEnabled() {
		return nil, fmt.Errorf("cannot consume %s: no kafka brokers configured", topic)
	}
	consumer := broker.NewKafkaConsumer(b.Config.Broker.Kafka, topic, groupID, b.ServiceName, b.Logger)
	b.Consumers = append(b.Consumers, consumer)
	return consumer, nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	for _, consumer := range b.Consumers {
		if err := consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	errs = append(errs, b.ShutdownBroker()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
