package audit

import (
	"context"

	"picoyplaca/internal/broker"
	"picoyplaca/internal/logger"
	"picoyplaca/pkg/models"
)

// EventHandler archives every audit event into sink. Write failures are
// returned so the consumer retries and finally dead-letters the message.
func EventHandler(sink Sink, log logger.Logger) broker.HandlerFunc {
	return func(ctx context.Context, env *models.EventEnvelope) error {
		if env.Type != models.EventTypeAuditRecorded {
			log.DebugwCtx(ctx, "Ignoring event", "event_type", env.Type, "event_id", env.ID)
			return nil
		}

		var rec Record
		if err := env.Decode(&rec); err != nil {
			return &models.ValidationError{Field: "payload", Message: err.Error()}
		}
		if rec.ID == "" {
			rec.ID = env.ID
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = env.Timestamp
		}
		if rec.Result == "" {
			return &models.ValidationError{Field: "payload.result", Message: "result is required"}
		}

		if err := sink.Write(ctx, rec); err != nil {
			return err
		}

		log.DebugwCtx(ctx, "Audit record archived", "record_id", rec.ID, "sink", sink.Name())
		return nil
	}
}
