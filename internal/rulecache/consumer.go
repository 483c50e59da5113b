package rulecache

import (
	"context"
	"fmt"

	"picoyplaca/internal/broker"
	"picoyplaca/internal/logger"
	"picoyplaca/pkg/models"
)

type invalidator interface {
	Invalidate(ctx context.Context, origin string, cityIDs ...string) error
}

// EventHandler returns a broker handler that drops the snapshot of every
// city touched by a rule change published by any instance.
func EventHandler(cache invalidator, log logger.Logger) broker.HandlerFunc {
	return func(ctx context.Context, env *models.EventEnvelope) error {
		if env.Type != models.EventTypeRuleChanged {
			log.DebugwCtx(ctx, "Ignoring event", "event_type", env.Type, "event_id", env.ID)
			return nil
		}

		var event models.RuleChangeEvent
		if err := env.Decode(&event); err != nil {
			return &models.ValidationError{Field: "payload", Message: err.Error()}
		}

		cities := event.AffectedCities()
		if err := cache.Invalidate(ctx, OriginEvent, cities...); err != nil {
			return fmt.Errorf("failed to invalidate rule cache: %w", err)
		}

		log.InfowCtx(ctx, "Rule cache invalidated",
			"rule_id", event.RuleID,
			"action", event.Action,
			"cities", cities,
		)
		return nil
	}
}
