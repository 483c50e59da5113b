package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picoyplaca/internal/logger"
	"picoyplaca/pkg/models"
	"picoyplaca/pkg/retry"
)

func TestEventHandler_ArchivesRecord(t *testing.T) {
	sink := &memorySink{name: "archive"}
	handle := EventHandler(sink, logger.NopLogger())

	created := time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC)
	env, err := models.NewEnvelope(models.EventTypeAuditRecorded, "test", Record{
		ID:           "rec-1",
		User:         "ana@example.com",
		Endpoint:     "/api/v1/rules/day",
		VehiclePlate: "ABC123",
		Result:       Succeeded("canCirculate=%t", false),
		CreatedAt:    created,
	})
	require.NoError(t, err)

	require.NoError(t, handle(context.Background(), env))

	records, _ := sink.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "rec-1", records[0].ID)
	assert.Equal(t, "ABC123", records[0].VehiclePlate)
	assert.True(t, created.Equal(records[0].CreatedAt))
}

func TestEventHandler_FillsIdentityFromEnvelope(t *testing.T) {
	sink := &memorySink{name: "archive"}
	env := &models.EventEnvelope{
		ID:        "env-1",
		Type:      models.EventTypeAuditRecorded,
		Timestamp: time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC),
		Payload:   json.RawMessage(`{"result":"ERROR: invalid plate"}`),
	}

	require.NoError(t, EventHandler(sink, logger.NopLogger())(context.Background(), env))

	records, _ := sink.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "env-1", records[0].ID)
	assert.Equal(t, env.Timestamp, records[0].CreatedAt)
}

func TestEventHandler_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "malformed json", payload: `{"result":`},
		{name: "missing result", payload: `{"id":"rec-2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memorySink{name: "archive"}
			env := &models.EventEnvelope{ID: "env", Type: models.EventTypeAuditRecorded, Payload: json.RawMessage(tt.payload)}

			err := EventHandler(sink, logger.NopLogger())(context.Background(), env)
			require.Error(t, err)

			var retryable retry.RetryableError
			require.ErrorAs(t, err, &retryable)
			assert.False(t, retryable.IsRetryable())

			records, _ := sink.snapshot()
			assert.Empty(t, records)
		})
	}
}

func TestEventHandler_IgnoresOtherEvents(t *testing.T) {
	sink := &memorySink{name: "archive"}
	env := &models.EventEnvelope{ID: "env", Type: models.EventTypeRuleChanged, Payload: json.RawMessage(`{}`)}

	require.NoError(t, EventHandler(sink, logger.NopLogger())(context.Background(), env))
	_, attempts := sink.snapshot()
	assert.Zero(t, attempts)
}

func TestEventHandler_PropagatesSinkFailure(t *testing.T) {
	sink := &memorySink{name: "archive", failures: 1}
	env, err := models.NewEnvelope(models.EventTypeAuditRecorded, "test", Record{ID: "rec-3", Result: Succeeded("ok")})
	require.NoError(t, err)

	assert.Error(t, EventHandler(sink, logger.NopLogger())(context.Background(), env))
}
