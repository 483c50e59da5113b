package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_Decode(t *testing.T) {
	env, err := NewEnvelope(EventTypeRuleChanged, "circulation-service", RuleChangeEvent{
		RuleID: "r1",
		CityID: "c1",
		Action: ActionUpdate,
	})
	require.NoError(t, err)
	require.NoError(t, ValidateEnvelope(env))
	assert.NotEmpty(t, env.ID)

	var evt RuleChangeEvent
	require.NoError(t, env.Decode(&evt))
	assert.Equal(t, "c1", evt.CityID)
	assert.Equal(t, ActionUpdate, evt.Action)
}

func TestValidateEnvelope(t *testing.T) {
	var vErr *ValidationError

	err := ValidateEnvelope(nil)
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "envelope", vErr.Field)
	assert.False(t, vErr.IsRetryable())

	err = ValidateEnvelope(&EventEnvelope{ID: "x"})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "type", vErr.Field)

	assert.Error(t, (&EventEnvelope{Type: "t"}).Decode(&struct{}{}))
}

func TestRuleChangeEvent_AffectedCities(t *testing.T) {
	assert.Equal(t, []string{"a"}, RuleChangeEvent{CityID: "a"}.AffectedCities())
	assert.Equal(t, []string{"a"}, RuleChangeEvent{CityID: "a", PreviousCityID: "a"}.AffectedCities())
	assert.Equal(t, []string{"b", "a"}, RuleChangeEvent{CityID: "b", PreviousCityID: "a"}.AffectedCities())
}
