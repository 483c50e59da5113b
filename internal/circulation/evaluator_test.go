package circulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mondayRule() Rule {
	return Rule{
		ID:               "r-monday",
		Weekday:          Monday,
		Start:            NewTimeOfDay(6, 0),
		End:              NewTimeOfDay(8, 30),
		RestrictedDigits: []string{"3"},
	}
}

func TestEvaluate_NoActiveRules(t *testing.T) {
	modes := map[string]Mode{
		"single day": SingleDay{Weekday: Monday, Minutes: NewTimeOfDay(7, 0)},
		"full week":  FullWeek{},
	}

	for name, mode := range modes {
		t.Run(name, func(t *testing.T) {
			res := Evaluate("3", nil, mode)
			assert.True(t, res.NoActiveRules)
			assert.True(t, res.Outcome.CanCirculate)
			assert.Equal(t, NoActiveRulesMessage(), res.Outcome.Message)
			assert.Nil(t, res.Day)
			assert.Nil(t, res.Week)
		})
	}
}

func TestEvaluateDay_NoRulesThatDay(t *testing.T) {
	res := EvaluateDay("3", []Rule{mondayRule()}, Tuesday, NewTimeOfDay(7, 0))

	assert.True(t, res.CanCirculate)
	assert.Equal(t, NoRestrictionsMessage(Tuesday), res.Message)
	assert.NotEqual(t, NoActiveRulesMessage(), res.Message)
	assert.Empty(t, res.Restrictions)
	assert.Equal(t, "No hay restricciones el día Martes.", res.Message.ES)
	assert.Equal(t, "There are no restrictions on Tuesday.", res.Message.EN)
}

func TestEvaluateDay_Boundaries(t *testing.T) {
	tests := []struct {
		name         string
		digit        string
		at           TimeOfDay
		canCirculate bool
	}{
		{name: "window start is restricted", digit: "3", at: NewTimeOfDay(6, 0), canCirculate: false},
		{name: "window end is restricted", digit: "3", at: NewTimeOfDay(8, 30), canCirculate: false},
		{name: "inside window", digit: "3", at: NewTimeOfDay(7, 15), canCirculate: false},
		{name: "one minute after end", digit: "3", at: NewTimeOfDay(8, 31), canCirculate: true},
		{name: "one minute before start", digit: "3", at: NewTimeOfDay(5, 59), canCirculate: true},
		{name: "digit not restricted", digit: "7", at: NewTimeOfDay(7, 0), canCirculate: true},
		{name: "late evening", digit: "3", at: NewTimeOfDay(23, 0), canCirculate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluateDay(tt.digit, []Rule{mondayRule()}, Monday, tt.at)
			assert.Equal(t, tt.canCirculate, res.CanCirculate)
			require.Len(t, res.Restrictions, 1)
			if tt.canCirculate {
				assert.Equal(t, AllowedMessage(), res.Message)
				assert.Nil(t, res.MatchedRule)
			} else {
				require.NotNil(t, res.MatchedRule)
				assert.Equal(t, "r-monday", res.MatchedRule.ID)
				assert.Equal(t, "NO puedes circular entre las 06:00 y 08:30. Dígitos restringidos: 3.", res.Message.ES)
				assert.Equal(t, "You CANNOT circulate between 06:00 and 08:30. Restricted digits: 3.", res.Message.EN)
			}
		})
	}
}

func TestEvaluateDay_MultipleRulesSameDay(t *testing.T) {
	morning := Rule{ID: "am", Weekday: Monday, Start: NewTimeOfDay(6, 0), End: NewTimeOfDay(8, 30), RestrictedDigits: []string{"1", "2"}}
	evening := Rule{ID: "pm", Weekday: Monday, Start: NewTimeOfDay(16, 0), End: NewTimeOfDay(19, 30), RestrictedDigits: []string{"1", "2"}}
	overlap := Rule{ID: "all-day", Weekday: Monday, Start: NewTimeOfDay(0, 0), End: NewTimeOfDay(23, 59), RestrictedDigits: []string{"2"}}

	t.Run("second window restricts", func(t *testing.T) {
		res := EvaluateDay("1", []Rule{morning, evening}, Monday, NewTimeOfDay(17, 0))
		assert.False(t, res.CanCirculate)
		require.NotNil(t, res.MatchedRule)
		assert.Equal(t, "pm", res.MatchedRule.ID)
		assert.Len(t, res.Restrictions, 2)
	})

	t.Run("between windows", func(t *testing.T) {
		res := EvaluateDay("1", []Rule{morning, evening}, Monday, NewTimeOfDay(12, 0))
		assert.True(t, res.CanCirculate)
	})

	t.Run("first match in input order is quoted", func(t *testing.T) {
		res := EvaluateDay("2", []Rule{overlap, morning}, Monday, NewTimeOfDay(7, 0))
		require.NotNil(t, res.MatchedRule)
		assert.Equal(t, "all-day", res.MatchedRule.ID)

		reversed := EvaluateDay("2", []Rule{morning, overlap}, Monday, NewTimeOfDay(7, 0))
		require.NotNil(t, reversed.MatchedRule)
		assert.Equal(t, "am", reversed.MatchedRule.ID)
		assert.Equal(t, res.CanCirculate, reversed.CanCirculate)
	})
}

func TestEvaluateWeek_SevenEntriesInOrder(t *testing.T) {
	rules := []Rule{
		mondayRule(),
		{ID: "fri-1", Weekday: Friday, Start: NewTimeOfDay(6, 0), End: NewTimeOfDay(9, 0), RestrictedDigits: []string{"9"}},
		{ID: "fri-2", Weekday: Friday, Start: NewTimeOfDay(15, 0), End: NewTimeOfDay(19, 0), RestrictedDigits: []string{"3", "4"}},
	}

	week := EvaluateWeek("3", rules)
	require.Len(t, week, 7)

	days := make([]Weekday, 0, len(week))
	for _, e := range week {
		days = append(days, e.Day)
	}
	assert.Equal(t, []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}, days)

	assert.True(t, week[0].CanCirculate)
	assert.Equal(t, NoRestrictionsMessage(Sunday), week[0].Message)

	assert.False(t, week[1].CanCirculate)
	assert.Equal(t, "NO puedes circular de 06:00 a 08:30. Dígitos: 3.", week[1].Message.ES)
	assert.Equal(t, "You CANNOT circulate from 06:00 to 08:30. Digits: 3.", week[1].Message.EN)

	assert.False(t, week[5].CanCirculate)
	require.NotNil(t, week[5].MatchedRule)
	assert.Equal(t, "fri-2", week[5].MatchedRule.ID)
	assert.Equal(t, "You CANNOT circulate from 15:00 to 19:00. Digits: 3, 4.", week[5].Message.EN)

	assert.Equal(t, "Tu placa no está restringida el día Sabado.", PlateNotRestrictedMessage(Saturday).ES)
}

func TestEvaluateWeek_PlateNotRestricted(t *testing.T) {
	week := EvaluateWeek("7", []Rule{mondayRule()})
	require.Len(t, week, 7)
	assert.True(t, week[1].CanCirculate)
	assert.Equal(t, PlateNotRestrictedMessage(Monday), week[1].Message)
	assert.Equal(t, "Your plate is NOT restricted on Monday.", week[1].Message.EN)
}

func TestEvaluate_WeekIgnoresTimeOfDay(t *testing.T) {
	rules := []Rule{mondayRule()}

	week := Evaluate("3", rules, FullWeek{})
	require.Len(t, week.Week, 7)
	assert.False(t, week.Week[1].CanCirculate)

	day := Evaluate("3", rules, SingleDay{Weekday: Monday, Minutes: NewTimeOfDay(23, 0)})
	require.NotNil(t, day.Day)
	assert.True(t, day.Outcome.CanCirculate)
	assert.False(t, day.NoActiveRules)
}

func TestEvaluate_Idempotent(t *testing.T) {
	rules := []Rule{mondayRule()}
	mode := SingleDay{Weekday: Monday, Minutes: NewTimeOfDay(7, 0)}

	first := Evaluate("3", rules, mode)
	second := Evaluate("3", rules, mode)
	assert.Equal(t, first, second)

	assert.Equal(t, EvaluateWeek("3", rules), EvaluateWeek("3", rules))
}
