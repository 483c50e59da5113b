package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picoyplaca/internal/circulation"
	pkgerrors "picoyplaca/pkg/errors"
)

func bogota(t *testing.T) *time.Location {
	t.Helper()
	loc, err := circulation.LoadLocation(circulation.DefaultTimezone)
	require.NoError(t, err)
	return loc
}

func TestBuildFilter(t *testing.T) {
	loc := bogota(t)
	now := time.Date(2025, 6, 10, 15, 30, 0, 0, loc)

	tests := []struct {
		name     string
		params   FilterParams
		wantFrom time.Time
		wantTo   time.Time
		limit    int
	}{
		{
			name:  "no dates",
			limit: 100,
		},
		{
			name:     "whole day range",
			params:   FilterParams{StartDate: "2025-06-01", EndDate: "2025-06-02", Limit: 20},
			wantFrom: time.Date(2025, 6, 1, 0, 0, 0, 0, loc),
			wantTo:   time.Date(2025, 6, 2, 23, 59, 59, 999_000_000, loc),
			limit:    20,
		},
		{
			name:     "start only runs until now",
			params:   FilterParams{StartDate: "2025-06-01"},
			wantFrom: time.Date(2025, 6, 1, 0, 0, 0, 0, loc),
			wantTo:   now,
			limit:    100,
		},
		{
			name:   "end alone is ignored",
			params: FilterParams{EndDate: "2025-06-02"},
			limit:  100,
		},
		{
			name:   "limit is capped",
			params: FilterParams{Limit: 5000},
			limit:  1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := BuildFilter(tt.params, loc, now)
			require.NoError(t, err)
			assert.True(t, tt.wantFrom.Equal(f.From), "from: %v", f.From)
			assert.True(t, tt.wantTo.Equal(f.To), "to: %v", f.To)
			assert.Equal(t, tt.limit, f.Limit)
		})
	}
}

func TestBuildFilter_NormalizesPlate(t *testing.T) {
	f, err := BuildFilter(FilterParams{VehiclePlate: " abc123 "}, bogota(t), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "ABC123", f.VehiclePlate)
}

func TestBuildFilter_Rejects(t *testing.T) {
	loc := bogota(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, loc)

	tests := []struct {
		name   string
		params FilterParams
		field  string
	}{
		{name: "bad start", params: FilterParams{StartDate: "01/06/2025"}, field: "startDate"},
		{name: "bad end", params: FilterParams{StartDate: "2025-06-01", EndDate: "tomorrow"}, field: "endDate"},
		{name: "end before start", params: FilterParams{StartDate: "2025-06-05", EndDate: "2025-06-01"}, field: "endDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildFilter(tt.params, loc, now)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))

			var appErr *pkgerrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Contains(t, appErr.Details, tt.field)
		})
	}
}

func TestStats_Add(t *testing.T) {
	stats := NewStats()
	for _, rec := range []Record{
		{User: "ana@example.com", Endpoint: "/api/v1/rules/day", Result: Succeeded("canCirculate=%t", true)},
		{User: "ana@example.com", Endpoint: "/api/v1/rules/week", Result: Succeeded("week")},
		{User: "luis@example.com", Endpoint: "/api/v1/rules/day", Result: ResultError + ": city missing"},
		{User: "luis@example.com", Endpoint: "/api/v1/rules/day", Result: "unknown"},
	} {
		stats.Add(rec)
	}

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.SuccessfulQueries)
	assert.Equal(t, 1, stats.ErrorQueries)
	assert.Equal(t, map[string]int{"/api/v1/rules/day": 3, "/api/v1/rules/week": 1}, stats.ByEndpoint)
	assert.Equal(t, map[string]int{"ana@example.com": 2, "luis@example.com": 2}, stats.ByUser)
}

func TestRecord_WithDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	rec := Record{Result: ResultSuccess}.withDefaults(now)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, "anonymous", rec.User)
}
