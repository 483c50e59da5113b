package circulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "06:30", want: 390},
		{in: "23:59", want: 23*60 + 59},
		{in: "24:00", wantErr: true},
		{in: "6:30", wantErr: true},
		{in: "06:60", wantErr: true},
		{in: "06:30:00", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestTimeOfDay_OrderingAcrossHours(t *testing.T) {
	assert.Less(t, int(NewTimeOfDay(9, 30)), int(NewTimeOfDay(10, 0)))
	assert.Less(t, int(NewTimeOfDay(8, 59)), int(NewTimeOfDay(9, 0)))
}

func TestTimeOfDay_Scan(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.Scan([]byte("07:45")))
	assert.Equal(t, NewTimeOfDay(7, 45), tod)

	assert.Error(t, tod.Scan(42))
}

func TestResolve(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimezone, loc.String())

	tests := []struct {
		name    string
		in      string
		weekday Weekday
		minutes TimeOfDay
	}{
		// 2024-01-01 was a Monday.
		{name: "utc instant converted", in: "2024-01-01T12:00:00Z", weekday: Monday, minutes: NewTimeOfDay(7, 0)},
		{name: "utc early morning falls on previous day", in: "2024-01-01T03:00:00Z", weekday: Sunday, minutes: NewTimeOfDay(22, 0)},
		{name: "explicit offset", in: "2024-01-01T08:30:00-05:00", weekday: Monday, minutes: NewTimeOfDay(8, 30)},
		{name: "fractional seconds", in: "2024-01-01T13:30:00.123Z", weekday: Monday, minutes: NewTimeOfDay(8, 30)},
		{name: "utc without seconds", in: "2024-01-01T11:00Z", weekday: Monday, minutes: NewTimeOfDay(6, 0)},
		{name: "offset without seconds", in: "2024-01-01T06:00-05:00", weekday: Monday, minutes: NewTimeOfDay(6, 0)},
		{name: "basic offset", in: "2024-01-01T06:00:00-0500", weekday: Monday, minutes: NewTimeOfDay(6, 0)},
		{name: "basic offset without seconds", in: "2024-01-01T13:45+0000", weekday: Monday, minutes: NewTimeOfDay(8, 45)},
		{name: "local wall clock", in: "2024-01-01T06:00:00", weekday: Monday, minutes: NewTimeOfDay(6, 0)},
		{name: "local without seconds", in: "2024-01-01T06:00", weekday: Monday, minutes: NewTimeOfDay(6, 0)},
		{name: "date only", in: "2024-01-06", weekday: Saturday, minutes: 0},
		{name: "surrounding whitespace", in: "  2024-01-03 10:15 ", weekday: Wednesday, minutes: NewTimeOfDay(10, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := Resolve(tt.in, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.weekday, inst.Weekday)
			assert.Equal(t, tt.minutes, inst.Minutes)
			assert.Equal(t, loc, inst.Time.Location())
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	loc, err := LoadLocation(DefaultTimezone)
	require.NoError(t, err)

	_, err = Resolve("", loc)
	assert.ErrorIs(t, err, ErrMissingDate)

	_, err = Resolve("   ", loc)
	assert.ErrorIs(t, err, ErrMissingDate)

	for _, in := range []string{"not-a-date", "2024-13-01", "01/02/2024", "2024-01-01T25:00:00"} {
		_, err = Resolve(in, loc)
		assert.ErrorIs(t, err, ErrInvalidDate, in)
	}
}

func TestResolve_HostIndependent(t *testing.T) {
	loc, err := LoadLocation(DefaultTimezone)
	require.NoError(t, err)

	inst, err := Resolve("2024-01-01T06:00:00", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), inst.Time.UTC())
}

func TestLoadLocation_Unknown(t *testing.T) {
	_, err := LoadLocation("Mars/Olympus_Mons")
	assert.Error(t, err)
}
