package circulation

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the municipal timezone every rule window is published in.
const DefaultTimezone = "America/Bogota"

var (
	ErrMissingDate = errors.New("date is required")
	ErrInvalidDate = errors.New("invalid date format")
)

var timeOfDayPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts strict 24-hour "HH:mm" values from 00:00 to 23:59.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("time %q must use HH:mm format", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return NewTimeOfDay(hour, minute), nil
}

func (t TimeOfDay) Hour() int {
	return int(t) / 60
}

func (t TimeOfDay) Minute() int {
	return int(t) % 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return t.UnmarshalText([]byte(strings.TrimSpace(v)))
	case []byte:
		return t.UnmarshalText([]byte(strings.TrimSpace(string(v))))
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

// LoadLocation resolves a timezone name, falling back to DefaultTimezone when
// name is empty. The tz database is embedded, so results do not depend on
// the host.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Instant is a point in time already projected onto the municipal calendar.
type Instant struct {
	Time    time.Time
	Weekday Weekday
	Minutes TimeOfDay
}

// Layouts carrying a Z or numeric offset, extended (-05:00) or basic (-0500).
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z0700",
}

// Layouts without an offset are read as wall-clock time in the target location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Resolve parses an ISO-8601 date or date-time and projects it onto loc.
// Values carrying an offset (or Z) are converted; values without one are
// taken as local wall-clock time in loc.
func Resolve(input string, loc *time.Location) (Instant, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Instant{}, ErrMissingDate
	}
	if loc == nil {
		loc = time.UTC
	}

	t, err := parseInstant(input, loc)
	if err != nil {
		return Instant{}, err
	}

	local := t.In(loc)
	return Instant{
		Time:    local,
		Weekday: Weekday(local.Weekday()),
		Minutes: NewTimeOfDay(local.Hour(), local.Minute()),
	}, nil
}

func parseInstant(input string, loc *time.Location) (time.Time, error) {
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, input); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, input, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, input)
}
