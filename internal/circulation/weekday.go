package circulation

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Weekday identifies a day of the week independently of any display language.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// Stored and echoed names. "Sabado" carries no accent while "Miércoles" does;
// existing rule data depends on exactly these spellings.
var spanishNames = [...]string{
	"Domingo",
	"Lunes",
	"Martes",
	"Miércoles",
	"Jueves",
	"Viernes",
	"Sabado",
}

var englishNames = [...]string{
	"Sunday",
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
}

var weekdayLookup = buildWeekdayLookup()

func buildWeekdayLookup() map[string]Weekday {
	lookup := make(map[string]Weekday, 2*len(spanishNames))
	for _, d := range Weekdays() {
		lookup[foldName(d.Spanish())] = d
		lookup[foldName(d.English())] = d
	}
	return lookup
}

// Weekdays returns the seven days in evaluation order, Sunday first.
func Weekdays() []Weekday {
	return []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}
}

func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// Spanish returns the canonical stored name.
func (d Weekday) Spanish() string {
	if !d.Valid() {
		return ""
	}
	return spanishNames[d]
}

func (d Weekday) English() string {
	if !d.Valid() {
		return ""
	}
	return englishNames[d]
}

func (d Weekday) String() string {
	return d.Spanish()
}

// ParseWeekday maps a Spanish or English day name to a Weekday. Matching
// ignores case and accents, so "miercoles" and "Sábado" are accepted.
func ParseWeekday(name string) (Weekday, error) {
	d, ok := weekdayLookup[foldName(name)]
	if !ok {
		return 0, fmt.Errorf("unknown day of week %q", name)
	}
	return d, nil
}

func foldName(s string) string {
	decomposed := norm.NFD.String(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r >= 0x0300 && r <= 0x036f {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(d))
	}
	return []byte(d.Spanish()), nil
}

func (d *Weekday) UnmarshalText(text []byte) error {
	parsed, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Weekday) Value() (driver.Value, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(d))
	}
	return d.Spanish(), nil
}

func (d *Weekday) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Weekday", src)
	}
}
