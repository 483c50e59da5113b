package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"picoyplaca/internal/circulation"
	"picoyplaca/internal/constants"
	pkgerrors "picoyplaca/pkg/errors"
)

const (
	ResultSuccess = "SUCCESS"
	ResultError   = "ERROR"
)

// Record is one audited circulation query.
type Record struct {
	ID           string    `json:"id" bson:"_id"`
	User         string    `json:"user" bson:"user"`
	Method       string    `json:"method" bson:"method"`
	Endpoint     string    `json:"endpoint" bson:"endpoint"`
	Body         string    `json:"body,omitempty" bson:"body,omitempty"`
	VehiclePlate string    `json:"vehiclePlate,omitempty" bson:"vehicle_plate,omitempty"`
	Result       string    `json:"result" bson:"result"`
	CityID       string    `json:"cityId,omitempty" bson:"city_id,omitempty"`
	VehicleID    string    `json:"vehicleId,omitempty" bson:"vehicle_id,omitempty"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}

// Succeeded formats a Result for a query that produced an answer.
func Succeeded(format string, args ...interface{}) string {
	return ResultSuccess + ": " + fmt.Sprintf(format, args...)
}

// Failed formats a Result for a query that was rejected.
func Failed(err error) string {
	return ResultError + ": " + err.Error()
}

func (r Record) IsSuccess() bool {
	return strings.HasPrefix(r.Result, ResultSuccess)
}

func (r Record) IsError() bool {
	return strings.HasPrefix(r.Result, ResultError)
}

// withDefaults fills the identity fields a caller may leave empty.
func (r Record) withDefaults(now time.Time) Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now.UTC()
	}
	if r.User == "" {
		r.User = "anonymous"
	}
	return r
}

// Filter narrows a log query. Zero values mean "any".
type Filter struct {
	User         string
	VehiclePlate string
	CityID       string
	VehicleID    string
	From         time.Time
	To           time.Time
	Limit        int
}

// FilterParams is the raw query string form of Filter.
type FilterParams struct {
	User         string `form:"user"`
	VehiclePlate string `form:"vehiclePlate"`
	CityID       string `form:"cityId"`
	VehicleID    string `form:"vehicleId"`
	StartDate    string `form:"startDate"`
	EndDate      string `form:"endDate"`
	Limit        int    `form:"limit"`
}

const dateLayout = "2006-01-02"

// BuildFilter turns query params into a Filter. Dates are whole days in loc:
// startDate begins at 00:00:00 and endDate ends at 23:59:59.999. A startDate
// without endDate runs until now. An endDate alone is ignored.
func BuildFilter(p FilterParams, loc *time.Location, now time.Time) (Filter, error) {
	f := Filter{
		User:         strings.TrimSpace(p.User),
		VehiclePlate: circulation.NormalizePlate(p.VehiclePlate),
		CityID:       strings.TrimSpace(p.CityID),
		VehicleID:    strings.TrimSpace(p.VehicleID),
		Limit:        p.Limit,
	}
	if f.Limit <= 0 {
		f.Limit = constants.DefaultLimit
	}
	if f.Limit > constants.MaxLimit {
		f.Limit = constants.MaxLimit
	}

	if p.StartDate == "" {
		return f, nil
	}

	start, err := time.ParseInLocation(dateLayout, p.StartDate, loc)
	if err != nil {
		return Filter{}, pkgerrors.ErrValidation.WithCause(err).WithDetail("startDate", "must use YYYY-MM-DD format")
	}
	f.From = start
	f.To = now

	if p.EndDate != "" {
		end, err := time.ParseInLocation(dateLayout, p.EndDate, loc)
		if err != nil {
			return Filter{}, pkgerrors.ErrValidation.WithCause(err).WithDetail("endDate", "must use YYYY-MM-DD format")
		}
		f.To = end.AddDate(0, 0, 1).Add(-time.Millisecond)
	}

	if f.To.Before(f.From) {
		return Filter{}, pkgerrors.ErrValidation.WithDetail("endDate", "must not be before startDate")
	}
	return f, nil
}

// Stats summarizes audit records.
type Stats struct {
	Total             int            `json:"total"`
	ByEndpoint        map[string]int `json:"byEndpoint"`
	ByUser            map[string]int `json:"byUser"`
	SuccessfulQueries int            `json:"successfulQueries"`
	ErrorQueries      int            `json:"errorQueries"`
}

func NewStats() Stats {
	return Stats{
		ByEndpoint: map[string]int{},
		ByUser:     map[string]int{},
	}
}

func (s *Stats) Add(r Record) {
	s.Total++
	if r.Endpoint != "" {
		s.ByEndpoint[r.Endpoint]++
	}
	if r.User != "" {
		s.ByUser[r.User]++
	}
	switch {
	case r.IsSuccess():
		s.SuccessfulQueries++
	case r.IsError():
		s.ErrorQueries++
	}
}
