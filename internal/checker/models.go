package checker

import (
	"time"

	"picoyplaca/internal/circulation"
)

// DayRequest asks whether a plate may circulate at one instant.
type DayRequest struct {
	Plate  string `json:"plate" example:"ABC123"`
	CityID string `json:"cityId" example:"6f1c9d0e-7a43-4a57-9b8e-0c1f3f1f2a11"`
	Date   string `json:"date" example:"2025-06-02T07:30:00"`
}

// WeekRequest asks for the weekly restriction schedule of a plate.
type WeekRequest struct {
	Plate  string `json:"plate" example:"ABC123"`
	CityID string `json:"cityId" example:"6f1c9d0e-7a43-4a57-9b8e-0c1f3f1f2a11"`
}

// Origin describes the HTTP call that triggered a check, for the audit trail.
type Origin struct {
	Method   string
	Endpoint string
	Body     string
}

type Restriction struct {
	StartTime        circulation.TimeOfDay `json:"startTime" swaggertype:"string" example:"06:00"`
	EndTime          circulation.TimeOfDay `json:"endTime" swaggertype:"string" example:"08:30"`
	RestrictedDigits []string              `json:"restrictedDigits"`
}

// DayResponse carries the decision plus the echoed query context. When the
// city has no active rules only CanCirculate and Message are set.
type DayResponse struct {
	CanCirculate bool                 `json:"canCirculate"`
	Message      circulation.Message  `json:"message"`
	Plate        string               `json:"plate,omitempty"`
	LastDigit    string               `json:"lastDigit,omitempty"`
	City         string               `json:"city,omitempty"`
	Date         *time.Time           `json:"date,omitempty"`
	DayOfWeek    *circulation.Weekday `json:"dayOfWeek,omitempty" swaggertype:"string" example:"Lunes"`
	Restrictions []Restriction        `json:"restrictions,omitempty"`
}

type WeekDay struct {
	Day          circulation.Weekday `json:"day" swaggertype:"string" example:"Lunes"`
	CanCirculate bool                `json:"canCirculate"`
	Message      circulation.Message `json:"message"`
}

// WeekResponse is either the seven-day schedule or, for a city without
// active rules, a single city-wide answer.
type WeekResponse struct {
	CanCirculate *bool               `json:"canCirculate,omitempty"`
	Message      *circulation.Message `json:"message,omitempty"`
	Week         []WeekDay           `json:"week,omitempty"`
}

func newDayResponse(plate, lastDigit, city string, at circulation.Instant, result circulation.Result) *DayResponse {
	resp := &DayResponse{
		CanCirculate: result.Outcome.CanCirculate,
		Message:      result.Outcome.Message,
	}
	if result.NoActiveRules || result.Day == nil {
		return resp
	}

	date := at.Time
	day := result.Day.Weekday
	resp.Plate = plate
	resp.LastDigit = lastDigit
	resp.City = city
	resp.Date = &date
	resp.DayOfWeek = &day
	resp.Restrictions = make([]Restriction, 0, len(result.Day.Restrictions))
	for _, r := range result.Day.Restrictions {
		resp.Restrictions = append(resp.Restrictions, Restriction{
			StartTime:        r.Start,
			EndTime:          r.End,
			RestrictedDigits: r.RestrictedDigits,
		})
	}
	return resp
}

func newWeekResponse(result circulation.Result) *WeekResponse {
	if result.NoActiveRules {
		can := result.Outcome.CanCirculate
		msg := result.Outcome.Message
		return &WeekResponse{CanCirculate: &can, Message: &msg}
	}

	week := make([]WeekDay, 0, len(result.Week))
	for _, e := range result.Week {
		week = append(week, WeekDay{Day: e.Day, CanCirculate: e.CanCirculate, Message: e.Message})
	}
	return &WeekResponse{Week: week}
}
