package management

import (
	"encoding/json"
	"time"

	"picoyplaca/internal/circulation"
)

type City struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateCityRequest struct {
	Name        string  `json:"name" binding:"required,min=3"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

type UpdateCityRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=3"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

type Rule struct {
	ID               string                `json:"id"`
	CityID           string                `json:"cityId"`
	DayOfWeek        circulation.Weekday   `json:"dayOfWeek" swaggertype:"string" example:"Lunes"`
	StartTime        circulation.TimeOfDay `json:"startTime" swaggertype:"string" example:"06:00"`
	EndTime          circulation.TimeOfDay `json:"endTime" swaggertype:"string" example:"08:30"`
	RestrictedDigits []string              `json:"restrictedDigits"`
	IsActive         bool                  `json:"isActive"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// Evaluation returns the view of r the circulation engine works on.
func (r Rule) Evaluation() circulation.Rule {
	digits := make([]string, len(r.RestrictedDigits))
	copy(digits, r.RestrictedDigits)
	return circulation.Rule{
		ID:               r.ID,
		Weekday:          r.DayOfWeek,
		Start:            r.StartTime,
		End:              r.EndTime,
		RestrictedDigits: digits,
	}
}

type CreateRuleRequest struct {
	CityID           string   `json:"cityId" binding:"required,uuid"`
	DayOfWeek        string   `json:"dayOfWeek" binding:"required,weekday" example:"Lunes"`
	StartTime        string   `json:"startTime" binding:"required,hhmm" example:"06:00"`
	EndTime          string   `json:"endTime" binding:"required,hhmm" example:"08:30"`
	RestrictedDigits []string `json:"restrictedDigits" binding:"required,min=1,dive,digit"`
	IsActive         *bool    `json:"isActive"`
}

type UpdateRuleRequest struct {
	CityID           *string  `json:"cityId" binding:"omitempty,uuid"`
	DayOfWeek        *string  `json:"dayOfWeek" binding:"omitempty,weekday"`
	StartTime        *string  `json:"startTime" binding:"omitempty,hhmm"`
	EndTime          *string  `json:"endTime" binding:"omitempty,hhmm"`
	RestrictedDigits []string `json:"restrictedDigits" binding:"omitempty,min=1,dive,digit"`
	IsActive         *bool    `json:"isActive"`
}

const (
	VehicleTypeCar        = "car"
	VehicleTypeMotorcycle = "motorcycle"
)

type Vehicle struct {
	ID           string    `json:"id"`
	LicensePlate string    `json:"licensePlate"`
	Brand        string    `json:"brand"`
	Model        string    `json:"model"`
	Year         int       `json:"year"`
	Type         string    `json:"type"`
	OwnerID      string    `json:"ownerId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateVehicleRequest struct {
	LicensePlate string `json:"licensePlate" binding:"required,plate" example:"ABC123"`
	Brand        string `json:"brand" binding:"required"`
	Model        string `json:"model" binding:"required"`
	Year         int    `json:"year" binding:"required,min=1900"`
	Type         string `json:"type" binding:"omitempty,oneof=car motorcycle"`
}

type UpdateVehicleRequest struct {
	LicensePlate *string `json:"licensePlate" binding:"omitempty,plate"`
	Brand        *string `json:"brand" binding:"omitempty,min=1"`
	Model        *string `json:"model" binding:"omitempty,min=1"`
	Year         *int    `json:"year" binding:"omitempty,min=1900"`
	Type         *string `json:"type" binding:"omitempty,oneof=car motorcycle"`
}

// RuleChange is one entry of a rule's change history.
type RuleChange struct {
	ID        string          `json:"id"`
	RuleID    string          `json:"ruleId"`
	Action    string          `json:"action"`
	OldValue  json.RawMessage `json:"oldValue,omitempty" swaggertype:"object"`
	NewValue  json.RawMessage `json:"newValue,omitempty" swaggertype:"object"`
	ChangedBy string          `json:"changedBy"`
	CreatedAt time.Time       `json:"createdAt"`
}
