package models

import "time"

const (
	EventTypeRuleChanged   = "rule.changed"
	EventTypeAuditRecorded = "audit.recorded"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// RuleChangeEvent tells every instance that a city's rule set changed.
// PreviousCityID is set when an update moved the rule to another city.
type RuleChangeEvent struct {
	RuleID         string    `json:"rule_id"`
	CityID         string    `json:"city_id"`
	PreviousCityID string    `json:"previous_city_id,omitempty"`
	Action         string    `json:"action"`
	ChangedBy      string    `json:"changed_by,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// AffectedCities returns the distinct city ids whose snapshots are stale.
func (e RuleChangeEvent) AffectedCities() []string {
	cities := []string{e.CityID}
	if e.PreviousCityID != "" && e.PreviousCityID != e.CityID {
		cities = append(cities, e.PreviousCityID)
	}
	return cities
}
