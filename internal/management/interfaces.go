package management

import (
	"context"

	"picoyplaca/internal/auth"
	"picoyplaca/internal/circulation"
	"picoyplaca/pkg/models"
)

type Service interface {
	CreateCity(ctx context.Context, req CreateCityRequest) (*City, error)
	ListCities(ctx context.Context) ([]City, error)
	GetCity(ctx context.Context, id string) (*City, error)
	UpdateCity(ctx context.Context, id string, req UpdateCityRequest) (*City, error)
	DeleteCity(ctx context.Context, id string) error

	CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error)
	ListRules(ctx context.Context, cityID string) ([]Rule, error)
	GetRule(ctx context.Context, id string) (*Rule, error)
	UpdateRule(ctx context.Context, id string, req UpdateRuleRequest) (*Rule, error)
	DeleteRule(ctx context.Context, id string) error
	ListRuleChanges(ctx context.Context, ruleID string, limit int) ([]RuleChange, error)

	CreateVehicle(ctx context.Context, caller *auth.Principal, req CreateVehicleRequest) (*Vehicle, error)
	ListVehicles(ctx context.Context, caller *auth.Principal) ([]Vehicle, error)
	GetVehicle(ctx context.Context, caller *auth.Principal, id string) (*Vehicle, error)
	UpdateVehicle(ctx context.Context, caller *auth.Principal, id string, req UpdateVehicleRequest) (*Vehicle, error)
	DeleteVehicle(ctx context.Context, caller *auth.Principal, id string) error
}

type CityRepository interface {
	CreateCity(ctx context.Context, city *City) error
	ListCities(ctx context.Context) ([]City, error)
	GetCity(ctx context.Context, id string) (*City, error)
	UpdateCity(ctx context.Context, city *City) error
	DeleteCity(ctx context.Context, id string) error
}

type RuleRepository interface {
	CreateRule(ctx context.Context, rule *Rule) error
	// ListRules returns every rule, or only those of cityID when it is set.
	ListRules(ctx context.Context, cityID string) ([]Rule, error)
	GetRule(ctx context.Context, id string) (*Rule, error)
	FindRuleByCityAndDay(ctx context.Context, cityID string, day circulation.Weekday) (*Rule, error)
	UpdateRule(ctx context.Context, rule *Rule) error
	DeleteRule(ctx context.Context, id string) error
	ActiveRules(ctx context.Context, cityID string) ([]circulation.Rule, error)
}

type VehicleRepository interface {
	CreateVehicle(ctx context.Context, vehicle *Vehicle) error
	// ListVehicles returns every vehicle, or only those of ownerID when it is set.
	ListVehicles(ctx context.Context, ownerID string) ([]Vehicle, error)
	GetVehicle(ctx context.Context, id string) (*Vehicle, error)
	FindVehicleByPlate(ctx context.Context, plate string) (*Vehicle, error)
	UpdateVehicle(ctx context.Context, vehicle *Vehicle) error
	DeleteVehicle(ctx context.Context, id string) error
}

type ChangeLog interface {
	RecordChange(ctx context.Context, change *RuleChange) error
	ListChanges(ctx context.Context, ruleID string, limit int) ([]RuleChange, error)
}

type RuleEventPublisher interface {
	PublishRuleChange(ctx context.Context, event models.RuleChangeEvent) error
}

// CacheInvalidator drops cached rule snapshots of the given cities.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, origin string, cityIDs ...string) error
}

// Repository is the full persistence surface the service works against.
type Repository interface {
	CityRepository
	RuleRepository
	VehicleRepository
}
