package checker

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"picoyplaca/internal/audit"
	"picoyplaca/internal/auth"
	"picoyplaca/internal/circulation"
	"picoyplaca/internal/logger"
	"picoyplaca/internal/management"
	"picoyplaca/pkg/metrics"
	"picoyplaca/pkg/tracing"
)

const (
	modeDay  = "day"
	modeWeek = "week"

	outcomeAllowed    = "allowed"
	outcomeRestricted = "restricted"
	outcomeFree       = "no_rules"
	outcomeRejected   = "rejected"
)

type CityFinder interface {
	GetCity(ctx context.Context, id string) (*management.City, error)
}

// RuleSource returns one consistent snapshot of a city's active rules.
type RuleSource interface {
	ActiveRules(ctx context.Context, cityID string) ([]circulation.Rule, error)
}

type VehicleFinder interface {
	FindVehicleByPlate(ctx context.Context, plate string) (*management.Vehicle, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, rec audit.Record)
}

type Service interface {
	CheckDay(ctx context.Context, caller *auth.Principal, req DayRequest, origin Origin) (*DayResponse, error)
	CheckWeek(ctx context.Context, caller *auth.Principal, req WeekRequest, origin Origin) (*WeekResponse, error)
}

type ServiceOption func(*service)

func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(s *service) {
		s.audit = recorder
	}
}

type service struct {
	cities   CityFinder
	rules    RuleSource
	vehicles VehicleFinder
	audit    AuditRecorder
	location *time.Location
	logger   logger.Logger
	now      func() time.Time
}

// NewService wires the check flow. Dates without an offset are read as
// wall-clock time in loc.
func NewService(cities CityFinder, rules RuleSource, vehicles VehicleFinder, loc *time.Location, log logger.Logger, opts ...ServiceOption) Service {
	s := &service{
		cities:   cities,
		rules:    rules,
		vehicles: vehicles,
		location: loc,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// query is the validated form shared by both modes.
type query struct {
	plate     string
	lastDigit string
	cityID    string
	vehicleID string
	city      *management.City
}

func (s *service) CheckDay(ctx context.Context, caller *auth.Principal, req DayRequest, origin Origin) (resp *DayResponse, err error) {
	ctx, span := tracing.Start(ctx, "circulation", "checker.check_day")

	start := time.Now()
	q := query{plate: circulation.NormalizePlate(req.Plate), cityID: strings.TrimSpace(req.CityID)}
	defer func() {
		s.finish(ctx, modeDay, start, caller, origin, q, dayOutcome(resp), err)
		span.SetAttributes(attribute.String("circulation.city_id", q.cityID))
		tracing.End(span, err)
	}()

	if q.plate == "" || q.cityID == "" || strings.TrimSpace(req.Date) == "" {
		return nil, errDayFieldsRequired
	}
	if !circulation.ValidPlate(q.plate) {
		return nil, errInvalidPlate.WithDetail("plate", q.plate)
	}
	at, err := circulation.Resolve(req.Date, s.location)
	if err != nil {
		return nil, dateError(err)
	}

	rules, err := s.prepare(ctx, caller, &q)
	if err != nil {
		return nil, err
	}

	result := circulation.Evaluate(q.lastDigit, rules, circulation.SingleDay{Weekday: at.Weekday, Minutes: at.Minutes})
	return newDayResponse(q.plate, q.lastDigit, q.city.Name, at, result), nil
}

func (s *service) CheckWeek(ctx context.Context, caller *auth.Principal, req WeekRequest, origin Origin) (resp *WeekResponse, err error) {
	ctx, span := tracing.Start(ctx, "circulation", "checker.check_week")

	start := time.Now()
	q := query{plate: circulation.NormalizePlate(req.Plate), cityID: strings.TrimSpace(req.CityID)}
	defer func() {
		s.finish(ctx, modeWeek, start, caller, origin, q, weekOutcome(resp), err)
		span.SetAttributes(attribute.String("circulation.city_id", q.cityID))
		tracing.End(span, err)
	}()

	if q.plate == "" || q.cityID == "" {
		return nil, errWeekFieldsRequired
	}
	if !circulation.ValidPlate(q.plate) {
		return nil, errInvalidPlate.WithDetail("plate", q.plate)
	}

	rules, err := s.prepare(ctx, caller, &q)
	if err != nil {
		return nil, err
	}

	return newWeekResponse(circulation.Evaluate(q.lastDigit, rules, circulation.FullWeek{})), nil
}

// prepare runs the ownership gate, resolves the city and takes the rule
// snapshot used for the whole evaluation.
func (s *service) prepare(ctx context.Context, caller *auth.Principal, q *query) ([]circulation.Rule, error) {
	q.lastDigit = circulation.LastDigit(q.plate)

	vehicle, err := s.vehicles.FindVehicleByPlate(ctx, q.plate)
	if err != nil {
		return nil, serviceError(err)
	}
	if vehicle != nil {
		q.vehicleID = vehicle.ID
	}
	if caller == nil || !caller.IsAdmin() {
		if vehicle == nil || caller == nil || vehicle.OwnerID != caller.ID {
			return nil, errNotOwner.WithDetail("plate", q.plate)
		}
	}

	city, err := s.cities.GetCity(ctx, q.cityID)
	if err != nil {
		return nil, serviceError(err)
	}
	if city == nil {
		return nil, management.CityNotFound(q.cityID)
	}
	q.city = city

	rules, err := s.rules.ActiveRules(ctx, q.cityID)
	if err != nil {
		return nil, serviceError(err)
	}
	return rules, nil
}

func (s *service) finish(ctx context.Context, mode string, start time.Time, caller *auth.Principal, origin Origin, q query, outcome string, err error) {
	if err != nil {
		outcome = outcomeRejected
	}
	metrics.IncCirculationCheck(mode, outcome)
	metrics.ObserveCirculationDuration(mode, time.Since(start))

	rec := audit.Record{
		User:         caller.Identity(),
		Method:       origin.Method,
		Endpoint:     origin.Endpoint,
		Body:         origin.Body,
		VehiclePlate: q.plate,
		CityID:       q.cityID,
		VehicleID:    q.vehicleID,
		CreatedAt:    s.now().UTC(),
	}
	if err != nil {
		rec.Result = audit.Failed(err)
		s.logger.DebugwCtx(ctx, "Circulation check rejected", "mode", mode, "plate", q.plate, "error", err)
	} else {
		rec.Result = audit.Succeeded("mode=%s outcome=%s", mode, outcome)
	}

	if s.audit != nil {
		s.audit.Record(ctx, rec)
	}
}

func dayOutcome(resp *DayResponse) string {
	switch {
	case resp == nil:
		return outcomeRejected
	case resp.DayOfWeek == nil:
		return outcomeFree
	case resp.CanCirculate:
		return outcomeAllowed
	default:
		return outcomeRestricted
	}
}

func weekOutcome(resp *WeekResponse) string {
	if resp == nil {
		return outcomeRejected
	}
	if resp.Week == nil {
		return outcomeFree
	}
	for _, d := range resp.Week {
		if !d.CanCirculate {
			return outcomeRestricted
		}
	}
	return outcomeAllowed
}
