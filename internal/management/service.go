package management

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"picoyplaca/internal/auth"
	"picoyplaca/internal/circulation"
	"picoyplaca/internal/constants"
	"picoyplaca/internal/logger"
	pkgerrors "picoyplaca/pkg/errors"
	"picoyplaca/pkg/models"
)

const cacheOrigin = "local"

type service struct {
	repo      Repository
	changeLog ChangeLog
	events    RuleEventPublisher
	cache     CacheInvalidator
	logger    logger.Logger
	now       func() time.Time
}

type ServiceOption func(*service)

func WithChangeLog(changeLog ChangeLog) ServiceOption {
	return func(s *service) {
		s.changeLog = changeLog
	}
}

func WithRuleEvents(events RuleEventPublisher) ServiceOption {
	return func(s *service) {
		s.events = events
	}
}

func WithCacheInvalidator(cache CacheInvalidator) ServiceOption {
	return func(s *service) {
		s.cache = cache
	}
}

func NewService(repo Repository, log logger.Logger, opts ...ServiceOption) Service {
	s := &service{
		repo:   repo,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateCity(ctx context.Context, req CreateCityRequest) (*City, error) {
	name := CapitalizeName(req.Name)
	if len([]rune(name)) < 3 {
		return nil, pkgerrors.ErrValidation.WithDetail("name", "must be at least 3 characters")
	}

	city := &City{
		Name:        name,
		Description: req.Description,
		IsActive:    boolOrDefault(req.IsActive, true),
	}
	if err := s.repo.CreateCity(ctx, city); err != nil {
		if errors.Is(err, errUniqueViolation) {
			return nil, duplicateCity(city.Name).WithCause(err)
		}
		return nil, serviceError(err)
	}
	return city, nil
}

func (s *service) ListCities(ctx context.Context) ([]City, error) {
	cities, err := s.repo.ListCities(ctx)
	if err != nil {
		return nil, serviceError(err)
	}
	return cities, nil
}

func (s *service) GetCity(ctx context.Context, id string) (*City, error) {
	city, err := s.repo.GetCity(ctx, id)
	if err != nil {
		return nil, serviceError(err)
	}
	if city == nil {
		return nil, CityNotFound(id)
	}
	return city, nil
}

func (s *service) UpdateCity(ctx context.Context, id string, req UpdateCityRequest) (*City, error) {
	city, err := s.GetCity(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := CapitalizeName(*req.Name)
		if len([]rune(name)) < 3 {
			return nil, pkgerrors.ErrValidation.WithDetail("name", "must be at least 3 characters")
		}
		city.Name = name
	}
	if req.Description != nil {
		city.Description = req.Description
	}
	if req.IsActive != nil {
		city.IsActive = *req.IsActive
	}

	if err := s.repo.UpdateCity(ctx, city); err != nil {
		switch {
		case errors.Is(err, errUniqueViolation):
			return nil, duplicateCity(city.Name).WithCause(err)
		case errors.Is(err, errRecordNotFound):
			return nil, CityNotFound(id)
		}
		return nil, serviceError(err)
	}
	return city, nil
}

func (s *service) DeleteCity(ctx context.Context, id string) error {
	if _, err := s.GetCity(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteCity(ctx, id); err != nil {
		if errors.Is(err, errRecordNotFound) {
			return CityNotFound(id)
		}
		return serviceError(err)
	}

	// rules go with the city
	s.invalidate(ctx, id)
	return nil
}

func (s *service) CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error) {
	rule := &Rule{
		CityID:   strings.TrimSpace(req.CityID),
		IsActive: boolOrDefault(req.IsActive, true),
	}
	if err := applyRuleFields(rule, &req.DayOfWeek, &req.StartTime, &req.EndTime, req.RestrictedDigits); err != nil {
		return nil, err
	}
	if err := validateRuleWindow(rule.StartTime, rule.EndTime); err != nil {
		return nil, err
	}

	if _, err := s.GetCity(ctx, rule.CityID); err != nil {
		return nil, err
	}
	if err := s.ensureDayFree(ctx, rule.CityID, rule.DayOfWeek, ""); err != nil {
		return nil, err
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		if errors.Is(err, errUniqueViolation) {
			return nil, duplicateRule(rule.DayOfWeek).WithCause(err)
		}
		return nil, serviceError(err)
	}

	s.recordChange(ctx, rule.ID, models.ActionCreate, nil, rule)
	s.afterRuleChange(ctx, models.ActionCreate, rule.ID, rule.CityID, "")

	return rule, nil
}

func (s *service) ListRules(ctx context.Context, cityID string) ([]Rule, error) {
	rules, err := s.repo.ListRules(ctx, strings.TrimSpace(cityID))
	if err != nil {
		return nil, serviceError(err)
	}
	return rules, nil
}

func (s *service) GetRule(ctx context.Context, id string) (*Rule, error) {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, serviceError(err)
	}
	if rule == nil {
		return nil, ruleNotFound(id)
	}
	return rule, nil
}

func (s *service) UpdateRule(ctx context.Context, id string, req UpdateRuleRequest) (*Rule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *rule
	before.RestrictedDigits = append([]string(nil), rule.RestrictedDigits...)

	if err := applyRuleFields(rule, req.DayOfWeek, req.StartTime, req.EndTime, req.RestrictedDigits); err != nil {
		return nil, err
	}
	if err := validateRuleWindow(rule.StartTime, rule.EndTime); err != nil {
		return nil, err
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.CityID != nil {
		rule.CityID = strings.TrimSpace(*req.CityID)
		if rule.CityID != before.CityID {
			if _, err := s.GetCity(ctx, rule.CityID); err != nil {
				return nil, err
			}
		}
	}

	if rule.CityID != before.CityID || rule.DayOfWeek != before.DayOfWeek {
		if err := s.ensureDayFree(ctx, rule.CityID, rule.DayOfWeek, rule.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		switch {
		case errors.Is(err, errUniqueViolation):
			return nil, duplicateRule(rule.DayOfWeek).WithCause(err)
		case errors.Is(err, errRecordNotFound):
			return nil, ruleNotFound(id)
		}
		return nil, serviceError(err)
	}

	previousCity := ""
	if before.CityID != rule.CityID {
		previousCity = before.CityID
	}
	s.recordChange(ctx, rule.ID, models.ActionUpdate, &before, rule)
	s.afterRuleChange(ctx, models.ActionUpdate, rule.ID, rule.CityID, previousCity)

	return rule, nil
}

func (s *service) DeleteRule(ctx context.Context, id string) error {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteRule(ctx, id); err != nil {
		if errors.Is(err, errRecordNotFound) {
			return ruleNotFound(id)
		}
		return serviceError(err)
	}

	s.recordChange(ctx, rule.ID, models.ActionDelete, rule, nil)
	s.afterRuleChange(ctx, models.ActionDelete, rule.ID, rule.CityID, "")
	return nil
}

func (s *service) ListRuleChanges(ctx context.Context, ruleID string, limit int) ([]RuleChange, error) {
	if s.changeLog == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "rule change log not enabled")
	}
	switch {
	case limit <= 0:
		limit = constants.DefaultLimit
	case limit > constants.MaxLimit:
		limit = constants.MaxLimit
	}
	changes, err := s.changeLog.ListChanges(ctx, ruleID, limit)
	if err != nil {
		return nil, serviceError(err)
	}
	return changes, nil
}

func (s *service) CreateVehicle(ctx context.Context, caller *auth.Principal, req CreateVehicleRequest) (*Vehicle, error) {
	if caller == nil {
		return nil, pkgerrors.ErrUnauthorized
	}

	vehicle := &Vehicle{
		LicensePlate: circulation.NormalizePlate(req.LicensePlate),
		Brand:        strings.TrimSpace(req.Brand),
		Model:        strings.TrimSpace(req.Model),
		Year:         req.Year,
		Type:         req.Type,
		OwnerID:      caller.ID,
	}
	if vehicle.Type == "" {
		vehicle.Type = VehicleTypeCar
	}
	if err := s.validateVehicle(vehicle); err != nil {
		return nil, err
	}

	if err := s.repo.CreateVehicle(ctx, vehicle); err != nil {
		if errors.Is(err, errUniqueViolation) {
			return nil, duplicatePlate(vehicle.LicensePlate).WithCause(err)
		}
		return nil, serviceError(err)
	}
	return vehicle, nil
}

func (s *service) ListVehicles(ctx context.Context, caller *auth.Principal) ([]Vehicle, error) {
	if caller == nil {
		return nil, pkgerrors.ErrUnauthorized
	}
	ownerID := caller.ID
	if caller.IsAdmin() {
		ownerID = ""
	}
	vehicles, err := s.repo.ListVehicles(ctx, ownerID)
	if err != nil {
		return nil, serviceError(err)
	}
	return vehicles, nil
}

// GetVehicle hides vehicles of other owners behind a not-found.
func (s *service) GetVehicle(ctx context.Context, caller *auth.Principal, id string) (*Vehicle, error) {
	vehicle, err := s.loadVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(caller, vehicle) {
		return nil, vehicleNotFound(id)
	}
	return vehicle, nil
}

func (s *service) UpdateVehicle(ctx context.Context, caller *auth.Principal, id string, req UpdateVehicleRequest) (*Vehicle, error) {
	vehicle, err := s.loadVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(caller, vehicle) {
		return nil, errVehicleNotOwned
	}

	if req.LicensePlate != nil {
		vehicle.LicensePlate = circulation.NormalizePlate(*req.LicensePlate)
	}
	if req.Brand != nil {
		vehicle.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Model != nil {
		vehicle.Model = strings.TrimSpace(*req.Model)
	}
	if req.Year != nil {
		vehicle.Year = *req.Year
	}
	if req.Type != nil {
		vehicle.Type = *req.Type
	}
	if err := s.validateVehicle(vehicle); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateVehicle(ctx, vehicle); err != nil {
		switch {
		case errors.Is(err, errUniqueViolation):
			return nil, duplicatePlate(vehicle.LicensePlate).WithCause(err)
		case errors.Is(err, errRecordNotFound):
			return nil, vehicleNotFound(id)
		}
		return nil, serviceError(err)
	}
	return vehicle, nil
}

func (s *service) DeleteVehicle(ctx context.Context, caller *auth.Principal, id string) error {
	vehicle, err := s.loadVehicle(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(caller, vehicle) {
		return errVehicleNotOwned
	}

	if err := s.repo.DeleteVehicle(ctx, id); err != nil {
		if errors.Is(err, errRecordNotFound) {
			return vehicleNotFound(id)
		}
		return serviceError(err)
	}
	return nil
}

func (s *service) loadVehicle(ctx context.Context, id string) (*Vehicle, error) {
	vehicle, err := s.repo.GetVehicle(ctx, id)
	if err != nil {
		return nil, serviceError(err)
	}
	if vehicle == nil {
		return nil, vehicleNotFound(id)
	}
	return vehicle, nil
}

func (s *service) validateVehicle(v *Vehicle) error {
	if !circulation.ValidPlate(v.LicensePlate) {
		return pkgerrors.ErrValidation.
			WithLocalized("Formato de placa inválido.", "Invalid plate format.").
			WithDetail("licensePlate", v.LicensePlate)
	}
	if v.Brand == "" {
		return pkgerrors.ErrValidation.WithDetail("brand", "is required")
	}
	if v.Model == "" {
		return pkgerrors.ErrValidation.WithDetail("model", "is required")
	}
	if v.Type != VehicleTypeCar && v.Type != VehicleTypeMotorcycle {
		return pkgerrors.ErrValidation.WithDetail("type", "must be one of: car motorcycle")
	}
	return validateVehicleYear(v.Year, s.now())
}

func canManage(caller *auth.Principal, v *Vehicle) bool {
	if caller == nil {
		return false
	}
	return caller.IsAdmin() || caller.ID == v.OwnerID
}

// ensureDayFree rejects a second rule for the same city and day. exceptID
// lets an update keep its own slot.
func (s *service) ensureDayFree(ctx context.Context, cityID string, day circulation.Weekday, exceptID string) error {
	existing, err := s.repo.FindRuleByCityAndDay(ctx, cityID, day)
	if err != nil {
		return serviceError(err)
	}
	if existing != nil && existing.ID != exceptID {
		return duplicateRule(day)
	}
	return nil
}

// applyRuleFields parses and sets the non-nil fields. The create path passes
// every field; updates pass only what changed.
func applyRuleFields(rule *Rule, day, start, end *string, digits []string) error {
	if day != nil {
		d, err := circulation.ParseWeekday(*day)
		if err != nil {
			return pkgerrors.ErrValidation.WithCause(err).WithDetail("dayOfWeek", "must be a day of the week")
		}
		rule.DayOfWeek = d
	}
	if start != nil {
		t, err := circulation.ParseTimeOfDay(*start)
		if err != nil {
			return pkgerrors.ErrValidation.WithCause(err).WithDetail("startTime", "must use HH:mm format")
		}
		rule.StartTime = t
	}
	if end != nil {
		t, err := circulation.ParseTimeOfDay(*end)
		if err != nil {
			return pkgerrors.ErrValidation.WithCause(err).WithDetail("endTime", "must use HH:mm format")
		}
		rule.EndTime = t
	}
	if digits != nil {
		normalized := normalizeDigits(digits)
		if err := validateDigits(normalized); err != nil {
			return err
		}
		rule.RestrictedDigits = normalized
	}
	if len(rule.RestrictedDigits) == 0 {
		return validateDigits(nil)
	}
	return nil
}

func (s *service) recordChange(ctx context.Context, ruleID, action string, before, after *Rule) {
	if s.changeLog == nil {
		return
	}

	change := &RuleChange{
		RuleID:    ruleID,
		Action:    action,
		OldValue:  ruleJSON(before),
		NewValue:  ruleJSON(after),
		ChangedBy: getChangedBy(ctx),
	}
	if err := s.changeLog.RecordChange(ctx, change); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to record rule change", "rule_id", ruleID, "action", action, "error", err)
	}
}

// afterRuleChange drops the local snapshot right away and tells the other
// instances. Neither step fails the write.
func (s *service) afterRuleChange(ctx context.Context, action, ruleID, cityID, previousCityID string) {
	event := models.RuleChangeEvent{
		RuleID:         ruleID,
		CityID:         cityID,
		PreviousCityID: previousCityID,
		Action:         action,
		ChangedBy:      getChangedBy(ctx),
		Timestamp:      s.now().UTC(),
	}

	s.invalidate(ctx, event.AffectedCities()...)

	if s.events == nil {
		return
	}
	if err := s.events.PublishRuleChange(ctx, event); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish rule change", "rule_id", ruleID, "city_id", cityID, "error", err)
	}
}

func (s *service) invalidate(ctx context.Context, cityIDs ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cacheOrigin, cityIDs...); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to invalidate rule cache", "cities", cityIDs, "error", err)
	}
}

func ruleJSON(rule *Rule) json.RawMessage {
	if rule == nil {
		return nil
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return nil
	}
	return data
}

func getChangedBy(ctx context.Context) string {
	if p, ok := auth.FromContext(ctx); ok {
		return p.Identity()
	}
	return "system"
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
