package management

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"picoyplaca/internal/circulation"
	"picoyplaca/pkg/models"
)

// memoryRepository mimics PostgresRepository, including its unique indexes.
type memoryRepository struct {
	mu       sync.Mutex
	cities   map[string]City
	rules    map[string]Rule
	vehicles map[string]Vehicle
	seq      int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		cities:   map[string]City{},
		rules:    map[string]Rule{},
		vehicles: map[string]Vehicle{},
	}
}

func (r *memoryRepository) stamp() time.Time {
	r.seq++
	return time.Date(2025, 1, 1, 0, 0, r.seq, 0, time.UTC)
}

func (r *memoryRepository) CreateCity(_ context.Context, city *City) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cities {
		if c.Name == city.Name {
			return errUniqueViolation
		}
	}
	city.ID = uuid.NewString()
	city.CreatedAt = r.stamp()
	city.UpdatedAt = city.CreatedAt
	r.cities[city.ID] = *city
	return nil
}

func (r *memoryRepository) ListCities(context.Context) ([]City, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []City{}
	for _, c := range r.cities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepository) GetCity(_ context.Context, id string) (*City, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cities[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memoryRepository) UpdateCity(_ context.Context, city *City) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cities[city.ID]; !ok {
		return errRecordNotFound
	}
	for _, c := range r.cities {
		if c.Name == city.Name && c.ID != city.ID {
			return errUniqueViolation
		}
	}
	r.cities[city.ID] = *city
	return nil
}

func (r *memoryRepository) DeleteCity(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cities[id]; !ok {
		return errRecordNotFound
	}
	delete(r.cities, id)
	for rid, rule := range r.rules {
		if rule.CityID == id {
			delete(r.rules, rid)
		}
	}
	return nil
}

func (r *memoryRepository) CreateRule(_ context.Context, rule *Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule.ID = uuid.NewString()
	rule.CreatedAt = r.stamp()
	rule.UpdatedAt = rule.CreatedAt
	r.rules[rule.ID] = *rule
	return nil
}

func (r *memoryRepository) sortedRules(keep func(Rule) bool) []Rule {
	out := []Rule{}
	for _, rule := range r.rules {
		if keep(rule) {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memoryRepository) ListRules(_ context.Context, cityID string) ([]Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedRules(func(rule Rule) bool { return cityID == "" || rule.CityID == cityID }), nil
}

func (r *memoryRepository) GetRule(_ context.Context, id string) (*Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, nil
	}
	return &rule, nil
}

func (r *memoryRepository) FindRuleByCityAndDay(_ context.Context, cityID string, day circulation.Weekday) (*Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.rules {
		if rule.CityID == cityID && rule.DayOfWeek == day {
			return &rule, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) UpdateRule(_ context.Context, rule *Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.ID]; !ok {
		return errRecordNotFound
	}
	r.rules[rule.ID] = *rule
	return nil
}

func (r *memoryRepository) DeleteRule(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return errRecordNotFound
	}
	delete(r.rules, id)
	return nil
}

func (r *memoryRepository) ActiveRules(_ context.Context, cityID string) ([]circulation.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []circulation.Rule
	for _, rule := range r.sortedRules(func(rule Rule) bool { return rule.CityID == cityID && rule.IsActive }) {
		out = append(out, rule.Evaluation())
	}
	return out, nil
}

func (r *memoryRepository) CreateVehicle(_ context.Context, v *Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.vehicles {
		if existing.LicensePlate == v.LicensePlate {
			return errUniqueViolation
		}
	}
	v.ID = uuid.NewString()
	v.CreatedAt = r.stamp()
	v.UpdatedAt = v.CreatedAt
	r.vehicles[v.ID] = *v
	return nil
}

func (r *memoryRepository) ListVehicles(_ context.Context, ownerID string) ([]Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Vehicle{}
	for _, v := range r.vehicles {
		if ownerID == "" || v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *memoryRepository) GetVehicle(_ context.Context, id string) (*Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *memoryRepository) FindVehicleByPlate(_ context.Context, plate string) (*Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.vehicles {
		if v.LicensePlate == circulation.NormalizePlate(plate) {
			return &v, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) UpdateVehicle(_ context.Context, v *Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[v.ID]; !ok {
		return errRecordNotFound
	}
	for _, existing := range r.vehicles {
		if existing.LicensePlate == v.LicensePlate && existing.ID != v.ID {
			return errUniqueViolation
		}
	}
	r.vehicles[v.ID] = *v
	return nil
}

func (r *memoryRepository) DeleteVehicle(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[id]; !ok {
		return errRecordNotFound
	}
	delete(r.vehicles, id)
	return nil
}

type memoryChangeLog struct {
	mu        sync.Mutex
	changes   []RuleChange
	lastLimit int
}

func (l *memoryChangeLog) RecordChange(_ context.Context, change *RuleChange) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	change.ID = uuid.NewString()
	l.changes = append(l.changes, *change)
	return nil
}

func (l *memoryChangeLog) ListChanges(_ context.Context, ruleID string, limit int) ([]RuleChange, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastLimit = limit
	out := []RuleChange{}
	for i := len(l.changes) - 1; i >= 0 && len(out) < limit; i-- {
		if l.changes[i].RuleID == ruleID {
			out = append(out, l.changes[i])
		}
	}
	return out, nil
}

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context, origin string, cityIDs ...string) error {
	args := m.Called(ctx, origin, cityIDs)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishRuleChange(ctx context.Context, event models.RuleChangeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
