package rulecache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"picoyplaca/internal/circulation"
	"picoyplaca/internal/config"
	"picoyplaca/internal/logger"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, cityID string) (Entry, error) {
	args := m.Called(ctx, cityID)
	entry, _ := args.Get(0).(Entry)
	return entry, args.Error(1)
}

func (m *mockStore) Set(ctx context.Context, cityID string, generation int64, rules []circulation.Rule, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, cityID, generation, rules, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, cityIDs ...string) error {
	return m.Called(ctx, cityIDs).Error(0)
}

type countingSource struct {
	rules map[string][]circulation.Rule
	err   error
	calls int
	// during runs inside the fetch, after the rows were read
	during func()
}

func (s *countingSource) ActiveRules(_ context.Context, cityID string) ([]circulation.Rule, error) {
	s.calls++
	rules := s.rules[cityID]
	if s.during != nil {
		s.during()
	}
	return rules, s.err
}

// memoryStore mirrors RedisStore's generation semantics in process.
type memoryStore struct {
	mu        sync.Mutex
	snapshots map[string][]circulation.Rule
	gens      map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snapshots: map[string][]circulation.Rule{}, gens: map[string]int64{}}
}

func (m *memoryStore) Get(_ context.Context, cityID string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rules, ok := m.snapshots[cityID]
	return Entry{Rules: rules, Found: ok, Generation: m.gens[cityID]}, nil
}

func (m *memoryStore) Set(_ context.Context, cityID string, generation int64, rules []circulation.Rule, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[cityID] != generation {
		return false, nil
	}
	m.snapshots[cityID] = rules
	return true, nil
}

func (m *memoryStore) Delete(_ context.Context, cityIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range cityIDs {
		delete(m.snapshots, id)
		m.gens[id]++
	}
	return nil
}

var mondayRules = []circulation.Rule{{
	ID:               "r1",
	Weekday:          circulation.Monday,
	Start:            circulation.NewTimeOfDay(6, 0),
	End:              circulation.NewTimeOfDay(8, 30),
	RestrictedDigits: []string{"1", "2"},
}}

func newCache(store Store, source Source, breaker bool) *CachedSource {
	return NewCachedSource(
		source,
		store,
		config.RuleCacheConfig{Enabled: true, TTLSeconds: 60},
		config.CircuitBreakerConfig{Enabled: breaker, FailureRatio: 0.5, MinRequests: 2, Timeout: time.Minute},
		logger.NopLogger(),
	)
}

func TestCachedSource_Hit(t *testing.T) {
	store := &mockStore{}
	store.On("Get", mock.Anything, "city-1").Return(Entry{Rules: mondayRules, Found: true, Generation: 3}, nil)
	source := &countingSource{}

	rules, err := newCache(store, source, true).ActiveRules(context.Background(), "city-1")
	require.NoError(t, err)
	assert.Equal(t, mondayRules, rules)
	assert.Zero(t, source.calls)
	store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedSource_MissFillsCache(t *testing.T) {
	store := &mockStore{}
	store.On("Get", mock.Anything, "city-1").Return(Entry{Generation: 4}, nil)
	store.On("Set", mock.Anything, "city-1", int64(4), mondayRules, time.Minute).Return(true, nil)
	source := &countingSource{rules: map[string][]circulation.Rule{"city-1": mondayRules}}

	rules, err := newCache(store, source, true).ActiveRules(context.Background(), "city-1")
	require.NoError(t, err)
	assert.Equal(t, mondayRules, rules)
	assert.Equal(t, 1, source.calls)
	store.AssertExpectations(t)
}

func TestCachedSource_CacheFailuresFallBack(t *testing.T) {
	store := &mockStore{}
	store.On("Get", mock.Anything, "city-1").Return(Entry{}, errors.New("redis down"))
	source := &countingSource{rules: map[string][]circulation.Rule{"city-1": mondayRules}}

	cache := newCache(store, source, false)
	for i := 0; i < 3; i++ {
		rules, err := cache.ActiveRules(context.Background(), "city-1")
		require.NoError(t, err)
		assert.Equal(t, mondayRules, rules)
	}
	assert.Equal(t, 3, source.calls)
	store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedSource_FillErrorIsIgnored(t *testing.T) {
	store := &mockStore{}
	store.On("Get", mock.Anything, "city-1").Return(Entry{}, nil)
	store.On("Set", mock.Anything, "city-1", int64(0), mondayRules, time.Minute).Return(false, errors.New("redis down"))
	source := &countingSource{rules: map[string][]circulation.Rule{"city-1": mondayRules}}

	rules, err := newCache(store, source, false).ActiveRules(context.Background(), "city-1")
	require.NoError(t, err)
	assert.Equal(t, mondayRules, rules)
	store.AssertExpectations(t)
}

func TestCachedSource_OpenBreakerSkipsStore(t *testing.T) {
	store := &mockStore{}
	store.On("Get", mock.Anything, "city-1").Return(Entry{}, errors.New("redis down"))
	source := &countingSource{rules: map[string][]circulation.Rule{"city-1": mondayRules}}

	cache := newCache(store, source, true)
	for i := 0; i < 5; i++ {
		_, err := cache.ActiveRules(context.Background(), "city-1")
		require.NoError(t, err)
	}

	assert.Equal(t, 5, source.calls)
	assert.Less(t, len(store.Calls), 10, "store should stop being called once the breaker opens")
}

func TestCachedSource_SourceErrorIsReturned(t *testing.T) {
	store := &mockStore{}
	store.On("Get", mock.Anything, "city-1").Return(Entry{}, nil)
	source := &countingSource{err: errors.New("db down")}

	_, err := newCache(store, source, true).ActiveRules(context.Background(), "city-1")
	assert.EqualError(t, err, "db down")
	store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedSource_Invalidate(t *testing.T) {
	store := &mockStore{}
	store.On("Delete", mock.Anything, []string{"city-1", "city-2"}).Return(nil)

	cache := newCache(store, &countingSource{}, true)
	require.NoError(t, cache.Invalidate(context.Background(), OriginLocal, "city-1", "city-2"))
	require.NoError(t, cache.Invalidate(context.Background(), OriginLocal))
	store.AssertNumberOfCalls(t, "Delete", 1)
}

func TestCachedSource_InvalidationDuringFetchWins(t *testing.T) {
	store := newMemoryStore()
	source := &countingSource{rules: map[string][]circulation.Rule{"city-1": mondayRules}}
	cache := newCache(store, source, false)
	ctx := context.Background()

	// the rule is deleted and the cache invalidated while the first
	// request still holds the old rows
	source.during = func() {
		source.rules["city-1"] = nil
		require.NoError(t, cache.Invalidate(ctx, OriginLocal, "city-1"))
		source.during = nil
	}

	stale, err := cache.ActiveRules(ctx, "city-1")
	require.NoError(t, err)
	assert.Equal(t, mondayRules, stale)

	entry, err := store.Get(ctx, "city-1")
	require.NoError(t, err)
	assert.False(t, entry.Found, "a snapshot read before the invalidation must not be cached")

	current, err := cache.ActiveRules(ctx, "city-1")
	require.NoError(t, err)
	assert.Empty(t, current)
	assert.Equal(t, 2, source.calls)

	cached, err := cache.ActiveRules(ctx, "city-1")
	require.NoError(t, err)
	assert.Empty(t, cached)
	assert.Equal(t, 2, source.calls, "the post-invalidation snapshot is cached")
}

func TestSnapshot_PreservesOrder(t *testing.T) {
	rules := append([]circulation.Rule{}, mondayRules...)
	rules = append(rules, circulation.Rule{
		ID:               "r0",
		Weekday:          circulation.Wednesday,
		Start:            circulation.NewTimeOfDay(15, 0),
		End:              circulation.NewTimeOfDay(19, 30),
		RestrictedDigits: []string{"5"},
	})

	data, err := encodeSnapshot(rules, time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dayOfWeek":"Miércoles"`)
	assert.Contains(t, string(data), `"startTime":"15:00"`)

	decoded, err := decodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, rules, decoded)
}
