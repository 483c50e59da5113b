package rulecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"picoyplaca/internal/circulation"
	"picoyplaca/internal/constants"
)

// Store keeps one rule snapshot per city plus a generation counter that
// every Delete bumps. A fill only lands if the generation it read is still
// current, so a snapshot fetched before an invalidation is never stored
// after it.
type Store interface {
	Get(ctx context.Context, cityID string) (Entry, error)
	Set(ctx context.Context, cityID string, generation int64, rules []circulation.Rule, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, cityIDs ...string) error
}

// Entry is the result of a cache read.
type Entry struct {
	Rules      []circulation.Rule
	Found      bool
	Generation int64
}

type snapshotRule struct {
	ID               string                `json:"id"`
	DayOfWeek        circulation.Weekday   `json:"dayOfWeek"`
	StartTime        circulation.TimeOfDay `json:"startTime"`
	EndTime          circulation.TimeOfDay `json:"endTime"`
	RestrictedDigits []string              `json:"restrictedDigits"`
}

type snapshot struct {
	Rules    []snapshotRule `json:"rules"`
	StoredAt time.Time      `json:"storedAt"`
}

func encodeSnapshot(rules []circulation.Rule, now time.Time) ([]byte, error) {
	s := snapshot{Rules: make([]snapshotRule, 0, len(rules)), StoredAt: now.UTC()}
	for _, r := range rules {
		s.Rules = append(s.Rules, snapshotRule{
			ID:               r.ID,
			DayOfWeek:        r.Weekday,
			StartTime:        r.Start,
			EndTime:          r.End,
			RestrictedDigits: r.RestrictedDigits,
		})
	}
	return json.Marshal(s)
}

func decodeSnapshot(data []byte) ([]circulation.Rule, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	rules := make([]circulation.Rule, 0, len(s.Rules))
	for _, r := range s.Rules {
		rules = append(rules, circulation.Rule{
			ID:               r.ID,
			Weekday:          r.DayOfWeek,
			Start:            r.StartTime,
			End:              r.EndTime,
			RestrictedDigits: r.RestrictedDigits,
		})
	}
	return rules, nil
}

func Key(cityID string) string {
	return constants.RuleCacheKeyPrefix + cityID
}

func GenerationKey(cityID string) string {
	return constants.RuleCacheGenPrefix + cityID
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, cityID string) (Entry, error) {
	vals, err := s.client.MGet(ctx, Key(cityID), GenerationKey(cityID)).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("redis mget failed: %w", err)
	}

	gen, err := parseGeneration(vals[1])
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{Generation: gen}

	raw, ok := vals[0].(string)
	if !ok {
		return entry, nil
	}
	rules, err := decodeSnapshot([]byte(raw))
	if err != nil {
		// unreadable snapshot: treat as a miss so the next fill replaces it
		return entry, nil
	}
	entry.Rules = rules
	entry.Found = true
	return entry, nil
}

func parseGeneration(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cache generation %q: %w", s, err)
	}
	return gen, nil
}

// Set stores rules only while the city's generation still equals
// generation. It reports false when an invalidation got there first.
func (s *RedisStore) Set(ctx context.Context, cityID string, generation int64, rules []circulation.Rule, ttl time.Duration) (bool, error) {
	data, err := encodeSnapshot(rules, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to encode rule snapshot: %w", err)
	}

	genKey := GenerationKey(cityID)
	stored := false
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		gen, err := tx.Get(ctx, genKey).Int64()
		if errors.Is(err, redis.Nil) {
			gen, err = 0, nil
		}
		if err != nil {
			return err
		}
		if gen != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, Key(cityID), data, ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, genKey)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("redis set failed: %w", err)
	}
	return stored, nil
}

// Delete drops the snapshots and bumps each city's generation in one
// transaction.
func (s *RedisStore) Delete(ctx context.Context, cityIDs ...string) error {
	if len(cityIDs) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range cityIDs {
			pipe.Del(ctx, Key(id))
			pipe.Incr(ctx, GenerationKey(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}
