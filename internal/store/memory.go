package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "coinwatch/pkg/types"
)

// MemoryStore implements Store entirely in-process. It backs the memory
// database driver for local development and is the store used by unit tests.
// Semantics match PostgresStore: strict window bounds, hour-truncated
// aggregation buckets, caller-enforced alert uniqueness.
type MemoryStore struct {
	mu      sync.RWMutex
	samples []domain.PriceSample
	alerts  []domain.Alert
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// InsertSample appends a new price sample.
func (s *MemoryStore) InsertSample(_ context.Context, sample *domain.PriceSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample.ID = uuid.NewString()
	s.samples = append(s.samples, *sample)
	return nil
}

// LatestSampleBetween returns the latest sample for chain with timestamp
// strictly inside (after, before), or ErrNotFound.
func (s *MemoryStore) LatestSampleBetween(
	_ context.Context,
	chain string,
	after, before time.Time,
) (*domain.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.PriceSample
	for i := range s.samples {
		sm := &s.samples[i]
		if sm.Chain != chain {
			continue
		}
		if !sm.Timestamp.After(after) || !sm.Timestamp.Before(before) {
			continue
		}
		if latest == nil || sm.Timestamp.After(latest.Timestamp) {
			latest = sm
		}
	}

	if latest == nil {
		return nil, ErrNotFound
	}
	out := *latest
	return &out, nil
}

// HourlyMaxPrices returns per-hour, per-chain peak prices since the given
// time, ordered by hour ascending then chain ascending.
func (s *MemoryStore) HourlyMaxPrices(
	_ context.Context,
	since time.Time,
) ([]domain.HourlyPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucketKey struct {
		hour  time.Time
		chain string
	}

	peaks := make(map[bucketKey]decimal.Decimal)
	for i := range s.samples {
		sm := &s.samples[i]
		if !sm.Timestamp.After(since) {
			continue
		}
		key := bucketKey{hour: sm.Timestamp.UTC().Truncate(time.Hour), chain: sm.Chain}
		if max, ok := peaks[key]; !ok || sm.Price.GreaterThan(max) {
			peaks[key] = sm.Price
		}
	}

	results := make([]domain.HourlyPrice, 0, len(peaks))
	for key, max := range peaks {
		results = append(results, domain.HourlyPrice{
			Hour:         key.hour,
			Chain:        key.chain,
			HighestPrice: max,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].Hour.Equal(results[j].Hour) {
			return results[i].Hour.Before(results[j].Hour)
		}
		return results[i].Chain < results[j].Chain
	})

	return results, nil
}

// GetAlert retrieves the alert registered for (chain, email), or ErrNotFound.
func (s *MemoryStore) GetAlert(_ context.Context, chain, email string) (*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.alerts {
		if s.alerts[i].Chain == chain && s.alerts[i].Email == email {
			out := s.alerts[i]
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// CreateAlert inserts a new alert registration.
func (s *MemoryStore) CreateAlert(_ context.Context, a *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	a.ID = uuid.NewString()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.alerts = append(s.alerts, *a)
	return nil
}

// UpdateAlertPrice overwrites the target price of an existing alert.
func (s *MemoryStore) UpdateAlertPrice(
	_ context.Context,
	id string,
	target decimal.Decimal,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].TargetPrice = target
			s.alerts[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

// ListTriggeredAlerts returns all alerts for chain with target price <= price,
// ordered by registration time.
func (s *MemoryStore) ListTriggeredAlerts(
	_ context.Context,
	chain string,
	price decimal.Decimal,
) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var triggered []domain.Alert
	for i := range s.alerts {
		a := &s.alerts[i]
		if a.Chain == chain && a.TargetPrice.LessThanOrEqual(price) {
			triggered = append(triggered, *a)
		}
	}

	sort.Slice(triggered, func(i, j int) bool {
		return triggered[i].CreatedAt.Before(triggered[j].CreatedAt)
	})

	return triggered, nil
}

// Migrate is a no-op for the in-memory store.
func (s *MemoryStore) Migrate(context.Context) error {
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
