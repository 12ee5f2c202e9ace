//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"coinwatch/internal/store"
	domain "coinwatch/pkg/types"
)

func setupPostgres(t *testing.T) *store.PostgresStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("coinwatch_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgresStore(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	require.NoError(t, s.Migrate(ctx))

	return s
}

func TestPostgresStore_Ping(t *testing.T) {
	s := setupPostgres(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestPostgresStore_InsertAndQuerySamples(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	samples := []*domain.PriceSample{
		{Chain: "ethereum", Price: decimal.RequireFromString("2000.50"), Timestamp: now.Add(-30 * time.Minute)},
		{Chain: "ethereum", Price: decimal.RequireFromString("2100.25"), Timestamp: now.Add(-5 * time.Minute)},
		{Chain: "polygon", Price: decimal.RequireFromString("0.85"), Timestamp: now.Add(-5 * time.Minute)},
	}
	for _, sm := range samples {
		require.NoError(t, s.InsertSample(ctx, sm))
		assert.NotEmpty(t, sm.ID)
	}

	t.Run("latest sample in window", func(t *testing.T) {
		got, err := s.LatestSampleBetween(ctx, "ethereum", now.Add(-time.Hour), now)
		require.NoError(t, err)
		assert.Equal(t, "2100.25", got.Price.String())
		assert.Equal(t, "ethereum", got.Chain)
	})

	t.Run("window bounds are exclusive", func(t *testing.T) {
		_, err := s.LatestSampleBetween(
			ctx, "ethereum",
			now.Add(-4*time.Minute), now.Add(-4*time.Minute).Add(time.Second),
		)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("unknown chain", func(t *testing.T) {
		_, err := s.LatestSampleBetween(ctx, "bitcoin", now.Add(-time.Hour), now)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPostgresStore_HourlyMaxPrices(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	h1 := time.Now().UTC().Add(-3 * time.Hour).Truncate(time.Hour)
	h2 := h1.Add(time.Hour)

	for _, sm := range []*domain.PriceSample{
		{Chain: "ethereum", Price: decimal.RequireFromString("10"), Timestamp: h1.Add(5 * time.Minute)},
		{Chain: "ethereum", Price: decimal.RequireFromString("15"), Timestamp: h1.Add(25 * time.Minute)},
		{Chain: "ethereum", Price: decimal.RequireFromString("5"), Timestamp: h2.Add(10 * time.Minute)},
		{Chain: "polygon", Price: decimal.RequireFromString("1.2"), Timestamp: h1.Add(35 * time.Minute)},
	} {
		require.NoError(t, s.InsertSample(ctx, sm))
	}

	got, err := s.HourlyMaxPrices(ctx, h1.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.True(t, got[0].Hour.Equal(h1))
	assert.Equal(t, "ethereum", got[0].Chain)
	assert.Equal(t, "15", got[0].HighestPrice.String())

	assert.True(t, got[1].Hour.Equal(h1))
	assert.Equal(t, "polygon", got[1].Chain)
	assert.Equal(t, "1.2", got[1].HighestPrice.String())

	assert.True(t, got[2].Hour.Equal(h2))
	assert.Equal(t, "ethereum", got[2].Chain)
	assert.Equal(t, "5", got[2].HighestPrice.String())
}

func TestPostgresStore_Alerts(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	t.Run("get missing alert", func(t *testing.T) {
		_, err := s.GetAlert(ctx, "ethereum", "nobody@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("create, get, update", func(t *testing.T) {
		a := &domain.Alert{
			Chain:       "ethereum",
			TargetPrice: decimal.RequireFromString("2500"),
			Email:       "user@example.com",
		}
		require.NoError(t, s.CreateAlert(ctx, a))
		assert.NotEmpty(t, a.ID)
		assert.False(t, a.CreatedAt.IsZero())

		got, err := s.GetAlert(ctx, "ethereum", "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, "2500", got.TargetPrice.String())

		require.NoError(t, s.UpdateAlertPrice(ctx, a.ID, decimal.RequireFromString("3000")))
		got, err = s.GetAlert(ctx, "ethereum", "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, "3000", got.TargetPrice.String())
	})

	t.Run("update missing alert", func(t *testing.T) {
		err := s.UpdateAlertPrice(
			ctx,
			"00000000-0000-0000-0000-000000000000",
			decimal.RequireFromString("1"),
		)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("triggered alerts", func(t *testing.T) {
		for _, a := range []*domain.Alert{
			{Chain: "polygon", TargetPrice: decimal.RequireFromString("0.5"), Email: "low@example.com"},
			{Chain: "polygon", TargetPrice: decimal.RequireFromString("0.9"), Email: "mid@example.com"},
			{Chain: "polygon", TargetPrice: decimal.RequireFromString("5"), Email: "high@example.com"},
		} {
			require.NoError(t, s.CreateAlert(ctx, a))
		}

		got, err := s.ListTriggeredAlerts(ctx, "polygon", decimal.RequireFromString("0.9"))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "low@example.com", got[0].Email)
		assert.Equal(t, "mid@example.com", got[1].Email)
	})
}
