// Package store defines the datastore abstraction for coinwatch.
// All business logic depends on the Store interface, never on concrete
// implementations. This enables in-memory testing without a running database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	domain "coinwatch/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines all data access operations for coinwatch.
//
// Price samples are append-only: InsertSample never updates or deletes.
// Alert uniqueness per (chain, email) is enforced by the caller via
// GetAlert + CreateAlert/UpdateAlertPrice, not by a store constraint.
type Store interface {
	// Samples
	InsertSample(ctx context.Context, s *domain.PriceSample) error
	// LatestSampleBetween returns the sample for chain with the greatest
	// timestamp strictly inside (after, before). ErrNotFound when the
	// window is empty.
	LatestSampleBetween(
		ctx context.Context,
		chain string,
		after, before time.Time,
	) (*domain.PriceSample, error)
	// HourlyMaxPrices returns per-hour, per-chain peak prices for samples
	// with timestamp after since, ordered by hour ascending then chain
	// ascending.
	HourlyMaxPrices(ctx context.Context, since time.Time) ([]domain.HourlyPrice, error)

	// Alerts
	GetAlert(ctx context.Context, chain, email string) (*domain.Alert, error)
	CreateAlert(ctx context.Context, a *domain.Alert) error
	UpdateAlertPrice(ctx context.Context, id string, target decimal.Decimal) error
	// ListTriggeredAlerts returns all alerts for chain whose target price
	// is less than or equal to price.
	ListTriggeredAlerts(
		ctx context.Context,
		chain string,
		price decimal.Decimal,
	) ([]domain.Alert, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
