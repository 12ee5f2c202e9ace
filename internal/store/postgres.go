package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	domain "coinwatch/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
// Prices travel as NUMERIC and are scanned through their text representation
// into decimal.Decimal.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// InsertSample appends a new price sample.
func (s *PostgresStore) InsertSample(ctx context.Context, sample *domain.PriceSample) error {
	args := pgx.NamedArgs{
		"chain":     sample.Chain,
		"price":     sample.Price.String(),
		"timestamp": sample.Timestamp,
	}

	if err := s.pool.QueryRow(ctx, queryInsertSample, args).Scan(&sample.ID); err != nil {
		return fmt.Errorf("inserting price sample: %w", err)
	}
	return nil
}

// LatestSampleBetween returns the latest sample for chain with timestamp
// strictly inside (after, before).
func (s *PostgresStore) LatestSampleBetween(
	ctx context.Context,
	chain string,
	after, before time.Time,
) (*domain.PriceSample, error) {
	sample := &domain.PriceSample{}
	var priceStr string

	err := s.pool.QueryRow(ctx, queryLatestSampleBetween, chain, after, before).Scan(
		&sample.ID, &sample.Chain, &priceStr, &sample.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying latest sample: %w", err)
	}

	if sample.Price, err = decimal.NewFromString(priceStr); err != nil {
		return nil, fmt.Errorf("parsing sample price: %w", err)
	}

	return sample, nil
}

// HourlyMaxPrices returns per-hour, per-chain peak prices since the given time.
func (s *PostgresStore) HourlyMaxPrices(
	ctx context.Context,
	since time.Time,
) ([]domain.HourlyPrice, error) {
	rows, err := s.pool.Query(ctx, queryHourlyMaxPrices, since)
	if err != nil {
		return nil, fmt.Errorf("querying hourly prices: %w", err)
	}
	defer rows.Close()

	var results []domain.HourlyPrice
	for rows.Next() {
		var hp domain.HourlyPrice
		var priceStr string
		if err := rows.Scan(&hp.Hour, &hp.Chain, &priceStr); err != nil {
			return nil, fmt.Errorf("scanning hourly price: %w", err)
		}
		if hp.HighestPrice, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parsing hourly price: %w", err)
		}
		results = append(results, hp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hourly prices: %w", err)
	}

	return results, nil
}

// GetAlert retrieves the alert registered for (chain, email).
func (s *PostgresStore) GetAlert(ctx context.Context, chain, email string) (*domain.Alert, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx, queryGetAlert, chain, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying alert: %w", err)
	}
	return a, nil
}

// CreateAlert inserts a new alert registration.
func (s *PostgresStore) CreateAlert(ctx context.Context, a *domain.Alert) error {
	args := pgx.NamedArgs{
		"chain":        a.Chain,
		"target_price": a.TargetPrice.String(),
		"email":        a.Email,
	}

	err := s.pool.QueryRow(ctx, queryCreateAlert, args).Scan(
		&a.ID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating alert: %w", err)
	}
	return nil
}

// UpdateAlertPrice overwrites the target price of an existing alert.
func (s *PostgresStore) UpdateAlertPrice(
	ctx context.Context,
	id string,
	target decimal.Decimal,
) error {
	tag, err := s.pool.Exec(ctx, queryUpdateAlertPrice, id, target.String())
	if err != nil {
		return fmt.Errorf("updating alert price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTriggeredAlerts returns all alerts for chain with target_price <= price.
func (s *PostgresStore) ListTriggeredAlerts(
	ctx context.Context,
	chain string,
	price decimal.Decimal,
) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, queryListTriggeredAlerts, chain, price.String())
	if err != nil {
		return nil, fmt.Errorf("querying triggered alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}

	return alerts, nil
}

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	a := &domain.Alert{}
	var targetStr string

	if err := row.Scan(
		&a.ID, &a.Chain, &targetStr, &a.Email, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	target, err := decimal.NewFromString(targetStr)
	if err != nil {
		return nil, fmt.Errorf("parsing alert target price: %w", err)
	}
	a.TargetPrice = target

	return a, nil
}
