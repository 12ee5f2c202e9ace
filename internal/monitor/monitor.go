// Package monitor implements the price monitoring and alerting engine:
// the scheduled polling loop, surge detection, alert registration and
// matching, hourly aggregation, and the swap-rate calculation.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"coinwatch/internal/market"
	"coinwatch/internal/metrics"
	"coinwatch/internal/notify"
	"coinwatch/internal/store"
	domain "coinwatch/pkg/types"
)

// Defaults applied when no option overrides them.
var (
	defaultChains         = []string{"ethereum", "polygon"}
	defaultSurgeThreshold = decimal.RequireFromString("1.03")
	defaultSurgeWindow    = time.Hour
	defaultFeeRate        = decimal.RequireFromString("0.03")
)

// Monitor orchestrates per-chain fetch, persist, surge detection, and
// alert matching.
type Monitor struct {
	store    store.Store
	market   market.Client
	notifier notify.Notifier
	log      *slog.Logger

	chains         []string
	surgeThreshold decimal.Decimal
	surgeWindow    time.Duration
	adminEmail     string

	swapSource string
	swapTarget string
	feeRate    decimal.Decimal

	now func() time.Time
}

// NewMonitor creates a new Monitor with injected dependencies.
func NewMonitor(
	s store.Store,
	m market.Client,
	n notify.Notifier,
	opts ...Option,
) *Monitor {
	mon := &Monitor{
		store:          s,
		market:         m,
		notifier:       n,
		log:            slog.Default(),
		chains:         defaultChains,
		surgeThreshold: defaultSurgeThreshold,
		surgeWindow:    defaultSurgeWindow,
		swapSource:     "ethereum",
		swapTarget:     "bitcoin",
		feeRate:        defaultFeeRate,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(mon)
	}
	return mon
}

// Option configures the Monitor.
type Option func(*Monitor)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		m.log = l
	}
}

// WithChains sets the tracked chains.
func WithChains(chains []string) Option {
	return func(m *Monitor) {
		m.chains = chains
	}
}

// WithSurgeThreshold sets the surge multiplier (e.g. 1.03 for +3%).
func WithSurgeThreshold(threshold float64) Option {
	return func(m *Monitor) {
		m.surgeThreshold = decimal.NewFromFloat(threshold)
	}
}

// WithSurgeWindow sets the lookback window for the surge reference sample.
func WithSurgeWindow(d time.Duration) Option {
	return func(m *Monitor) {
		m.surgeWindow = d
	}
}

// WithAdminEmail sets the destination for surge notifications.
func WithAdminEmail(email string) Option {
	return func(m *Monitor) {
		m.adminEmail = email
	}
}

// WithSwapAssets sets the source and target assets for swap-rate quotes.
func WithSwapAssets(source, target string) Option {
	return func(m *Monitor) {
		m.swapSource = source
		m.swapTarget = target
	}
}

// WithFeeRate sets the swap fee rate (e.g. 0.03 for 3%).
func WithFeeRate(rate float64) Option {
	return func(m *Monitor) {
		m.feeRate = decimal.NewFromFloat(rate)
	}
}

// WithNowFunc overrides the clock. Used in tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(m *Monitor) {
		m.now = fn
	}
}

// RunTick executes one monitoring cycle: for each tracked chain, fetch the
// current price, persist a sample, and run the surge and alert checks.
// Chains are processed sequentially; a failure for one chain never aborts
// the remaining chains.
func (m *Monitor) RunTick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	tickTime := m.now()

	for _, chain := range m.chains {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := m.processChain(ctx, chain, tickTime); err != nil {
			m.log.Error("chain processing failed", "chain", chain, "error", err)
			metrics.TickChainErrorsTotal.Inc()
			continue
		}
	}

	return nil
}

func (m *Monitor) processChain(ctx context.Context, chain string, tickTime time.Time) error {
	price, found := m.market.FetchPrice(ctx, chain)
	if !found {
		m.log.Warn("price unavailable, skipping chain", "chain", chain)
		metrics.PriceNotFoundTotal.Inc()
		return nil
	}

	sample := &domain.PriceSample{
		Chain:     chain,
		Price:     price,
		Timestamp: tickTime,
	}
	if err := m.store.InsertSample(ctx, sample); err != nil {
		return fmt.Errorf("persisting sample: %w", err)
	}
	metrics.SamplesWrittenTotal.Inc()

	m.log.Debug("sample written", "chain", chain, "price", price.String())

	m.checkSurge(ctx, chain, price, tickTime)
	m.checkAlerts(ctx, chain, price)

	return nil
}

// checkSurge compares the current price against the most recent sample
// strictly inside (tickTime - surgeWindow, tickTime) and notifies the
// administrative destination when the price exceeds reference x threshold.
// The boundary is exclusive: exactly threshold x reference does not fire.
func (m *Monitor) checkSurge(
	ctx context.Context,
	chain string,
	current decimal.Decimal,
	tickTime time.Time,
) {
	ref, err := m.store.LatestSampleBetween(
		ctx, chain,
		tickTime.Add(-m.surgeWindow), tickTime,
	)
	if errors.Is(err, store.ErrNotFound) {
		// First run, or a gap longer than the window. Nothing to compare.
		return
	}
	if err != nil {
		m.log.Error("surge reference lookup failed", "chain", chain, "error", err)
		return
	}

	if !current.GreaterThan(ref.Price.Mul(m.surgeThreshold)) {
		return
	}

	msg := notify.Message{
		To:      m.adminEmail,
		Subject: fmt.Sprintf("%s price surge detected", chain),
		Body: fmt.Sprintf(
			"%s surged to %s USD (reference: %s USD at %s)",
			chain,
			current.String(),
			ref.Price.String(),
			ref.Timestamp.UTC().Format(time.RFC3339),
		),
	}
	if err := m.notifier.Send(ctx, msg); err != nil {
		m.log.Error("surge notification failed", "chain", chain, "error", err)
		metrics.NotificationFailuresTotal.Inc()
		return
	}

	metrics.SurgeAlertsTotal.Inc()
	m.log.Info("surge notification sent",
		"chain", chain,
		"current", current.String(),
		"reference", ref.Price.String(),
	)
}

// checkAlerts fires every registered alert for chain whose target price has
// been reached or exceeded. Firing is not suppressed: a qualifying alert
// fires again on every subsequent qualifying tick.
func (m *Monitor) checkAlerts(ctx context.Context, chain string, current decimal.Decimal) {
	alerts, err := m.store.ListTriggeredAlerts(ctx, chain, current)
	if err != nil {
		m.log.Error("triggered alert lookup failed", "chain", chain, "error", err)
		return
	}

	for i := range alerts {
		a := &alerts[i]
		msg := notify.Message{
			To:      a.Email,
			Subject: fmt.Sprintf("%s price alert triggered", chain),
			Body: fmt.Sprintf(
				"%s reached your target price of %s USD (current: %s USD)",
				chain,
				a.TargetPrice.String(),
				current.String(),
			),
		}
		if err := m.notifier.Send(ctx, msg); err != nil {
			m.log.Error("alert notification failed",
				"chain", chain,
				"email", a.Email,
				"error", err,
			)
			metrics.NotificationFailuresTotal.Inc()
			continue
		}
		metrics.AlertsFiredTotal.Inc()
	}
}

// SetAlert registers or updates the alert identified by (chain, email).
// An existing registration has its target price overwritten; otherwise a
// new alert is inserted. Last write wins.
func (m *Monitor) SetAlert(
	ctx context.Context,
	chain string,
	target decimal.Decimal,
	email string,
) (*domain.Alert, error) {
	existing, err := m.store.GetAlert(ctx, chain, email)
	switch {
	case err == nil:
		if err := m.store.UpdateAlertPrice(ctx, existing.ID, target); err != nil {
			return nil, fmt.Errorf("updating alert: %w", err)
		}
		existing.TargetPrice = target
		return existing, nil

	case errors.Is(err, store.ErrNotFound):
		a := &domain.Alert{
			Chain:       chain,
			TargetPrice: target,
			Email:       email,
		}
		if err := m.store.CreateAlert(ctx, a); err != nil {
			return nil, fmt.Errorf("creating alert: %w", err)
		}
		return a, nil

	default:
		return nil, fmt.Errorf("looking up alert: %w", err)
	}
}

// HourlyPrices returns per-hour, per-chain peak prices over the trailing
// 24 hours, ordered by hour ascending then chain ascending.
func (m *Monitor) HourlyPrices(ctx context.Context) ([]domain.HourlyPrice, error) {
	return m.store.HourlyMaxPrices(ctx, m.now().Add(-24*time.Hour))
}
