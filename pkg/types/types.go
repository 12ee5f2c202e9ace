// Package domain defines the core business types for coinwatch.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSample is a single observed spot price for a chain. Samples are
// append-only: one per tracked chain per successful scheduler tick.
type PriceSample struct {
	ID        string          `json:"id"        db:"id"`
	Chain     string          `json:"chain"     db:"chain"`
	Price     decimal.Decimal `json:"price"     db:"price"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// Alert is a persisted price-target registration. At most one Alert exists
// per (chain, email) pair; re-registering overwrites the target price.
// Alerts are never auto-deleted and re-fire on every qualifying tick.
type Alert struct {
	ID          string          `json:"id"           db:"id"`
	Chain       string          `json:"chain"        db:"chain"`
	TargetPrice decimal.Decimal `json:"target_price" db:"target_price"`
	Email       string          `json:"email"        db:"email"`
	CreatedAt   time.Time       `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"   db:"updated_at"`
}

// HourlyPrice is one row of the hourly aggregation: the peak price observed
// for a chain within a one-hour bucket.
type HourlyPrice struct {
	Hour         time.Time       `json:"hour"          db:"hour"`
	Chain        string          `json:"chain"         db:"chain"`
	HighestPrice decimal.Decimal `json:"highest_price" db:"highest_price"`
}

// SwapQuote is the result of a cross-asset swap-rate calculation computed
// from live rates.
type SwapQuote struct {
	TargetAmount decimal.Decimal `json:"target_amount"`
	TotalFee     decimal.Decimal `json:"total_fee"`
}
