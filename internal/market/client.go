// Package market provides the market-data provider client abstracted behind
// an interface for testability.
package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// Client fetches current spot prices for named assets. FetchPrice returns
// found=false both when the asset is absent from the provider snapshot and
// when the provider call fails; the caller treats the two identically and
// the next scheduled tick is the implicit retry.
type Client interface {
	FetchPrice(ctx context.Context, name string) (decimal.Decimal, bool)
}
