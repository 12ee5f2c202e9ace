package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	domain "coinwatch/pkg/types"
)

// ErrMissingRate is returned when a live rate needed for a swap quote
// cannot be fetched from the market provider.
var ErrMissingRate = errors.New("live rate unavailable")

// SwapRate quotes a conversion of amount units of the source asset into the
// target asset, using live provider rates only. The fee is charged on the
// source amount and expressed in USD.
func (m *Monitor) SwapRate(ctx context.Context, amount decimal.Decimal) (*domain.SwapQuote, error) {
	sourceRate, found := m.market.FetchPrice(ctx, m.swapSource)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrMissingRate, m.swapSource)
	}

	targetRate, found := m.market.FetchPrice(ctx, m.swapTarget)
	if !found || targetRate.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrMissingRate, m.swapTarget)
	}

	return &domain.SwapQuote{
		TargetAmount: amount.Mul(sourceRate).Div(targetRate),
		TotalFee:     amount.Mul(m.feeRate).Mul(sourceRate),
	}, nil
}
