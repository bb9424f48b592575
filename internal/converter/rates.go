package converter

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mshop/payments/internal/port"
)

// RateCache memoizes the per-order exchange rate stored in the ledger. Its
// lifetime is one notification processing: create it when a notification
// arrives, drop it with the response. Rates are immutable once fetched for
// an order, so no locking is needed within that scope.
type RateCache struct {
	ledger port.OrderLedger
	rates  map[string]decimal.Decimal
}

func NewRateCache(ledger port.OrderLedger) *RateCache {
	return &RateCache{
		ledger: ledger,
		rates:  make(map[string]decimal.Decimal),
	}
}

// Rate returns the exchange rate recorded on the order. A missing rate makes
// amount verification impossible and is fatal to the notification.
func (c *RateCache) Rate(ctx context.Context, orderID string) (decimal.Decimal, error) {
	if rate, ok := c.rates[orderID]; ok {
		return rate, nil
	}

	rate, err := c.ledger.GetExchangeRate(ctx, orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger.GetExchangeRate[%s]: %w", orderID, err)
	}

	c.rates[orderID] = rate

	return rate, nil
}
