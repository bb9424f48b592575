package converter

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/port"
)

// Convert moves a price into the target currency with the given rate. A
// price already in the target currency passes through untouched.
func Convert(p domain.Money, to currency.Unit, rate decimal.Decimal) domain.Money {
	if p.Currency == to {
		return p
	}

	return domain.Money{Amount: p.Amount.Mul(rate), Currency: to}.Round()
}

// Revert converts backwards with the inverse rate: from the gateway's
// settlement currency into the order's native currency. A zero rate is
// treated as 1.
func Revert(p domain.Money, to currency.Unit, rate decimal.Decimal) domain.Money {
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	if p.Currency == to {
		return p
	}

	return domain.Money{Amount: p.Amount.Div(rate), Currency: to}.Round()
}

// Converter resolves cross-currency comparisons via a reference currency
// when a direct comparison is impossible.
type Converter struct {
	rates     port.CurrencyRates
	reference currency.Unit
}

func New(rates port.CurrencyRates, reference currency.Unit) Converter {
	return Converter{rates: rates, reference: reference}
}

func (c Converter) Reference() currency.Unit {
	return c.reference
}

// ToReference converts a price into the reference currency using the stored
// cross-rate.
func (c Converter) ToReference(ctx context.Context, p domain.Money) (domain.Money, error) {
	if p.Currency == c.reference {
		return p, nil
	}

	rate, err := c.rates.Rate(ctx, p.Currency, c.reference)
	if err != nil {
		return domain.Money{}, fmt.Errorf("rates.Rate[%s->%s]: %w", p.Currency, c.reference, err)
	}

	return Convert(p, c.reference, rate), nil
}
