package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var ErrCurrencyMismatch = errors.New("currency mismatch")

// Money is an amount in a single currency. The amount is kept at arbitrary
// precision; Round snaps it to the currency's scale.
type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

func NewMoney(amount decimal.Decimal, unit currency.Unit) Money {
	return Money{Amount: amount, Currency: unit}
}

func ZeroMoney(unit currency.Unit) Money {
	return Money{Amount: decimal.Zero, Currency: unit}
}

// Decimals returns the number of fraction digits of the currency,
// i.e. 2 for USD, 0 for JPY, 3 for BHD.
func (m Money) Decimals() int32 {
	scale, _ := currency.Standard.Rounding(m.Currency)
	return int32(scale)
}

func (m Money) Round() Money {
	return Money{Amount: m.Amount.Round(m.Decimals()), Currency: m.Currency}
}

func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

func (m Money) Add(delta decimal.Decimal) Money {
	return Money{Amount: m.Amount.Add(delta), Currency: m.Currency}
}

func (m Money) Sub(delta decimal.Decimal) Money {
	return Money{Amount: m.Amount.Sub(delta), Currency: m.Currency}
}

// Cmp compares two amounts at the currency's scale.
// Amounts in different currencies are not comparable directly,
// callers fall back to converting both sides to a reference currency.
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}

	return m.Amount.Round(m.Decimals()).Cmp(other.Amount.Round(other.Decimals())), nil
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

func (m Money) String() string {
	return m.Amount.StringFixed(m.Decimals()) + " " + m.Currency.String()
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return jsonMarshal(moneyJSON{Amount: m.Amount, Currency: m.Currency.String()})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := jsonUnmarshal(data, &raw); err != nil {
		return fmt.Errorf("jsonUnmarshal: %w", err)
	}

	unit, err := currency.ParseISO(raw.Currency)
	if err != nil {
		return fmt.Errorf("currency[%s] is not valid: %w", raw.Currency, err)
	}

	m.Amount = raw.Amount
	m.Currency = unit

	return nil
}
