package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/domain"
)

var ErrZeroNominalSum = errors.New("nominal sum is zero")

// Allocate distributes the actually charged total across the bill's line
// items plus the delivery pseudo-item, so that sum(price*count) equals the
// charged total exactly at the currency's scale. The nominal catalog sum may
// differ from the charged total because of promotional discounts; every item
// is scaled by charged/nominal and the rounding residue is compensated.
//
// Residue handling is deliberately asymmetric and must stay that way, fiscal
// receipts were reconciled against it for years: a positive residue, or a
// negative one the delivery price can absorb, goes to delivery; otherwise it
// is absorbed by the first item whose price covers it (falling back to the
// first item), splitting one unit off when the item counts more than one.
func Allocate(items []domain.PaidItem, delivery domain.PaidItem, charged domain.Money) ([]domain.PaidItem, error) {
	paidItems := make([]domain.PaidItem, 0, len(items)+1)
	paidItems = append(paidItems, items...)
	paidItems = append(paidItems, delivery)

	deliveryIdx := len(paidItems) - 1

	nominalSum := decimal.Zero
	for _, item := range paidItems {
		nominalSum = nominalSum.Add(item.Price.Amount.Mul(decimal.NewFromInt(int64(item.Count))))
	}

	if nominalSum.IsZero() {
		return nil, fmt.Errorf("charged[%s]: %w", charged, ErrZeroNominalSum)
	}

	ratio := charged.Amount.Div(nominalSum)

	discountedSum := decimal.Zero
	for i := range paidItems {
		discounted := paidItems[i].Price.Mul(ratio).Round()
		paidItems[i].Price = discounted
		discountedSum = discountedSum.Add(discounted.Amount.Mul(decimal.NewFromInt(int64(paidItems[i].Count))))
	}

	difference := charged.Amount.Sub(discountedSum).Round(charged.Decimals())

	deliveryValue := paidItems[deliveryIdx].Price.Amount

	if difference.IsPositive() || deliveryValue.GreaterThan(difference.Abs()) {
		paidItems[deliveryIdx].Price = paidItems[deliveryIdx].Price.Add(difference)
		return paidItems, nil
	}

	targetIdx := 0
	if paidItems[targetIdx].Price.Amount.LessThan(difference.Abs()) {
		for i, item := range paidItems {
			if item.Price.Amount.GreaterThanOrEqual(difference.Abs()) {
				targetIdx = i
				break
			}
		}
	}

	if paidItems[targetIdx].Count == 1 {
		paidItems[targetIdx].Price = paidItems[targetIdx].Price.Add(difference)
		return paidItems, nil
	}

	paidItems[targetIdx].Count--

	discountedUnit := paidItems[targetIdx]
	discountedUnit.Count = 1
	discountedUnit.Price = discountedUnit.Price.Add(difference)

	result := make([]domain.PaidItem, 0, len(paidItems)+1)
	result = append(result, discountedUnit)
	result = append(result, paidItems...)

	return result, nil
}

// Total is sum(price*count) over the items, at the currency's scale.
func Total(items []domain.PaidItem, unit currency.Unit) domain.Money {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Amount.Mul(decimal.NewFromInt(int64(item.Count))))
	}

	return domain.Money{Amount: total, Currency: unit}.Round()
}
