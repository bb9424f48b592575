package billing_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/billing"
	"github.com/mshop/payments/internal/domain"
)

func item(sku, price string, count int, unit currency.Unit) domain.PaidItem {
	return domain.PaidItem{
		SKU:   sku,
		Name:  sku,
		Price: domain.Money{Amount: decimal.RequireFromString(price), Currency: unit},
		Count: count,
	}
}

func deliveryItem(price string, unit currency.Unit) domain.PaidItem {
	return item(domain.SKUDelivery, price, 1, unit)
}

func money(amount string, unit currency.Unit) domain.Money {
	return domain.Money{Amount: decimal.RequireFromString(amount), Currency: unit}
}

func TestAllocate(t *testing.T) {
	eur := currency.EUR
	usd := currency.USD
	jpy := currency.JPY
	bhd := currency.MustParseISO("BHD")

	tests := []struct {
		name     string
		items    []domain.PaidItem
		delivery domain.PaidItem
		charged  domain.Money
		want     []domain.PaidItem
	}{
		{
			name: "discount splits evenly, no residue",
			items: []domain.PaidItem{
				item("A", "100.00", 2, eur),
				item("B", "50.00", 1, eur),
			},
			delivery: deliveryItem("10.00", eur),
			charged:  money("245.00", eur),
			want: []domain.PaidItem{
				item("A", "94.23", 2, eur),
				item("B", "47.12", 1, eur),
				deliveryItem("9.42", eur),
			},
		},
		{
			name: "positive residue goes to delivery even when delivery was free",
			items: []domain.PaidItem{
				item("A", "33.33", 3, usd),
			},
			delivery: deliveryItem("0", usd),
			charged:  money("100.00", usd),
			want: []domain.PaidItem{
				item("A", "33.33", 3, usd),
				deliveryItem("0.01", usd),
			},
		},
		{
			name: "delivery absorbs a negative residue it can cover",
			items: []domain.PaidItem{
				item("A", "10.00", 1, usd),
				item("B", "10.00", 1, usd),
			},
			delivery: deliveryItem("5.00", usd),
			charged:  money("24.99", usd),
			want: []domain.PaidItem{
				item("A", "10.00", 1, usd),
				item("B", "10.00", 1, usd),
				deliveryItem("4.99", usd),
			},
		},
		{
			name: "single-count item absorbs residue directly",
			items: []domain.PaidItem{
				item("A", "2.00", 1, usd),
				item("B", "2.00", 1, usd),
			},
			delivery: deliveryItem("0", usd),
			charged:  money("3.99", usd),
			want: []domain.PaidItem{
				item("A", "1.99", 1, usd),
				item("B", "2.00", 1, usd),
				deliveryItem("0", usd),
			},
		},
		{
			name: "multi-count item splits one discounted unit off",
			items: []domain.PaidItem{
				item("A", "1", 1, jpy),
				item("B", "3", 3, jpy),
			},
			delivery: deliveryItem("0", jpy),
			charged:  money("5", jpy),
			want: []domain.PaidItem{
				item("B", "0", 1, jpy),
				item("A", "1", 1, jpy),
				item("B", "2", 2, jpy),
				deliveryItem("0", jpy),
			},
		},
		{
			name: "first item takes the hit when nothing covers the residue",
			items: []domain.PaidItem{
				item("A", "1", 1, jpy),
				item("B", "1", 1, jpy),
				item("C", "1", 1, jpy),
				item("D", "1", 1, jpy),
			},
			delivery: deliveryItem("0", jpy),
			charged:  money("2", jpy),
			want: []domain.PaidItem{
				item("A", "-1", 1, jpy),
				item("B", "1", 1, jpy),
				item("C", "1", 1, jpy),
				item("D", "1", 1, jpy),
				deliveryItem("0", jpy),
			},
		},
		{
			name: "three-decimal currency rounds at its own scale",
			items: []domain.PaidItem{
				item("A", "0.100", 3, bhd),
				item("B", "0.205", 1, bhd),
			},
			delivery: deliveryItem("0.100", bhd),
			charged:  money("0.600", bhd),
			want: []domain.PaidItem{
				item("A", "0.099", 3, bhd),
				item("B", "0.203", 1, bhd),
				deliveryItem("0.100", bhd),
			},
		},
		{
			name: "first item rounded down to nothing",
			items: []domain.PaidItem{
				item("A", "1", 1, jpy),
				item("B", "3", 3, jpy),
			},
			delivery: deliveryItem("0", jpy),
			charged:  money("6", jpy),
			want: []domain.PaidItem{
				item("A", "0", 1, jpy),
				item("B", "2", 3, jpy),
				deliveryItem("0", jpy),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := billing.Allocate(tt.items, tt.delivery, tt.charged)
			require.NoError(t, err)

			assertPaidItems(t, tt.want, got)

			// whatever the branch, the invariant is the same: the lines sum
			// to the charged total exactly
			total := billing.Total(got, tt.charged.Currency)
			assert.True(t, total.Amount.Equal(tt.charged.Round().Amount),
				"total %s != charged %s", total, tt.charged)
		})
	}
}

func TestAllocate_ZeroNominalSum(t *testing.T) {
	usd := currency.USD

	_, err := billing.Allocate(nil, deliveryItem("0", usd), money("10.00", usd))
	require.ErrorIs(t, err, billing.ErrZeroNominalSum)
}

func assertPaidItems(t *testing.T, expected, actual []domain.PaidItem) {
	t.Helper()

	decimalComparer := cmp.Comparer(func(x, y decimal.Decimal) bool {
		return x.Equal(y)
	})
	currencyComparer := cmp.Comparer(func(x, y currency.Unit) bool {
		return x.String() == y.String()
	})

	diff := cmp.Diff(expected, actual, decimalComparer, currencyComparer)
	assert.Empty(t, diff)
}
