package manager

import (
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/domain"
)

// receiptLines turns the order into allocation input: the catalog lines plus
// the delivery pseudo-item, everything in the receipt currency. Order items
// keep their nominal catalog prices; the allocator scales them to the amount
// actually charged.
func receiptLines(order domain.Order, unit currency.Unit) ([]domain.PaidItem, domain.PaidItem) {
	items := make([]domain.PaidItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, domain.PaidItem{
			SKU:   item.SKU,
			Name:  item.Name,
			Price: domain.Money{Amount: item.Price.Amount, Currency: unit},
			Count: item.Count,
		})
	}

	delivery := domain.PaidItem{
		SKU:   domain.SKUDelivery,
		Name:  "Delivery",
		Price: domain.ZeroMoney(unit),
		Count: 1,
	}
	if order.DeliveryPrice != nil {
		delivery.Price = domain.Money{Amount: order.DeliveryPrice.Amount, Currency: unit}
	}

	return items, delivery
}
