package domain

// PaidItem is one billable line of a payment: a product, a kit, the delivery
// pseudo-item or the registration fee. It is used both for checkout display
// and for fiscal receipt composition.
type PaidItem struct {
	SKU   string `json:"sku"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
	Count int    `json:"count"`
}

const (
	// SKUDelivery marks the delivery pseudo-item appended to every bill.
	SKUDelivery = "DELIVERY"

	// SKURegistration marks the single line of a registration payment.
	SKURegistration = "REGISTRATION"
)
