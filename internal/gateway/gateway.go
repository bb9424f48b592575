package gateway

import (
	"github.com/mshop/payments/internal/domain"
)

// NotificationWay tells who calls whom when a payment finishes on the
// gateway side: either the gateway notifies the shop, or the shop polls.
type NotificationWay int

const (
	GatewayToShop NotificationWay = iota + 1
	ShopToGateway
)

// Response is the gateway-specific acknowledgement rendered for one
// notification. Every gateway expects its own shape; a wrong shape makes the
// gateway retry indefinitely.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// RedirectRequest carries everything an adapter needs to build the outbound
// checkout redirect.
type RedirectRequest struct {
	PaymentMethod   string            `json:"paymentMethod"`
	Price           domain.Money      `json:"price"`
	Contract        string            `json:"contract"`
	OrderID         string            `json:"orderId"`
	SuccessURL      string            `json:"successUrl"`
	FailURL         string            `json:"failUrl"`
	NotificationURL string            `json:"notificationUrl"`
	Description     string            `json:"description"`
	LanguageCode    string            `json:"languageCode"`
	Tax             *domain.Money     `json:"tax,omitempty"`
	Items           []domain.PaidItem `json:"items,omitempty"`
}

// System is the contract every payment gateway adapter implements. Adapters
// are stateless: any per-notification state is returned explicitly, never
// kept on the adapter.
type System interface {
	Alias() string
	CountryCodes() []string
	SuccessStatusCode() string
	PaymentMethods() []string
	NotificationWay() NotificationWay

	// CanPrintBill reports whether the gateway issues its own fiscal
	// receipt; when false the shop prints one itself.
	CanPrintBill() bool

	// ValidateRequest authenticates the notification (signature, shared
	// secret or source-IP allow-list) independent of parsing.
	ValidateRequest(n domain.Notification) bool

	// PaymentData extracts the normalized payment facts from the raw
	// notification.
	PaymentData(n domain.Notification, countryCode string) (domain.PaymentData, error)

	BuildResponse(resp domain.PaymentResponse) Response

	RedirectData(req RedirectRequest) (domain.RedirectData, error)
}
