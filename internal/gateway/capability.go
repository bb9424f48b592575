package gateway

import (
	"context"

	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/domain"
)

// Optional facets a System may additionally implement. The orchestrator
// probes for each via interface assertion.

// CurrencyConstrained marks a gateway that can settle in one fixed currency
// only; order prices are converted to and from it around the adapter call.
type CurrencyConstrained interface {
	AvailableCurrency() currency.Unit
}

// DeferredBill marks a gateway that settles against a pre-issued ticket or
// account rather than a live order (bill-payment terminals, top-ups).
type DeferredBill interface {
	// ResolveDeferred applies the gateway's business rules to the ticket and
	// returns the verdict plus the protocol step, threaded explicitly so the
	// adapter stays safe for concurrent reuse.
	ResolveDeferred(n domain.Notification, ticket domain.PaymentTicket) domain.DeferredResult

	AccountParam() string
	AmountParam() string
	PaymentIDParam() string
}

// OnlyNotificationURL marks a gateway that cannot route separate URLs for
// order and registration notifications; the payload is sniffed instead.
type OnlyNotificationURL interface {
	OnlyNotificationURL()
}

// Confirmer marks a gateway that requires a second confirmation call after a
// successful settlement before the transaction is finally closed.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, n domain.Notification) error
}

// TransactionReporter marks a gateway that can build a settled-transaction
// record for external bookkeeping.
type TransactionReporter interface {
	DBAlias() string
	BuildTransaction(data domain.PaymentData) domain.PaymentTransaction
}
