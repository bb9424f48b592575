package port

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyPaid     = errors.New("order already paid")
	ErrRateUnavailable = errors.New("exchange rate unavailable")
)

type ExecuteOrderParams struct {
	OrderID       string
	CartID        int64
	Contract      string
	CountryCode   string
	LanguageCode  string
	Amount        domain.Money
	PaymentID     string
	PaymentSystem string
}

// OrderLedger is the source of truth for order existence, status and the
// authoritative amount due. ExecuteOrder must apply the created->paid
// transition atomically: concurrent duplicate notifications settle at most
// once, the losers get ErrAlreadyPaid.
type OrderLedger interface {
	LoadOrder(ctx context.Context, orderID string) (domain.Order, error)

	ExecuteOrder(ctx context.Context, params ExecuteOrderParams) error

	GetExchangeRate(ctx context.Context, orderID string) (decimal.Decimal, error)

	TicketInfo(ctx context.Context, ticketID string) (domain.PaymentTicket, error)

	// DeferredPaymentCompleted settles a deferred bill: a ticket backed by a
	// cart marks its order paid, a bare contract reference credits the
	// payer's account.
	DeferredPaymentCompleted(ctx context.Context, ticketID string, mode int, amount decimal.Decimal, paymentID string) (bool, error)
}

type CartRepository interface {
	LoadByID(ctx context.Context, cartID int64, languageCode string) (domain.Cart, error)
}

type ClientRepository interface {
	Load(ctx context.Context, contract, countryCode string) (domain.Client, error)

	// ClearCache drops the cached account view after a balance change.
	ClearCache(ctx context.Context, contract string) error
}

// CurrencyRates provides cross-rates for the numeric fallback comparison
// when a direct price comparison is not possible.
type CurrencyRates interface {
	Rate(ctx context.Context, from, to currency.Unit) (decimal.Decimal, error)
}

type Receipt struct {
	ID        string
	OrderID   string
	Contact   string
	Total     domain.Money
	Items     []domain.PaidItem
	CreatedAt time.Time
}

// FiscalPrinter issues legally mandated receipts for gateways that cannot
// print their own.
type FiscalPrinter interface {
	CreateBill(ctx context.Context, payment domain.PaymentData, items []domain.PaidItem, customerContact string) (Receipt, error)
	Send(ctx context.Context, receipt Receipt) error
}

// FiscalRegisters resolves the fiscal printer for a country; nil means the
// country has no receipt obligation.
type FiscalRegisters interface {
	ForCountry(countryCode string) FiscalPrinter
}

type FiscalQueue interface {
	Enqueue(ctx context.Context, receipt Receipt) error
}

type DeliveryDispatcher interface {
	CreateRequest(ctx context.Context, companyID string, cart domain.Cart, meta map[string]string) error
}

// TransactionSink forwards settled payment records to external bookkeeping.
type TransactionSink interface {
	AddPaySystem(ctx context.Context, dbAlias string, tx domain.PaymentTransaction) error
}

// AuditTrail keeps raw notification payloads for replay forensics. Advisory:
// failures are logged, never fail the notification.
type AuditTrail interface {
	SaveTransaction(ctx context.Context, key string, n domain.Notification) error
}

type RegistrationService interface {
	// RegistrationFee returns the due fee for a new contract in a country.
	RegistrationFee(ctx context.Context, contract, countryCode string) (domain.Money, error)

	ConfirmRegistrationPay(ctx context.Context, contract string) (bool, error)
}
