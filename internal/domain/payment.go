package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentData is the normalized set of facts a gateway adapter extracts from
// an inbound notification. It is built once per notification and consumed by
// the reconciliation flow.
type PaymentData struct {
	OrderID      string `json:"orderId"`
	Contract     string `json:"contract"`
	LanguageCode string `json:"languageCode"`
	Price        Money  `json:"price"`
	PaymentID    string `json:"paymentId"`
	Status       string `json:"status"`
	Hash         string `json:"hash"`
	Method       string `json:"method"`
}

// PaymentTicket is a deferred bill awaiting offline completion, pre-issued
// for a cart-backed order or referencing a payer's account for a top-up.
type PaymentTicket struct {
	ID            string
	CartID        int64
	Sum           decimal.Decimal
	Contract      string
	PaymentSystem string
}

// PaymentTransaction is a settled payment record forwarded to the external
// bookkeeping sink by gateways that support reporting.
type PaymentTransaction struct {
	ID       string
	OrderID  string
	Sum      decimal.Decimal
	Currency string
	Type     int
	Date     time.Time
	Tip      decimal.Decimal
}

type RedirectMethod string

const (
	RedirectMethodGet  RedirectMethod = "get"
	RedirectMethodPost RedirectMethod = "post"
)

type RedirectParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RedirectData tells the caller how to send the payer to the gateway:
// either a plain redirect or an auto-submitting form. Parameter order is
// significant for gateways that sign the serialized form.
type RedirectData struct {
	URL    string          `json:"url"`
	Params []RedirectParam `json:"params,omitempty"`
	Method RedirectMethod  `json:"method"`
}
