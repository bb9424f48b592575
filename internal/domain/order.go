package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID           string
	CartID       int64
	Contract     string
	CountryCode  string
	LanguageCode string
	Status       OrderStatus

	// DueAmount is the authoritative sum the payer owes, in the order's
	// native currency.
	DueAmount Money

	// ExchangeRate is the rate to the reference currency stored when the
	// order was placed; zero when the order never needed conversion.
	ExchangeRate decimal.Decimal

	DeliveryPrice *Money
	Items         []OrderItem

	PaymentID     string
	PaymentSystem string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	SKU   string
	Name  string
	Price Money
	Count int

	// Kit marks a promotional bundle line.
	Kit bool
}

type Cart struct {
	ID              int64
	OrderID         string
	Contract        string
	LanguageCode    string
	DeliveryCompany string
}

type Client struct {
	Contract    string
	Email       string
	CountryCode string
}
