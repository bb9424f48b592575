package repository_test

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/goleak"
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/port"
	"github.com/mshop/payments/internal/repository"
)

type orderLedgerSuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	ledger    port.OrderLedger
	container testcontainers.Container
}

func TestOrderLedgerSuite(t *testing.T) {
	defer goleak.VerifyNone(t)

	suite.Run(t, new(orderLedgerSuite))
}

func (suite *orderLedgerSuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = startPostgres(ctx)
	suite.NoError(err)

	suite.pool, err = pgxpool.New(ctx, connStr)
	suite.NoError(err)

	suite.ledger = repository.NewOrderLedger(suite.pool)
}

func (suite *orderLedgerSuite) TearDownSuite() {
	ctx := suite.T().Context()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func (suite *orderLedgerSuite) insertOrder(ctx context.Context, order domain.Order, rate string) {
	suite.T().Helper()

	var deliveryPrice *decimal.Decimal
	if order.DeliveryPrice != nil {
		deliveryPrice = &order.DeliveryPrice.Amount
	}

	_, err := suite.pool.Exec(ctx, `
		INSERT INTO orders (id, cart_id, contract, country_code, language_code, status,
		                    due_amount, currency, exchange_rate, delivery_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		order.ID, order.CartID, order.Contract, order.CountryCode, order.LanguageCode,
		order.Status, order.DueAmount.Amount, order.DueAmount.Currency.String(),
		rate, deliveryPrice)
	suite.Require().NoError(err)

	for _, item := range order.Items {
		_, err := suite.pool.Exec(ctx, `
			INSERT INTO order_items (order_id, sku, name, price, count, kit)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, item.SKU, item.Name, item.Price.Amount, item.Count, item.Kit)
		suite.Require().NoError(err)
	}
}

func fakeOrder() domain.Order {
	unit := currency.EUR
	orderID := gofakeit.UUID()

	return domain.Order{
		ID:           orderID,
		CartID:       int64(gofakeit.Number(1, 1_000_000)),
		Contract:     gofakeit.DigitN(8),
		CountryCode:  "by",
		LanguageCode: "en",
		Status:       domain.OrderStatusCreated,
		DueAmount:    domain.Money{Amount: decimal.RequireFromString("245.00"), Currency: unit},
		DeliveryPrice: &domain.Money{
			Amount:   decimal.RequireFromString("10.00"),
			Currency: unit,
		},
		Items: []domain.OrderItem{
			{SKU: "A", Name: "item a", Price: domain.Money{Amount: decimal.RequireFromString("100.00"), Currency: unit}, Count: 2},
			{SKU: "B", Name: "item b", Price: domain.Money{Amount: decimal.RequireFromString("50.00"), Currency: unit}, Count: 1, Kit: true},
		},
	}
}

func (suite *orderLedgerSuite) TestLoadOrder() {
	t := suite.T()
	ctx := t.Context()

	order := fakeOrder()
	suite.insertOrder(ctx, order, "98.7654")

	loaded, err := suite.ledger.LoadOrder(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, order.ID, loaded.ID)
	assert.Equal(t, order.CartID, loaded.CartID)
	assert.Equal(t, domain.OrderStatusCreated, loaded.Status)
	assert.True(t, loaded.DueAmount.Amount.Equal(order.DueAmount.Amount))
	assert.Equal(t, "EUR", loaded.DueAmount.Currency.String())
	assert.True(t, loaded.ExchangeRate.Equal(decimal.RequireFromString("98.7654")))

	require.NotNil(t, loaded.DeliveryPrice)
	assert.True(t, loaded.DeliveryPrice.Amount.Equal(order.DeliveryPrice.Amount))

	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "A", loaded.Items[0].SKU)
	assert.Equal(t, 2, loaded.Items[0].Count)
	assert.True(t, loaded.Items[1].Kit)
}

func (suite *orderLedgerSuite) TestLoadOrder_NotFound() {
	t := suite.T()

	_, err := suite.ledger.LoadOrder(t.Context(), gofakeit.UUID())
	require.ErrorIs(t, err, port.ErrNotFound)
}

func (suite *orderLedgerSuite) TestExecuteOrder() {
	t := suite.T()
	ctx := t.Context()

	order := fakeOrder()
	suite.insertOrder(ctx, order, "0")

	params := port.ExecuteOrderParams{
		OrderID:       order.ID,
		CartID:        order.CartID,
		Contract:      order.Contract,
		Amount:        order.DueAmount,
		PaymentID:     gofakeit.DigitN(6),
		PaymentSystem: "cardlink",
	}

	require.NoError(t, suite.ledger.ExecuteOrder(ctx, params))

	loaded, err := suite.ledger.LoadOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, loaded.Status)
	assert.Equal(t, params.PaymentID, loaded.PaymentID)
	assert.Equal(t, "cardlink", loaded.PaymentSystem)

	// replaying the settlement loses the compare-and-swap
	err = suite.ledger.ExecuteOrder(ctx, params)
	require.ErrorIs(t, err, port.ErrAlreadyPaid)
}

func (suite *orderLedgerSuite) TestExecuteOrder_NotFound() {
	t := suite.T()

	err := suite.ledger.ExecuteOrder(t.Context(), port.ExecuteOrderParams{OrderID: gofakeit.UUID()})
	require.ErrorIs(t, err, port.ErrNotFound)
}

func (suite *orderLedgerSuite) TestGetExchangeRate() {
	t := suite.T()
	ctx := t.Context()

	withRate := fakeOrder()
	suite.insertOrder(ctx, withRate, "100.5")

	rate, err := suite.ledger.GetExchangeRate(ctx, withRate.ID)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("100.5")))

	withoutRate := fakeOrder()
	suite.insertOrder(ctx, withoutRate, "0")

	_, err = suite.ledger.GetExchangeRate(ctx, withoutRate.ID)
	require.ErrorIs(t, err, port.ErrRateUnavailable)
}

func (suite *orderLedgerSuite) TestTicketInfo() {
	t := suite.T()
	ctx := t.Context()

	ticketID := "T" + gofakeit.DigitN(6)

	_, err := suite.pool.Exec(ctx, `
		INSERT INTO tickets (id, cart_id, sum, contract, payment_system)
		VALUES ($1, $2, $3, $4, $5)`,
		ticketID, 0, "45.50", "12345678", "eripbill")
	require.NoError(t, err)

	ticket, err := suite.ledger.TicketInfo(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, ticketID, ticket.ID)
	assert.True(t, ticket.Sum.Equal(decimal.RequireFromString("45.50")))
	assert.Equal(t, "eripbill", ticket.PaymentSystem)

	_, err = suite.ledger.TicketInfo(ctx, "T0000000")
	require.ErrorIs(t, err, port.ErrNotFound)
}

func (suite *orderLedgerSuite) TestDeferredPaymentCompleted_Ticket() {
	t := suite.T()
	ctx := t.Context()

	order := fakeOrder()
	suite.insertOrder(ctx, order, "0")

	_, err := suite.pool.Exec(ctx, `
		INSERT INTO carts (id, order_id, contract) VALUES ($1, $2, $3)`,
		order.CartID, order.ID, order.Contract)
	require.NoError(t, err)

	ticketID := "T" + gofakeit.DigitN(6)
	_, err = suite.pool.Exec(ctx, `
		INSERT INTO tickets (id, cart_id, sum, contract, payment_system)
		VALUES ($1, $2, $3, $4, $5)`,
		ticketID, order.CartID, order.DueAmount.Amount, order.Contract, "eripbill")
	require.NoError(t, err)

	ok, err := suite.ledger.DeferredPaymentCompleted(ctx, ticketID, 1, order.DueAmount.Amount, "777")
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := suite.ledger.LoadOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, loaded.Status)
	assert.Equal(t, "777", loaded.PaymentID)
	assert.Equal(t, "eripbill", loaded.PaymentSystem)

	// replay: the order is already settled
	ok, err = suite.ledger.DeferredPaymentCompleted(ctx, ticketID, 1, order.DueAmount.Amount, "778")
	require.NoError(t, err)
	assert.False(t, ok)
}

func (suite *orderLedgerSuite) TestDeferredPaymentCompleted_AccountTopUp() {
	t := suite.T()
	ctx := t.Context()

	contract := gofakeit.DigitN(8)

	ok, err := suite.ledger.DeferredPaymentCompleted(ctx, contract, 1, decimal.RequireFromString("20.00"), "777")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = suite.ledger.DeferredPaymentCompleted(ctx, contract, 1, decimal.RequireFromString("5.00"), "778")
	require.NoError(t, err)
	assert.True(t, ok)

	var balance decimal.Decimal
	var raw string
	err = suite.pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE contract = $1`, contract).Scan(&raw)
	require.NoError(t, err)

	balance, err = decimal.NewFromString(raw)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("25.00")), "balance %s", balance)
}

func (suite *orderLedgerSuite) TestDeferredPaymentCompleted_NonPositiveAmount() {
	t := suite.T()

	ok, err := suite.ledger.DeferredPaymentCompleted(t.Context(), gofakeit.DigitN(8), 1, decimal.Zero, "")
	require.NoError(t, err)
	assert.False(t, ok)
}
