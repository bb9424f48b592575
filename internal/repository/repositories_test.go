package repository_test

import (
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

type repositoriesSuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	container testcontainers.Container

	carts        port.CartRepository
	clients      port.ClientRepository
	rates        port.CurrencyRates
	registration port.RegistrationService
	sink         port.TransactionSink
	delivery     port.DeliveryDispatcher
}

func TestRepositoriesSuite(t *testing.T) {
	defer goleak.VerifyNone(t)

	suite.Run(t, new(repositoriesSuite))
}

func (suite *repositoriesSuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = startPostgres(ctx)
	suite.NoError(err)

	suite.pool, err = pgxpool.New(ctx, connStr)
	suite.NoError(err)

	suite.carts = repository.NewCart(suite.pool)
	suite.clients = repository.NewClient(suite.pool, nil)
	suite.rates = repository.NewRates(suite.pool)
	suite.registration = repository.NewRegistration(suite.pool)
	suite.sink = repository.NewTransactionSink(suite.pool)
	suite.delivery = repository.NewDelivery(suite.pool)
}

func (suite *repositoriesSuite) TearDownSuite() {
	ctx := suite.T().Context()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func (suite *repositoriesSuite) TestCartLoadByID() {
	t := suite.T()
	ctx := t.Context()

	cartID := int64(gofakeit.Number(1, 1_000_000))

	_, err := suite.pool.Exec(ctx, `
		INSERT INTO carts (id, order_id, contract, language_code, delivery_company)
		VALUES ($1, $2, $3, $4, $5)`,
		cartID, gofakeit.UUID(), gofakeit.DigitN(8), "ru", "dhl")
	require.NoError(t, err)

	cart, err := suite.carts.LoadByID(ctx, cartID, "en")
	require.NoError(t, err)
	assert.Equal(t, cartID, cart.ID)
	assert.Equal(t, "dhl", cart.DeliveryCompany)
	// the caller's language wins over the stored one
	assert.Equal(t, "en", cart.LanguageCode)

	_, err = suite.carts.LoadByID(ctx, -1, "")
	require.ErrorIs(t, err, port.ErrNotFound)
}

func (suite *repositoriesSuite) TestClientLoad() {
	t := suite.T()
	ctx := t.Context()

	contract := gofakeit.DigitN(8)

	_, err := suite.pool.Exec(ctx, `
		INSERT INTO clients (contract, email, country_code) VALUES ($1, $2, $3)`,
		contract, gofakeit.Email(), "by")
	require.NoError(t, err)

	client, err := suite.clients.Load(ctx, contract, "by")
	require.NoError(t, err)
	assert.Equal(t, contract, client.Contract)

	// country filter applies only when given
	client, err = suite.clients.Load(ctx, contract, "")
	require.NoError(t, err)
	assert.Equal(t, contract, client.Contract)

	_, err = suite.clients.Load(ctx, contract, "ru")
	require.ErrorIs(t, err, port.ErrNotFound)

	// nil cache: clearing is a no-op, not a panic
	require.NoError(t, suite.clients.ClearCache(ctx, contract))
}

func (suite *repositoriesSuite) TestRates() {
	t := suite.T()
	ctx := t.Context()

	_, err := suite.pool.Exec(ctx, `
		INSERT INTO currency_rates (from_code, to_code, rate) VALUES ('EUR', 'RUB', 100.5)
		ON CONFLICT (from_code, to_code) DO UPDATE SET rate = EXCLUDED.rate`)
	require.NoError(t, err)

	rate, err := suite.rates.Rate(ctx, currency.EUR, currency.RUB)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("100.5")))

	rate, err = suite.rates.Rate(ctx, currency.EUR, currency.EUR)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))

	_, err = suite.rates.Rate(ctx, currency.JPY, currency.RUB)
	require.ErrorIs(t, err, port.ErrRateUnavailable)
}

func (suite *repositoriesSuite) TestRegistration() {
	t := suite.T()
	ctx := t.Context()

	contract := gofakeit.DigitN(8)

	_, err := suite.pool.Exec(ctx, `
		INSERT INTO registrations (contract, country_code, fee, currency) VALUES ($1, 'by', 30.00, 'EUR')`,
		contract)
	require.NoError(t, err)

	fee, err := suite.registration.RegistrationFee(ctx, contract, "by")
	require.NoError(t, err)
	assert.True(t, fee.Amount.Equal(decimal.RequireFromString("30.00")))
	assert.Equal(t, "EUR", fee.Currency.String())

	ok, err := suite.registration.ConfirmRegistrationPay(ctx, contract)
	require.NoError(t, err)
	assert.True(t, ok)

	// second confirmation is a replay
	ok, err = suite.registration.ConfirmRegistrationPay(ctx, contract)
	require.NoError(t, err)
	assert.False(t, ok)

	// a paid registration no longer owes a fee
	_, err = suite.registration.RegistrationFee(ctx, contract, "by")
	require.ErrorIs(t, err, port.ErrNotFound)
}

func (suite *repositoriesSuite) TestTransactionSink() {
	t := suite.T()
	ctx := t.Context()

	tx := domain.PaymentTransaction{
		ID:       gofakeit.UUID(),
		OrderID:  gofakeit.UUID(),
		Sum:      decimal.RequireFromString("245.00"),
		Currency: "RUB",
		Type:     1,
		Date:     gofakeit.Date(),
	}

	require.NoError(t, suite.sink.AddPaySystem(ctx, "acqbank", tx))

	// duplicate records from gateway retries are dropped silently
	require.NoError(t, suite.sink.AddPaySystem(ctx, "acqbank", tx))

	var count int
	err := suite.pool.QueryRow(ctx, `
		SELECT count(*) FROM pay_transactions WHERE id = $1 AND db_alias = 'acqbank'`, tx.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func (suite *repositoriesSuite) TestDeliveryCreateRequest() {
	t := suite.T()
	ctx := t.Context()

	cart := domain.Cart{ID: int64(gofakeit.Number(1, 1_000_000)), OrderID: gofakeit.UUID()}

	err := suite.delivery.CreateRequest(ctx, "dhl", cart, map[string]string{"source": "payment"})
	require.NoError(t, err)

	var company string
	err = suite.pool.QueryRow(ctx, `
		SELECT company FROM delivery_requests WHERE cart_id = $1`, cart.ID).Scan(&company)
	require.NoError(t, err)
	assert.Equal(t, "dhl", company)
}
