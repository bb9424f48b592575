package adapters_test

import (
	"math/big"
	"net/url"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/gateway/adapters"
)

var testJSON = jsoniter.ConfigCompatibleWithStandardLibrary

func newERIPBill(t *testing.T) *adapters.ERIPBill {
	t.Helper()

	e, err := adapters.NewERIPBill("svc-42", []string{"10.0.0.0/8", "192.168.1.5"})
	require.NoError(t, err)

	return e
}

func TestNewERIPBill_BadCIDR(t *testing.T) {
	_, err := adapters.NewERIPBill("svc-42", []string{"not-a-cidr/xx"})
	require.Error(t, err)
}

func TestERIPBill_ValidateRequest(t *testing.T) {
	e := newERIPBill(t)

	tests := []struct {
		name      string
		serviceID string
		clientIP  string
		want      bool
	}{
		{"allowed range", "svc-42", "10.20.30.40", true},
		{"allowed single ip", "svc-42", "192.168.1.5", true},
		{"ip outside ranges", "svc-42", "8.8.8.8", false},
		{"wrong service id", "svc-1", "10.20.30.40", false},
		{"unparseable ip", "svc-42", "gateway.local", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := domain.Notification{
				Params:   url.Values{"serviceId": {tt.serviceID}},
				ClientIP: tt.clientIP,
			}
			assert.Equal(t, tt.want, e.ValidateRequest(n))
		})
	}
}

func TestERIPBill_PaymentData(t *testing.T) {
	e := newERIPBill(t)

	n := domain.Notification{
		Params: url.Values{
			"account":       {"t100"},
			"amount":        {"45.50"},
			"transactionId": {"777"},
		},
	}

	data, err := e.PaymentData(n, "by")
	require.NoError(t, err)

	assert.Equal(t, "T100", data.OrderID)
	assert.Equal(t, "777", data.PaymentID)
	assert.Equal(t, "success", data.Status)
	assert.Equal(t, "BYN", data.Price.Currency.String())
	assert.True(t, data.Price.Amount.Equal(decimal.RequireFromString("45.50")))
}

func TestERIPBill_ResolveDeferred(t *testing.T) {
	e := newERIPBill(t)

	ticket := domain.PaymentTicket{
		ID:            "T100",
		CartID:        7,
		Sum:           decimal.RequireFromString("45.50"),
		Contract:      "C1234",
		PaymentSystem: "eripbill",
	}

	trxID := new(big.Int).SetBytes([]byte(ticket.ID)).String()

	tests := []struct {
		name       string
		params     url.Values
		wantPermit bool
		wantStep   domain.DeferredStep
	}{
		{
			name:       "account info is always permitted for a matching ticket",
			params:     url.Values{"type": {"accountInfo"}},
			wantPermit: true,
			wantStep:   domain.DeferredStepAccountInfo,
		},
		{
			name:       "submit with the exact amount",
			params:     url.Values{"type": {"submitPayment"}, "amount": {"45.50"}},
			wantPermit: true,
			wantStep:   domain.DeferredStepSubmit,
		},
		{
			name:       "submit with a different amount is denied",
			params:     url.Values{"type": {"submitPayment"}, "amount": {"45.49"}},
			wantPermit: false,
			wantStep:   domain.DeferredStepSubmit,
		},
		{
			name:       "confirm with the matching transaction id",
			params:     url.Values{"type": {"confirmPayment"}, "unipayTrxId": {trxID}, "confirmed": {"true"}},
			wantPermit: true,
			wantStep:   domain.DeferredStepConfirm,
		},
		{
			name:       "confirm without the confirmed flag is denied",
			params:     url.Values{"type": {"confirmPayment"}, "unipayTrxId": {trxID}},
			wantPermit: false,
			wantStep:   domain.DeferredStepConfirm,
		},
		{
			name:       "unknown step is denied",
			params:     url.Values{"type": {"cancelPayment"}},
			wantPermit: false,
			wantStep:   domain.DeferredStepNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.ResolveDeferred(domain.Notification{Params: tt.params}, ticket)
			assert.Equal(t, tt.wantPermit, res.Permit)
			assert.Equal(t, tt.wantStep, res.Step)
		})
	}

	t.Run("ticket issued for another gateway is denied", func(t *testing.T) {
		foreign := ticket
		foreign.PaymentSystem = "cardlink"

		res := e.ResolveDeferred(domain.Notification{
			Params: url.Values{"type": {"accountInfo"}},
		}, foreign)
		assert.False(t, res.Permit)
	})
}

func TestERIPBill_BuildResponse(t *testing.T) {
	e := newERIPBill(t)

	ticket := domain.PaymentTicket{
		ID:       "T100",
		CartID:   7,
		Sum:      decimal.RequireFromString("45.50"),
		Contract: "C1234",
	}

	decode := func(t *testing.T, body []byte) map[string]any {
		t.Helper()
		var doc map[string]any
		require.NoError(t, testJSON.Unmarshal(body, &doc))
		return doc
	}

	t.Run("account info echoes the bill", func(t *testing.T) {
		resp := e.BuildResponse(domain.PaymentResponse{
			Success:  true,
			Deferred: &domain.DeferredResult{Permit: true, Step: domain.DeferredStepAccountInfo},
			Ticket:   &ticket,
		})

		doc := decode(t, resp.Body)
		assert.EqualValues(t, 0, doc["responseCode"])
		assert.Equal(t, "C1234", doc["account"])
		assert.Equal(t, "BYN", doc["currency"])
		assert.Equal(t, "45.50", doc["amount"])
	})

	t.Run("submit echoes the transaction id", func(t *testing.T) {
		resp := e.BuildResponse(domain.PaymentResponse{
			Success:  true,
			Deferred: &domain.DeferredResult{Permit: true, Step: domain.DeferredStepSubmit},
			Ticket:   &ticket,
		})

		doc := decode(t, resp.Body)
		assert.EqualValues(t, 0, doc["responseCode"])
		assert.Equal(t, new(big.Int).SetBytes([]byte("T100")).String(), doc["unipayTrxId"])
	})

	t.Run("rejection denies", func(t *testing.T) {
		resp := e.BuildResponse(domain.Rejected(domain.CodeNotSuccess, ""))

		doc := decode(t, resp.Body)
		assert.EqualValues(t, 3, doc["responseCode"])
	})
}
