package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/mshop/payments/internal/billing"
	"github.com/mshop/payments/internal/converter"
	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/gateway"
	"github.com/mshop/payments/internal/port"
)

// processOrderPayment is the main reconciliation flow: authenticate, parse,
// verify the amount against the ledger, settle atomically, then fire the
// post-settlement side effects. Side effects are best effort; settlement is
// not.
func (m *Manager) processOrderPayment(ctx context.Context, system gateway.System, rc *converter.RateCache, n domain.Notification, countryCode string) (domain.PaymentResponse, error) {
	if !system.ValidateRequest(n) {
		return domain.Rejected(domain.CodeInvalidRequest, "invalid signature from payment system"), nil
	}

	data, err := system.PaymentData(n, countryCode)
	if err != nil {
		return domain.Rejected(domain.CodeInvalidRequest, err.Error()), nil
	}

	m.auditNotification(ctx, "order", system.Alias(), data, n)

	if data.Status != system.SuccessStatusCode() {
		return domain.Rejected(domain.CodeNotSuccess, ""), nil
	}

	if deferred, ok := system.(gateway.DeferredBill); ok {
		return m.completeDeferredPayment(ctx, system, deferred, n)
	}

	order, err := m.ledger.LoadOrder(ctx, data.OrderID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return domain.Rejected(domain.CodeOrderNotExists, fmt.Sprintf("order[%s] not found", data.OrderID)), nil
		}
		return domain.PaymentResponse{}, fmt.Errorf("ledger.LoadOrder[%s]: %w", data.OrderID, err)
	}

	// a constrained gateway settled in its own currency; convert what it
	// reports back into the order's currency before comparing
	price := data.Price
	if constrained, ok := system.(gateway.CurrencyConstrained); ok && order.DueAmount.Currency != constrained.AvailableCurrency() {
		rate, err := rc.Rate(ctx, order.ID)
		if err != nil {
			return domain.PaymentResponse{}, fmt.Errorf("rate for order[%s]: %w", order.ID, err)
		}
		price = converter.Revert(price, order.DueAmount.Currency, rate)
	}

	switch cmp := m.comparePrices(ctx, order.DueAmount, price); {
	case cmp > 0:
		return domain.Rejected(domain.CodeLessSum, fmt.Sprintf("paid[%s] is less than due[%s]", price, order.DueAmount)), nil
	case cmp < 0:
		return domain.Rejected(domain.CodeMoreSum, fmt.Sprintf("paid[%s] is more than due[%s]", price, order.DueAmount)), nil
	}

	if order.Status.Settled() {
		return domain.Rejected(domain.CodeAlreadyPaid, ""), nil
	}

	cart, err := m.carts.LoadByID(ctx, order.CartID, order.LanguageCode)
	if err != nil {
		return domain.Rejected(domain.CodeOrderExecutionError, fmt.Sprintf("cart[%d]: %v", order.CartID, err)), nil
	}

	err = m.ledger.ExecuteOrder(ctx, port.ExecuteOrderParams{
		OrderID:       order.ID,
		CartID:        order.CartID,
		Contract:      order.Contract,
		CountryCode:   order.CountryCode,
		LanguageCode:  order.LanguageCode,
		Amount:        price,
		PaymentID:     data.PaymentID,
		PaymentSystem: system.Alias(),
	})
	if err != nil {
		if errors.Is(err, port.ErrAlreadyPaid) {
			return domain.Rejected(domain.CodeAlreadyPaid, ""), nil
		}
		return domain.Rejected(domain.CodeOrderExecutionError, fmt.Sprintf("execute order[%s]: %v", order.ID, err)), nil
	}

	m.dispatchDelivery(ctx, cart)
	m.printReceipt(ctx, system, rc, order, data)
	m.reportTransaction(ctx, system, data)

	return domain.PaymentResponse{Success: true}, nil
}

func (m *Manager) dispatchDelivery(ctx context.Context, cart domain.Cart) {
	if m.delivery == nil || cart.DeliveryCompany == "" {
		return
	}

	meta := map[string]string{"source": "payment"}
	if err := m.delivery.CreateRequest(ctx, cart.DeliveryCompany, cart, meta); err != nil {
		m.logger.Error().Err(err).
			Int64("cart_id", cart.ID).
			Str("company", cart.DeliveryCompany).
			Msg("delivery request failed")
	}
}

// printReceipt issues a fiscal receipt for gateways that cannot print their
// own, in the currency the payer was actually charged in.
func (m *Manager) printReceipt(ctx context.Context, system gateway.System, rc *converter.RateCache, order domain.Order, data domain.PaymentData) {
	if system.CanPrintBill() || m.registers == nil {
		return
	}

	printer := m.registers.ForCountry(order.CountryCode)
	if printer == nil {
		return
	}

	charged := order.DueAmount
	if constrained, ok := system.(gateway.CurrencyConstrained); ok && charged.Currency != constrained.AvailableCurrency() {
		rate, err := rc.Rate(ctx, order.ID)
		if err != nil {
			m.logger.Error().Err(err).Str("order_id", order.ID).Msg("receipt rate lookup failed")
			return
		}
		charged = converter.Convert(charged, constrained.AvailableCurrency(), rate)
	}

	items, delivery := receiptLines(order, charged.Currency)
	paidItems, err := billing.Allocate(items, delivery, charged)
	if err != nil {
		m.logger.Error().Err(err).Str("order_id", order.ID).Msg("receipt allocation failed")
		return
	}

	contact := order.Contract
	if m.clients != nil {
		if client, err := m.clients.Load(ctx, order.Contract, order.CountryCode); err == nil && client.Email != "" {
			contact = client.Email
		}
	}

	receipt, err := printer.CreateBill(ctx, data, paidItems, contact)
	if err != nil {
		m.logger.Error().Err(err).Str("order_id", order.ID).Msg("receipt creation failed")
		return
	}

	if m.fiscalQueue != nil {
		if err := m.fiscalQueue.Enqueue(ctx, receipt); err != nil {
			m.logger.Error().Err(err).Str("receipt_id", receipt.ID).Msg("receipt enqueue failed")
		}
	}
}

func (m *Manager) reportTransaction(ctx context.Context, system gateway.System, data domain.PaymentData) {
	reporter, ok := system.(gateway.TransactionReporter)
	if !ok || m.sink == nil {
		return
	}

	if err := m.sink.AddPaySystem(ctx, reporter.DBAlias(), reporter.BuildTransaction(data)); err != nil {
		m.logger.Error().Err(err).
			Str("alias", system.Alias()).
			Str("order_id", data.OrderID).
			Msg("transaction report failed")
	}
}
