package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/gateway"
	"github.com/mshop/payments/internal/port"
)

const deferredModeBill = 1

// completeDeferredPayment settles a bill-payment exchange. The account the
// payer typed either resolves to a pre-issued ticket backing a cart, or it is
// a bare contract number and the payment tops up the client's account.
// Settlement happens only on the confirm step; earlier steps just answer the
// terminal's questions.
func (m *Manager) completeDeferredPayment(ctx context.Context, system gateway.System, deferred gateway.DeferredBill, n domain.Notification) (domain.PaymentResponse, error) {
	account := strings.ToUpper(n.Get(deferred.AccountParam()))

	ticket, err := m.ledger.TicketInfo(ctx, account)
	if err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			return domain.PaymentResponse{}, fmt.Errorf("ledger.TicketInfo[%s]: %w", account, err)
		}
		ticket = domain.PaymentTicket{}
	}

	if ticket.CartID == 0 {
		return m.completeAccountTopUp(ctx, system, deferred, n, account)
	}

	cart, err := m.carts.LoadByID(ctx, ticket.CartID, n.LanguageCode)
	if err != nil {
		return domain.Rejected(domain.CodeNotSuccess, fmt.Sprintf("cart[%d]: %v", ticket.CartID, err)), nil
	}

	order, err := m.ledger.LoadOrder(ctx, cart.OrderID)
	if err != nil {
		return domain.Rejected(domain.CodeNotSuccess, fmt.Sprintf("order[%s]: %v", cart.OrderID, err)), nil
	}

	switch order.Status {
	case domain.OrderStatusCreated:
		res := deferred.ResolveDeferred(n, ticket)

		resp := domain.PaymentResponse{
			Success:  res.Permit,
			Deferred: &res,
			Ticket:   &ticket,
		}
		if !res.Permit {
			resp.Code = domain.CodeNotSuccess
			return resp, nil
		}

		if res.Step != domain.DeferredStepConfirm {
			return resp, nil
		}

		ok, err := m.ledger.DeferredPaymentCompleted(ctx, ticket.ID, deferredModeBill, ticket.Sum, n.Get(deferred.PaymentIDParam()))
		if err != nil {
			return domain.PaymentResponse{}, fmt.Errorf("ledger.DeferredPaymentCompleted[%s]: %w", ticket.ID, err)
		}
		if !ok {
			resp.Success = false
			resp.Code = domain.CodeNotSuccess
			return resp, nil
		}

		m.dispatchDelivery(ctx, cart)

		return resp, nil

	case domain.OrderStatusPaid, domain.OrderStatusDelivered:
		return domain.Rejected(domain.CodeAlreadyPaid, ""), nil
	}

	return domain.Rejected(domain.CodeOrderExecutionError, fmt.Sprintf("order[%s] is cancelled", order.ID)), nil
}

// completeAccountTopUp handles an account number with no ticket behind it. A
// reference that still looks like an order or registration number is a typo,
// not a top-up.
func (m *Manager) completeAccountTopUp(ctx context.Context, system gateway.System, deferred gateway.DeferredBill, n domain.Notification, account string) (domain.PaymentResponse, error) {
	if account == "" || !isDigits(account) {
		return domain.Rejected(domain.CodeOrderNotExists, ""), nil
	}

	if _, err := m.clients.Load(ctx, account, ""); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return domain.Rejected(domain.CodeNotSuccess, fmt.Sprintf("contract[%s] not found", account)), nil
		}
		return domain.PaymentResponse{}, fmt.Errorf("clients.Load[%s]: %w", account, err)
	}

	amount, err := decimal.NewFromString(n.Get(deferred.AmountParam()))
	if err != nil {
		amount = decimal.Zero
	}

	// a synthetic ticket keyed by the contract keeps the step protocol
	// self-consistent: the transaction id echoed on submit is the one checked
	// on confirm
	ticket := domain.PaymentTicket{
		ID:            account,
		Contract:      account,
		Sum:           amount,
		PaymentSystem: system.Alias(),
	}

	res := deferred.ResolveDeferred(n, ticket)

	resp := domain.PaymentResponse{
		Success:  res.Permit,
		Deferred: &res,
		Ticket:   &ticket,
	}
	if !res.Permit {
		resp.Code = domain.CodeNotSuccess
		return resp, nil
	}

	if res.Step != domain.DeferredStepConfirm {
		return resp, nil
	}

	ok, err := m.ledger.DeferredPaymentCompleted(ctx, account, deferredModeBill, amount, n.Get(deferred.PaymentIDParam()))
	if err != nil {
		return domain.PaymentResponse{}, fmt.Errorf("ledger.DeferredPaymentCompleted[%s]: %w", account, err)
	}
	if !ok {
		resp.Success = false
		resp.Code = domain.CodeNotSuccess
		return resp, nil
	}

	if err := m.clients.ClearCache(ctx, account); err != nil {
		m.logger.Error().Err(err).Str("contract", account).Msg("client cache clear failed")
	}

	return resp, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
