package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/gateway"
	"github.com/mshop/payments/internal/port"
)

// processRegistrationNotification settles the one-off registration fee for a
// new contract. Registration references reuse the order-number field with a
// letter prefix in front of the contract number.
func (m *Manager) processRegistrationNotification(ctx context.Context, system gateway.System, n domain.Notification, countryCode string) (domain.PaymentResponse, error) {
	if m.registration == nil {
		return domain.Rejected(domain.CodeOrderExecutionError, "registration is not supported"), nil
	}

	if !system.ValidateRequest(n) {
		return domain.Rejected(domain.CodeInvalidRequest, "invalid signature from payment system"), nil
	}

	data, err := system.PaymentData(n, countryCode)
	if err != nil {
		return domain.Rejected(domain.CodeInvalidRequest, err.Error()), nil
	}

	m.auditNotification(ctx, "registration", system.Alias(), data, n)

	if data.Status != system.SuccessStatusCode() {
		return domain.Rejected(domain.CodeNotSuccess, ""), nil
	}

	contract := data.Contract
	if contract == "" {
		contract = strings.TrimLeft(strings.ToUpper(data.OrderID), "R")
	}

	fee, err := m.registration.RegistrationFee(ctx, contract, countryCode)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return domain.Rejected(domain.CodeOrderNotExists, fmt.Sprintf("registration[%s] not found", contract)), nil
		}
		return domain.PaymentResponse{}, fmt.Errorf("registration.RegistrationFee[%s]: %w", contract, err)
	}

	var resp domain.PaymentResponse

	if deferred, ok := system.(gateway.DeferredBill); ok {
		ticket := domain.PaymentTicket{
			ID:            strings.ToUpper(data.OrderID),
			Contract:      contract,
			Sum:           fee.Amount,
			PaymentSystem: system.Alias(),
		}

		res := deferred.ResolveDeferred(n, ticket)
		resp.Deferred = &res
		resp.Ticket = &ticket
		resp.Success = res.Permit

		if !res.Permit {
			resp.Code = domain.CodeNotSuccess
			return resp, nil
		}
		if res.Step != domain.DeferredStepConfirm {
			return resp, nil
		}
	} else {
		switch cmp := m.comparePrices(ctx, fee, data.Price); {
		case cmp > 0:
			return domain.Rejected(domain.CodeLessSum, fmt.Sprintf("paid[%s] is less than fee[%s]", data.Price, fee)), nil
		case cmp < 0:
			return domain.Rejected(domain.CodeMoreSum, fmt.Sprintf("paid[%s] is more than fee[%s]", data.Price, fee)), nil
		}
	}

	ok, err := m.registration.ConfirmRegistrationPay(ctx, contract)
	if err != nil {
		return domain.PaymentResponse{}, fmt.Errorf("registration.ConfirmRegistrationPay[%s]: %w", contract, err)
	}
	if !ok {
		return domain.Rejected(domain.CodeNotSuccess, fmt.Sprintf("registration[%s] confirmation failed", contract)), nil
	}

	m.reportTransaction(ctx, system, data)
	m.printRegistrationReceipt(ctx, system, data, fee, contract, countryCode)

	resp.Success = true

	return resp, nil
}

func (m *Manager) printRegistrationReceipt(ctx context.Context, system gateway.System, data domain.PaymentData, fee domain.Money, contract, countryCode string) {
	if system.CanPrintBill() || m.registers == nil {
		return
	}

	printer := m.registers.ForCountry(countryCode)
	if printer == nil {
		return
	}

	items := []domain.PaidItem{{
		SKU:   domain.SKURegistration,
		Name:  "Registration",
		Price: fee,
		Count: 1,
	}}

	contact := contract
	if m.clients != nil {
		if client, err := m.clients.Load(ctx, contract, countryCode); err == nil && client.Email != "" {
			contact = client.Email
		}
	}

	receipt, err := printer.CreateBill(ctx, data, items, contact)
	if err != nil {
		m.logger.Error().Err(err).Str("contract", contract).Msg("registration receipt creation failed")
		return
	}

	if m.fiscalQueue != nil {
		if err := m.fiscalQueue.Enqueue(ctx, receipt); err != nil {
			m.logger.Error().Err(err).Str("receipt_id", receipt.ID).Msg("registration receipt enqueue failed")
		}
	}
}
