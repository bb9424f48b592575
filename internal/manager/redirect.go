package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mshop/payments/internal/converter"
	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/gateway"
)

// Redirect builds the outbound checkout redirect for a gateway. The price is
// converted up front for gateways constrained to a single currency, using the
// rate frozen on the order, so the callback later reconciles against the same
// number.
func (m *Manager) Redirect(ctx context.Context, alias string, req gateway.RedirectRequest) (domain.RedirectData, error) {
	system, err := m.registry.Get(alias)
	if err != nil {
		return domain.RedirectData{}, fmt.Errorf("registry.Get: %w", err)
	}

	// gateways call back over TLS only; a plain scheme here is a config slip
	req.NotificationURL = forceHTTPS(req.NotificationURL)

	if constrained, ok := system.(gateway.CurrencyConstrained); ok && req.Price.Currency != constrained.AvailableCurrency() {
		rc := converter.NewRateCache(m.ledger)

		rate, err := rc.Rate(ctx, req.OrderID)
		if err != nil {
			return domain.RedirectData{}, fmt.Errorf("rate for order[%s]: %w", req.OrderID, err)
		}

		req.Price = converter.Convert(req.Price, constrained.AvailableCurrency(), rate)

		// per-line tax amounts do not survive the conversion rounding;
		// constrained gateways recalculate tax on their side
		req.Tax = nil
	}

	redirect, err := system.RedirectData(req)
	if err != nil {
		return domain.RedirectData{}, fmt.Errorf("system.RedirectData[%s]: %w", alias, err)
	}

	return redirect, nil
}

// RedirectRegistration builds the checkout redirect for a registration fee:
// a single-line bill over the contract's due fee, referenced by the
// letter-prefixed contract number so the callback routes into the
// registration flow.
func (m *Manager) RedirectRegistration(ctx context.Context, alias, countryCode string, req gateway.RedirectRequest) (domain.RedirectData, error) {
	if m.registration == nil {
		return domain.RedirectData{}, errors.New("registration is not supported")
	}

	system, err := m.registry.Get(alias)
	if err != nil {
		return domain.RedirectData{}, fmt.Errorf("registry.Get: %w", err)
	}

	fee, err := m.registration.RegistrationFee(ctx, req.Contract, countryCode)
	if err != nil {
		return domain.RedirectData{}, fmt.Errorf("registration.RegistrationFee[%s]: %w", req.Contract, err)
	}

	// registration fees have no order behind them, so there is no stored rate
	// to convert with; a constrained gateway must take the fee currency as is
	if constrained, ok := system.(gateway.CurrencyConstrained); ok && fee.Currency != constrained.AvailableCurrency() {
		return domain.RedirectData{}, fmt.Errorf("alias[%s]: fee currency[%s] not supported", alias, fee.Currency)
	}

	req.NotificationURL = forceHTTPS(req.NotificationURL)
	req.OrderID = "R" + req.Contract
	req.Price = fee
	req.Tax = nil
	req.Items = []domain.PaidItem{{
		SKU:   domain.SKURegistration,
		Name:  "Registration",
		Price: fee,
		Count: 1,
	}}

	redirect, err := system.RedirectData(req)
	if err != nil {
		return domain.RedirectData{}, fmt.Errorf("system.RedirectData[%s]: %w", alias, err)
	}

	return redirect, nil
}

func forceHTTPS(rawURL string) string {
	if after, ok := strings.CutPrefix(rawURL, "http://"); ok {
		return "https://" + after
	}
	return rawURL
}
