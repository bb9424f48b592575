package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/port"
)

type registrationRepository struct {
	pool *pgxpool.Pool
}

func NewRegistration(pool *pgxpool.Pool) port.RegistrationService {
	return &registrationRepository{pool: pool}
}

func (r *registrationRepository) RegistrationFee(ctx context.Context, contract, countryCode string) (domain.Money, error) {
	var (
		m            domain.Money
		fee          string
		currencyCode string
	)

	err := r.pool.QueryRow(ctx, `
		SELECT fee, currency FROM registrations
		WHERE contract = $1 AND country_code = $2 AND NOT paid`,
		contract, countryCode).
		Scan(&fee, &currencyCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return m, fmt.Errorf("registration[%s]: %w", contract, port.ErrNotFound)
		}
		return m, fmt.Errorf("pool.QueryRow: %w", err)
	}

	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return m, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}

	amount, err := decimal.NewFromString(fee)
	if err != nil {
		return m, fmt.Errorf("fee[%s] is not valid: %w", fee, err)
	}

	return domain.Money{Amount: amount, Currency: unit}, nil
}

// ConfirmRegistrationPay marks the registration paid; a second confirmation
// for the same contract reports false.
func (r *registrationRepository) ConfirmRegistrationPay(ctx context.Context, contract string) (bool, error) {
	cmdTag, err := r.pool.Exec(ctx, `
		UPDATE registrations
		SET paid = TRUE, paid_at = now()
		WHERE contract = $1 AND NOT paid`, contract)
	if err != nil {
		return false, fmt.Errorf("pool.Exec: %w", err)
	}

	return cmdTag.RowsAffected() > 0, nil
}
