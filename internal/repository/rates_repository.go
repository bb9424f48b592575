package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/port"
)

// ratesRepository serves the daily cross-rate table maintained by the
// back-office import job.
type ratesRepository struct {
	pool *pgxpool.Pool
}

func NewRates(pool *pgxpool.Pool) port.CurrencyRates {
	return &ratesRepository{pool: pool}
}

func (r *ratesRepository) Rate(ctx context.Context, from, to currency.Unit) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	var rate string

	err := r.pool.QueryRow(ctx, `
		SELECT rate FROM currency_rates
		WHERE from_code = $1 AND to_code = $2`, from.String(), to.String()).
		Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("rate[%s->%s]: %w", from, to, port.ErrRateUnavailable)
		}
		return decimal.Zero, fmt.Errorf("pool.QueryRow: %w", err)
	}

	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate[%s] is not valid: %w", rate, err)
	}

	return parsed, nil
}
