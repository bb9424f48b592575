package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/port"
)

// transactionSink persists settled-transaction records per gateway ledger
// alias; the bookkeeping export reads them nightly.
type transactionSink struct {
	pool *pgxpool.Pool
}

func NewTransactionSink(pool *pgxpool.Pool) port.TransactionSink {
	return &transactionSink{pool: pool}
}

func (r *transactionSink) AddPaySystem(ctx context.Context, dbAlias string, tx domain.PaymentTransaction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pay_transactions (id, db_alias, order_id, sum, currency, type, date, tip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id, db_alias) DO NOTHING`,
		tx.ID, dbAlias, tx.OrderID, tx.Sum, tx.Currency, tx.Type, tx.Date, tx.Tip)
	if err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}

	return nil
}
