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

type orderLedger struct {
	pool *pgxpool.Pool
}

func NewOrderLedger(pool *pgxpool.Pool) port.OrderLedger {
	return &orderLedger{pool: pool}
}

func (r *orderLedger) LoadOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var o domain.Order

	order, err := withTx(ctx, r.pool, func(tx pgx.Tx) (domain.Order, error) {
		order, err := loadOrderRow(ctx, tx, orderID)
		if err != nil {
			return o, fmt.Errorf("loadOrderRow: %w", err)
		}

		items, err := loadOrderItems(ctx, tx, orderID, order.DueAmount.Currency)
		if err != nil {
			return o, fmt.Errorf("loadOrderItems: %w", err)
		}
		order.Items = items

		return order, nil
	})
	if err != nil {
		return o, fmt.Errorf("withTx: %w", err)
	}

	return order, nil
}

func loadOrderRow(ctx context.Context, tx pgx.Tx, orderID string) (domain.Order, error) {
	var (
		o             domain.Order
		status        string
		dueAmount     string
		currencyCode  string
		exchangeRate  string
		deliveryPrice *string
		paymentID     *string
		paymentSystem *string
	)

	err := tx.QueryRow(ctx, `
		SELECT id, cart_id, contract, country_code, language_code, status,
		       due_amount, currency, exchange_rate, delivery_price,
		       payment_id, payment_system, created_at, updated_at
		FROM orders
		WHERE id = $1`, orderID).
		Scan(&o.ID, &o.CartID, &o.Contract, &o.CountryCode, &o.LanguageCode, &status,
			&dueAmount, &currencyCode, &exchangeRate, &deliveryPrice,
			&paymentID, &paymentSystem, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, fmt.Errorf("order[%s]: %w", orderID, port.ErrNotFound)
		}
		return o, fmt.Errorf("tx.QueryRow: %w", err)
	}

	o.Status, err = domain.ToOrderStatus(status)
	if err != nil {
		return o, fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
	}

	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return o, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}

	due, err := decimal.NewFromString(dueAmount)
	if err != nil {
		return o, fmt.Errorf("due_amount[%s] is not valid: %w", dueAmount, err)
	}
	o.DueAmount = domain.Money{Amount: due, Currency: unit}

	o.ExchangeRate, err = decimal.NewFromString(exchangeRate)
	if err != nil {
		return o, fmt.Errorf("exchange_rate[%s] is not valid: %w", exchangeRate, err)
	}

	if deliveryPrice != nil {
		price, err := decimal.NewFromString(*deliveryPrice)
		if err != nil {
			return o, fmt.Errorf("delivery_price[%s] is not valid: %w", *deliveryPrice, err)
		}
		o.DeliveryPrice = &domain.Money{Amount: price, Currency: unit}
	}

	if paymentID != nil {
		o.PaymentID = *paymentID
	}
	if paymentSystem != nil {
		o.PaymentSystem = *paymentSystem
	}

	return o, nil
}

func loadOrderItems(ctx context.Context, tx pgx.Tx, orderID string, unit currency.Unit) ([]domain.OrderItem, error) {
	rows, err := tx.Query(ctx, `
		SELECT sku, name, price, count, kit
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("tx.Query: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var (
			item  domain.OrderItem
			price string
		)
		if err := rows.Scan(&item.SKU, &item.Name, &price, &item.Count, &item.Kit); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		amount, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("price[%s] is not valid: %w", price, err)
		}
		item.Price = domain.Money{Amount: amount, Currency: unit}

		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return items, nil
}

// ExecuteOrder applies the created->paid transition with a compare-and-swap
// on the status column. Of any number of concurrent settlements exactly one
// wins; the rest observe ErrAlreadyPaid.
func (r *orderLedger) ExecuteOrder(ctx context.Context, params port.ExecuteOrderParams) error {
	cmdTag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2, payment_id = $3, payment_system = $4,
		    paid_amount = $5, updated_at = now()
		WHERE id = $1 AND status = $6`,
		params.OrderID, domain.OrderStatusPaid, params.PaymentID, params.PaymentSystem,
		params.Amount.Amount, domain.OrderStatusCreated)
	if err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}

	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, params.OrderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("order[%s]: %w", params.OrderID, port.ErrNotFound)
		}
		return fmt.Errorf("pool.QueryRow: %w", err)
	}

	orderStatus, err := domain.ToOrderStatus(status)
	if err != nil {
		return fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
	}
	if orderStatus.Settled() {
		return fmt.Errorf("order[%s]: %w", params.OrderID, port.ErrAlreadyPaid)
	}

	return fmt.Errorf("order[%s] in status[%s] cannot be executed", params.OrderID, status)
}

func (r *orderLedger) GetExchangeRate(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var rate string

	err := r.pool.QueryRow(ctx, `SELECT exchange_rate FROM orders WHERE id = $1`, orderID).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("order[%s]: %w", orderID, port.ErrNotFound)
		}
		return decimal.Zero, fmt.Errorf("pool.QueryRow: %w", err)
	}

	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("exchange_rate[%s] is not valid: %w", rate, err)
	}

	if parsed.IsZero() {
		return decimal.Zero, fmt.Errorf("order[%s]: %w", orderID, port.ErrRateUnavailable)
	}

	return parsed, nil
}

func (r *orderLedger) TicketInfo(ctx context.Context, ticketID string) (domain.PaymentTicket, error) {
	var (
		t   domain.PaymentTicket
		sum string
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, cart_id, sum, contract, payment_system
		FROM tickets
		WHERE id = $1`, ticketID).
		Scan(&t.ID, &t.CartID, &sum, &t.Contract, &t.PaymentSystem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return t, fmt.Errorf("ticket[%s]: %w", ticketID, port.ErrNotFound)
		}
		return t, fmt.Errorf("pool.QueryRow: %w", err)
	}

	t.Sum, err = decimal.NewFromString(sum)
	if err != nil {
		return t, fmt.Errorf("sum[%s] is not valid: %w", sum, err)
	}

	return t, nil
}

// DeferredPaymentCompleted settles a bill reference: a ticket backed by a
// cart marks its order paid via the same compare-and-swap as ExecuteOrder, a
// bare contract credits the payer's account balance.
func (r *orderLedger) DeferredPaymentCompleted(ctx context.Context, ticketID string, mode int, amount decimal.Decimal, paymentID string) (bool, error) {
	if !amount.IsPositive() {
		return false, nil
	}

	ok, err := withTx(ctx, r.pool, func(tx pgx.Tx) (bool, error) {
		var (
			cartID        int64
			paymentSystem string
		)

		err := tx.QueryRow(ctx, `SELECT cart_id, payment_system FROM tickets WHERE id = $1`, ticketID).
			Scan(&cartID, &paymentSystem)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return creditAccount(ctx, tx, ticketID, amount)
			}
			return false, fmt.Errorf("tx.QueryRow: %w", err)
		}

		if cartID == 0 {
			return creditAccount(ctx, tx, ticketID, amount)
		}

		var orderID string
		err = tx.QueryRow(ctx, `SELECT order_id FROM carts WHERE id = $1`, cartID).Scan(&orderID)
		if err != nil {
			return false, fmt.Errorf("cart[%d]: %w", cartID, err)
		}

		cmdTag, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = $2, payment_id = $3, payment_system = $4,
			    paid_amount = $5, updated_at = now()
			WHERE id = $1 AND status = $6`,
			orderID, domain.OrderStatusPaid, paymentID, paymentSystem,
			amount, domain.OrderStatusCreated)
		if err != nil {
			return false, fmt.Errorf("tx.Exec: %w", err)
		}

		return cmdTag.RowsAffected() > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("withTx: %w", err)
	}

	return ok, nil
}

func creditAccount(ctx context.Context, tx pgx.Tx, contract string, amount decimal.Decimal) (bool, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO accounts (contract, balance, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (contract)
		DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()`,
		contract, amount)
	if err != nil {
		return false, fmt.Errorf("tx.Exec: %w", err)
	}

	return true, nil
}
