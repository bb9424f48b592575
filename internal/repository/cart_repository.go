package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/port"
)

type cartRepository struct {
	pool *pgxpool.Pool
}

func NewCart(pool *pgxpool.Pool) port.CartRepository {
	return &cartRepository{pool: pool}
}

func (r *cartRepository) LoadByID(ctx context.Context, cartID int64, languageCode string) (domain.Cart, error) {
	var c domain.Cart

	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, contract, language_code, delivery_company
		FROM carts
		WHERE id = $1`, cartID).
		Scan(&c.ID, &c.OrderID, &c.Contract, &c.LanguageCode, &c.DeliveryCompany)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, fmt.Errorf("cart[%d]: %w", cartID, port.ErrNotFound)
		}
		return c, fmt.Errorf("pool.QueryRow: %w", err)
	}

	if languageCode != "" {
		c.LanguageCode = languageCode
	}

	return c, nil
}
