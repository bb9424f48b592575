package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/port"
)

// deliveryRepository records a pickup request for the delivery company; the
// dispatch daemon polls the table and talks to the carriers.
type deliveryRepository struct {
	pool *pgxpool.Pool
}

func NewDelivery(pool *pgxpool.Pool) port.DeliveryDispatcher {
	return &deliveryRepository{pool: pool}
}

func (r *deliveryRepository) CreateRequest(ctx context.Context, companyID string, cart domain.Cart, meta map[string]string) error {
	doc, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO delivery_requests (company, cart_id, order_id, meta, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		companyID, cart.ID, cart.OrderID, doc)
	if err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}

	return nil
}
