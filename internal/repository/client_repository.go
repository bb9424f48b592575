package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/port"
)

// clientRepository reads clients from Postgres; the account view lives in a
// Redis cache other services read, so a balance change must drop it.
type clientRepository struct {
	pool  *pgxpool.Pool
	cache *redis.Client
}

func NewClient(pool *pgxpool.Pool, cache *redis.Client) port.ClientRepository {
	return &clientRepository{pool: pool, cache: cache}
}

func (r *clientRepository) Load(ctx context.Context, contract, countryCode string) (domain.Client, error) {
	var c domain.Client

	query := `SELECT contract, email, country_code FROM clients WHERE contract = $1`
	args := []any{contract}
	if countryCode != "" {
		query += ` AND country_code = $2`
		args = append(args, countryCode)
	}

	err := r.pool.QueryRow(ctx, query, args...).Scan(&c.Contract, &c.Email, &c.CountryCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, fmt.Errorf("client[%s]: %w", contract, port.ErrNotFound)
		}
		return c, fmt.Errorf("pool.QueryRow: %w", err)
	}

	return c, nil
}

func (r *clientRepository) ClearCache(ctx context.Context, contract string) error {
	if r.cache == nil {
		return nil
	}

	if err := r.cache.Del(ctx, "client:"+contract).Err(); err != nil {
		return fmt.Errorf("cache.Del[%s]: %w", contract, err)
	}

	return nil
}
