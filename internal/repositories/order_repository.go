package repositories

import (
	"context"
	"fmt"

	"github.com/adstudio/backend/internal/db"
	"github.com/adstudio/backend/internal/models"
)

// PostgresOrderRepository persists custom production orders.
type PostgresOrderRepository struct {
	pool db.Pool
}

// NewPostgresOrderRepository constructs an order repository backed by PostgreSQL.
func NewPostgresOrderRepository(pool db.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

// Create stores a submitted order.
func (r *PostgresOrderRepository) Create(ctx context.Context, order models.CustomOrder) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO custom_orders (id, account_id, description, age_range, style, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, order.ID, order.AccountID, order.Description, order.AgeRange, order.Style, order.Status, order.CreatedAt)
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert custom order: %w", err)
	}
	return nil
}

// ListForAccount returns the orders of accountID, newest first.
func (r *PostgresOrderRepository) ListForAccount(ctx context.Context, accountID string, limit int) ([]models.CustomOrder, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, account_id, description, age_range, style, status, created_at
        FROM custom_orders
        WHERE account_id = $1
        ORDER BY created_at DESC, id
        LIMIT $2
    `, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query custom orders: %w", err)
	}
	defer rows.Close()

	orders := []models.CustomOrder{}
	for rows.Next() {
		var order models.CustomOrder
		if err := rows.Scan(&order.ID, &order.AccountID, &order.Description, &order.AgeRange, &order.Style, &order.Status, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan custom order: %w", err)
		}
		order.CreatedAt = order.CreatedAt.UTC()
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate custom orders: %w", err)
	}

	return orders, nil
}
