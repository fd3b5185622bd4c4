package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Orders are written by the kitchen service. These writers seed and advance
// rows for the read-side tests.

var errOrderExists = errors.New("order already exists")

func (r *Repository) createOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (id, status, estimated_preparation_minutes, server_time_remaining_minutes,
	                              items, subtotal, tax, total, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()), NOW())`

	var createdAt sql.NullTime
	if !order.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: order.CreatedAt, Valid: true}
	}

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.Status,
		order.EstimatedPreparationMinutes,
		nullFloat(order.ServerTimeRemainingMinutes),
		itemsJSON,
		order.Subtotal,
		order.Tax,
		order.Total,
		createdAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return errOrderExists
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

// updateStatus sets status and the kitchen's remaining-time override. A nil
// override clears it.
func (r *Repository) updateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, serverRemaining *float64) (*domain.Order, error) {
	query := `UPDATE orders
	          SET status = $2, server_time_remaining_minutes = $3, updated_at = NOW()
	          WHERE id = $1
	          RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id, status, nullFloat(serverRemaining)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return order, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
