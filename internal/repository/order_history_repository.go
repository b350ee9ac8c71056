package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cutflow/cutflow-backend/internal/models"
)

type OrderHistoryRepository struct {
	db sqlx.ExtContext
}

func NewOrderHistoryRepository(db sqlx.ExtContext) *OrderHistoryRepository {
	return &OrderHistoryRepository{db: db}
}

// AddHistory пишет запись журнала заказа. userID пуст для системных действий.
func (r *OrderHistoryRepository) AddHistory(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID, action string, oldValue, newValue interface{}) error {
	oldJSON, err := json.Marshal(oldValue)
	if err != nil {
		return fmt.Errorf("order history: marshal old value %w", err)
	}
	newJSON, err := json.Marshal(newValue)
	if err != nil {
		return fmt.Errorf("order history: marshal new value %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO order_history (order_id, user_id, action, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5)
	`, orderID, userID, action, oldJSON, newJSON)
	if err != nil {
		return fmt.Errorf("order history: add %w", err)
	}
	return nil
}

func (r *OrderHistoryRepository) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderHistory, error) {
	history := []models.OrderHistory{}
	err := sqlx.SelectContext(ctx, r.db, &history, `
		SELECT * FROM order_history WHERE order_id = $1 ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order history: list %w", err)
	}
	return history, nil
}
