package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/repository/common"
)

// OrderRepository отвечает за таблицу orders.
type OrderRepository struct {
	db sqlx.ExtContext
}

func NewOrderRepository(db sqlx.ExtContext) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder сохраняет новый заказ в статусе OPEN.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (creator_id, title, description, amount, deadline, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		order.CreatorID, order.Title, order.Description, order.Amount, order.Deadline, order.Status,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("order repository: create %w", err)
	}
	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return common.GetByID[models.Order](ctx, r.db, "orders", id, apperror.ErrOrderNotFound)
}

// GetOrderForUpdate блокирует строку заказа до конца транзакции.
func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := sqlx.GetContext(ctx, r.db, &order, `SELECT * FROM orders WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, notFoundOr(err, apperror.ErrOrderNotFound, "order repository: get for update")
	}
	return &order, nil
}

// TransitionOrder меняет статус, только если заказ всё ещё в статусе from.
func (r *OrderRepository) TransitionOrder(ctx context.Context, id uuid.UUID, from, to valueobject.OrderStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $3,
			updated_at = NOW(),
			completed_at = CASE WHEN $3 = 'COMPLETED' THEN NOW() ELSE completed_at END
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("order repository: transition %w", err)
	}
	return common.ExpectAffected(result, apperror.ErrStaleState)
}

// AssignEditor назначает исполнителя заказа.
func (r *OrderRepository) AssignEditor(ctx context.Context, orderID, editorID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET editor_id = $2, updated_at = NOW() WHERE id = $1 AND editor_id IS NULL
	`, orderID, editorID)
	if err != nil {
		return fmt.Errorf("order repository: assign editor %w", err)
	}
	return common.ExpectAffected(result, apperror.ErrStaleState)
}

// SetVideoURL сохраняет ссылку на опубликованное видео.
func (r *OrderRepository) SetVideoURL(ctx context.Context, orderID uuid.UUID, videoURL string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE orders SET video_url = $2, updated_at = NOW() WHERE id = $1`, orderID, videoURL)
	if err != nil {
		return fmt.Errorf("order repository: set video url %w", err)
	}
	return common.ExpectAffected(result, apperror.ErrOrderNotFound)
}

// ListOrders возвращает заказы в указанных статусах, новые первыми.
func (r *OrderRepository) ListOrders(ctx context.Context, filter models.OrderListFilter) ([]models.Order, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}

	orders := []models.Order{}
	err := sqlx.SelectContext(ctx, r.db, &orders, `
		SELECT * FROM orders
		WHERE status = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, pq.Array(statuses), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("order repository: list %w", err)
	}
	return orders, nil
}

// ListOrdersByCreator возвращает заказы креатора.
func (r *OrderRepository) ListOrdersByCreator(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]models.Order, error) {
	orders := []models.Order{}
	err := sqlx.SelectContext(ctx, r.db, &orders, `
		SELECT * FROM orders WHERE creator_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, creatorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order repository: list by creator %w", err)
	}
	return orders, nil
}

// ListOrdersByEditor возвращает заказы, назначенные монтажёру.
func (r *OrderRepository) ListOrdersByEditor(ctx context.Context, editorID uuid.UUID, limit, offset int) ([]models.Order, error) {
	orders := []models.Order{}
	err := sqlx.SelectContext(ctx, r.db, &orders, `
		SELECT * FROM orders WHERE editor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, editorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order repository: list by editor %w", err)
	}
	return orders, nil
}

// ListCompletedOrdersForUser возвращает завершённые заказы, где пользователь креатор или исполнитель.
func (r *OrderRepository) ListCompletedOrdersForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders := []models.Order{}
	err := sqlx.SelectContext(ctx, r.db, &orders, `
		SELECT * FROM orders
		WHERE (creator_id = $1 OR editor_id = $1) AND status = 'COMPLETED'
		ORDER BY completed_at DESC NULLS LAST
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("order repository: list completed %w", err)
	}
	return orders, nil
}
