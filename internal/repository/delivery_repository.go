package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/repository/common"
)

// DeliveryRepository хранит сданные по заказу материалы.
type DeliveryRepository struct {
	db sqlx.ExtContext
}

func NewDeliveryRepository(db sqlx.ExtContext) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	query := `
		INSERT INTO deliveries (order_id, editor_id, kind, storage_driver, storage_path, external_url, content_type, size_bytes, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		d.OrderID, d.EditorID, d.Kind, d.StorageDriver, d.StoragePath, d.ExternalURL, d.ContentType, d.SizeBytes, d.Note,
	).Scan(&d.ID, &d.CreatedAt); err != nil {
		return fmt.Errorf("delivery repository: create %w", err)
	}
	return nil
}

func (r *DeliveryRepository) GetDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	return common.GetByID[models.Delivery](ctx, r.db, "deliveries", id, apperror.ErrDeliveryNotFound)
}

func (r *DeliveryRepository) ListDeliveriesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Delivery, error) {
	deliveries := []models.Delivery{}
	if err := sqlx.SelectContext(ctx, r.db, &deliveries, `
		SELECT * FROM deliveries WHERE order_id = $1 ORDER BY created_at ASC
	`, orderID); err != nil {
		return nil, fmt.Errorf("delivery repository: list %w", err)
	}
	return deliveries, nil
}
