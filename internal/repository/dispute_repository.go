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

var (
	ErrDisputeNotFound = apperror.New(apperror.ErrCodeNotFound, "спор не найден")
	ErrDisputeExists   = apperror.New(apperror.ErrCodeConflict, "по заказу уже открыт спор")
)

type DisputeRepository struct {
	db sqlx.ExtContext
}

func NewDisputeRepository(db sqlx.ExtContext) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) OpenDispute(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (order_id, initiator_id, reason, status)
		VALUES ($1, $2, $3, 'OPEN')
		RETURNING id, status, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, d.OrderID, d.InitiatorID, d.Reason).
		Scan(&d.ID, &d.Status, &d.CreatedAt); err != nil {
		if common.IsUniqueViolation(err, "") {
			return ErrDisputeExists
		}
		return fmt.Errorf("dispute repository: open %w", err)
	}
	return nil
}

func (r *DisputeRepository) GetOpenDispute(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	if err := sqlx.GetContext(ctx, r.db, &d, `SELECT * FROM disputes WHERE order_id = $1 AND status = 'OPEN'`, orderID); err != nil {
		return nil, notFoundOr(err, ErrDisputeNotFound, "dispute repository: get open")
	}
	return &d, nil
}

// CloseDispute закрывает открытый спор по заказу.
func (r *DisputeRepository) CloseDispute(ctx context.Context, orderID uuid.UUID, status, resolution string, resolvedBy uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET status = $2, resolution = $3, resolved_by = $4, resolved_at = NOW()
		WHERE order_id = $1 AND status = 'OPEN'
	`, orderID, status, resolution, resolvedBy)
	if err != nil {
		return fmt.Errorf("dispute repository: close %w", err)
	}
	return common.ExpectAffected(result, ErrDisputeNotFound)
}

func (r *DisputeRepository) ListDisputesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error) {
	disputes := []models.Dispute{}
	err := sqlx.SelectContext(ctx, r.db, &disputes, `SELECT * FROM disputes WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list %w", err)
	}
	return disputes, nil
}
