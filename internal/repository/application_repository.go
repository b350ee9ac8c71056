package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/repository/common"
)

const approvedApplicationIndex = "uq_order_applications_approved"

var (
	ErrAlreadyApplied   = apperror.New(apperror.ErrCodeConflict, "вы уже откликнулись на этот заказ")
	ErrAlreadyAssigned  = apperror.New(apperror.ErrCodeConflict, "на заказ уже назначен исполнитель")
	ErrDepositNotLocked = apperror.New(apperror.ErrCodeConflict, "депозит по отклику не внесён")
)

// ApplicationRepository отвечает за отклики монтажёров и статус их депозитов.
type ApplicationRepository struct {
	db sqlx.ExtContext
}

func NewApplicationRepository(db sqlx.ExtContext) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// CreateApplication сохраняет отклик. Повторный отклик того же монтажёра даёт конфликт.
func (r *ApplicationRepository) CreateApplication(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO order_applications (order_id, editor_id, cover_letter, status, deposit_amount, deposit_status, deposit_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		app.OrderID, app.EditorID, app.CoverLetter, app.Status, app.DepositAmount, app.DepositStatus, app.DepositDeadline,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err, "") {
			return ErrAlreadyApplied
		}
		return fmt.Errorf("application repository: create %w", err)
	}
	return nil
}

func (r *ApplicationRepository) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return common.GetByID[models.Application](ctx, r.db, "order_applications", id, apperror.ErrApplicationNotFound)
}

// GetApplicationForUpdate блокирует строку отклика до конца транзакции.
func (r *ApplicationRepository) GetApplicationForUpdate(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := sqlx.GetContext(ctx, r.db, &app, `SELECT * FROM order_applications WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, notFoundOr(err, apperror.ErrApplicationNotFound, "application repository: get for update")
	}
	return &app, nil
}

// ListApplicationsByOrder возвращает все отклики на заказ.
func (r *ApplicationRepository) ListApplicationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Application, error) {
	apps := []models.Application{}
	if err := sqlx.SelectContext(ctx, r.db, &apps, `
		SELECT * FROM order_applications WHERE order_id = $1 ORDER BY created_at ASC
	`, orderID); err != nil {
		return nil, fmt.Errorf("application repository: list by order %w", err)
	}
	return apps, nil
}

// ListApplicationsByEditor возвращает отклики монтажёра.
func (r *ApplicationRepository) ListApplicationsByEditor(ctx context.Context, editorID uuid.UUID, limit, offset int) ([]models.Application, error) {
	apps := []models.Application{}
	if err := sqlx.SelectContext(ctx, r.db, &apps, `
		SELECT * FROM order_applications WHERE editor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, editorID, limit, offset); err != nil {
		return nil, fmt.Errorf("application repository: list by editor %w", err)
	}
	return apps, nil
}

// LockOpenApplications блокирует и возвращает отклики заказа в статусе APPLIED.
func (r *ApplicationRepository) LockOpenApplications(ctx context.Context, orderID uuid.UUID) ([]models.Application, error) {
	apps := []models.Application{}
	if err := sqlx.SelectContext(ctx, r.db, &apps, `
		SELECT * FROM order_applications
		WHERE order_id = $1 AND status = 'APPLIED'
		ORDER BY created_at ASC
		FOR UPDATE
	`, orderID); err != nil {
		return nil, fmt.Errorf("application repository: lock open %w", err)
	}
	return apps, nil
}

// GetApprovedApplication возвращает одобренный отклик заказа.
func (r *ApplicationRepository) GetApprovedApplication(ctx context.Context, orderID uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := sqlx.GetContext(ctx, r.db, &app, `
		SELECT * FROM order_applications WHERE order_id = $1 AND status = 'APPROVED' FOR UPDATE
	`, orderID); err != nil {
		return nil, notFoundOr(err, apperror.ErrApplicationNotFound, "application repository: get approved")
	}
	return &app, nil
}

// CountOpenApplications считает отклики заказа в статусе APPLIED.
func (r *ApplicationRepository) CountOpenApplications(ctx context.Context, orderID uuid.UUID) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `
		SELECT COUNT(*) FROM order_applications WHERE order_id = $1 AND status = 'APPLIED'
	`, orderID); err != nil {
		return 0, fmt.Errorf("application repository: count open %w", err)
	}
	return count, nil
}

// SetApplicationStatus меняет статус отклика, только если он всё ещё from.
// Вторая одобренная заявка на заказ упирается в частичный уникальный индекс.
func (r *ApplicationRepository) SetApplicationStatus(ctx context.Context, id uuid.UUID, from, to valueobject.ApplicationStatus) error {
	if !from.CanTransitionTo(to) {
		return apperror.Newf(apperror.ErrCodeConflict, "отклик нельзя перевести из %s в %s", from, to)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE order_applications SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		if common.IsUniqueViolation(err, approvedApplicationIndex) {
			return ErrAlreadyAssigned
		}
		if common.IsCheckViolation(err) {
			return ErrDepositNotLocked
		}
		return fmt.Errorf("application repository: set status %w", err)
	}
	return common.ExpectAffected(result, apperror.ErrStaleState)
}

// SetDepositStatus меняет статус депозита условным UPDATE, поэтому каждый переход происходит один раз.
func (r *ApplicationRepository) SetDepositStatus(ctx context.Context, id uuid.UUID, from, to valueobject.DepositStatus) error {
	if !from.CanTransitionTo(to) {
		return apperror.Newf(apperror.ErrCodeConflict, "депозит нельзя перевести из %s в %s", from, to)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE order_applications SET deposit_status = $3, updated_at = NOW() WHERE id = $1 AND deposit_status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("application repository: set deposit status %w", err)
	}
	return common.ExpectAffected(result, apperror.ErrStaleState)
}

// ListOverdueDeposits возвращает отклики, по которым депозит не внесён до дедлайна.
func (r *ApplicationRepository) ListOverdueDeposits(ctx context.Context, now time.Time, limit int) ([]models.Application, error) {
	apps := []models.Application{}
	if err := sqlx.SelectContext(ctx, r.db, &apps, `
		SELECT * FROM order_applications
		WHERE status = 'APPLIED' AND deposit_status = 'PENDING' AND deposit_deadline < $1
		ORDER BY deposit_deadline ASC
		LIMIT $2
	`, now, limit); err != nil {
		return nil, fmt.Errorf("application repository: list overdue %w", err)
	}
	return apps, nil
}
