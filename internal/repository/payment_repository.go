package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/repository/common"
)

// ErrPaymentIDReused идентификатор платежа провайдера уже привязан к другому заказу.
var ErrPaymentIDReused = apperror.New(apperror.ErrCodeConflict, "платёж уже использован")

// PaymentRepository хранит пополнения через провайдеров и журнал вебхуков.
type PaymentRepository struct {
	db sqlx.ExtContext
}

func NewPaymentRepository(db sqlx.ExtContext) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (user_id, provider, provider_order_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, 'CREATED')
		RETURNING id, status, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		p.UserID, p.Provider, p.ProviderOrderID, p.Amount, p.Currency,
	).Scan(&p.ID, &p.Status, &p.CreatedAt); err != nil {
		return fmt.Errorf("payment repository: create %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetPaymentByProviderOrder(ctx context.Context, provider, providerOrderID string) (*models.Payment, error) {
	var p models.Payment
	if err := sqlx.GetContext(ctx, r.db, &p, `
		SELECT * FROM payments WHERE provider = $1 AND provider_order_id = $2
	`, provider, providerOrderID); err != nil {
		return nil, notFoundOr(err, apperror.ErrPaymentNotFound, "payment repository: get by provider order")
	}
	return &p, nil
}

// CapturePayment отмечает платёж оплаченным. Второй вызов для того же заказа
// не меняет строку и возвращает captured=false.
func (r *PaymentRepository) CapturePayment(ctx context.Context, provider, providerOrderID, providerPaymentID string) (*models.Payment, bool, error) {
	// нарушение уникальности прервало бы всю транзакцию вместе с записью вебхука
	var reused bool
	if err := sqlx.GetContext(ctx, r.db, &reused, `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE provider = $1 AND provider_payment_id = $2 AND provider_order_id <> $3
		)
	`, provider, providerPaymentID, providerOrderID); err != nil {
		return nil, false, fmt.Errorf("payment repository: check payment id %w", err)
	}
	if reused {
		return nil, false, ErrPaymentIDReused
	}

	var p models.Payment
	err := sqlx.GetContext(ctx, r.db, &p, `
		UPDATE payments
		SET status = 'CAPTURED', provider_payment_id = $3, captured_at = NOW()
		WHERE provider = $1 AND provider_order_id = $2 AND status = 'CREATED'
		RETURNING *
	`, provider, providerOrderID, providerPaymentID)
	if err == nil {
		return &p, true, nil
	}
	if common.IsUniqueViolation(err, "") {
		return nil, false, ErrPaymentIDReused
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("payment repository: capture %w", err)
	}

	existing, err := r.GetPaymentByProviderOrder(ctx, provider, providerOrderID)
	if err != nil {
		return nil, false, err
	}
	if existing.Status != models.PaymentStatusCaptured {
		return nil, false, apperror.Newf(apperror.ErrCodeConflict, "платёж в статусе %s", existing.Status)
	}
	return existing, false, nil
}

// RecordWebhookEvent регистрирует событие вебхука. Возвращает false, если оно уже было.
func (r *PaymentRepository) RecordWebhookEvent(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_events (provider, event_id, event_type) VALUES ($1, $2, $3)
		ON CONFLICT (provider, event_id) DO NOTHING
	`, provider, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("payment repository: record webhook %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment repository: record webhook rows %w", err)
	}
	return rows > 0, nil
}

func (r *PaymentRepository) ListPaymentsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	payments := []models.Payment{}
	if err := sqlx.SelectContext(ctx, r.db, &payments, `
		SELECT * FROM payments WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("payment repository: list %w", err)
	}
	return payments, nil
}
