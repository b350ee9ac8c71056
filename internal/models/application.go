package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
)

// Application отклик монтажёра на заказ, обеспеченный депозитом.
type Application struct {
	ID              uuid.UUID                     `db:"id" json:"id"`
	OrderID         uuid.UUID                     `db:"order_id" json:"order_id"`
	EditorID        uuid.UUID                     `db:"editor_id" json:"editor_id"`
	CoverLetter     string                        `db:"cover_letter" json:"cover_letter"`
	Status          valueobject.ApplicationStatus `db:"status" json:"status"`
	DepositAmount   decimal.Decimal               `db:"deposit_amount" json:"deposit_amount"`
	DepositStatus   valueobject.DepositStatus     `db:"deposit_status" json:"deposit_status"`
	DepositDeadline time.Time                     `db:"deposit_deadline" json:"deposit_deadline"`
	CreatedAt       time.Time                     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time                     `db:"updated_at" json:"updated_at"`
}

// IsDepositOverdue сообщает, что срок внесения депозита истёк.
func (a *Application) IsDepositOverdue(now time.Time) bool {
	return a.DepositStatus == valueobject.DepositStatusPending && now.After(a.DepositDeadline)
}
