package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Платёжные провайдеры.
const (
	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"
)

// Статусы платежей
const (
	PaymentStatusCreated  = "CREATED"
	PaymentStatusCaptured = "CAPTURED"
	PaymentStatusFailed   = "FAILED"
)

// Payment пополнение кошелька через внешнего провайдера.
type Payment struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	UserID            uuid.UUID       `db:"user_id" json:"user_id"`
	Provider          string          `db:"provider" json:"provider"`
	ProviderOrderID   string          `db:"provider_order_id" json:"provider_order_id"`
	ProviderPaymentID *string         `db:"provider_payment_id" json:"provider_payment_id,omitempty"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Currency          string          `db:"currency" json:"currency"`
	Status            string          `db:"status" json:"status"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	CapturedAt        *time.Time      `db:"captured_at" json:"captured_at,omitempty"`
}
