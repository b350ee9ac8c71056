package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы уведомлений.
const (
	NotificationApplicationReceived = "application_received"
	NotificationApplicationApproved = "application_approved"
	NotificationApplicationRejected = "application_rejected"
	NotificationDepositLocked       = "deposit_locked"
	NotificationDepositReleased     = "deposit_released"
	NotificationOrderUpdated        = "order_updated"
	NotificationDeliveryReceived    = "delivery_received"
	NotificationPaymentCaptured     = "payment_captured"
	NotificationDisputeOpened       = "dispute_opened"
	NotificationDisputeResolved     = "dispute_resolved"
)

// Notification уведомление пользователя. Меняется только флаг прочтения.
type Notification struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	Link      *string   `db:"link" json:"link,omitempty"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
