package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
)

// Order описывает заказ креатора на монтаж.
type Order struct {
	ID          uuid.UUID               `db:"id" json:"id"`
	CreatorID   uuid.UUID               `db:"creator_id" json:"creator_id"`
	EditorID    *uuid.UUID              `db:"editor_id" json:"editor_id,omitempty"`
	Title       string                  `db:"title" json:"title"`
	Description string                  `db:"description" json:"description"`
	Amount      decimal.Decimal         `db:"amount" json:"amount"`
	Deadline    time.Time               `db:"deadline" json:"deadline"`
	Status      valueobject.OrderStatus `db:"status" json:"status"`
	VideoURL    *string                 `db:"video_url" json:"video_url,omitempty"`
	CreatedAt   time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time               `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time              `db:"completed_at" json:"completed_at,omitempty"`
}

// IsParticipant сообщает, участвует ли пользователь в заказе.
func (o *Order) IsParticipant(userID uuid.UUID) bool {
	return o.CreatorID == userID || (o.EditorID != nil && *o.EditorID == userID)
}

// IsAssignedEditor сообщает, назначен ли пользователь исполнителем.
func (o *Order) IsAssignedEditor(userID uuid.UUID) bool {
	return o.EditorID != nil && *o.EditorID == userID
}

// OrderListFilter задаёт фильтр ленты заказов.
type OrderListFilter struct {
	Statuses []valueobject.OrderStatus
	Limit    int
	Offset   int
}
