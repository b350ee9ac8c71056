package models

import (
	"time"

	"github.com/google/uuid"
)

// Виды сдаваемых материалов.
const (
	DeliveryKindPreview = "PREVIEW"
	DeliveryKindFinal   = "FINAL"
)

// Delivery файл или ссылка, сданные монтажёром по заказу.
type Delivery struct {
	ID            uuid.UUID `db:"id" json:"id"`
	OrderID       uuid.UUID `db:"order_id" json:"order_id"`
	EditorID      uuid.UUID `db:"editor_id" json:"editor_id"`
	Kind          string    `db:"kind" json:"kind"`
	StorageDriver *string   `db:"storage_driver" json:"storage_driver,omitempty"`
	StoragePath   *string   `db:"storage_path" json:"-"`
	ExternalURL   *string   `db:"external_url" json:"external_url,omitempty"`
	ContentType   *string   `db:"content_type" json:"content_type,omitempty"`
	SizeBytes     int64     `db:"size_bytes" json:"size_bytes"`
	Note          *string   `db:"note" json:"note,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
