package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Типы операций кошелька.
const (
	WalletTxTopUp               = "TOPUP"
	WalletTxDepositLock         = "DEPOSIT_LOCK"
	WalletTxDepositRelease      = "DEPOSIT_RELEASE"
	WalletTxDepositForfeit      = "DEPOSIT_FORFEIT"
	WalletTxDepositCompensation = "DEPOSIT_COMPENSATION"
	WalletTxEscrowHold          = "ESCROW_HOLD"
	WalletTxEscrowRelease       = "ESCROW_RELEASE"
	WalletTxEscrowRefund        = "ESCROW_REFUND"
)

// Статусы escrow
const (
	EscrowStatusHeld     = "HELD"
	EscrowStatusReleased = "RELEASED"
	EscrowStatusRefunded = "REFUNDED"
)

// Wallet баланс пользователя. В Locked лежат средства под депозитами и escrow.
type Wallet struct {
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Locked    decimal.Decimal `db:"locked" json:"locked"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// WalletTransaction строка журнала движения средств.
type WalletTransaction struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	OrderID       *uuid.UUID      `db:"order_id" json:"order_id,omitempty"`
	ApplicationID *uuid.UUID      `db:"application_id" json:"application_id,omitempty"`
	Type          string          `db:"type" json:"type"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Reference     *string         `db:"reference" json:"reference,omitempty"`
	Description   *string         `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Escrow сумма заказа, замороженная у креатора до завершения.
type Escrow struct {
	OrderID   uuid.UUID       `db:"order_id" json:"order_id"`
	CreatorID uuid.UUID       `db:"creator_id" json:"creator_id"`
	EditorID  uuid.UUID       `db:"editor_id" json:"editor_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	SettledAt *time.Time      `db:"settled_at" json:"settled_at,omitempty"`
}
