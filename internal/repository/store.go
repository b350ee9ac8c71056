package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/repository/common"
)

// OrderTx операции с заказом внутри транзакции.
type OrderTx interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	TransitionOrder(ctx context.Context, id uuid.UUID, from, to valueobject.OrderStatus) error
	AssignEditor(ctx context.Context, orderID, editorID uuid.UUID) error
	SetVideoURL(ctx context.Context, orderID uuid.UUID, videoURL string) error
}

// ApplicationTx операции с откликами внутри транзакции.
type ApplicationTx interface {
	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplicationForUpdate(ctx context.Context, id uuid.UUID) (*models.Application, error)
	LockOpenApplications(ctx context.Context, orderID uuid.UUID) ([]models.Application, error)
	GetApprovedApplication(ctx context.Context, orderID uuid.UUID) (*models.Application, error)
	CountOpenApplications(ctx context.Context, orderID uuid.UUID) (int, error)
	SetApplicationStatus(ctx context.Context, id uuid.UUID, from, to valueobject.ApplicationStatus) error
	SetDepositStatus(ctx context.Context, id uuid.UUID, from, to valueobject.DepositStatus) error
}

// LedgerTx движение денег внутри транзакции.
type LedgerTx interface {
	LockDeposit(ctx context.Context, app *models.Application) error
	ReleaseDeposit(ctx context.Context, app *models.Application) error
	ForfeitDeposit(ctx context.Context, app *models.Application, beneficiaryID uuid.UUID) error
	HoldEscrow(ctx context.Context, order *models.Order, editorID uuid.UUID) (*models.Escrow, error)
	ReleaseEscrow(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error)
	RefundEscrow(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error)
	CreditWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference, description string) (*models.WalletTransaction, error)
}

type DisputeTx interface {
	OpenDispute(ctx context.Context, d *models.Dispute) error
	CloseDispute(ctx context.Context, orderID uuid.UUID, status, resolution string, resolvedBy uuid.UUID) error
}

type HistoryTx interface {
	AddHistory(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID, action string, oldValue, newValue interface{}) error
}

type PaymentTx interface {
	CapturePayment(ctx context.Context, provider, providerOrderID, providerPaymentID string) (*models.Payment, bool, error)
	RecordWebhookEvent(ctx context.Context, provider, eventID, eventType string) (bool, error)
}

type DeliveryTx interface {
	CreateDelivery(ctx context.Context, d *models.Delivery) error
}

// Tx объединяет репозитории, работающие поверх одной транзакции.
type Tx interface {
	OrderTx
	ApplicationTx
	LedgerTx
	DisputeTx
	HistoryTx
	PaymentTx
	DeliveryTx
}

// Store открывает транзакции и раздаёт в них репозитории.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type txRepos struct {
	*OrderRepository
	*ApplicationRepository
	*WalletRepository
	*DisputeRepository
	*OrderHistoryRepository
	*PaymentRepository
	*DeliveryRepository
}

// WithinTx выполняет fn в одной транзакции: при ошибке ничего не фиксируется.
func (s *Store) WithinTx(ctx context.Context, fn func(Tx) error) error {
	return common.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&txRepos{
			OrderRepository:        NewOrderRepository(tx),
			ApplicationRepository:  NewApplicationRepository(tx),
			WalletRepository:       NewWalletRepository(tx),
			DisputeRepository:      NewDisputeRepository(tx),
			OrderHistoryRepository: NewOrderHistoryRepository(tx),
			PaymentRepository:      NewPaymentRepository(tx),
			DeliveryRepository:     NewDeliveryRepository(tx),
		})
	})
}

var _ Tx = (*txRepos)(nil)
