package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/repository/common"
)

var (
	ErrEscrowNotFound     = errors.New("escrow not found")
	ErrDuplicateReference = apperror.New(apperror.ErrCodeConflict, "операция уже проведена")
)

// WalletRepository ведёт балансы и журнал операций. Все методы, меняющие деньги,
// рассчитаны на вызов внутри транзакции.
type WalletRepository struct {
	db sqlx.ExtContext
}

func NewWalletRepository(db sqlx.ExtContext) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetWallet возвращает кошелёк пользователя, создаёт пустой если его нет.
func (r *WalletRepository) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `
		INSERT INTO wallets (user_id, balance, locked)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, balance, locked, updated_at
	`
	if err := sqlx.GetContext(ctx, r.db, &wallet, query, userID); err != nil {
		return nil, fmt.Errorf("wallet repository: get wallet %w", err)
	}
	return &wallet, nil
}

// ListWalletTransactions возвращает журнал операций пользователя.
func (r *WalletRepository) ListWalletTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	txs := []models.WalletTransaction{}
	if err := sqlx.SelectContext(ctx, r.db, &txs, `
		SELECT * FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("wallet repository: list transactions %w", err)
	}
	return txs, nil
}

// lockWallet блокирует строку кошелька, создавая её при необходимости.
func (r *WalletRepository) lockWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID); err != nil {
		return nil, fmt.Errorf("wallet repository: ensure wallet %w", err)
	}
	var wallet models.Wallet
	if err := sqlx.GetContext(ctx, r.db, &wallet, `
		SELECT user_id, balance, locked, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID); err != nil {
		return nil, fmt.Errorf("wallet repository: lock wallet %w", err)
	}
	return &wallet, nil
}

// move меняет доступный и заблокированный баланс на заданные дельты.
func (r *WalletRepository) move(ctx context.Context, userID uuid.UUID, balanceDelta, lockedDelta decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET balance = balance + $2, locked = locked + $3, updated_at = NOW() WHERE user_id = $1
	`, userID, balanceDelta, lockedDelta)
	if err != nil {
		if common.IsCheckViolation(err) {
			return apperror.ErrInsufficientFunds
		}
		return fmt.Errorf("wallet repository: move %w", err)
	}
	return nil
}

func (r *WalletRepository) record(ctx context.Context, entry *models.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (user_id, order_id, application_id, type, amount, reference, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		entry.UserID, entry.OrderID, entry.ApplicationID, entry.Type, entry.Amount, entry.Reference, entry.Description,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		if common.IsUniqueViolation(err, "") {
			return ErrDuplicateReference
		}
		return fmt.Errorf("wallet repository: record %s %w", entry.Type, err)
	}
	return nil
}

func depositEntry(app *models.Application, userID uuid.UUID, txType, description string) *models.WalletTransaction {
	appID := app.ID
	orderID := app.OrderID
	return &models.WalletTransaction{
		UserID:        userID,
		OrderID:       &orderID,
		ApplicationID: &appID,
		Type:          txType,
		Amount:        app.DepositAmount,
		Description:   &description,
	}
}

// LockDeposit переводит депозит отклика из доступного баланса монтажёра в заблокированный.
// Баланс проверяется до записи, поэтому нехватка средств не прерывает транзакцию.
func (r *WalletRepository) LockDeposit(ctx context.Context, app *models.Application) error {
	if !app.DepositAmount.IsPositive() {
		return nil
	}
	wallet, err := r.lockWallet(ctx, app.EditorID)
	if err != nil {
		return err
	}
	if wallet.Balance.LessThan(app.DepositAmount) {
		return apperror.ErrInsufficientFunds
	}
	if err := r.move(ctx, app.EditorID, app.DepositAmount.Neg(), app.DepositAmount); err != nil {
		return err
	}
	return r.record(ctx, depositEntry(app, app.EditorID, models.WalletTxDepositLock, "Депозит за отклик"))
}

// ReleaseDeposit возвращает заблокированный депозит монтажёру.
func (r *WalletRepository) ReleaseDeposit(ctx context.Context, app *models.Application) error {
	if !app.DepositAmount.IsPositive() {
		return nil
	}
	if _, err := r.lockWallet(ctx, app.EditorID); err != nil {
		return err
	}
	if err := r.move(ctx, app.EditorID, app.DepositAmount, app.DepositAmount.Neg()); err != nil {
		return err
	}
	return r.record(ctx, depositEntry(app, app.EditorID, models.WalletTxDepositRelease, "Возврат депозита"))
}

// ForfeitDeposit списывает депозит монтажёра в пользу beneficiary.
func (r *WalletRepository) ForfeitDeposit(ctx context.Context, app *models.Application, beneficiaryID uuid.UUID) error {
	if !app.DepositAmount.IsPositive() {
		return nil
	}
	// кошельки блокируются в порядке id, чтобы встречные операции не дедлочили
	first, second := app.EditorID, beneficiaryID
	if second.String() < first.String() {
		first, second = second, first
	}
	if _, err := r.lockWallet(ctx, first); err != nil {
		return err
	}
	if _, err := r.lockWallet(ctx, second); err != nil {
		return err
	}

	if err := r.move(ctx, app.EditorID, decimal.Zero, app.DepositAmount.Neg()); err != nil {
		return err
	}
	if err := r.record(ctx, depositEntry(app, app.EditorID, models.WalletTxDepositForfeit, "Депозит удержан по спору")); err != nil {
		return err
	}
	if err := r.move(ctx, beneficiaryID, app.DepositAmount, decimal.Zero); err != nil {
		return err
	}
	return r.record(ctx, depositEntry(app, beneficiaryID, models.WalletTxDepositCompensation, "Компенсация по спору"))
}

// HoldEscrow замораживает сумму заказа на кошельке креатора.
func (r *WalletRepository) HoldEscrow(ctx context.Context, order *models.Order, editorID uuid.UUID) (*models.Escrow, error) {
	wallet, err := r.lockWallet(ctx, order.CreatorID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance.LessThan(order.Amount) {
		return nil, apperror.ErrInsufficientFunds
	}
	if err := r.move(ctx, order.CreatorID, order.Amount.Neg(), order.Amount); err != nil {
		return nil, err
	}

	var escrow models.Escrow
	if err := sqlx.GetContext(ctx, r.db, &escrow, `
		INSERT INTO escrows (order_id, creator_id, editor_id, amount, status)
		VALUES ($1, $2, $3, $4, 'HELD')
		RETURNING *
	`, order.ID, order.CreatorID, editorID, order.Amount); err != nil {
		if common.IsUniqueViolation(err, "") {
			return nil, ErrDuplicateReference
		}
		return nil, fmt.Errorf("wallet repository: create escrow %w", err)
	}

	orderID := order.ID
	reference := "escrow:hold:" + order.ID.String()
	description := "Заморозка средств для заказа"
	if err := r.record(ctx, &models.WalletTransaction{
		UserID:      order.CreatorID,
		OrderID:     &orderID,
		Type:        models.WalletTxEscrowHold,
		Amount:      order.Amount,
		Reference:   &reference,
		Description: &description,
	}); err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *WalletRepository) lockHeldEscrow(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := sqlx.GetContext(ctx, r.db, &escrow, `
		SELECT * FROM escrows WHERE order_id = $1 AND status = 'HELD' FOR UPDATE
	`, orderID); err != nil {
		return nil, notFoundOr(err, ErrEscrowNotFound, "wallet repository: lock escrow")
	}
	return &escrow, nil
}

func (r *WalletRepository) settleEscrow(ctx context.Context, escrow *models.Escrow, status string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE escrows SET status = $2, settled_at = NOW() WHERE order_id = $1 AND status = 'HELD'
	`, escrow.OrderID, status)
	if err != nil {
		return fmt.Errorf("wallet repository: settle escrow %w", err)
	}
	if err := common.ExpectAffected(result, apperror.ErrStaleState); err != nil {
		return err
	}
	escrow.Status = status
	return nil
}

// ReleaseEscrow выплачивает замороженную сумму исполнителю.
func (r *WalletRepository) ReleaseEscrow(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	escrow, err := r.lockHeldEscrow(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := r.lockWallet(ctx, escrow.EditorID); err != nil {
		return nil, err
	}

	if err := r.move(ctx, escrow.CreatorID, decimal.Zero, escrow.Amount.Neg()); err != nil {
		return nil, err
	}
	if err := r.move(ctx, escrow.EditorID, escrow.Amount, decimal.Zero); err != nil {
		return nil, err
	}
	if err := r.settleEscrow(ctx, escrow, models.EscrowStatusReleased); err != nil {
		return nil, err
	}

	reference := "escrow:release:" + orderID.String()
	description := "Получение оплаты за заказ"
	if err := r.record(ctx, &models.WalletTransaction{
		UserID:      escrow.EditorID,
		OrderID:     &orderID,
		Type:        models.WalletTxEscrowRelease,
		Amount:      escrow.Amount,
		Reference:   &reference,
		Description: &description,
	}); err != nil {
		return nil, err
	}
	return escrow, nil
}

// RefundEscrow возвращает замороженную сумму креатору. Без escrow возвращает ErrEscrowNotFound.
func (r *WalletRepository) RefundEscrow(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	escrow, err := r.lockHeldEscrow(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := r.move(ctx, escrow.CreatorID, escrow.Amount, escrow.Amount.Neg()); err != nil {
		return nil, err
	}
	if err := r.settleEscrow(ctx, escrow, models.EscrowStatusRefunded); err != nil {
		return nil, err
	}

	reference := "escrow:refund:" + orderID.String()
	description := "Возврат средств за отменённый заказ"
	if err := r.record(ctx, &models.WalletTransaction{
		UserID:      escrow.CreatorID,
		OrderID:     &orderID,
		Type:        models.WalletTxEscrowRefund,
		Amount:      escrow.Amount,
		Reference:   &reference,
		Description: &description,
	}); err != nil {
		return nil, err
	}
	return escrow, nil
}

// CreditWallet зачисляет внешнее поступление. reference уникален, повтор даёт ErrDuplicateReference.
func (r *WalletRepository) CreditWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference, description string) (*models.WalletTransaction, error) {
	if _, err := r.lockWallet(ctx, userID); err != nil {
		return nil, err
	}
	entry := &models.WalletTransaction{
		UserID:      userID,
		Type:        models.WalletTxTopUp,
		Amount:      amount,
		Reference:   &reference,
		Description: &description,
	}
	if err := r.record(ctx, entry); err != nil {
		return nil, err
	}
	if err := r.move(ctx, userID, amount, decimal.Zero); err != nil {
		return nil, err
	}
	return entry, nil
}
