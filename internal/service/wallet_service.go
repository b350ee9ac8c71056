package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/cutflow/cutflow-backend/internal/models"
)

// WalletRepository чтение кошелька и журнала операций.
type WalletRepository interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ListWalletTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
}

// WalletService отдаёт баланс и историю операций пользователя.
type WalletService struct {
	repo WalletRepository
}

func NewWalletService(repo WalletRepository) *WalletService {
	return &WalletService{repo: repo}
}

// GetWallet возвращает доступный и заблокированный баланс.
func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return s.repo.GetWallet(ctx, userID)
}

func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListWalletTransactions(ctx, userID, limit, offset)
}
