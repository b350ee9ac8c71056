package service

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/invoice"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
)

// InvoiceOrders заказы, по которым выставляются счета.
type InvoiceOrders interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListCompletedOrdersForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}

// UserDirectory находит пользователей по идентификатору.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// InvoiceSummary строка списка счетов.
type InvoiceSummary struct {
	Number      string          `json:"number"`
	OrderID     uuid.UUID       `json:"order_id"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Role        string          `json:"role"`
	CompletedAt time.Time       `json:"completed_at"`
}

// InvoiceService выдаёт счета по завершённым заказам.
type InvoiceService struct {
	orders   InvoiceOrders
	users    UserDirectory
	currency string
	now      func() time.Time
}

func NewInvoiceService(orders InvoiceOrders, users UserDirectory, currency string) *InvoiceService {
	return &InvoiceService{orders: orders, users: users, currency: currency, now: time.Now}
}

// List возвращает счета пользователя: как заказчика и как исполнителя.
func (s *InvoiceService) List(ctx context.Context, userID uuid.UUID) ([]InvoiceSummary, error) {
	orders, err := s.orders.ListCompletedOrdersForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]InvoiceSummary, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		role := "creator"
		if o.CreatorID != userID {
			role = "editor"
		}
		completed := completedAt(o)
		summaries = append(summaries, InvoiceSummary{
			Number:      invoice.Number(o.ID.String(), completed),
			OrderID:     o.ID,
			Title:       o.Title,
			Amount:      o.Amount,
			Currency:    s.currency,
			Role:        role,
			CompletedAt: completed,
		})
	}
	return summaries, nil
}

// Render формирует PDF счёта. Доступен креатору и назначенному исполнителю завершённого заказа.
func (s *InvoiceService) Render(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) ([]byte, string, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if !canView(order, userID, role) {
		return nil, "", apperror.ErrOrderNotFound
	}
	if order.Status != valueobject.OrderStatusCompleted || order.EditorID == nil {
		return nil, "", apperror.New(apperror.ErrCodeConflict, "счёт доступен только по завершённому заказу")
	}

	creator, err := s.users.GetByID(ctx, order.CreatorID)
	if err != nil {
		return nil, "", err
	}
	editor, err := s.users.GetByID(ctx, *order.EditorID)
	if err != nil {
		return nil, "", err
	}

	completed := completedAt(order)
	doc := invoice.Document{
		Number:      invoice.Number(order.ID.String(), completed),
		IssuedAt:    s.now().UTC(),
		CompletedAt: completed,
		OrderID:     order.ID.String(),
		Title:       order.Title,
		Creator:     invoice.Party{Name: creator.DisplayName, Email: creator.Email},
		Editor:      invoice.Party{Name: editor.DisplayName, Email: editor.Email},
		Amount:      order.Amount,
		Currency:    s.currency,
	}
	if order.VideoURL != nil {
		doc.VideoURL = *order.VideoURL
	}

	var buf bytes.Buffer
	if err := invoice.Render(&buf, doc); err != nil {
		return nil, "", apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сформировать счёт")
	}
	return buf.Bytes(), doc.Number + ".pdf", nil
}

func completedAt(o *models.Order) time.Time {
	if o.CompletedAt != nil {
		return o.CompletedAt.UTC()
	}
	return o.UpdatedAt.UTC()
}
