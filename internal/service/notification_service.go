package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cutflow/cutflow-backend/internal/logger"
	"github.com/cutflow/cutflow-backend/internal/models"
)

// Имена событий реального времени.
const (
	EventNotification = "notification"
	orderEventPrefix  = "order."
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// RealtimePublisher доставляет события подключённым клиентам.
// Возвращаемое значение показывает, дошло ли событие хотя бы до одного соединения.
type RealtimePublisher interface {
	SendToUser(userID uuid.UUID, event string, data any) bool
	SendToOrder(orderID uuid.UUID, event string, data any) int
}

// NotificationInput содержимое нового уведомления.
type NotificationInput struct {
	UserID  uuid.UUID
	Type    string
	Title   string
	Message string
	Link    string
}

// NotificationService сохраняет уведомления и рассылает их в реальном времени.
type NotificationService struct {
	repo      NotificationRepository
	publisher RealtimePublisher
	log       *logrus.Entry
}

// NewNotificationService создаёт сервис уведомлений. publisher может быть nil,
// тогда уведомления только сохраняются.
func NewNotificationService(repo NotificationRepository, publisher RealtimePublisher) *NotificationService {
	return &NotificationService{
		repo:      repo,
		publisher: publisher,
		log:       logger.Component("notification_service"),
	}
}

// CreateAndSend сохраняет уведомление и отправляет его пользователю, если тот онлайн.
func (s *NotificationService) CreateAndSend(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	n := &models.Notification{
		UserID:  in.UserID,
		Type:    in.Type,
		Title:   in.Title,
		Message: in.Message,
	}
	if in.Link != "" {
		n.Link = &in.Link
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		delivered := s.publisher.SendToUser(n.UserID, EventNotification, n)
		s.log.WithFields(logrus.Fields{
			"user_id":   n.UserID,
			"type":      n.Type,
			"delivered": delivered,
		}).Debug("уведомление отправлено")
	}
	return n, nil
}

// Notify вариант CreateAndSend для побочных уведомлений: ошибка только логируется.
func (s *NotificationService) Notify(ctx context.Context, in NotificationInput) {
	if _, err := s.CreateAndSend(ctx, in); err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": in.UserID,
			"type":    in.Type,
			"error":   err.Error(),
		}).Error("не удалось создать уведомление")
	}
}

// SendOrderEvent рассылает событие подписчикам заказа без сохранения.
func (s *NotificationService) SendOrderEvent(orderID uuid.UUID, action string, data any) int {
	if s.publisher == nil {
		return 0
	}
	return s.publisher.SendToOrder(orderID, orderEventPrefix+action, data)
}

// List возвращает уведомления пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.List(ctx, userID, limit, offset, unreadOnly)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkAsRead отмечает уведомление прочитанным. Чужое уведомление выглядит как несуществующее.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// normalizePage ограничивает параметры пагинации.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
