package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cutflow/cutflow-backend/internal/logger"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) SendToUser(userID uuid.UUID, event string, data any) bool {
	return m.Called(userID, event, data).Bool(0)
}

func (m *mockPublisher) SendToOrder(orderID uuid.UUID, event string, data any) int {
	return m.Called(orderID, event, data).Int(0)
}

type memoryNotifications struct {
	rows    []models.Notification
	failing bool
}

func (r *memoryNotifications) Create(_ context.Context, n *models.Notification) error {
	if r.failing {
		return errors.New("db down")
	}
	n.ID = uuid.New()
	r.rows = append(r.rows, *n)
	return nil
}

func (r *memoryNotifications) List(_ context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	out := []models.Notification{}
	for _, n := range r.rows {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	if offset >= len(out) {
		return []models.Notification{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryNotifications) MarkAsRead(_ context.Context, id, userID uuid.UUID) error {
	for i := range r.rows {
		if r.rows[i].ID == id && r.rows[i].UserID == userID {
			r.rows[i].IsRead = true
			return nil
		}
	}
	return apperror.ErrNotificationNotFound
}

func (r *memoryNotifications) MarkAllAsRead(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for i := range r.rows {
		if r.rows[i].UserID == userID && !r.rows[i].IsRead {
			r.rows[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *memoryNotifications) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	unread, _ := r.List(ctx, userID, 1000, 0, true)
	return len(unread), nil
}

func TestNotification_CreateAndSend(t *testing.T) {
	repo := &memoryNotifications{}
	publisher := &mockPublisher{}
	svc := NewNotificationService(repo, publisher)
	userID := uuid.New()

	publisher.On("SendToUser", userID, EventNotification, mock.AnythingOfType("*models.Notification")).Return(false).Once()

	n, err := svc.CreateAndSend(context.Background(), NotificationInput{
		UserID: userID, Type: models.NotificationOrderUpdated, Title: "Заказ обновлён", Message: "Статус изменён", Link: "/orders/1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, n.ID)
	require.NotNil(t, n.Link)

	// пользователь офлайн: уведомление остаётся для опроса
	unread, err := svc.CountUnread(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
	publisher.AssertExpectations(t)
}

func TestNotification_NotifySwallowsErrors(t *testing.T) {
	hook := logtest.NewLocal(logger.Log)
	defer hook.Reset()

	repo := &memoryNotifications{failing: true}
	publisher := &mockPublisher{}
	svc := NewNotificationService(repo, publisher)

	userID := uuid.New()
	svc.Notify(context.Background(), NotificationInput{UserID: userID, Type: models.NotificationOrderUpdated})
	publisher.AssertNotCalled(t, "SendToUser", mock.Anything, mock.Anything, mock.Anything)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "notification_service", entry.Data["component"])
	assert.Equal(t, userID, entry.Data["user_id"])
	assert.Equal(t, "не удалось создать уведомление", entry.Message)
}

func TestNotification_SendOrderEvent(t *testing.T) {
	publisher := &mockPublisher{}
	svc := NewNotificationService(&memoryNotifications{}, publisher)
	orderID := uuid.New()

	publisher.On("SendToOrder", orderID, "order.start", mock.Anything).Return(2).Once()
	assert.Equal(t, 2, svc.SendOrderEvent(orderID, "start", OrderEvent{OrderID: orderID}))
	publisher.AssertExpectations(t)

	assert.Zero(t, NewNotificationService(&memoryNotifications{}, nil).SendOrderEvent(orderID, "start", nil))
}

func TestNotification_ReadState(t *testing.T) {
	repo := &memoryNotifications{}
	svc := NewNotificationService(repo, nil)
	ctx := context.Background()
	userID, other := uuid.New(), uuid.New()

	var first *models.Notification
	for i := 0; i < 3; i++ {
		n, err := svc.CreateAndSend(ctx, NotificationInput{UserID: userID, Type: models.NotificationOrderUpdated, Title: "t"})
		require.NoError(t, err)
		if first == nil {
			first = n
		}
	}

	assert.ErrorIs(t, svc.MarkAsRead(ctx, first.ID, other), apperror.ErrNotificationNotFound)
	require.NoError(t, svc.MarkAsRead(ctx, first.ID, userID))

	unread, err := svc.List(ctx, userID, 0, 0, true)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	marked, err := svc.MarkAllAsRead(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)

	count, err := svc.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNormalizePage(t *testing.T) {
	limit, offset := normalizePage(0, -5)
	assert.Equal(t, 20, limit)
	assert.Zero(t, offset)

	limit, _ = normalizePage(500, 0)
	assert.Equal(t, 20, limit)

	limit, offset = normalizePage(50, 10)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 10, offset)
}
