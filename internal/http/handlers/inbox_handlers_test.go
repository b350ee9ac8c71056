package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/service"
)

type mockInbox struct {
	mock.Mock
}

func (m *mockInbox) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit, offset, unreadOnly)
	list, _ := args.Get(0).([]models.Notification)
	return list, args.Error(1)
}

func (m *mockInbox) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockInbox) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *mockInbox) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func TestNotificationHandler(t *testing.T) {
	userID := uuid.New()
	foreign := uuid.New()

	inbox := &mockInbox{}
	inbox.On("List", mock.Anything, userID, 5, 0, true).Return([]models.Notification{{ID: uuid.New()}}, nil)
	inbox.On("CountUnread", mock.Anything, userID).Return(3, nil)
	inbox.On("MarkAsRead", mock.Anything, foreign, userID).Return(apperror.ErrNotificationNotFound)
	inbox.On("MarkAllAsRead", mock.Anything, userID).Return(int64(3), nil)

	h := NewNotificationHandler(inbox)
	r := newRouter(userID, models.RoleEditor)
	r.GET("/notifications", h.ListNotifications)
	r.GET("/notifications/unread/count", h.CountUnread)
	r.PUT("/notifications/:id/read", h.MarkAsRead)
	r.PUT("/notifications/read-all", h.MarkAllAsRead)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/notifications?unread_only=true&limit=5", nil).Code)

	w := doJSON(r, http.MethodGet, "/notifications/unread/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode(t, w)["count"])

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodPut, "/notifications/"+foreign.String()+"/read", nil).Code)

	w = doJSON(r, http.MethodPut, "/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode(t, w)["updated"])
	inbox.AssertExpectations(t)
}

type stubInvoices struct{}

func (stubInvoices) List(context.Context, uuid.UUID) ([]service.InvoiceSummary, error) {
	return []service.InvoiceSummary{{Number: "CF-1"}}, nil
}

func (stubInvoices) Render(_ context.Context, _ uuid.UUID, _ string, orderID uuid.UUID) ([]byte, string, error) {
	if orderID == uuid.Nil {
		return nil, "", apperror.ErrOrderNotFound
	}
	return []byte("%PDF-1.3 test"), "CF-1.pdf", nil
}

func TestInvoiceHandler_Download(t *testing.T) {
	h := NewInvoiceHandler(stubInvoices{})
	r := newRouter(uuid.New(), models.RoleCreator)
	r.GET("/invoices", h.List)
	r.GET("/invoices/:orderId", h.Download)

	w := doJSON(r, http.MethodGet, "/invoices/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="CF-1.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3 test", w.Body.String())

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/invoices/"+uuid.Nil.String(), nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/invoices", nil).Code)
}

type stubYouTube struct {
	callbackErr error
}

func (s stubYouTube) ConnectURL(uuid.UUID) (string, error) {
	return "https://accounts.google.com/o/oauth2/auth?state=s", nil
}

func (s stubYouTube) Callback(_ context.Context, code, _ string) (uuid.UUID, error) {
	return uuid.New(), s.callbackErr
}

func (s stubYouTube) Status(context.Context, uuid.UUID) (*service.YouTubeStatus, error) {
	return &service.YouTubeStatus{Connected: false}, nil
}

func (s stubYouTube) Disconnect(context.Context, uuid.UUID) error {
	return apperror.New(apperror.ErrCodeNotFound, "канал YouTube не подключён")
}

func TestYouTubeHandler(t *testing.T) {
	h := NewYouTubeHandler(stubYouTube{}, "https://app.cutflow.test/")
	r := newRouter(uuid.New(), models.RoleCreator)
	r.GET("/youtube/connect", h.Connect)
	r.GET("/youtube/callback", h.Callback)
	r.DELETE("/youtube", h.Disconnect)

	w := doJSON(r, http.MethodGet, "/youtube/connect", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "accounts.google.com")

	w = doJSON(r, http.MethodGet, "/youtube/connect?mode=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["url"], "accounts.google.com")

	w = doJSON(r, http.MethodGet, "/youtube/callback?code=c&state=s", nil)
	assert.Equal(t, "https://app.cutflow.test/settings/youtube?status=connected", w.Header().Get("Location"))

	w = doJSON(r, http.MethodGet, "/youtube/callback?error=access_denied", nil)
	assert.Equal(t, "https://app.cutflow.test/settings/youtube?reason=access_denied&status=error", w.Header().Get("Location"))

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodDelete, "/youtube", nil).Code)
}

func TestYouTubeHandler_CallbackErrorIsSanitized(t *testing.T) {
	h := NewYouTubeHandler(stubYouTube{callbackErr: apperror.Wrap(errors.New("token endpoint: 500"), apperror.ErrCodeUnavailable, "Google отклонил код авторизации")}, "https://app.cutflow.test")
	r := newRouter(uuid.Nil, "")
	r.GET("/youtube/callback", h.Callback)

	w := doJSON(r, http.MethodGet, "/youtube/callback?code=c&state=s", nil)
	require.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "error", location.Query().Get("status"))
	assert.Equal(t, "Google отклонил код авторизации", location.Query().Get("reason"))
}

type fakeDB struct {
	pingErr error
}

func (f fakeDB) PingContext(context.Context) error { return f.pingErr }

func (f fakeDB) Stats() sql.DBStats { return sql.DBStats{MaxOpenConnections: 10, OpenConnections: 2, Idle: 2} }

func TestHealthHandler(t *testing.T) {
	r := newRouter(uuid.Nil, "")
	r.GET("/health", NewHealthHandler(fakeDB{}).Health)
	r.GET("/health/down", NewHealthHandler(fakeDB{pingErr: errors.New("dial tcp: refused")}).Health)

	w := doJSON(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = doJSON(r, http.MethodGet, "/health/down", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "dial tcp")
}
