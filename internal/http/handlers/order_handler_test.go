package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/service"
)

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) CreateOrder(ctx context.Context, creatorID uuid.UUID, in service.CreateOrderInput) (*models.Order, error) {
	args := m.Called(ctx, creatorID, in)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockOrders) ListOpenOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, limit, offset)
	orders, _ := args.Get(0).([]models.Order)
	return orders, args.Error(1)
}

func (m *mockOrders) ListMyOrders(ctx context.Context, userID uuid.UUID, role string, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, userID, role, limit, offset)
	orders, _ := args.Get(0).([]models.Order)
	return orders, args.Error(1)
}

func (m *mockOrders) GetOrder(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) (*service.OrderView, error) {
	args := m.Called(ctx, userID, role, orderID)
	view, _ := args.Get(0).(*service.OrderView)
	return view, args.Error(1)
}

func (m *mockOrders) History(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) ([]models.OrderHistory, error) {
	args := m.Called(ctx, userID, role, orderID)
	history, _ := args.Get(0).([]models.OrderHistory)
	return history, args.Error(1)
}

func (m *mockOrders) Act(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID, action valueobject.OrderAction, in service.ActInput) (*models.Order, error) {
	args := m.Called(ctx, userID, role, orderID, action, in)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockOrders) ResolveDispute(ctx context.Context, adminID, orderID uuid.UUID, outcome, note string) (*models.Order, error) {
	args := m.Called(ctx, adminID, orderID, outcome, note)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	creatorID := uuid.New()
	deadline := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)

	orders := &mockOrders{}
	orders.On("CreateOrder", mock.Anything, creatorID, mock.MatchedBy(func(in service.CreateOrderInput) bool {
		return in.Title == "Монтаж влога" && in.Amount.Equal(decimal.NewFromInt(250)) && in.Deadline.Equal(deadline)
	})).Return(&models.Order{ID: uuid.New(), CreatorID: creatorID, Status: valueobject.OrderStatusOpen}, nil)

	h := NewOrderHandler(orders)
	r := newRouter(creatorID, models.RoleCreator)
	r.POST("/orders", h.CreateOrder)

	w := doJSON(r, http.MethodPost, "/orders", map[string]any{
		"title":       "Монтаж влога",
		"description": "Нужно смонтировать влог на 10 минут",
		"amount":      "250",
		"deadline":    deadline.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "OPEN", decode(t, w)["status"])
	orders.AssertExpectations(t)
}

func TestOrderHandler_Unauthorized(t *testing.T) {
	h := NewOrderHandler(&mockOrders{})
	r := newRouter(uuid.Nil, "")
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/my", h.ListMyOrders)

	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodPost, "/orders", map[string]any{}).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodGet, "/orders/my", nil).Code)
}

func TestOrderHandler_GetOrder_InvalidID(t *testing.T) {
	h := NewOrderHandler(&mockOrders{})
	r := newRouter(uuid.New(), models.RoleCreator)
	r.GET("/orders/:id", h.GetOrder)

	w := doJSON(r, http.MethodGet, "/orders/invalid-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_ActMapsServiceErrors(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()

	cases := []struct {
		name   string
		action string
		body   map[string]any
		in     service.ActInput
		err    error
		status int
	}{
		{name: "ok", action: "start", status: http.StatusOK},
		{name: "publish carries url", action: "publish", body: map[string]any{"video_url": "https://youtu.be/x"}, in: service.ActInput{VideoURL: "https://youtu.be/x"}, status: http.StatusOK},
		{name: "forbidden", action: "complete", err: apperror.ErrForbidden, status: http.StatusForbidden},
		{name: "stale", action: "cancel", err: apperror.ErrStaleState, status: http.StatusConflict},
		{name: "not found", action: "dispute", body: map[string]any{"reason": "нет связи"}, in: service.ActInput{Reason: "нет связи"}, err: apperror.ErrOrderNotFound, status: http.StatusNotFound},
		{name: "internal masked", action: "start", err: apperror.Wrap(assert.AnError, apperror.ErrCodeInternal, "sql: что-то сломалось"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &mockOrders{}
			var order *models.Order
			if tc.err == nil {
				order = &models.Order{ID: orderID, Status: valueobject.OrderStatusInProgress}
			}
			orders.On("Act", mock.Anything, userID, models.RoleCreator, orderID, valueobject.OrderAction(tc.action), tc.in).Return(order, tc.err)

			h := NewOrderHandler(orders)
			r := newRouter(userID, models.RoleCreator)
			r.POST("/orders/:id/actions/:action", h.Act)

			w := doJSON(r, http.MethodPost, "/orders/"+orderID.String()+"/actions/"+tc.action, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "внутренняя ошибка сервера", decode(t, w)["error"])
			}
			orders.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_Resolve(t *testing.T) {
	adminID := uuid.New()
	orderID := uuid.New()

	orders := &mockOrders{}
	orders.On("ResolveDispute", mock.Anything, adminID, orderID, "editor", "работа сдана").
		Return(&models.Order{ID: orderID, Status: valueobject.OrderStatusCompleted}, nil)

	h := NewOrderHandler(orders)
	r := newRouter(adminID, models.RoleAdmin)
	r.POST("/admin/orders/:id/resolve", h.Resolve)

	w := doJSON(r, http.MethodPost, "/admin/orders/"+orderID.String()+"/resolve", map[string]any{
		"outcome": "editor",
		"note":    "работа сдана",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COMPLETED", decode(t, w)["status"])

	w = doJSON(r, http.MethodPost, "/admin/orders/"+orderID.String()+"/resolve", map[string]any{"note": "без решения"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_ListOrdersIsPublic(t *testing.T) {
	orders := &mockOrders{}
	orders.On("ListOpenOrders", mock.Anything, 100, 0).Return([]models.Order{{ID: uuid.New()}}, nil)

	h := NewOrderHandler(orders)
	r := newRouter(uuid.Nil, "")
	r.GET("/orders", h.ListOrders)

	w := doJSON(r, http.MethodGet, "/orders?limit=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)
}
