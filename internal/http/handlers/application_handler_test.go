package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
)

type mockApplications struct {
	mock.Mock
}

func (m *mockApplications) app(args mock.Arguments) (*models.Application, error) {
	app, _ := args.Get(0).(*models.Application)
	return app, args.Error(1)
}

func (m *mockApplications) Apply(ctx context.Context, editorID, orderID uuid.UUID, coverLetter string) (*models.Application, error) {
	return m.app(m.Called(ctx, editorID, orderID, coverLetter))
}

func (m *mockApplications) PayDeposit(ctx context.Context, editorID, applicationID uuid.UUID) (*models.Application, error) {
	return m.app(m.Called(ctx, editorID, applicationID))
}

func (m *mockApplications) Approve(ctx context.Context, creatorID, applicationID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, creatorID, applicationID)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockApplications) Reject(ctx context.Context, creatorID, applicationID uuid.UUID) (*models.Application, error) {
	return m.app(m.Called(ctx, creatorID, applicationID))
}

func (m *mockApplications) Withdraw(ctx context.Context, editorID, applicationID uuid.UUID) (*models.Application, error) {
	return m.app(m.Called(ctx, editorID, applicationID))
}

func (m *mockApplications) ListApplications(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) ([]models.Application, error) {
	args := m.Called(ctx, userID, role, orderID)
	apps, _ := args.Get(0).([]models.Application)
	return apps, args.Error(1)
}

func (m *mockApplications) ListMyApplications(ctx context.Context, editorID uuid.UUID, limit, offset int) ([]models.Application, error) {
	args := m.Called(ctx, editorID, limit, offset)
	apps, _ := args.Get(0).([]models.Application)
	return apps, args.Error(1)
}

func TestApplicationHandler_Apply(t *testing.T) {
	editorID := uuid.New()
	orderID := uuid.New()

	apps := &mockApplications{}
	apps.On("Apply", mock.Anything, editorID, orderID, "Смонтирую за два дня").
		Return(&models.Application{ID: uuid.New(), DepositStatus: valueobject.DepositStatusPending}, nil)

	h := NewApplicationHandler(apps)
	r := newRouter(editorID, models.RoleEditor)
	r.POST("/orders/:id/applications", h.Apply)

	w := doJSON(r, http.MethodPost, "/orders/"+orderID.String()+"/applications", map[string]any{"cover_letter": "Смонтирую за два дня"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "PENDING", decode(t, w)["deposit_status"])
	apps.AssertExpectations(t)
}

func TestApplicationHandler_DepositAndApproveErrors(t *testing.T) {
	userID := uuid.New()
	appID := uuid.New()

	apps := &mockApplications{}
	apps.On("PayDeposit", mock.Anything, userID, appID).Return(nil, apperror.ErrInsufficientFunds)
	apps.On("Approve", mock.Anything, userID, appID).Return(nil, apperror.New(apperror.ErrCodeConflict, "депозит отклика не внесён"))
	apps.On("Withdraw", mock.Anything, userID, appID).Return(&models.Application{ID: appID, Status: valueobject.ApplicationStatusRejected}, nil)

	h := NewApplicationHandler(apps)
	r := newRouter(userID, models.RoleEditor)
	r.POST("/applications/:id/deposit", h.PayDeposit)
	r.POST("/applications/:id/approve", h.Approve)
	r.POST("/applications/:id/withdraw", h.Withdraw)

	base := "/applications/" + appID.String()
	w := doJSON(r, http.MethodPost, base+"/deposit", nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, apperror.ErrInsufficientFunds.Message, decode(t, w)["error"])

	assert.Equal(t, http.StatusConflict, doJSON(r, http.MethodPost, base+"/approve", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, base+"/withdraw", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/applications/nope/deposit", nil).Code)
	apps.AssertExpectations(t)
}

func TestApplicationHandler_ListByOrderForbidden(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()

	apps := &mockApplications{}
	apps.On("ListApplications", mock.Anything, userID, models.RoleEditor, orderID).Return(nil, apperror.ErrForbidden)

	h := NewApplicationHandler(apps)
	r := newRouter(userID, models.RoleEditor)
	r.GET("/orders/:id/applications", h.ListByOrder)

	w := doJSON(r, http.MethodGet, "/orders/"+orderID.String()+"/applications", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
