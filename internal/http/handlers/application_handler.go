package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cutflow/cutflow-backend/internal/http/handlers/common"
	"github.com/cutflow/cutflow-backend/internal/models"
)

// ApplicationFlow операции с откликами и депозитами.
type ApplicationFlow interface {
	Apply(ctx context.Context, editorID, orderID uuid.UUID, coverLetter string) (*models.Application, error)
	PayDeposit(ctx context.Context, editorID, applicationID uuid.UUID) (*models.Application, error)
	Approve(ctx context.Context, creatorID, applicationID uuid.UUID) (*models.Order, error)
	Reject(ctx context.Context, creatorID, applicationID uuid.UUID) (*models.Application, error)
	Withdraw(ctx context.Context, editorID, applicationID uuid.UUID) (*models.Application, error)
	ListApplications(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) ([]models.Application, error)
	ListMyApplications(ctx context.Context, editorID uuid.UUID, limit, offset int) ([]models.Application, error)
}

// ApplicationHandler обслуживает отклики монтажёров.
type ApplicationHandler struct {
	apps ApplicationFlow
}

// NewApplicationHandler создаёт хэндлер откликов.
func NewApplicationHandler(apps ApplicationFlow) *ApplicationHandler {
	return &ApplicationHandler{apps: apps}
}

// Apply обрабатывает POST /orders/:id/applications.
func (h *ApplicationHandler) Apply(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	orderID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		CoverLetter string `json:"cover_letter"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	app, err := h.apps.Apply(c.Request.Context(), userID, orderID, req.CoverLetter)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// PayDeposit обрабатывает POST /applications/:id/deposit.
func (h *ApplicationHandler) PayDeposit(c *gin.Context) {
	h.applicationAction(c, h.apps.PayDeposit)
}

// Reject обрабатывает POST /applications/:id/reject.
func (h *ApplicationHandler) Reject(c *gin.Context) {
	h.applicationAction(c, h.apps.Reject)
}

// Withdraw обрабатывает POST /applications/:id/withdraw.
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	h.applicationAction(c, h.apps.Withdraw)
}

// Approve обрабатывает POST /applications/:id/approve. Возвращает назначенный заказ.
func (h *ApplicationHandler) Approve(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	appID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.apps.Approve(c.Request.Context(), userID, appID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListByOrder обрабатывает GET /orders/:id/applications.
func (h *ApplicationHandler) ListByOrder(c *gin.Context) {
	userID, role, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	orderID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	apps, err := h.apps.ListApplications(c.Request.Context(), userID, role, orderID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

// ListMy обрабатывает GET /applications/my.
func (h *ApplicationHandler) ListMy(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	apps, err := h.apps.ListMyApplications(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": apps, "limit": limit, "offset": offset})
}

func (h *ApplicationHandler) applicationAction(c *gin.Context, act func(context.Context, uuid.UUID, uuid.UUID) (*models.Application, error)) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	appID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	app, err := act(c.Request.Context(), userID, appID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}
