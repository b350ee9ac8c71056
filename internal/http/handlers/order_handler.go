package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/http/handlers/common"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/service"
)

// OrderFlow операции жизненного цикла заказа.
type OrderFlow interface {
	CreateOrder(ctx context.Context, creatorID uuid.UUID, in service.CreateOrderInput) (*models.Order, error)
	ListOpenOrders(ctx context.Context, limit, offset int) ([]models.Order, error)
	ListMyOrders(ctx context.Context, userID uuid.UUID, role string, limit, offset int) ([]models.Order, error)
	GetOrder(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) (*service.OrderView, error)
	History(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) ([]models.OrderHistory, error)
	Act(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID, action valueobject.OrderAction, in service.ActInput) (*models.Order, error)
	ResolveDispute(ctx context.Context, adminID, orderID uuid.UUID, outcome, note string) (*models.Order, error)
}

// OrderHandler обслуживает маршруты заказов.
type OrderHandler struct {
	orders OrderFlow
}

// NewOrderHandler создаёт хэндлер заказов.
func NewOrderHandler(orders OrderFlow) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrder обрабатывает POST /orders.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}

	var req struct {
		Title       string          `json:"title" binding:"required"`
		Description string          `json:"description" binding:"required"`
		Amount      decimal.Decimal `json:"amount"`
		Deadline    time.Time       `json:"deadline"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), userID, service.CreateOrderInput{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		Deadline:    req.Deadline,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ListOrders обрабатывает GET /orders: лента открытых заказов.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	orders, err := h.orders.ListOpenOrders(c.Request.Context(), limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders, "limit": limit, "offset": offset})
}

// ListMyOrders обрабатывает GET /orders/my.
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID, role, ok := common.CurrentUser(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	orders, err := h.orders.ListMyOrders(c.Request.Context(), userID, role, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders, "limit": limit, "offset": offset})
}

// GetOrder обрабатывает GET /orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, role, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	orderID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.orders.GetOrder(c.Request.Context(), userID, role, orderID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// History обрабатывает GET /orders/:id/history.
func (h *OrderHandler) History(c *gin.Context) {
	userID, role, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	orderID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	history, err := h.orders.History(c.Request.Context(), userID, role, orderID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// Act обрабатывает POST /orders/:id/actions/:action.
func (h *OrderHandler) Act(c *gin.Context) {
	userID, role, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	orderID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	// тело нужно только publish и dispute
	var req struct {
		VideoURL string `json:"video_url"`
		Reason   string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := common.BindAndValidate(c, &req); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	action := valueobject.OrderAction(c.Param("action"))
	order, err := h.orders.Act(c.Request.Context(), userID, role, orderID, action, service.ActInput{
		VideoURL: req.VideoURL,
		Reason:   req.Reason,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// Resolve обрабатывает POST /admin/orders/:id/resolve.
func (h *OrderHandler) Resolve(c *gin.Context) {
	adminID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	orderID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Outcome string `json:"outcome" binding:"required"`
		Note    string `json:"note"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.orders.ResolveDispute(c.Request.Context(), adminID, orderID, req.Outcome, req.Note)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
