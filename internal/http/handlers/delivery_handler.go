package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cutflow/cutflow-backend/internal/http/handlers/common"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/service"
)

// DeliveryFlow сдача материалов и выдача ссылок.
type DeliveryFlow interface {
	Submit(ctx context.Context, editorID, orderID uuid.UUID, in service.DeliveryInput) (*models.Delivery, *models.Order, error)
	List(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) ([]models.Delivery, error)
	Link(ctx context.Context, userID uuid.UUID, role string, deliveryID uuid.UUID) (*service.DeliveryLink, error)
}

// DeliveryHandler принимает превью и финальные версии.
type DeliveryHandler struct {
	deliveries DeliveryFlow
}

// NewDeliveryHandler создаёт хэндлер материалов.
func NewDeliveryHandler(deliveries DeliveryFlow) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries}
}

// Submit обрабатывает POST /orders/:id/deliveries (multipart: kind, note, file или url).
func (h *DeliveryHandler) Submit(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	orderID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	in := service.DeliveryInput{
		Kind: c.PostForm("kind"),
		Note: c.PostForm("note"),
		URL:  c.PostForm("url"),
	}

	header, err := c.FormFile("file")
	switch {
	case err == nil:
		file, err := header.Open()
		if err != nil {
			common.RespondBadRequest(c, "не удалось открыть файл")
			return
		}
		defer file.Close()
		in.File = file
		in.FileName = header.Filename
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		common.RespondBadRequest(c, "некорректная форма загрузки")
		return
	}

	delivery, order, err := h.deliveries.Submit(c.Request.Context(), userID, orderID, in)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"delivery": delivery, "order": order})
}

// List обрабатывает GET /orders/:id/deliveries.
func (h *DeliveryHandler) List(c *gin.Context) {
	userID, role, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	orderID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	deliveries, err := h.deliveries.List(c.Request.Context(), userID, role, orderID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deliveries)
}

// Link обрабатывает GET /deliveries/:id/link.
func (h *DeliveryHandler) Link(c *gin.Context) {
	userID, role, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	deliveryID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	link, err := h.deliveries.Link(c.Request.Context(), userID, role, deliveryID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}
