package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cutflow/cutflow-backend/internal/http/handlers/common"
	"github.com/cutflow/cutflow-backend/internal/service"
)

// InvoiceRenderer список счетов и их PDF.
type InvoiceRenderer interface {
	List(ctx context.Context, userID uuid.UUID) ([]service.InvoiceSummary, error)
	Render(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) ([]byte, string, error)
}

type InvoiceHandler struct {
	invoices InvoiceRenderer
}

func NewInvoiceHandler(invoices InvoiceRenderer) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// List обрабатывает GET /invoices.
func (h *InvoiceHandler) List(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}

	invoices, err := h.invoices.List(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

// Download обрабатывает GET /invoices/:orderId и отдаёт PDF вложением.
func (h *InvoiceHandler) Download(c *gin.Context) {
	userID, role, ok := common.CurrentUser(c)
	if !ok {
		return
	}
	orderID, ok := common.UUIDParam(c, "orderId")
	if !ok {
		return
	}

	pdf, filename, err := h.invoices.Render(c.Request.Context(), userID, role, orderID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
