package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/http/handlers/common"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/service"
)

// maxWebhookBody ограничивает тело вебхука.
const maxWebhookBody = 1 << 20

// PaymentFlow пополнение кошелька и вебхуки провайдеров.
type PaymentFlow interface {
	CreateTopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, provider string) (*service.TopUp, error)
	VerifyRazorpay(ctx context.Context, userID uuid.UUID, in service.VerifyInput) (*models.Payment, error)
	HandleWebhook(ctx context.Context, provider string, body []byte, header http.Header) error
	ListPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error)
}

// PaymentHandler обслуживает платежи.
type PaymentHandler struct {
	payments PaymentFlow
}

// NewPaymentHandler создаёт хэндлер платежей.
func NewPaymentHandler(payments PaymentFlow) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreateOrder обрабатывает POST /payments/orders.
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}

	var req struct {
		Amount   decimal.Decimal `json:"amount"`
		Provider string          `json:"provider" binding:"required"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	topUp, err := h.payments.CreateTopUp(c.Request.Context(), userID, req.Amount, req.Provider)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, topUp)
}

// Verify обрабатывает POST /payments/verify.
func (h *PaymentHandler) Verify(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}

	var req struct {
		ProviderOrderID   string `json:"provider_order_id" binding:"required"`
		ProviderPaymentID string `json:"provider_payment_id" binding:"required"`
		Signature         string `json:"signature" binding:"required"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	p, err := h.payments.VerifyRazorpay(c.Request.Context(), userID, service.VerifyInput{
		ProviderOrderID:   req.ProviderOrderID,
		ProviderPaymentID: req.ProviderPaymentID,
		Signature:         req.Signature,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListPayments обрабатывает GET /payments.
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	payments, err := h.payments.ListPayments(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments, "limit": limit, "offset": offset})
}

// Webhook возвращает обработчик POST /webhooks/<provider>. Подпись проверяется по сырому телу.
func (h *PaymentHandler) Webhook(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			common.RespondBadRequest(c, "не удалось прочитать тело запроса")
			return
		}

		if err := h.payments.HandleWebhook(c.Request.Context(), provider, body, c.Request.Header); err != nil {
			common.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
