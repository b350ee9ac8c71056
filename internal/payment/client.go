package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/pkg/outbound"
)

// Event types, которые приводят к зачислению средств.
const (
	EventRazorpayCaptured = "payment.captured"
	EventStripeSucceeded  = "payment_intent.succeeded"
)

// ErrNotConfigured возвращается, когда ключи провайдера не заданы.
var ErrNotConfigured = errors.New("payment: провайдер не настроен")

// ProviderOrder заказ или PaymentIntent, созданный у провайдера.
type ProviderOrder struct {
	ID           string          `json:"provider_order_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	ClientSecret string          `json:"client_secret,omitempty"`
	KeyID        string          `json:"key_id,omitempty"`
}

// WebhookEvent нормализованное событие вебхука.
type WebhookEvent struct {
	ID                string
	Type              string
	ProviderOrderID   string
	ProviderPaymentID string
}

// IsCapture сообщает, подтверждает ли событие оплату.
func (e *WebhookEvent) IsCapture() bool {
	return e.Type == EventRazorpayCaptured || e.Type == EventStripeSucceeded
}

// Gateway описывает провайдера платежей.
type Gateway interface {
	Name() string
	Currency() string
	CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*ProviderOrder, error)
	ParseWebhook(body []byte, header http.Header) (*WebhookEvent, error)
}

// ClientOptions параметры исходящего HTTP клиента провайдера.
type ClientOptions = outbound.Options
