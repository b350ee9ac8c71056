package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/outbound"
)

// RazorpayConfig ключи и адрес API Razorpay.
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	Currency      string
}

// Razorpay работает с REST API Razorpay напрямую.
type Razorpay struct {
	cfg    RazorpayConfig
	client *outbound.Client
}

func NewRazorpay(cfg RazorpayConfig, opts ClientOptions) *Razorpay {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Razorpay{cfg: cfg, client: outbound.New(opts, "razorpay")}
}

func (r *Razorpay) Name() string { return models.ProviderRazorpay }

func (r *Razorpay) Currency() string { return r.cfg.Currency }

type razorpayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateOrder создаёт заказ Razorpay. Сумма передаётся в пайсах.
func (r *Razorpay) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*ProviderOrder, error) {
	if r.cfg.KeyID == "" || r.cfg.KeySecret == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(razorpayOrderRequest{
		Amount:   valueobject.ToMinorUnits(amount),
		Currency: r.cfg.Currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("razorpay: %w", err)
	}
	req.SetBasicAuth(r.cfg.KeyID, r.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	body, _, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay: %w", err)
	}

	var resp razorpayOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("razorpay: разбор ответа: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("razorpay: в ответе нет id заказа")
	}

	return &ProviderOrder{
		ID:       resp.ID,
		Amount:   valueobject.FromMinorUnits(resp.Amount),
		Currency: resp.Currency,
		KeyID:    r.cfg.KeyID,
	}, nil
}

// VerifyPayment проверяет подпись клиентского подтверждения оплаты.
func (r *Razorpay) VerifyPayment(orderID, paymentID, signature string) bool {
	return VerifyRazorpayPayment(r.cfg.KeySecret, orderID, paymentID, signature)
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhook проверяет X-Razorpay-Signature и разбирает событие.
// Идентификатор события берётся из X-Razorpay-Event-Id.
func (r *Razorpay) ParseWebhook(body []byte, header http.Header) (*WebhookEvent, error) {
	if !VerifyWebhookSignature(r.cfg.WebhookSecret, body, header.Get("X-Razorpay-Signature")) {
		return nil, ErrSignatureMismatch
	}

	var hook razorpayWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("razorpay: разбор вебхука: %w", err)
	}

	entity := hook.Payload.Payment.Entity
	eventID := header.Get("X-Razorpay-Event-Id")
	if eventID == "" {
		eventID = hook.Event + ":" + entity.ID
	}

	return &WebhookEvent{
		ID:                eventID,
		Type:              hook.Event,
		ProviderOrderID:   entity.OrderID,
		ProviderPaymentID: entity.ID,
	}, nil
}
