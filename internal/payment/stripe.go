package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/outbound"
)

// ErrSignatureMismatch подпись вебхука не прошла проверку.
var ErrSignatureMismatch = errors.New("payment: неверная подпись вебхука")

// StripeConfig ключи и адрес API Stripe.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Currency      string
	Tolerance     time.Duration
}

// Stripe работает с PaymentIntents API Stripe напрямую.
type Stripe struct {
	cfg    StripeConfig
	client *outbound.Client
	now    func() time.Time
}

func NewStripe(cfg StripeConfig, opts ClientOptions) *Stripe {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultStripeTolerance
	}
	return &Stripe{cfg: cfg, client: outbound.New(opts, "stripe"), now: time.Now}
}

func (s *Stripe) Name() string { return models.ProviderStripe }

func (s *Stripe) Currency() string { return s.cfg.Currency }

type stripeIntent struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// CreateOrder создаёт PaymentIntent. receipt используется как ключ идемпотентности,
// поэтому повтор запроса клиентом pester не создаёт второй intent.
func (s *Stripe) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*ProviderOrder, error) {
	if s.cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(valueobject.ToMinorUnits(amount), 10))
	form.Set("currency", s.cfg.Currency)
	form.Set("metadata[receipt]", receipt)
	form.Set("automatic_payment_methods[enabled]", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("stripe: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", receipt)

	body, _, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe: %w", err)
	}

	var intent stripeIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("stripe: разбор ответа: %w", err)
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("stripe: в ответе нет id PaymentIntent")
	}

	return &ProviderOrder{
		ID:           intent.ID,
		Amount:       valueobject.FromMinorUnits(intent.Amount),
		Currency:     intent.Currency,
		ClientSecret: intent.ClientSecret,
	}, nil
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhook проверяет Stripe-Signature и разбирает событие.
// Для PaymentIntent идентификатор платежа совпадает с идентификатором заказа.
func (s *Stripe) ParseWebhook(body []byte, header http.Header) (*WebhookEvent, error) {
	if err := VerifyStripeSignature(s.cfg.WebhookSecret, body, header.Get("Stripe-Signature"), s.now(), s.cfg.Tolerance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}

	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("stripe: разбор вебхука: %w", err)
	}
	if event.ID == "" {
		return nil, fmt.Errorf("stripe: в событии нет id")
	}

	return &WebhookEvent{
		ID:                event.ID,
		Type:              event.Type,
		ProviderOrderID:   event.Data.Object.ID,
		ProviderPaymentID: event.Data.Object.ID,
	}, nil
}
