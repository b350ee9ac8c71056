package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/logger"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/payment"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/repository"
)

// PaymentRepository чтение и создание платежей вне транзакции.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByProviderOrder(ctx context.Context, provider, providerOrderID string) (*models.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error)
}

// PaymentConfirmer проверяет клиентское подтверждение оплаты (Razorpay Checkout).
type PaymentConfirmer interface {
	VerifyPayment(orderID, paymentID, signature string) bool
}

// TopUp созданный у провайдера заказ на пополнение.
type TopUp struct {
	Payment  *models.Payment        `json:"payment"`
	Provider *payment.ProviderOrder `json:"provider_order"`
}

// VerifyInput данные, которые Razorpay Checkout возвращает клиенту.
type VerifyInput struct {
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
}

// PaymentService пополняет кошельки через провайдеров и обрабатывает их вебхуки.
type PaymentService struct {
	tx        TxRunner
	repo      PaymentRepository
	gateways  map[string]payment.Gateway
	confirmer PaymentConfirmer
	replay    *payment.ReplayGuard
	notifier  LifecycleNotifier
	log       *logrus.Entry
}

// NewPaymentService создаёт сервис платежей. confirmer может быть nil, если Razorpay не используется.
func NewPaymentService(tx TxRunner, repo PaymentRepository, gateways []payment.Gateway, confirmer PaymentConfirmer, replay *payment.ReplayGuard, notifier LifecycleNotifier) *PaymentService {
	byName := make(map[string]payment.Gateway, len(gateways))
	for _, g := range gateways {
		byName[g.Name()] = g
	}
	return &PaymentService{
		tx:        tx,
		repo:      repo,
		gateways:  byName,
		confirmer: confirmer,
		replay:    replay,
		notifier:  notifier,
		log:       logger.Component("payment_service"),
	}
}

// CreateTopUp создаёт заказ у провайдера и платёж в статусе CREATED.
func (s *PaymentService) CreateTopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, provider string) (*TopUp, error) {
	gateway, err := s.gateway(provider)
	if err != nil {
		return nil, err
	}
	amount, err = valueobject.NewAmount(amount)
	if err != nil {
		return nil, err
	}

	order, err := gateway.CreateOrder(ctx, amount, uuid.NewString())
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			return nil, apperror.Wrap(err, apperror.ErrCodeUnavailable, "платёжный провайдер не настроен")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeUnavailable, "платёжный провайдер недоступен")
	}

	p := &models.Payment{
		UserID:          userID,
		Provider:        gateway.Name(),
		ProviderOrderID: order.ID,
		Amount:          amount,
		Currency:        order.Currency,
		Status:          models.PaymentStatusCreated,
	}
	if p.Currency == "" {
		p.Currency = gateway.Currency()
	}
	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"provider":   p.Provider,
		"user_id":    userID,
	}).Info("создан платёж")
	return &TopUp{Payment: p, Provider: order}, nil
}

// VerifyRazorpay проверяет подпись клиентского подтверждения и зачисляет средства.
// Повторная проверка того же платежа возвращает его без повторного зачисления.
func (s *PaymentService) VerifyRazorpay(ctx context.Context, userID uuid.UUID, in VerifyInput) (*models.Payment, error) {
	if s.confirmer == nil {
		return nil, apperror.New(apperror.ErrCodeUnavailable, "платёжный провайдер не настроен")
	}
	if strings.TrimSpace(in.ProviderOrderID) == "" || strings.TrimSpace(in.ProviderPaymentID) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "provider_order_id и provider_payment_id обязательны")
	}

	p, err := s.repo.GetPaymentByProviderOrder(ctx, models.ProviderRazorpay, in.ProviderOrderID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, apperror.ErrPaymentNotFound
	}
	if !s.confirmer.VerifyPayment(in.ProviderOrderID, in.ProviderPaymentID, in.Signature) {
		s.log.WithField("payment_id", p.ID).Warn("неверная подпись подтверждения оплаты")
		return nil, apperror.ErrInvalidSignature
	}

	var captured bool
	err = s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		p, captured, err = capture(ctx, tx, models.ProviderRazorpay, in.ProviderOrderID, in.ProviderPaymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if captured {
		s.announceCapture(ctx, p)
	}
	return p, nil
}

// HandleWebhook проверяет подпись вебхука и зачисляет оплату по событию capture.
// Повторы и неизвестные события подтверждаются без обработки.
func (s *PaymentService) HandleWebhook(ctx context.Context, provider string, body []byte, header http.Header) error {
	gateway, err := s.gateway(provider)
	if err != nil {
		return err
	}

	event, err := gateway.ParseWebhook(body, header)
	if err != nil {
		if errors.Is(err, payment.ErrSignatureMismatch) {
			s.log.WithField("provider", provider).Warn("вебхук с неверной подписью")
			return apperror.ErrInvalidSignature
		}
		return apperror.Wrap(err, apperror.ErrCodeBadRequest, "некорректное тело вебхука")
	}

	fields := logrus.Fields{"provider": provider, "event_id": event.ID, "type": event.Type}
	if !event.IsCapture() {
		s.log.WithFields(fields).Debug("событие вебхука пропущено")
		return nil
	}
	if s.replay != nil && !s.replay.MarkSeen(provider, event.ID) {
		s.log.WithFields(fields).Info("повтор вебхука")
		return nil
	}

	var p *models.Payment
	var captured bool
	err = s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		fresh, err := tx.RecordWebhookEvent(ctx, provider, event.ID, event.Type)
		if err != nil || !fresh {
			return err
		}
		p, captured, err = capture(ctx, tx, provider, event.ProviderOrderID, event.ProviderPaymentID)
		switch {
		case errors.Is(err, apperror.ErrPaymentNotFound):
			// платёж создан не нами, событие фиксируется и подтверждается
			s.log.WithFields(fields).Warn("вебхук по неизвестному платежу")
			return nil
		case errors.Is(err, repository.ErrPaymentIDReused):
			// повтор провайдера ничего не изменит
			s.log.WithFields(fields).Warn("идентификатор платежа уже привязан к другому заказу")
			return nil
		}
		return err
	})
	if err != nil {
		if s.replay != nil {
			s.replay.Forget(provider, event.ID)
		}
		return err
	}

	if captured {
		s.announceCapture(ctx, p)
	}
	return nil
}

// ListPayments возвращает платежи пользователя.
func (s *PaymentService) ListPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListPaymentsByUser(ctx, userID, limit, offset)
}

func (s *PaymentService) gateway(provider string) (payment.Gateway, error) {
	gateway, ok := s.gateways[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "неизвестный платёжный провайдер %q", provider)
	}
	return gateway, nil
}

func (s *PaymentService) announceCapture(ctx context.Context, p *models.Payment) {
	s.log.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"provider":   p.Provider,
		"amount":     p.Amount.String(),
	}).Info("платёж зачислен")

	if s.notifier != nil {
		s.notifier.Notify(ctx, NotificationInput{
			UserID:  p.UserID,
			Type:    models.NotificationPaymentCaptured,
			Title:   "Баланс пополнен",
			Message: "Зачислено " + p.Amount.StringFixed(2) + " " + p.Currency,
			Link:    "/wallet",
		})
	}
}

// capture отмечает платёж оплаченным и зачисляет сумму на кошелёк ровно один раз.
func capture(ctx context.Context, tx repository.Tx, provider, providerOrderID, providerPaymentID string) (*models.Payment, bool, error) {
	p, captured, err := tx.CapturePayment(ctx, provider, providerOrderID, providerPaymentID)
	if err != nil || !captured {
		return p, false, err
	}

	reference := "payment:" + provider + ":" + providerPaymentID
	if _, err := tx.CreditWallet(ctx, p.UserID, p.Amount, reference, "Пополнение баланса"); err != nil {
		return nil, false, err
	}
	return p, true, nil
}
