package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/logger"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/repository"
	"github.com/cutflow/cutflow-backend/internal/validation"
)

// TxRunner открывает транзакцию над репозиториями.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(repository.Tx) error) error
}

// OrderReader чтение заказов вне транзакции.
type OrderReader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderListFilter) ([]models.Order, error)
	ListOrdersByCreator(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListOrdersByEditor(ctx context.Context, editorID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderHistory, error)
}

// ApplicationReader чтение откликов вне транзакции.
type ApplicationReader interface {
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListApplicationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Application, error)
	ListApplicationsByEditor(ctx context.Context, editorID uuid.UUID, limit, offset int) ([]models.Application, error)
	ListOverdueDeposits(ctx context.Context, now time.Time, limit int) ([]models.Application, error)
}

// LifecycleNotifier доставляет участникам уведомления и события заказа.
type LifecycleNotifier interface {
	Notify(ctx context.Context, in NotificationInput)
	SendOrderEvent(orderID uuid.UUID, action string, data any) int
}

// OrderEvent событие заказа для подписчиков канала заказа.
type OrderEvent struct {
	OrderID       uuid.UUID               `json:"order_id"`
	Action        string                  `json:"action"`
	From          valueobject.OrderStatus `json:"from"`
	Status        valueobject.OrderStatus `json:"status"`
	ActorID       *uuid.UUID              `json:"actor_id,omitempty"`
	ApplicationID *uuid.UUID              `json:"application_id,omitempty"`
}

// OrderView заказ вместе с действиями, доступными текущему пользователю.
type OrderView struct {
	*models.Order
	Actions []valueobject.OrderAction `json:"available_actions"`
}

// CreateOrderInput данные нового заказа.
type CreateOrderInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
	Deadline    time.Time
}

// ActInput параметры действия над заказом.
type ActInput struct {
	VideoURL string
	Reason   string
}

// Действия, доступные через общий эндпоинт. Отклики, сдача работ и арбитраж идут отдельными методами.
var genericActions = map[valueobject.OrderAction]bool{
	valueobject.ActionStart:           true,
	valueobject.ActionRequestRevision: true,
	valueobject.ActionPublish:         true,
	valueobject.ActionComplete:        true,
	valueobject.ActionCancel:          true,
	valueobject.ActionDispute:         true,
}

var publicStatuses = []valueobject.OrderStatus{valueobject.OrderStatusOpen, valueobject.OrderStatusApplied}

// OrderService ведёт жизненный цикл заказов и откликов. Каждый переход выполняется
// в одной транзакции, уведомления уходят только после фиксации.
type OrderService struct {
	tx       TxRunner
	orders   OrderReader
	apps     ApplicationReader
	notifier LifecycleNotifier
	deposit  valueobject.DepositPolicy
	now      func() time.Time
	log      *logrus.Entry
}

// NewOrderService создаёт сервис жизненного цикла заказов.
func NewOrderService(tx TxRunner, orders OrderReader, apps ApplicationReader, notifier LifecycleNotifier, deposit valueobject.DepositPolicy) *OrderService {
	return &OrderService{
		tx:       tx,
		orders:   orders,
		apps:     apps,
		notifier: notifier,
		deposit:  deposit,
		now:      time.Now,
		log:      logger.Component("order_service"),
	}
}

// CreateOrder публикует заказ креатора.
func (s *OrderService) CreateOrder(ctx context.Context, creatorID uuid.UUID, in CreateOrderInput) (*models.Order, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if err := validation.ValidateOrderTitle(title); err != nil {
		return nil, invalid(err)
	}
	if err := validation.ValidateOrderDescription(description); err != nil {
		return nil, invalid(err)
	}
	amount, err := valueobject.NewAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateDeadline(in.Deadline, s.now()); err != nil {
		return nil, invalid(err)
	}

	order := &models.Order{
		CreatorID:   creatorID,
		Title:       title,
		Description: description,
		Amount:      amount,
		Deadline:    in.Deadline.UTC(),
		Status:      valueobject.OrderStatusOpen,
	}
	err = s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		return tx.AddHistory(ctx, order.ID, &creatorID, "create", nil, order.Status)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"order_id": order.ID, "creator_id": creatorID}).Info("заказ создан")
	return order, nil
}

// ListOpenOrders возвращает ленту заказов, открытых для откликов.
func (s *OrderService) ListOpenOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	limit, offset = normalizePage(limit, offset)
	return s.orders.ListOrders(ctx, models.OrderListFilter{Statuses: publicStatuses, Limit: limit, Offset: offset})
}

// ListMyOrders возвращает заказы креатора или заказы, назначенные монтажёру.
func (s *OrderService) ListMyOrders(ctx context.Context, userID uuid.UUID, role string, limit, offset int) ([]models.Order, error) {
	limit, offset = normalizePage(limit, offset)
	if role == models.RoleEditor {
		return s.orders.ListOrdersByEditor(ctx, userID, limit, offset)
	}
	return s.orders.ListOrdersByCreator(ctx, userID, limit, offset)
}

// GetOrder возвращает заказ. Открытые заказы видны всем, остальные только участникам.
func (s *OrderService) GetOrder(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.IsOpenForApplications() && !canView(order, userID, role) {
		return nil, apperror.ErrOrderNotFound
	}

	view := &OrderView{Order: order, Actions: []valueobject.OrderAction{}}
	if actor, err := actorFor(order, userID, role); err == nil {
		view.Actions = valueobject.AvailableActions(order.Status, actor)
	} else if role == models.RoleEditor && order.Status.IsOpenForApplications() {
		view.Actions = []valueobject.OrderAction{valueobject.ActionApply}
	}
	return view, nil
}

// History возвращает журнал заказа участнику.
func (s *OrderService) History(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) ([]models.OrderHistory, error) {
	if _, err := s.participantOrder(ctx, userID, role, orderID); err != nil {
		return nil, err
	}
	return s.orders.ListHistory(ctx, orderID)
}

// CanAccessOrder сообщает, может ли пользователь подписаться на события заказа.
func (s *OrderService) CanAccessOrder(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) (bool, error) {
	if _, err := s.participantOrder(ctx, userID, role, orderID); err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Act выполняет действие участника над заказом: start, request_revision, publish, complete, cancel, dispute.
func (s *OrderService) Act(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID, action valueobject.OrderAction, in ActInput) (*models.Order, error) {
	if !genericActions[action] {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "неизвестное действие %s", action)
	}

	videoURL := strings.TrimSpace(in.VideoURL)
	reason := strings.TrimSpace(in.Reason)
	switch action {
	case valueobject.ActionPublish:
		if err := validation.ValidateVideoURL(videoURL); err != nil {
			return nil, invalid(err)
		}
	case valueobject.ActionDispute:
		if err := validation.ValidateDisputeReason(reason); err != nil {
			return nil, invalid(err)
		}
	}

	box := &outbox{}
	var order *models.Order
	err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		actor, err := actorFor(order, userID, role)
		if err != nil {
			return err
		}
		tr, err := valueobject.ResolveTransition(order.Status, action, actor)
		if err != nil {
			return err
		}

		if tr.HasEffect(valueobject.EffectRecordVideoURL) {
			if err := tx.SetVideoURL(ctx, order.ID, videoURL); err != nil {
				return err
			}
			order.VideoURL = &videoURL
		}
		if tr.HasEffect(valueobject.EffectOpenDispute) {
			if err := tx.OpenDispute(ctx, &models.Dispute{
				OrderID:     order.ID,
				InitiatorID: userID,
				Reason:      reason,
				Status:      models.DisputeStatusOpen,
			}); err != nil {
				return err
			}
		}
		if err := s.settle(ctx, tx, order, tr, box); err != nil {
			return err
		}
		return s.applyTransition(ctx, tx, order, tr, &userID, nil, box)
	})
	if err != nil {
		return nil, err
	}

	s.notifyCounterpart(box, order, userID, action)
	s.flush(ctx, box)
	return order, nil
}

// ResolveDispute закрывает спор решением администратора в пользу монтажёра или креатора.
func (s *OrderService) ResolveDispute(ctx context.Context, adminID, orderID uuid.UUID, outcome, note string) (*models.Order, error) {
	note = strings.TrimSpace(note)
	if err := validation.ValidateNote(note); err != nil {
		return nil, invalid(err)
	}

	var action valueobject.OrderAction
	var disputeStatus string
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "editor":
		action, disputeStatus = valueobject.ActionResolveForEditor, models.DisputeStatusResolvedEditor
	case "creator":
		action, disputeStatus = valueobject.ActionResolveForCreator, models.DisputeStatusResolvedCreator
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "outcome должен быть editor или creator")
	}

	box := &outbox{}
	var order *models.Order
	err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		tr, err := valueobject.ResolveTransition(order.Status, action, valueobject.ActorAdmin)
		if err != nil {
			return err
		}
		if err := tx.CloseDispute(ctx, order.ID, disputeStatus, note, adminID); err != nil {
			return err
		}
		if err := s.settle(ctx, tx, order, tr, box); err != nil {
			return err
		}
		return s.applyTransition(ctx, tx, order, tr, &adminID, nil, box)
	})
	if err != nil {
		return nil, err
	}

	message := "Спор по заказу «" + order.Title + "» решён в пользу "
	if action == valueobject.ActionResolveForEditor {
		message += "исполнителя"
	} else {
		message += "заказчика"
	}
	for _, participant := range participants(order) {
		box.notify(participant, models.NotificationDisputeResolved, "Спор закрыт", message, orderLink(order.ID))
	}
	s.flush(ctx, box)
	return order, nil
}

// SubmitDelivery фиксирует сданный материал и переводит заказ в PREVIEW_SUBMITTED или FINAL_SUBMITTED.
func (s *OrderService) SubmitDelivery(ctx context.Context, editorID, orderID uuid.UUID, delivery *models.Delivery) (*models.Order, error) {
	var action valueobject.OrderAction
	switch delivery.Kind {
	case models.DeliveryKindPreview:
		action = valueobject.ActionSubmitPreview
	case models.DeliveryKindFinal:
		action = valueobject.ActionSubmitFinal
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "kind должен быть preview или final")
	}

	box := &outbox{}
	var order *models.Order
	err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.IsAssignedEditor(editorID) {
			return apperror.New(apperror.ErrCodeForbidden, "сдавать работу может только назначенный исполнитель")
		}
		tr, err := valueobject.ResolveTransition(order.Status, action, valueobject.ActorEditor)
		if err != nil {
			return err
		}

		delivery.OrderID = order.ID
		delivery.EditorID = editorID
		if err := tx.CreateDelivery(ctx, delivery); err != nil {
			return err
		}
		return s.applyTransition(ctx, tx, order, tr, &editorID, nil, box)
	})
	if err != nil {
		return nil, err
	}

	title := "Получено превью"
	if delivery.Kind == models.DeliveryKindFinal {
		title = "Получена финальная версия"
	}
	box.notify(order.CreatorID, models.NotificationDeliveryReceived, title,
		"Исполнитель сдал материал по заказу «"+order.Title+"»", orderLink(order.ID))
	s.flush(ctx, box)
	return order, nil
}

// settle выполняет денежные эффекты перехода: выплату, возврат или удержание депозита и escrow.
func (s *OrderService) settle(ctx context.Context, tx repository.Tx, order *models.Order, tr valueobject.Transition, box *outbox) error {
	if tr.HasEffect(valueobject.EffectRejectAll) {
		open, err := tx.LockOpenApplications(ctx, order.ID)
		if err != nil {
			return err
		}
		for i := range open {
			if err := closeApplication(ctx, tx, &open[i]); err != nil {
				return err
			}
			box.notify(open[i].EditorID, models.NotificationApplicationRejected, "Отклик закрыт",
				"Заказ «"+order.Title+"» отменён", orderLink(order.ID))
		}
	}

	needsApproved := tr.HasEffect(valueobject.EffectReleaseDeposit) || tr.HasEffect(valueobject.EffectForfeitDeposit)
	if needsApproved {
		approved, err := approvedApplication(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if approved != nil {
			switch {
			case tr.HasEffect(valueobject.EffectForfeitDeposit):
				if err := forfeitDeposit(ctx, tx, approved, order.CreatorID); err != nil {
					return err
				}
			case tr.HasEffect(valueobject.EffectReleaseDeposit):
				released, err := releaseDeposit(ctx, tx, approved)
				if err != nil {
					return err
				}
				if released {
					box.notify(approved.EditorID, models.NotificationDepositReleased, "Депозит возвращён",
						"Депозит по заказу «"+order.Title+"» возвращён на баланс", "/wallet")
				}
			}
		}
	}

	if tr.HasEffect(valueobject.EffectPayout) {
		if _, err := tx.ReleaseEscrow(ctx, order.ID); err != nil {
			return err
		}
	}
	if tr.HasEffect(valueobject.EffectRefundEscrow) && order.EditorID != nil {
		if _, err := tx.RefundEscrow(ctx, order.ID); err != nil && !errors.Is(err, repository.ErrEscrowNotFound) {
			return err
		}
	}
	return nil
}

// applyTransition пишет новый статус с оптимистичной проверкой, журнал и событие заказа.
func (s *OrderService) applyTransition(ctx context.Context, tx repository.Tx, order *models.Order, tr valueobject.Transition, actorID *uuid.UUID, appID *uuid.UUID, box *outbox) error {
	from := order.Status
	if tr.To != from {
		if err := tx.TransitionOrder(ctx, order.ID, from, tr.To); err != nil {
			return err
		}
	}
	if err := tx.AddHistory(ctx, order.ID, actorID, string(tr.Action), from, tr.To); err != nil {
		return err
	}

	order.Status = tr.To
	if tr.To == valueobject.OrderStatusCompleted {
		now := s.now()
		order.CompletedAt = &now
	}
	box.event(OrderEvent{
		OrderID:       order.ID,
		Action:        string(tr.Action),
		From:          from,
		Status:        tr.To,
		ActorID:       actorID,
		ApplicationID: appID,
	})
	return nil
}

// notifyCounterpart уведомляет второго участника заказа о действии.
func (s *OrderService) notifyCounterpart(box *outbox, order *models.Order, actorID uuid.UUID, action valueobject.OrderAction) {
	typ := models.NotificationOrderUpdated
	title := "Заказ обновлён"
	if action == valueobject.ActionDispute {
		typ = models.NotificationDisputeOpened
		title = "Открыт спор"
	}
	message := "Заказ «" + order.Title + "»: " + string(action) + ", статус " + string(order.Status)

	for _, participant := range participants(order) {
		if participant != actorID {
			box.notify(participant, typ, title, message, orderLink(order.ID))
		}
	}
}

// participantOrder возвращает заказ, если пользователь его участник или администратор.
func (s *OrderService) participantOrder(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(order, userID, role) {
		return nil, apperror.ErrOrderNotFound
	}
	return order, nil
}

// flush отправляет накопленные уведомления и события после фиксации транзакции.
func (s *OrderService) flush(ctx context.Context, box *outbox) {
	if s.notifier == nil {
		return
	}
	for _, n := range box.notices {
		s.notifier.Notify(ctx, n)
	}
	for _, e := range box.events {
		s.notifier.SendOrderEvent(e.OrderID, e.Action, e)
	}
}

// outbox копит побочные сообщения транзакции до её фиксации.
type outbox struct {
	notices []NotificationInput
	events  []OrderEvent
}

func (b *outbox) notify(userID uuid.UUID, typ, title, message, link string) {
	b.notices = append(b.notices, NotificationInput{UserID: userID, Type: typ, Title: title, Message: message, Link: link})
}

func (b *outbox) event(e OrderEvent) {
	b.events = append(b.events, e)
}

// actorFor определяет роль пользователя по отношению к заказу.
func actorFor(order *models.Order, userID uuid.UUID, role string) (valueobject.Actor, error) {
	switch {
	case order.CreatorID == userID:
		return valueobject.ActorCreator, nil
	case order.IsAssignedEditor(userID):
		return valueobject.ActorEditor, nil
	case role == models.RoleAdmin:
		return valueobject.ActorAdmin, nil
	}
	return "", apperror.ErrForbidden
}

func canView(order *models.Order, userID uuid.UUID, role string) bool {
	return role == models.RoleAdmin || order.IsParticipant(userID)
}

func participants(order *models.Order) []uuid.UUID {
	ids := []uuid.UUID{order.CreatorID}
	if order.EditorID != nil {
		ids = append(ids, *order.EditorID)
	}
	return ids
}

func orderLink(orderID uuid.UUID) string {
	return "/orders/" + orderID.String()
}

// invalid превращает ошибку валидации в ответ 400.
func invalid(err error) error {
	return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
}
