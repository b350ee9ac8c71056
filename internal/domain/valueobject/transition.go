package valueobject

import (
	"fmt"
	"sort"

	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
)

// OrderAction действие участника над заказом.
type OrderAction string

const (
	ActionApply             OrderAction = "apply"
	ActionApprove           OrderAction = "approve"
	ActionStart             OrderAction = "start"
	ActionSubmitPreview     OrderAction = "submit_preview"
	ActionRequestRevision   OrderAction = "request_revision"
	ActionSubmitFinal       OrderAction = "submit_final"
	ActionPublish           OrderAction = "publish"
	ActionComplete          OrderAction = "complete"
	ActionCancel            OrderAction = "cancel"
	ActionDispute           OrderAction = "dispute"
	ActionResolveForEditor  OrderAction = "resolve_for_editor"
	ActionResolveForCreator OrderAction = "resolve_for_creator"
	ActionReopen            OrderAction = "reopen"
)

// Actor роль пользователя по отношению к конкретному заказу.
type Actor string

const (
	ActorCreator Actor = "creator"
	ActorEditor  Actor = "editor"
	ActorAdmin   Actor = "admin"
	ActorSystem  Actor = "system"
)

// Effect побочный эффект, который сервис обязан выполнить в той же транзакции.
type Effect string

const (
	EffectCreateApplication  Effect = "create_application"
	EffectLockDeposit        Effect = "lock_deposit"
	EffectApproveApplication Effect = "approve_application"
	EffectHoldEscrow         Effect = "hold_escrow"
	EffectRejectOthers       Effect = "reject_other_applications"
	EffectRecordDelivery     Effect = "record_delivery"
	EffectRecordVideoURL     Effect = "record_video_url"
	EffectReleaseDeposit     Effect = "release_deposit"
	EffectPayout             Effect = "payout"
	EffectRejectAll          Effect = "reject_all_applications"
	EffectRefundEscrow       Effect = "refund_escrow"
	EffectOpenDispute        Effect = "open_dispute"
	EffectCloseDispute       Effect = "close_dispute"
	EffectForfeitDeposit     Effect = "forfeit_deposit"
)

// Transition строка таблицы переходов.
type Transition struct {
	From    OrderStatus
	Action  OrderAction
	To      OrderStatus
	Actors  []Actor
	Effects []Effect
}

// HasEffect проверяет, входит ли эффект в переход.
func (t Transition) HasEffect(effect Effect) bool {
	for _, e := range t.Effects {
		if e == effect {
			return true
		}
	}
	return false
}

func (t Transition) allows(actor Actor) bool {
	for _, a := range t.Actors {
		if a == actor {
			return true
		}
	}
	return false
}

type transitionKey struct {
	from   OrderStatus
	action OrderAction
}

// rule раскрывается в строки таблицы для каждого исходного статуса.
type rule struct {
	from    []OrderStatus
	action  OrderAction
	to      OrderStatus
	actors  []Actor
	effects []Effect
}

var rules = []rule{
	{
		from:    []OrderStatus{OrderStatusOpen, OrderStatusApplied},
		action:  ActionApply,
		to:      OrderStatusApplied,
		actors:  []Actor{ActorEditor},
		effects: []Effect{EffectCreateApplication, EffectLockDeposit},
	},
	{
		from:    []OrderStatus{OrderStatusOpen, OrderStatusApplied},
		action:  ActionApprove,
		to:      OrderStatusAssigned,
		actors:  []Actor{ActorCreator},
		effects: []Effect{EffectApproveApplication, EffectHoldEscrow, EffectRejectOthers},
	},
	{
		from:   []OrderStatus{OrderStatusApplied},
		action: ActionReopen,
		to:     OrderStatusOpen,
		actors: []Actor{ActorSystem},
	},
	{
		from:   []OrderStatus{OrderStatusAssigned},
		action: ActionStart,
		to:     OrderStatusInProgress,
		actors: []Actor{ActorEditor},
	},
	{
		from:    []OrderStatus{OrderStatusAssigned, OrderStatusInProgress, OrderStatusRevisionRequested},
		action:  ActionSubmitPreview,
		to:      OrderStatusPreviewSubmitted,
		actors:  []Actor{ActorEditor},
		effects: []Effect{EffectRecordDelivery},
	},
	{
		from:   []OrderStatus{OrderStatusPreviewSubmitted, OrderStatusFinalSubmitted},
		action: ActionRequestRevision,
		to:     OrderStatusRevisionRequested,
		actors: []Actor{ActorCreator},
	},
	{
		from:    []OrderStatus{OrderStatusPreviewSubmitted, OrderStatusRevisionRequested},
		action:  ActionSubmitFinal,
		to:      OrderStatusFinalSubmitted,
		actors:  []Actor{ActorEditor},
		effects: []Effect{EffectRecordDelivery},
	},
	{
		from:    []OrderStatus{OrderStatusFinalSubmitted},
		action:  ActionPublish,
		to:      OrderStatusPublished,
		actors:  []Actor{ActorCreator, ActorEditor},
		effects: []Effect{EffectRecordVideoURL},
	},
	{
		from:    []OrderStatus{OrderStatusFinalSubmitted, OrderStatusPublished},
		action:  ActionComplete,
		to:      OrderStatusCompleted,
		actors:  []Actor{ActorCreator},
		effects: []Effect{EffectReleaseDeposit, EffectPayout},
	},
	{
		from:    []OrderStatus{OrderStatusOpen, OrderStatusApplied, OrderStatusAssigned},
		action:  ActionCancel,
		to:      OrderStatusCancelled,
		actors:  []Actor{ActorCreator},
		effects: []Effect{EffectRejectAll, EffectReleaseDeposit, EffectRefundEscrow},
	},
	{
		from: []OrderStatus{
			OrderStatusInProgress,
			OrderStatusPreviewSubmitted,
			OrderStatusRevisionRequested,
			OrderStatusFinalSubmitted,
			OrderStatusPublished,
		},
		action:  ActionDispute,
		to:      OrderStatusDisputed,
		actors:  []Actor{ActorCreator, ActorEditor},
		effects: []Effect{EffectOpenDispute},
	},
	{
		from:    []OrderStatus{OrderStatusDisputed},
		action:  ActionResolveForEditor,
		to:      OrderStatusCompleted,
		actors:  []Actor{ActorAdmin},
		effects: []Effect{EffectCloseDispute, EffectReleaseDeposit, EffectPayout},
	},
	{
		from:    []OrderStatus{OrderStatusDisputed},
		action:  ActionResolveForCreator,
		to:      OrderStatusCancelled,
		actors:  []Actor{ActorAdmin},
		effects: []Effect{EffectCloseDispute, EffectForfeitDeposit, EffectRefundEscrow},
	},
}

var transitions = buildTransitions(rules)

func buildTransitions(rules []rule) map[transitionKey]Transition {
	table := make(map[transitionKey]Transition)
	for _, r := range rules {
		for _, from := range r.from {
			key := transitionKey{from: from, action: r.action}
			if _, dup := table[key]; dup {
				panic(fmt.Sprintf("valueobject: повторный переход %s/%s", from, r.action))
			}
			table[key] = Transition{
				From:    from,
				Action:  r.action,
				To:      r.to,
				Actors:  r.actors,
				Effects: r.effects,
			}
		}
	}
	return table
}

// ResolveTransition находит переход для пары (статус, действие) и проверяет, что актор вправе его выполнить.
func ResolveTransition(from OrderStatus, action OrderAction, actor Actor) (Transition, error) {
	t, ok := transitions[transitionKey{from: from, action: action}]
	if !ok {
		return Transition{}, apperror.Newf(apperror.ErrCodeConflict, "действие %s недопустимо для заказа в статусе %s", action, from)
	}
	if !t.allows(actor) {
		return Transition{}, apperror.Newf(apperror.ErrCodeForbidden, "действие %s недоступно для роли %s", action, actor)
	}
	return t, nil
}

// CanTransition сообщает, существует ли переход без учёта роли.
func (s OrderStatus) CanTransition(action OrderAction) bool {
	_, ok := transitions[transitionKey{from: s, action: action}]
	return ok
}

// AvailableActions возвращает действия, доступные актору в данном статусе.
func AvailableActions(from OrderStatus, actor Actor) []OrderAction {
	var actions []OrderAction
	for key, t := range transitions {
		if key.from == from && t.allows(actor) {
			actions = append(actions, key.action)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// IsKnownAction проверяет, что действие встречается в таблице.
func IsKnownAction(action OrderAction) bool {
	for _, r := range rules {
		if r.action == action {
			return true
		}
	}
	return false
}
