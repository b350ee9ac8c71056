package valueobject

import "github.com/cutflow/cutflow-backend/internal/pkg/apperror"

type OrderStatus string

const (
	OrderStatusOpen              OrderStatus = "OPEN"
	OrderStatusApplied           OrderStatus = "APPLIED"
	OrderStatusAssigned          OrderStatus = "ASSIGNED"
	OrderStatusInProgress        OrderStatus = "IN_PROGRESS"
	OrderStatusPreviewSubmitted  OrderStatus = "PREVIEW_SUBMITTED"
	OrderStatusRevisionRequested OrderStatus = "REVISION_REQUESTED"
	OrderStatusFinalSubmitted    OrderStatus = "FINAL_SUBMITTED"
	OrderStatusPublished         OrderStatus = "PUBLISHED"
	OrderStatusCompleted         OrderStatus = "COMPLETED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
	OrderStatusDisputed          OrderStatus = "DISPUTED"
)

var orderStatuses = []OrderStatus{
	OrderStatusOpen,
	OrderStatusApplied,
	OrderStatusAssigned,
	OrderStatusInProgress,
	OrderStatusPreviewSubmitted,
	OrderStatusRevisionRequested,
	OrderStatusFinalSubmitted,
	OrderStatusPublished,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusDisputed,
}

func (s OrderStatus) IsValid() bool {
	for _, known := range orderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsOpenForApplications сообщает, что на заказ ещё можно откликнуться.
func (s OrderStatus) IsOpenForApplications() bool {
	return s == OrderStatusOpen || s == OrderStatusApplied
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}
	return s, nil
}

type ApplicationStatus string

const (
	ApplicationStatusApplied  ApplicationStatus = "APPLIED"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusApplied, ApplicationStatusApproved, ApplicationStatusRejected:
		return true
	}
	return false
}

func (s ApplicationStatus) CanTransitionTo(newStatus ApplicationStatus) bool {
	transitions := map[ApplicationStatus][]ApplicationStatus{
		ApplicationStatusApplied:  {ApplicationStatusApproved, ApplicationStatusRejected},
		ApplicationStatusApproved: {},
		ApplicationStatusRejected: {},
	}

	for _, status := range transitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// DepositStatus отражает судьбу депозита по отклику.
type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "PENDING"
	DepositStatusLocked    DepositStatus = "LOCKED"
	DepositStatusReleased  DepositStatus = "RELEASED"
	DepositStatusForfeited DepositStatus = "FORFEITED"
	// DepositStatusVoid депозит так и не был внесён, отклик закрыт.
	DepositStatusVoid DepositStatus = "VOID"
)

func (s DepositStatus) CanTransitionTo(newStatus DepositStatus) bool {
	transitions := map[DepositStatus][]DepositStatus{
		DepositStatusPending:   {DepositStatusLocked, DepositStatusVoid},
		DepositStatusLocked:    {DepositStatusReleased, DepositStatusForfeited},
		DepositStatusReleased:  {},
		DepositStatusForfeited: {},
		DepositStatusVoid:      {},
	}

	for _, status := range transitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}
