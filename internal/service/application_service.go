package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/repository"
	"github.com/cutflow/cutflow-backend/internal/validation"
)

const sweepBatchSize = 100

// Apply создаёт отклик монтажёра. Если баланса хватает, депозит блокируется сразу,
// иначе отклик ждёт депозит до deposit_deadline.
func (s *OrderService) Apply(ctx context.Context, editorID, orderID uuid.UUID, coverLetter string) (*models.Application, error) {
	coverLetter = strings.TrimSpace(coverLetter)
	if err := validation.ValidateCoverLetter(coverLetter); err != nil {
		return nil, invalid(err)
	}

	box := &outbox{}
	var order *models.Order
	var app *models.Application
	err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.CreatorID == editorID {
			return apperror.New(apperror.ErrCodeForbidden, "нельзя откликнуться на собственный заказ")
		}
		tr, err := valueobject.ResolveTransition(order.Status, valueobject.ActionApply, valueobject.ActorEditor)
		if err != nil {
			return err
		}

		now := s.now()
		app = &models.Application{
			OrderID:         order.ID,
			EditorID:        editorID,
			CoverLetter:     coverLetter,
			Status:          valueobject.ApplicationStatusApplied,
			DepositAmount:   s.deposit.Amount(order.Amount),
			DepositStatus:   valueobject.DepositStatusPending,
			DepositDeadline: s.deposit.Deadline(now),
		}
		if err := tx.CreateApplication(ctx, app); err != nil {
			return err
		}

		locked, err := lockDeposit(ctx, tx, app)
		if err != nil && !errors.Is(err, apperror.ErrInsufficientFunds) {
			return err
		}
		if locked {
			box.notify(editorID, models.NotificationDepositLocked, "Депозит внесён",
				"Депозит "+app.DepositAmount.StringFixed(2)+" заблокирован до завершения заказа", orderLink(order.ID))
		}

		return s.applyTransition(ctx, tx, order, tr, &editorID, &app.ID, box)
	})
	if err != nil {
		return nil, err
	}

	box.notify(order.CreatorID, models.NotificationApplicationReceived, "Новый отклик",
		"На заказ «"+order.Title+"» откликнулся монтажёр", orderLink(order.ID))
	s.flush(ctx, box)

	s.log.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"application_id": app.ID,
		"deposit_status": app.DepositStatus,
	}).Info("отклик создан")
	return app, nil
}

// PayDeposit блокирует депозит по отклику, созданному без достаточного баланса.
func (s *OrderService) PayDeposit(ctx context.Context, editorID, applicationID uuid.UUID) (*models.Application, error) {
	box := &outbox{}
	var app *models.Application
	err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		app, err = tx.GetApplicationForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.EditorID != editorID {
			return apperror.ErrApplicationNotFound
		}
		if app.Status != valueobject.ApplicationStatusApplied {
			return apperror.New(apperror.ErrCodeConflict, "отклик уже закрыт")
		}
		if app.DepositStatus != valueobject.DepositStatusPending {
			return apperror.New(apperror.ErrCodeConflict, "депозит уже внесён")
		}
		if app.IsDepositOverdue(s.now()) {
			return apperror.New(apperror.ErrCodeConflict, "срок внесения депозита истёк")
		}

		if _, err := lockDeposit(ctx, tx, app); err != nil {
			return err
		}
		return tx.AddHistory(ctx, app.OrderID, &editorID, "deposit_locked", valueobject.DepositStatusPending, app.DepositStatus)
	})
	if err != nil {
		return nil, err
	}

	box.notify(editorID, models.NotificationDepositLocked, "Депозит внесён",
		"Депозит "+app.DepositAmount.StringFixed(2)+" заблокирован", orderLink(app.OrderID))
	s.flush(ctx, box)
	return app, nil
}

// Approve назначает монтажёра исполнителем. Требует внесённый депозит и замораживает
// сумму заказа на кошельке креатора. Остальные отклики закрываются с возвратом депозитов.
func (s *OrderService) Approve(ctx context.Context, creatorID, applicationID uuid.UUID) (*models.Order, error) {
	// заказ блокируется раньше отклика, порядок блокировок одинаков во всех операциях
	target, err := s.apps.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	box := &outbox{}
	var order *models.Order
	err = s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, target.OrderID)
		if err != nil {
			return err
		}
		if order.CreatorID != creatorID {
			return apperror.ErrForbidden
		}
		tr, err := valueobject.ResolveTransition(order.Status, valueobject.ActionApprove, valueobject.ActorCreator)
		if err != nil {
			return err
		}

		app, err := tx.GetApplicationForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != valueobject.ApplicationStatusApplied {
			return apperror.New(apperror.ErrCodeConflict, "отклик уже закрыт")
		}
		if app.DepositStatus != valueobject.DepositStatusLocked {
			return repository.ErrDepositNotLocked
		}

		if err := tx.SetApplicationStatus(ctx, app.ID, valueobject.ApplicationStatusApplied, valueobject.ApplicationStatusApproved); err != nil {
			return err
		}
		if err := tx.AssignEditor(ctx, order.ID, app.EditorID); err != nil {
			return err
		}
		editorID := app.EditorID
		order.EditorID = &editorID

		if _, err := tx.HoldEscrow(ctx, order, app.EditorID); err != nil {
			return err
		}

		others, err := tx.LockOpenApplications(ctx, order.ID)
		if err != nil {
			return err
		}
		for i := range others {
			if err := closeApplication(ctx, tx, &others[i]); err != nil {
				return err
			}
			box.notify(others[i].EditorID, models.NotificationApplicationRejected, "Отклик отклонён",
				"Заказчик выбрал другого исполнителя для «"+order.Title+"»", orderLink(order.ID))
		}

		box.notify(app.EditorID, models.NotificationApplicationApproved, "Отклик одобрен",
			"Вы назначены исполнителем заказа «"+order.Title+"»", orderLink(order.ID))
		return s.applyTransition(ctx, tx, order, tr, &creatorID, &app.ID, box)
	})
	if err != nil {
		return nil, err
	}

	s.flush(ctx, box)
	return order, nil
}

// Reject отклоняет отклик по решению креатора.
func (s *OrderService) Reject(ctx context.Context, creatorID, applicationID uuid.UUID) (*models.Application, error) {
	return s.closeByUser(ctx, applicationID, func(order *models.Order, app *models.Application) error {
		if order.CreatorID != creatorID {
			return apperror.ErrForbidden
		}
		return nil
	}, creatorID, "reject")
}

// Withdraw отзывает отклик монтажёром.
func (s *OrderService) Withdraw(ctx context.Context, editorID, applicationID uuid.UUID) (*models.Application, error) {
	return s.closeByUser(ctx, applicationID, func(order *models.Order, app *models.Application) error {
		if app.EditorID != editorID {
			return apperror.ErrApplicationNotFound
		}
		return nil
	}, editorID, "withdraw")
}

func (s *OrderService) closeByUser(ctx context.Context, applicationID uuid.UUID, authorize func(*models.Order, *models.Application) error, actorID uuid.UUID, action string) (*models.Application, error) {
	target, err := s.apps.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	box := &outbox{}
	var order *models.Order
	var app *models.Application
	err = s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, target.OrderID)
		if err != nil {
			return err
		}
		app, err = tx.GetApplicationForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if err := authorize(order, app); err != nil {
			return err
		}
		if app.Status != valueobject.ApplicationStatusApplied {
			return apperror.New(apperror.ErrCodeConflict, "отклик уже закрыт")
		}
		if err := closeApplication(ctx, tx, app); err != nil {
			return err
		}
		if err := tx.AddHistory(ctx, order.ID, &actorID, action, valueobject.ApplicationStatusApplied, app.Status); err != nil {
			return err
		}
		return s.reopenIfEmpty(ctx, tx, order, box)
	})
	if err != nil {
		return nil, err
	}

	if action == "reject" {
		box.notify(app.EditorID, models.NotificationApplicationRejected, "Отклик отклонён",
			"Заказчик отклонил ваш отклик на «"+order.Title+"»", orderLink(order.ID))
	} else {
		box.notify(order.CreatorID, models.NotificationOrderUpdated, "Отклик отозван",
			"Монтажёр отозвал отклик на «"+order.Title+"»", orderLink(order.ID))
	}
	s.flush(ctx, box)
	return app, nil
}

// SweepOverdueDeposits закрывает отклики, по которым депозит не внесён в срок.
// Возвращает число закрытых откликов.
func (s *OrderService) SweepOverdueDeposits(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.apps.ListOverdueDeposits(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, candidate := range overdue {
		box := &outbox{}
		var order *models.Order
		var app *models.Application
		err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
			var err error
			order, err = tx.GetOrderForUpdate(ctx, candidate.OrderID)
			if err != nil {
				return err
			}
			app, err = tx.GetApplicationForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			// депозит могли внести между выборкой и блокировкой
			if app.Status != valueobject.ApplicationStatusApplied || !app.IsDepositOverdue(now) {
				app = nil
				return nil
			}
			if err := closeApplication(ctx, tx, app); err != nil {
				return err
			}
			if err := tx.AddHistory(ctx, order.ID, nil, "deposit_expired", valueobject.ApplicationStatusApplied, app.Status); err != nil {
				return err
			}
			return s.reopenIfEmpty(ctx, tx, order, box)
		})
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"application_id": candidate.ID,
				"error":          err.Error(),
			}).Error("не удалось закрыть просроченный отклик")
			continue
		}
		if app == nil {
			continue
		}

		closed++
		box.notify(app.EditorID, models.NotificationApplicationRejected, "Отклик закрыт",
			"Депозит по отклику на «"+order.Title+"» не внесён в срок", orderLink(order.ID))
		s.flush(ctx, box)
	}

	if closed > 0 {
		s.log.WithField("closed", closed).Info("просроченные отклики закрыты")
	}
	return closed, nil
}

// ListApplications возвращает отклики на заказ его креатору.
func (s *OrderService) ListApplications(ctx context.Context, userID uuid.UUID, role string, orderID uuid.UUID) ([]models.Application, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CreatorID != userID && role != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	return s.apps.ListApplicationsByOrder(ctx, orderID)
}

// ListMyApplications возвращает отклики монтажёра.
func (s *OrderService) ListMyApplications(ctx context.Context, editorID uuid.UUID, limit, offset int) ([]models.Application, error) {
	limit, offset = normalizePage(limit, offset)
	return s.apps.ListApplicationsByEditor(ctx, editorID, limit, offset)
}

// reopenIfEmpty возвращает заказ в OPEN, когда на нём не осталось активных откликов.
func (s *OrderService) reopenIfEmpty(ctx context.Context, tx repository.Tx, order *models.Order, box *outbox) error {
	if order.Status != valueobject.OrderStatusApplied {
		return nil
	}
	open, err := tx.CountOpenApplications(ctx, order.ID)
	if err != nil {
		return err
	}
	if open > 0 {
		return nil
	}
	tr, err := valueobject.ResolveTransition(order.Status, valueobject.ActionReopen, valueobject.ActorSystem)
	if err != nil {
		return err
	}
	return s.applyTransition(ctx, tx, order, tr, nil, nil, box)
}

// lockDeposit блокирует депозит отклика. Нехватка средств возвращается без изменения статуса.
func lockDeposit(ctx context.Context, tx repository.Tx, app *models.Application) (bool, error) {
	if err := tx.LockDeposit(ctx, app); err != nil {
		return false, err
	}
	if err := tx.SetDepositStatus(ctx, app.ID, valueobject.DepositStatusPending, valueobject.DepositStatusLocked); err != nil {
		return false, err
	}
	app.DepositStatus = valueobject.DepositStatusLocked
	return true, nil
}

// releaseDeposit возвращает депозит монтажёру. Условный UPDATE статуса гарантирует единственный возврат.
func releaseDeposit(ctx context.Context, tx repository.Tx, app *models.Application) (bool, error) {
	if app.DepositStatus != valueobject.DepositStatusLocked {
		return false, nil
	}
	if err := tx.SetDepositStatus(ctx, app.ID, valueobject.DepositStatusLocked, valueobject.DepositStatusReleased); err != nil {
		return false, err
	}
	if err := tx.ReleaseDeposit(ctx, app); err != nil {
		return false, err
	}
	app.DepositStatus = valueobject.DepositStatusReleased
	return true, nil
}

func forfeitDeposit(ctx context.Context, tx repository.Tx, app *models.Application, beneficiaryID uuid.UUID) error {
	if app.DepositStatus != valueobject.DepositStatusLocked {
		return nil
	}
	if err := tx.SetDepositStatus(ctx, app.ID, valueobject.DepositStatusLocked, valueobject.DepositStatusForfeited); err != nil {
		return err
	}
	if err := tx.ForfeitDeposit(ctx, app, beneficiaryID); err != nil {
		return err
	}
	app.DepositStatus = valueobject.DepositStatusForfeited
	return nil
}

// closeApplication отклоняет активный отклик: внесённый депозит возвращается, невнесённый аннулируется.
func closeApplication(ctx context.Context, tx repository.Tx, app *models.Application) error {
	if err := tx.SetApplicationStatus(ctx, app.ID, valueobject.ApplicationStatusApplied, valueobject.ApplicationStatusRejected); err != nil {
		return err
	}
	app.Status = valueobject.ApplicationStatusRejected

	switch app.DepositStatus {
	case valueobject.DepositStatusLocked:
		_, err := releaseDeposit(ctx, tx, app)
		return err
	case valueobject.DepositStatusPending:
		if err := tx.SetDepositStatus(ctx, app.ID, valueobject.DepositStatusPending, valueobject.DepositStatusVoid); err != nil {
			return err
		}
		app.DepositStatus = valueobject.DepositStatusVoid
	}
	return nil
}

func approvedApplication(ctx context.Context, tx repository.Tx, orderID uuid.UUID) (*models.Application, error) {
	app, err := tx.GetApprovedApplication(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperror.ErrApplicationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return app, nil
}
