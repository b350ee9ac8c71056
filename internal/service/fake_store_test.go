package service

import (
	"context"
	"errors"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cutflow/cutflow-backend/internal/domain/valueobject"
	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
	"github.com/cutflow/cutflow-backend/internal/repository"
)

var errInjected = errors.New("injected failure")

// fakeState всё содержимое фейковой базы. Значения копируются при снимке.
type fakeState struct {
	orders     map[uuid.UUID]models.Order
	apps       map[uuid.UUID]models.Application
	wallets    map[uuid.UUID]models.Wallet
	escrows    map[uuid.UUID]models.Escrow
	disputes   map[uuid.UUID]models.Dispute
	payments   map[uuid.UUID]models.Payment
	deliveries map[uuid.UUID]models.Delivery
	webhooks   map[string]bool
	references map[string]bool
	ledger     []models.WalletTransaction
	history    []models.OrderHistory
}

func (s fakeState) clone() fakeState {
	return fakeState{
		orders:     maps.Clone(s.orders),
		apps:       maps.Clone(s.apps),
		wallets:    maps.Clone(s.wallets),
		escrows:    maps.Clone(s.escrows),
		disputes:   maps.Clone(s.disputes),
		payments:   maps.Clone(s.payments),
		deliveries: maps.Clone(s.deliveries),
		webhooks:   maps.Clone(s.webhooks),
		references: maps.Clone(s.references),
		ledger:     append([]models.WalletTransaction(nil), s.ledger...),
		history:    append([]models.OrderHistory(nil), s.history...),
	}
}

// fakeStore реализует транзакционные репозитории в памяти: ошибка внутри WithinTx
// откатывает состояние к снимку.
type fakeStore struct {
	fakeState
	inTx   bool
	failOn map[string]bool
	// afterLock вызывается после чтения заказа под блокировкой
	afterLock func(id uuid.UUID)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fakeState: fakeState{
			orders:     map[uuid.UUID]models.Order{},
			apps:       map[uuid.UUID]models.Application{},
			wallets:    map[uuid.UUID]models.Wallet{},
			escrows:    map[uuid.UUID]models.Escrow{},
			disputes:   map[uuid.UUID]models.Dispute{},
			payments:   map[uuid.UUID]models.Payment{},
			deliveries: map[uuid.UUID]models.Delivery{},
			webhooks:   map[string]bool{},
			references: map[string]bool{},
		},
		failOn: map[string]bool{},
	}
}

var _ repository.Tx = (*fakeStore)(nil)

func (f *fakeStore) WithinTx(ctx context.Context, fn func(repository.Tx) error) error {
	snapshot := f.fakeState.clone()
	f.inTx = true
	defer func() { f.inTx = false }()

	if err := fn(f); err != nil {
		f.fakeState = snapshot
		return err
	}
	return nil
}

func (f *fakeStore) fail(op string) error {
	if f.failOn[op] {
		return errInjected
	}
	return nil
}

// --- фикстуры

func (f *fakeStore) fund(userID uuid.UUID, amount int64) {
	w := f.wallet(userID)
	w.Balance = w.Balance.Add(decimal.NewFromInt(amount))
	f.wallets[userID] = w
}

func (f *fakeStore) wallet(userID uuid.UUID) models.Wallet {
	w, ok := f.wallets[userID]
	if !ok {
		w = models.Wallet{UserID: userID, Balance: decimal.Zero, Locked: decimal.Zero}
	}
	return w
}

func (f *fakeStore) seedOrder(creatorID uuid.UUID, amount int64, status valueobject.OrderStatus) models.Order {
	o := models.Order{
		ID:        uuid.New(),
		CreatorID: creatorID,
		Title:     "Монтаж ролика",
		Amount:    decimal.NewFromInt(amount),
		Deadline:  time.Now().Add(72 * time.Hour),
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.orders[o.ID] = o
	return o
}

func (f *fakeStore) historyActions(orderID uuid.UUID) []string {
	var actions []string
	for _, h := range f.history {
		if h.OrderID == orderID {
			actions = append(actions, h.Action)
		}
	}
	return actions
}

func (f *fakeStore) ledgerTypes(userID uuid.UUID) []string {
	var types []string
	for _, e := range f.ledger {
		if e.UserID == userID {
			types = append(types, e.Type)
		}
	}
	return types
}

// --- OrderTx / OrderReader

func (f *fakeStore) CreateOrder(_ context.Context, order *models.Order) error {
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	f.orders[order.ID] = *order
	return nil
}

func (f *fakeStore) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, apperror.ErrOrderNotFound
	}
	return &o, nil
}

func (f *fakeStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := f.GetOrder(ctx, id)
	if err == nil && f.afterLock != nil {
		f.afterLock(id)
	}
	return o, err
}

func (f *fakeStore) TransitionOrder(_ context.Context, id uuid.UUID, from, to valueobject.OrderStatus) error {
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return apperror.ErrStaleState
	}
	o.Status = to
	if to == valueobject.OrderStatusCompleted {
		now := time.Now()
		o.CompletedAt = &now
	}
	f.orders[id] = o
	return nil
}

func (f *fakeStore) AssignEditor(_ context.Context, orderID, editorID uuid.UUID) error {
	o := f.orders[orderID]
	o.EditorID = &editorID
	f.orders[orderID] = o
	return nil
}

func (f *fakeStore) SetVideoURL(_ context.Context, orderID uuid.UUID, videoURL string) error {
	o := f.orders[orderID]
	o.VideoURL = &videoURL
	f.orders[orderID] = o
	return nil
}

func (f *fakeStore) ListOrders(_ context.Context, filter models.OrderListFilter) ([]models.Order, error) {
	return f.filterOrders(func(o models.Order) bool {
		for _, s := range filter.Statuses {
			if o.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (f *fakeStore) ListOrdersByCreator(_ context.Context, creatorID uuid.UUID, _, _ int) ([]models.Order, error) {
	return f.filterOrders(func(o models.Order) bool { return o.CreatorID == creatorID }), nil
}

func (f *fakeStore) ListOrdersByEditor(_ context.Context, editorID uuid.UUID, _, _ int) ([]models.Order, error) {
	return f.filterOrders(func(o models.Order) bool { return o.IsAssignedEditor(editorID) }), nil
}

func (f *fakeStore) ListCompletedOrdersForUser(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	return f.filterOrders(func(o models.Order) bool {
		return o.Status == valueobject.OrderStatusCompleted && o.IsParticipant(userID)
	}), nil
}

func (f *fakeStore) filterOrders(keep func(models.Order) bool) []models.Order {
	out := []models.Order{}
	for _, o := range f.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeStore) ListHistory(_ context.Context, orderID uuid.UUID) ([]models.OrderHistory, error) {
	out := []models.OrderHistory{}
	for _, h := range f.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

// --- ApplicationTx / ApplicationReader

func (f *fakeStore) CreateApplication(_ context.Context, app *models.Application) error {
	for _, existing := range f.apps {
		if existing.OrderID == app.OrderID && existing.EditorID == app.EditorID {
			return apperror.New(apperror.ErrCodeConflict, "вы уже откликнулись на этот заказ")
		}
	}
	app.ID = uuid.New()
	app.CreatedAt = time.Now()
	f.apps[app.ID] = *app
	return nil
}

func (f *fakeStore) GetApplication(_ context.Context, id uuid.UUID) (*models.Application, error) {
	a, ok := f.apps[id]
	if !ok {
		return nil, apperror.ErrApplicationNotFound
	}
	return &a, nil
}

func (f *fakeStore) GetApplicationForUpdate(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return f.GetApplication(ctx, id)
}

func (f *fakeStore) LockOpenApplications(_ context.Context, orderID uuid.UUID) ([]models.Application, error) {
	return f.filterApps(func(a models.Application) bool {
		return a.OrderID == orderID && a.Status == valueobject.ApplicationStatusApplied
	}), nil
}

func (f *fakeStore) GetApprovedApplication(_ context.Context, orderID uuid.UUID) (*models.Application, error) {
	for _, a := range f.apps {
		if a.OrderID == orderID && a.Status == valueobject.ApplicationStatusApproved {
			return &a, nil
		}
	}
	return nil, apperror.ErrApplicationNotFound
}

func (f *fakeStore) CountOpenApplications(ctx context.Context, orderID uuid.UUID) (int, error) {
	open, _ := f.LockOpenApplications(ctx, orderID)
	return len(open), nil
}

func (f *fakeStore) SetApplicationStatus(_ context.Context, id uuid.UUID, from, to valueobject.ApplicationStatus) error {
	a, ok := f.apps[id]
	if !ok || a.Status != from {
		return apperror.ErrStaleState
	}
	if to == valueobject.ApplicationStatusApproved {
		if a.DepositStatus != valueobject.DepositStatusLocked {
			return errors.New("check constraint: approved without locked deposit")
		}
		if _, err := f.GetApprovedApplication(context.Background(), a.OrderID); err == nil {
			return errors.New("unique violation: uq_order_applications_approved")
		}
	}
	a.Status = to
	f.apps[id] = a
	return nil
}

func (f *fakeStore) SetDepositStatus(_ context.Context, id uuid.UUID, from, to valueobject.DepositStatus) error {
	a, ok := f.apps[id]
	if !ok || a.DepositStatus != from {
		return apperror.ErrStaleState
	}
	a.DepositStatus = to
	f.apps[id] = a
	return nil
}

func (f *fakeStore) ListApplicationsByOrder(_ context.Context, orderID uuid.UUID) ([]models.Application, error) {
	return f.filterApps(func(a models.Application) bool { return a.OrderID == orderID }), nil
}

func (f *fakeStore) ListApplicationsByEditor(_ context.Context, editorID uuid.UUID, _, _ int) ([]models.Application, error) {
	return f.filterApps(func(a models.Application) bool { return a.EditorID == editorID }), nil
}

func (f *fakeStore) ListOverdueDeposits(_ context.Context, now time.Time, limit int) ([]models.Application, error) {
	out := f.filterApps(func(a models.Application) bool {
		return a.Status == valueobject.ApplicationStatusApplied && a.IsDepositOverdue(now)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) filterApps(keep func(models.Application) bool) []models.Application {
	out := []models.Application{}
	for _, a := range f.apps {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// --- LedgerTx / WalletRepository

func (f *fakeStore) move(userID uuid.UUID, balanceDelta, lockedDelta decimal.Decimal) error {
	w := f.wallet(userID)
	w.Balance = w.Balance.Add(balanceDelta)
	w.Locked = w.Locked.Add(lockedDelta)
	if w.Balance.IsNegative() || w.Locked.IsNegative() {
		return apperror.ErrInsufficientFunds
	}
	f.wallets[userID] = w
	return nil
}

func (f *fakeStore) record(userID uuid.UUID, typ string, amount decimal.Decimal, orderID, appID *uuid.UUID, reference string) error {
	if reference != "" {
		if f.references[reference] {
			return repository.ErrDuplicateReference
		}
		f.references[reference] = true
	}
	if appID != nil {
		key := appID.String() + ":" + typ
		if f.references[key] {
			return repository.ErrDuplicateReference
		}
		f.references[key] = true
	}
	f.ledger = append(f.ledger, models.WalletTransaction{
		ID: uuid.New(), UserID: userID, Type: typ, Amount: amount, OrderID: orderID, ApplicationID: appID,
	})
	return nil
}

func (f *fakeStore) LockDeposit(_ context.Context, app *models.Application) error {
	if !app.DepositAmount.IsPositive() {
		return nil
	}
	if f.wallet(app.EditorID).Balance.LessThan(app.DepositAmount) {
		return apperror.ErrInsufficientFunds
	}
	if err := f.move(app.EditorID, app.DepositAmount.Neg(), app.DepositAmount); err != nil {
		return err
	}
	return f.record(app.EditorID, models.WalletTxDepositLock, app.DepositAmount, &app.OrderID, &app.ID, "")
}

func (f *fakeStore) ReleaseDeposit(_ context.Context, app *models.Application) error {
	if !app.DepositAmount.IsPositive() {
		return nil
	}
	if err := f.move(app.EditorID, app.DepositAmount, app.DepositAmount.Neg()); err != nil {
		return err
	}
	return f.record(app.EditorID, models.WalletTxDepositRelease, app.DepositAmount, &app.OrderID, &app.ID, "")
}

func (f *fakeStore) ForfeitDeposit(_ context.Context, app *models.Application, beneficiaryID uuid.UUID) error {
	if !app.DepositAmount.IsPositive() {
		return nil
	}
	if err := f.move(app.EditorID, decimal.Zero, app.DepositAmount.Neg()); err != nil {
		return err
	}
	if err := f.record(app.EditorID, models.WalletTxDepositForfeit, app.DepositAmount, &app.OrderID, &app.ID, ""); err != nil {
		return err
	}
	if err := f.move(beneficiaryID, app.DepositAmount, decimal.Zero); err != nil {
		return err
	}
	return f.record(beneficiaryID, models.WalletTxDepositCompensation, app.DepositAmount, &app.OrderID, nil, "")
}

func (f *fakeStore) HoldEscrow(_ context.Context, order *models.Order, editorID uuid.UUID) (*models.Escrow, error) {
	if f.wallet(order.CreatorID).Balance.LessThan(order.Amount) {
		return nil, apperror.ErrInsufficientFunds
	}
	if err := f.move(order.CreatorID, order.Amount.Neg(), order.Amount); err != nil {
		return nil, err
	}
	escrow := models.Escrow{OrderID: order.ID, CreatorID: order.CreatorID, EditorID: editorID, Amount: order.Amount, Status: models.EscrowStatusHeld}
	f.escrows[order.ID] = escrow
	return &escrow, f.record(order.CreatorID, models.WalletTxEscrowHold, order.Amount, &order.ID, nil, "escrow:hold:"+order.ID.String())
}

func (f *fakeStore) heldEscrow(orderID uuid.UUID) (models.Escrow, error) {
	escrow, ok := f.escrows[orderID]
	if !ok || escrow.Status != models.EscrowStatusHeld {
		return models.Escrow{}, repository.ErrEscrowNotFound
	}
	return escrow, nil
}

func (f *fakeStore) ReleaseEscrow(_ context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	escrow, err := f.heldEscrow(orderID)
	if err != nil {
		return nil, err
	}
	if err := f.move(escrow.CreatorID, decimal.Zero, escrow.Amount.Neg()); err != nil {
		return nil, err
	}
	if err := f.move(escrow.EditorID, escrow.Amount, decimal.Zero); err != nil {
		return nil, err
	}
	escrow.Status = models.EscrowStatusReleased
	f.escrows[orderID] = escrow
	return &escrow, f.record(escrow.EditorID, models.WalletTxEscrowRelease, escrow.Amount, &orderID, nil, "escrow:release:"+orderID.String())
}

func (f *fakeStore) RefundEscrow(_ context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	escrow, err := f.heldEscrow(orderID)
	if err != nil {
		return nil, err
	}
	if err := f.move(escrow.CreatorID, escrow.Amount, escrow.Amount.Neg()); err != nil {
		return nil, err
	}
	escrow.Status = models.EscrowStatusRefunded
	f.escrows[orderID] = escrow
	return &escrow, f.record(escrow.CreatorID, models.WalletTxEscrowRefund, escrow.Amount, &orderID, nil, "escrow:refund:"+orderID.String())
}

func (f *fakeStore) CreditWallet(_ context.Context, userID uuid.UUID, amount decimal.Decimal, reference, _ string) (*models.WalletTransaction, error) {
	if err := f.record(userID, models.WalletTxTopUp, amount, nil, nil, reference); err != nil {
		return nil, err
	}
	if err := f.move(userID, amount, decimal.Zero); err != nil {
		return nil, err
	}
	entry := f.ledger[len(f.ledger)-1]
	return &entry, nil
}

func (f *fakeStore) GetWallet(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w := f.wallet(userID)
	return &w, nil
}

func (f *fakeStore) ListWalletTransactions(_ context.Context, userID uuid.UUID, _, _ int) ([]models.WalletTransaction, error) {
	out := []models.WalletTransaction{}
	for _, e := range f.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- DisputeTx / HistoryTx

func (f *fakeStore) OpenDispute(_ context.Context, d *models.Dispute) error {
	if existing, ok := f.disputes[d.OrderID]; ok && existing.Status == models.DisputeStatusOpen {
		return apperror.New(apperror.ErrCodeConflict, "спор уже открыт")
	}
	d.ID = uuid.New()
	f.disputes[d.OrderID] = *d
	return nil
}

func (f *fakeStore) CloseDispute(_ context.Context, orderID uuid.UUID, status, resolution string, resolvedBy uuid.UUID) error {
	d, ok := f.disputes[orderID]
	if !ok || d.Status != models.DisputeStatusOpen {
		return apperror.ErrStaleState
	}
	d.Status = status
	d.Resolution = &resolution
	d.ResolvedBy = &resolvedBy
	f.disputes[orderID] = d
	return nil
}

func (f *fakeStore) AddHistory(_ context.Context, orderID uuid.UUID, userID *uuid.UUID, action string, _, _ interface{}) error {
	f.history = append(f.history, models.OrderHistory{ID: uuid.New(), OrderID: orderID, UserID: userID, Action: action, CreatedAt: time.Now()})
	return nil
}

// --- PaymentTx / PaymentRepository

func (f *fakeStore) CreatePayment(_ context.Context, p *models.Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	f.payments[p.ID] = *p
	return nil
}

func (f *fakeStore) GetPaymentByProviderOrder(_ context.Context, provider, providerOrderID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.Provider == provider && p.ProviderOrderID == providerOrderID {
			return &p, nil
		}
	}
	return nil, apperror.ErrPaymentNotFound
}

func (f *fakeStore) CapturePayment(ctx context.Context, provider, providerOrderID, providerPaymentID string) (*models.Payment, bool, error) {
	for _, other := range f.payments {
		if other.Provider == provider && other.ProviderOrderID != providerOrderID &&
			other.ProviderPaymentID != nil && *other.ProviderPaymentID == providerPaymentID {
			return nil, false, repository.ErrPaymentIDReused
		}
	}
	p, err := f.GetPaymentByProviderOrder(ctx, provider, providerOrderID)
	if err != nil {
		return nil, false, err
	}
	if p.Status == models.PaymentStatusCaptured {
		return p, false, nil
	}
	p.Status = models.PaymentStatusCaptured
	p.ProviderPaymentID = &providerPaymentID
	f.payments[p.ID] = *p
	return p, true, nil
}

func (f *fakeStore) RecordWebhookEvent(_ context.Context, provider, eventID, _ string) (bool, error) {
	key := provider + ":" + eventID
	if f.webhooks[key] {
		return false, nil
	}
	f.webhooks[key] = true
	return true, nil
}

func (f *fakeStore) ListPaymentsByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]models.Payment, error) {
	out := []models.Payment{}
	for _, p := range f.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- DeliveryTx / DeliveryRepository

func (f *fakeStore) CreateDelivery(_ context.Context, d *models.Delivery) error {
	if err := f.fail("CreateDelivery"); err != nil {
		return err
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	f.deliveries[d.ID] = *d
	return nil
}

func (f *fakeStore) GetDelivery(_ context.Context, id uuid.UUID) (*models.Delivery, error) {
	d, ok := f.deliveries[id]
	if !ok {
		return nil, apperror.ErrDeliveryNotFound
	}
	return &d, nil
}

func (f *fakeStore) ListDeliveriesByOrder(_ context.Context, orderID uuid.UUID) ([]models.Delivery, error) {
	out := []models.Delivery{}
	for _, d := range f.deliveries {
		if d.OrderID == orderID {
			out = append(out, d)
		}
	}
	return out, nil
}

// recordingNotifier запоминает уведомления и события и отмечает отправленные внутри транзакции.
type recordingNotifier struct {
	store    *fakeStore
	notices  []NotificationInput
	events   []OrderEvent
	duringTx int
}

func (n *recordingNotifier) Notify(_ context.Context, in NotificationInput) {
	if n.store != nil && n.store.inTx {
		n.duringTx++
	}
	n.notices = append(n.notices, in)
}

func (n *recordingNotifier) SendOrderEvent(_ uuid.UUID, _ string, data any) int {
	if n.store != nil && n.store.inTx {
		n.duringTx++
	}
	if e, ok := data.(OrderEvent); ok {
		n.events = append(n.events, e)
	}
	return 0
}

func (n *recordingNotifier) noticesFor(userID uuid.UUID) []string {
	var types []string
	for _, in := range n.notices {
		if in.UserID == userID {
			types = append(types, in.Type)
		}
	}
	return types
}

func (n *recordingNotifier) actions() []string {
	var actions []string
	for _, e := range n.events {
		actions = append(actions, e.Action)
	}
	return actions
}
