package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
)

func TestResolveTransition_HappyPath(t *testing.T) {
	steps := []struct {
		from   OrderStatus
		action OrderAction
		actor  Actor
		to     OrderStatus
	}{
		{OrderStatusOpen, ActionApply, ActorEditor, OrderStatusApplied},
		{OrderStatusApplied, ActionApprove, ActorCreator, OrderStatusAssigned},
		{OrderStatusAssigned, ActionStart, ActorEditor, OrderStatusInProgress},
		{OrderStatusInProgress, ActionSubmitPreview, ActorEditor, OrderStatusPreviewSubmitted},
		{OrderStatusPreviewSubmitted, ActionRequestRevision, ActorCreator, OrderStatusRevisionRequested},
		{OrderStatusRevisionRequested, ActionSubmitFinal, ActorEditor, OrderStatusFinalSubmitted},
		{OrderStatusFinalSubmitted, ActionPublish, ActorEditor, OrderStatusPublished},
		{OrderStatusPublished, ActionComplete, ActorCreator, OrderStatusCompleted},
	}

	for _, step := range steps {
		tr, err := ResolveTransition(step.from, step.action, step.actor)
		require.NoError(t, err, "%s/%s", step.from, step.action)
		assert.Equal(t, step.to, tr.To)
	}
}

func TestResolveTransition_UndefinedPairIsConflict(t *testing.T) {
	cases := []struct {
		from   OrderStatus
		action OrderAction
	}{
		{OrderStatusOpen, ActionComplete},
		{OrderStatusOpen, ActionStart},
		{OrderStatusCompleted, ActionCancel},
		{OrderStatusCancelled, ActionApply},
		{OrderStatusAssigned, ActionApprove},
		{OrderStatusInProgress, ActionSubmitFinal},
		{OrderStatusDisputed, ActionComplete},
		{OrderStatusPublished, ActionCancel},
	}

	for _, tc := range cases {
		_, err := ResolveTransition(tc.from, tc.action, ActorAdmin)
		require.Error(t, err, "%s/%s", tc.from, tc.action)
		assert.True(t, apperror.IsConflict(err))
	}
}

func TestResolveTransition_WrongActorIsForbidden(t *testing.T) {
	_, err := ResolveTransition(OrderStatusApplied, ActionApprove, ActorEditor)
	require.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))

	_, err = ResolveTransition(OrderStatusFinalSubmitted, ActionComplete, ActorEditor)
	require.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))

	_, err = ResolveTransition(OrderStatusDisputed, ActionResolveForEditor, ActorCreator)
	require.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestResolveTransition_Effects(t *testing.T) {
	approve, err := ResolveTransition(OrderStatusOpen, ActionApprove, ActorCreator)
	require.NoError(t, err)
	assert.True(t, approve.HasEffect(EffectHoldEscrow))
	assert.True(t, approve.HasEffect(EffectRejectOthers))

	complete, err := ResolveTransition(OrderStatusFinalSubmitted, ActionComplete, ActorCreator)
	require.NoError(t, err)
	assert.True(t, complete.HasEffect(EffectReleaseDeposit))
	assert.True(t, complete.HasEffect(EffectPayout))

	forCreator, err := ResolveTransition(OrderStatusDisputed, ActionResolveForCreator, ActorAdmin)
	require.NoError(t, err)
	assert.True(t, forCreator.HasEffect(EffectForfeitDeposit))
	assert.False(t, forCreator.HasEffect(EffectReleaseDeposit))
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusCompleted, OrderStatusCancelled} {
		for _, actor := range []Actor{ActorCreator, ActorEditor, ActorAdmin, ActorSystem} {
			assert.Empty(t, AvailableActions(status, actor), "%s/%s", status, actor)
		}
		assert.True(t, status.IsTerminal())
	}
}

func TestAvailableActions(t *testing.T) {
	assert.Equal(t, []OrderAction{ActionApprove, ActionCancel}, AvailableActions(OrderStatusApplied, ActorCreator))
	assert.Equal(t, []OrderAction{ActionApply}, AvailableActions(OrderStatusApplied, ActorEditor))
	assert.Equal(t, []OrderAction{ActionDispute, ActionSubmitFinal, ActionSubmitPreview}, AvailableActions(OrderStatusRevisionRequested, ActorEditor))
}

func TestEveryTransitionTargetsKnownStatus(t *testing.T) {
	for key, tr := range transitions {
		assert.True(t, key.from.IsValid())
		assert.True(t, tr.To.IsValid())
		assert.NotEmpty(t, tr.Actors)
		assert.True(t, IsKnownAction(key.action))
	}
	assert.False(t, IsKnownAction("teleport"))
}

func TestApplicationAndDepositTransitions(t *testing.T) {
	assert.True(t, ApplicationStatusApplied.CanTransitionTo(ApplicationStatusApproved))
	assert.True(t, ApplicationStatusApplied.CanTransitionTo(ApplicationStatusRejected))
	assert.False(t, ApplicationStatusRejected.CanTransitionTo(ApplicationStatusApproved))
	assert.False(t, ApplicationStatusApproved.CanTransitionTo(ApplicationStatusRejected))

	assert.True(t, DepositStatusPending.CanTransitionTo(DepositStatusLocked))
	assert.True(t, DepositStatusLocked.CanTransitionTo(DepositStatusReleased))
	assert.False(t, DepositStatusReleased.CanTransitionTo(DepositStatusReleased))
	assert.False(t, DepositStatusPending.CanTransitionTo(DepositStatusReleased))
}
