package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
	"github.com/mm1618bu/laborflow/pkg/core/model"
)

func seedMemory() *Memory {
	m := NewMemory()
	m.PutOffer(model.Offer{ID: "offer-1", PositionsAvailable: 2, PositionsFilled: 1, Status: model.OfferOpen})
	m.PutResponse(model.Response{ID: "resp-1", OfferID: "offer-1", EmployeeID: "emp-1", Status: model.StatusPending})
	m.PutResponse(model.Response{ID: "resp-2", OfferID: "offer-1", EmployeeID: "emp-2", Status: model.StatusAccepted})
	return m
}

func TestMemoryGetOffer_NotFound(t *testing.T) {
	m := NewMemory()

	_, err := m.GetOffer(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestMemoryReads_ReturnCopies(t *testing.T) {
	m := seedMemory()
	score := 50.0
	m.PutResponse(model.Response{ID: "resp-3", OfferID: "offer-1", Status: model.StatusPending, PriorityScore: &score})

	responses, err := m.ListResponses(context.Background(), "offer-1")
	require.NoError(t, err)
	require.Len(t, responses, 3)

	responses[0].Status = model.StatusRejected
	*responses[2].PriorityScore = 99

	again, err := m.ListResponses(context.Background(), "offer-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, again[0].Status)
	assert.Equal(t, 50.0, *again[2].PriorityScore)
}

func TestMemoryCommit_AppliesEverything(t *testing.T) {
	m := seedMemory()
	ctx := context.Background()
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := m.Commit(ctx, ChangeSet{
		OfferID:     "offer-1",
		FilledDelta: 1,
		OfferStatus: model.OfferClosed,
		Responses: []model.Response{
			{ID: "resp-1", OfferID: "offer-1", EmployeeID: "emp-1", Status: model.StatusAccepted},
		},
		Run: &RunRecord{ID: "run-1", OfferID: "offer-1", Operation: OperationProcess, CompletedAt: completed},
	})
	require.NoError(t, err)

	offer, err := m.GetOffer(ctx, "offer-1")
	require.NoError(t, err)
	assert.Equal(t, 2, offer.PositionsFilled)
	assert.Equal(t, model.OfferClosed, offer.Status)

	responses, err := m.ListResponses(ctx, "offer-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, responses[0].Status)

	last, err := m.LastRunAt(ctx, "offer-1", OperationProcess)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, completed.Equal(*last))

	none, err := m.LastRunAt(ctx, "offer-1", OperationPromote)
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.Len(t, m.Runs("offer-1"), 1)
}

func TestMemoryCommit_CapacityGuardRejectsWholeChangeSet(t *testing.T) {
	m := seedMemory()
	ctx := context.Background()

	err := m.Commit(ctx, ChangeSet{
		OfferID:     "offer-1",
		FilledDelta: 2,
		Responses: []model.Response{
			{ID: "resp-1", OfferID: "offer-1", Status: model.StatusAccepted},
		},
		Run: &RunRecord{ID: "run-1", OfferID: "offer-1", Operation: OperationApprove},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrCapacityExceeded))

	offer, _ := m.GetOffer(ctx, "offer-1")
	assert.Equal(t, 1, offer.PositionsFilled)
	responses, _ := m.ListResponses(ctx, "offer-1")
	assert.Equal(t, model.StatusPending, responses[0].Status)
	assert.Empty(t, m.Runs("offer-1"))
}

func TestMemoryCommit_RefusesIllegalTransition(t *testing.T) {
	m := seedMemory()

	err := m.Commit(context.Background(), ChangeSet{
		OfferID: "offer-1",
		Responses: []model.Response{
			{ID: "resp-2", OfferID: "offer-1", Status: model.StatusRejected},
		},
	})

	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestMemoryCommit_UnknownResponse(t *testing.T) {
	m := seedMemory()

	err := m.Commit(context.Background(), ChangeSet{
		OfferID:   "offer-1",
		Responses: []model.Response{{ID: "nope", OfferID: "offer-1", Status: model.StatusAccepted}},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestMemoryCommit_FilledCannotGoNegative(t *testing.T) {
	m := seedMemory()

	err := m.Commit(context.Background(), ChangeSet{OfferID: "offer-1", FilledDelta: -2})

	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestChangeSetIsEmpty(t *testing.T) {
	assert.True(t, ChangeSet{OfferID: "offer-1"}.IsEmpty())
	assert.False(t, ChangeSet{OfferID: "offer-1", FilledDelta: 1}.IsEmpty())
}
