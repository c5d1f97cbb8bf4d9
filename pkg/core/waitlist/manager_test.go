package waitlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/attributes"
	"github.com/mm1618bu/laborflow/pkg/core/allocation"
	"github.com/mm1618bu/laborflow/pkg/core/apperr"
	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/db"
	"github.com/mm1618bu/laborflow/pkg/lock"
	"github.com/mm1618bu/laborflow/pkg/notify"
)

var fixedNow = time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC)

type mockStore struct {
	*db.Memory
	commitErr error
}

func (m *mockStore) Commit(ctx context.Context, cs db.ChangeSet) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	return m.Memory.Commit(ctx, cs)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Publish(ctx context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func waitlisted(id string, position int, score float64) model.Response {
	return model.Response{
		ID:               id,
		OfferID:          "offer-1",
		EmployeeID:       "emp-" + id,
		Status:           model.StatusWaitlisted,
		PriorityScore:    &score,
		WaitlistPosition: position,
	}
}

func withStatus(id string, status model.ResponseStatus) model.Response {
	return model.Response{ID: id, OfferID: "offer-1", EmployeeID: "emp-" + id, Status: status}
}

func newStore(available, filled int, status model.OfferStatus, responses ...model.Response) *mockStore {
	m := db.NewMemory()
	m.PutOffer(model.Offer{ID: "offer-1", PositionsAvailable: available, PositionsFilled: filled, Status: status})
	for _, r := range responses {
		m.PutResponse(r)
	}
	return &mockStore{Memory: m}
}

func newTestManager(store db.Database, notifier notify.Notifier) *Manager {
	m := NewManager(store, lock.NewLocal(time.Second), notifier, nil, zap.NewNop())
	m.now = func() time.Time { return fixedNow }
	return m
}

func positions(t *testing.T, m *Manager) map[string]int {
	t.Helper()
	entries, err := m.Entries(context.Background(), "offer-1")
	require.NoError(t, err)
	out := make(map[string]int, len(entries))
	for _, e := range entries {
		out[e.ResponseID] = e.Position
	}
	return out
}

func TestPromote_PromotesHeadOfQueueInOrder(t *testing.T) {
	store := newStore(4, 2, model.OfferClosed,
		waitlisted("c", 3, 70),
		waitlisted("a", 1, 90),
		waitlisted("d", 4, 60),
		waitlisted("b", 2, 80),
	)
	notifier := &recordingNotifier{}
	m := newTestManager(store, notifier)

	result, err := m.Promote(context.Background(), "offer-1", 2, "mgr-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.PromotedCount)
	assert.Equal(t, 2, result.RemainingWaitlist)
	require.Len(t, result.PromotedEmployees, 2)
	assert.Equal(t, model.PromotedEmployee{ResponseID: "a", EmployeeID: "emp-a", FromPosition: 1}, result.PromotedEmployees[0])
	assert.Equal(t, model.PromotedEmployee{ResponseID: "b", EmployeeID: "emp-b", FromPosition: 2}, result.PromotedEmployees[1])

	// Remaining entries keep their relative order
	assert.Equal(t, map[string]int{"c": 1, "d": 2}, positions(t, m))

	offer, _ := store.GetOffer(context.Background(), "offer-1")
	assert.Equal(t, 4, offer.PositionsFilled)
	assert.Equal(t, model.OfferClosed, offer.Status)

	responses, _ := store.ListResponses(context.Background(), "offer-1")
	for _, r := range responses {
		if r.ID == "a" {
			assert.Equal(t, model.StatusAccepted, r.Status)
			assert.Equal(t, model.ReasonPromoted, r.DecisionReason)
			assert.Equal(t, "mgr-1", r.DecidedBy)
			assert.Equal(t, 0, r.WaitlistPosition)
		}
	}

	require.Len(t, notifier.events, 2)
	assert.Equal(t, notify.EventPromoted, notifier.events[0].Type)
	assert.Len(t, store.Runs("offer-1"), 1)
}

func TestPromote_NeverExceedsCapacity(t *testing.T) {
	store := newStore(3, 2, model.OfferOpen,
		waitlisted("a", 1, 90),
		waitlisted("b", 2, 80),
		waitlisted("c", 3, 70),
	)
	m := newTestManager(store, nil)

	result, err := m.Promote(context.Background(), "offer-1", 5, "mgr-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PromotedCount)
	assert.Equal(t, 2, result.RemainingWaitlist)
	offer, _ := store.GetOffer(context.Background(), "offer-1")
	assert.Equal(t, 3, offer.PositionsFilled)
}

func TestPromote_MoreFreedThanWaitlisted(t *testing.T) {
	store := newStore(5, 0, model.OfferOpen, waitlisted("a", 1, 90))
	m := newTestManager(store, nil)

	result, err := m.Promote(context.Background(), "offer-1", 3, "mgr-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PromotedCount)
	assert.Equal(t, 0, result.RemainingWaitlist)
}

func TestPromote_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestManager(newStore(3, 0, model.OfferOpen), nil).Promote(ctx, "offer-1", 0, "mgr-1")
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	_, err = newTestManager(newStore(3, 3, model.OfferOpen, waitlisted("a", 1, 90)), nil).Promote(ctx, "offer-1", 1, "mgr-1")
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	_, err = newTestManager(newStore(3, 0, model.OfferCancelled), nil).Promote(ctx, "offer-1", 1, "mgr-1")
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	_, err = newTestManager(newStore(3, 0, model.OfferOpen), nil).Promote(ctx, "missing", 1, "mgr-1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	store := newStore(3, 0, model.OfferOpen, waitlisted("a", 1, 90))
	store.commitErr = errors.New("deadlock detected")
	notifier := &recordingNotifier{}
	_, err = newTestManager(store, notifier).Promote(ctx, "offer-1", 1, "mgr-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit promotion")
	assert.Empty(t, notifier.events)
}

func TestWithdraw_AcceptedFreesPosition(t *testing.T) {
	store := newStore(2, 2, model.OfferClosed, withStatus("acc", model.StatusAccepted), waitlisted("w", 1, 80))
	m := newTestManager(store, nil)

	result, err := m.Withdraw(context.Background(), "offer-1", "acc", "emp-acc", false)
	require.NoError(t, err)

	assert.Equal(t, model.StatusAccepted, result.PreviousStatus)
	assert.Equal(t, 1, result.PositionsFilled)
	assert.Nil(t, result.Promoted)

	offer, _ := store.GetOffer(context.Background(), "offer-1")
	assert.Equal(t, 1, offer.PositionsFilled)
	assert.Equal(t, model.OfferClosed, offer.Status)
	assert.Equal(t, map[string]int{"w": 1}, positions(t, m))
}

func TestWithdraw_AcceptedWithAutoPromote(t *testing.T) {
	store := newStore(2, 2, model.OfferOpen,
		withStatus("acc", model.StatusAccepted),
		waitlisted("w1", 1, 80),
		waitlisted("w2", 2, 70),
	)
	notifier := &recordingNotifier{}
	m := newTestManager(store, notifier)

	result, err := m.Withdraw(context.Background(), "offer-1", "acc", "emp-acc", true)
	require.NoError(t, err)

	require.NotNil(t, result.Promoted)
	assert.Equal(t, "w1", result.Promoted.ResponseID)
	assert.Equal(t, 2, result.PositionsFilled)
	assert.Equal(t, map[string]int{"w2": 1}, positions(t, m))

	offer, _ := store.GetOffer(context.Background(), "offer-1")
	assert.Equal(t, 2, offer.PositionsFilled)

	require.Len(t, notifier.events, 2)
	assert.Equal(t, notify.EventWithdrawn, notifier.events[0].Type)
	assert.Equal(t, notify.EventPromoted, notifier.events[1].Type)
}

func TestWithdraw_WaitlistedRenumbersQueue(t *testing.T) {
	store := newStore(1, 1, model.OfferOpen,
		waitlisted("w1", 1, 80),
		waitlisted("w2", 2, 70),
		waitlisted("w3", 3, 60),
	)
	m := newTestManager(store, nil)

	_, err := m.Withdraw(context.Background(), "offer-1", "w2", "emp-w2", true)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"w1": 1, "w3": 2}, positions(t, m))
	offer, _ := store.GetOffer(context.Background(), "offer-1")
	assert.Equal(t, 1, offer.PositionsFilled)
}

func TestWithdraw_Errors(t *testing.T) {
	store := newStore(1, 0, model.OfferOpen, withStatus("rej", model.StatusRejected), withStatus("p", model.StatusPending))
	m := newTestManager(store, nil)
	ctx := context.Background()

	_, err := m.Withdraw(ctx, "offer-1", "rej", "emp-rej", false)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	_, err = m.Withdraw(ctx, "offer-1", "nope", "emp", false)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	result, err := m.Withdraw(ctx, "offer-1", "p", "emp-p", false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, result.PreviousStatus)

	_, err = m.Withdraw(ctx, "offer-1", "p", "emp-p", false)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
}

func TestTrim_RejectsOverflow(t *testing.T) {
	store := newStore(1, 1, model.OfferOpen,
		waitlisted("w1", 1, 80),
		waitlisted("w2", 2, 70),
		waitlisted("w3", 3, 60),
		waitlisted("w4", 4, 50),
	)
	notifier := &recordingNotifier{}
	m := newTestManager(store, notifier)

	result, err := m.Trim(context.Background(), "offer-1", 2, "mgr-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.TrimmedCount)
	assert.Equal(t, []string{"w3", "w4"}, result.TrimmedResponses)
	assert.Equal(t, 2, result.RemainingWaitlist)
	assert.Equal(t, map[string]int{"w1": 1, "w2": 2}, positions(t, m))

	responses, _ := store.ListResponses(context.Background(), "offer-1")
	for _, r := range responses {
		if r.ID == "w4" {
			assert.Equal(t, model.StatusRejected, r.Status)
			assert.Equal(t, model.ReasonWaitlistFull, r.DecisionReason)
		}
	}
	assert.Len(t, notifier.events, 2)
}

func TestTrim_NothingToTrim(t *testing.T) {
	store := newStore(1, 1, model.OfferOpen, waitlisted("w1", 1, 80))
	m := newTestManager(store, nil)

	result, err := m.Trim(context.Background(), "offer-1", 5, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.TrimmedCount)
	assert.Equal(t, 1, result.RemainingWaitlist)
	assert.Empty(t, store.Runs("offer-1"))

	_, err = m.Trim(context.Background(), "offer-1", -1, "mgr-1")
	assert.True(t, errors.Is(err, apperr.ErrConfig))
}

func TestOrdered_FallsBackToScoreThenID(t *testing.T) {
	queue := Ordered([]model.Response{
		waitlisted("b", 0, 50),
		waitlisted("a", 0, 50),
		waitlisted("c", 0, 90),
		withStatus("p", model.StatusPending),
	})

	ids := []string{}
	for _, r := range queue {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestPromoteAndProcessConcurrently_NeverOverfill(t *testing.T) {
	// Offer with 3 of 5 positions filled, a waitlist of 4 and new pending responses arriving
	responses := []model.Response{
		waitlisted("w1", 1, 80), waitlisted("w2", 2, 75), waitlisted("w3", 3, 70), waitlisted("w4", 4, 65),
	}
	store := newStore(5, 3, model.OfferOpen, responses...)
	locker := lock.NewLocal(0)
	m := NewManager(store, locker, nil, nil, zap.NewNop())
	engine := allocation.NewEngine(store, attributes.Static{}, locker, nil, nil, zap.NewNop())
	cfg := model.DefaultWorkflowConfig()
	cfg.Weights = model.PriorityWeights{Performance: 1}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = m.Promote(ctx, "offer-1", 1, "mgr-1")
		}()
		go func() {
			defer wg.Done()
			store.PutResponse(model.Response{
				ID:         fmt.Sprintf("p%d", i),
				OfferID:    "offer-1",
				EmployeeID: fmt.Sprintf("emp-p%d", i),
				Status:     model.StatusPending,
				Factors:    &model.PriorityFactors{PerformanceRating: 95},
			})
			_, _ = engine.Process(ctx, "offer-1", cfg, allocation.Options{})
		}()
	}
	wg.Wait()

	offer, err := store.GetOffer(ctx, "offer-1")
	require.NoError(t, err)
	assert.LessOrEqual(t, offer.PositionsFilled, offer.PositionsAvailable)

	all, _ := store.ListResponses(ctx, "offer-1")
	accepted := 0
	for _, r := range all {
		if r.Status == model.StatusAccepted {
			accepted++
		}
	}
	// 3 positions were filled before the test started by responses not in the store
	assert.Equal(t, offer.PositionsFilled-3, accepted)
}
