package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mm1618bu/laborflow/pkg/attributes"
	"github.com/mm1618bu/laborflow/pkg/core/apperr"
	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/db"
)

func TestMigrations_Embedded(t *testing.T) {
	files, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "001_create_workflow_tables.sql", files[0])
}

// openTestDB connects to LABORFLOW_TEST_DATABASE_URL and skips when it is unset
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("LABORFLOW_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LABORFLOW_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	d, err := NewDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	_, err = d.RunMigrations(ctx)
	require.NoError(t, err)
	return d
}

func seedOffer(t *testing.T, d *DB, available, filled int, responses ...model.Response) string {
	t.Helper()
	ctx := context.Background()
	offerID := uuid.NewString()
	require.NoError(t, d.UpsertOffer(ctx, model.Offer{
		ID:                 offerID,
		OrganizationID:     "org-1",
		Type:               model.OfferTypeVET,
		PositionsAvailable: available,
		PositionsFilled:    filled,
		Status:             model.OfferOpen,
		TargetDate:         time.Date(2026, 6, 7, 0, 0, 0, 0, time.UTC),
		RequiredSkills:     []string{"forklift"},
		PublishedAt:        time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}))
	for _, r := range responses {
		r.OfferID = offerID
		require.NoError(t, d.InsertResponse(ctx, r))
	}
	return offerID
}

func TestDB_RoundTrip(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	offerID := seedOffer(t, d, 2, 0,
		model.Response{ID: uuid.NewString(), EmployeeID: "emp-" + uuid.NewString(), Status: model.StatusPending, SubmittedAt: time.Now().UTC()},
	)

	offer, err := d.GetOffer(ctx, offerID)
	require.NoError(t, err)
	assert.Equal(t, model.OfferOpen, offer.Status)
	assert.Equal(t, []string{"forklift"}, offer.RequiredSkills)

	responses, err := d.ListResponses(ctx, offerID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Nil(t, responses[0].Factors)

	score := 72.5
	accepted := responses[0]
	accepted.Status = model.StatusAccepted
	accepted.PriorityScore = &score
	accepted.Factors = &model.PriorityFactors{PerformanceRating: 80, DaysSinceLastAccepted: -1}
	completed := time.Now().UTC().Truncate(time.Microsecond)

	err = d.Commit(ctx, db.ChangeSet{
		OfferID:     offerID,
		FilledDelta: 1,
		Responses:   []model.Response{accepted},
		Run:         &db.RunRecord{ID: uuid.NewString(), OfferID: offerID, Operation: db.OperationProcess, Actor: "system", CompletedAt: completed},
	})
	require.NoError(t, err)

	offer, err = d.GetOffer(ctx, offerID)
	require.NoError(t, err)
	assert.Equal(t, 1, offer.PositionsFilled)

	responses, err = d.ListResponses(ctx, offerID)
	require.NoError(t, err)
	require.NotNil(t, responses[0].Factors)
	assert.Equal(t, 80.0, responses[0].Factors.PerformanceRating)
	assert.Equal(t, 72.5, *responses[0].PriorityScore)

	last, err := d.LastRunAt(ctx, offerID, db.OperationProcess)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, completed.Equal(*last))
}

func TestDB_CommitGuards(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	rejected := model.Response{ID: uuid.NewString(), EmployeeID: "emp-" + uuid.NewString(), Status: model.StatusRejected, SubmittedAt: time.Now().UTC()}
	offerID := seedOffer(t, d, 1, 1, rejected)

	err := d.Commit(ctx, db.ChangeSet{OfferID: offerID, FilledDelta: 1})
	assert.True(t, errors.Is(err, apperr.ErrCapacityExceeded))

	err = d.Commit(ctx, db.ChangeSet{OfferID: offerID, FilledDelta: -2})
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	reopened := rejected
	reopened.OfferID = offerID
	reopened.Status = model.StatusAccepted
	err = d.Commit(ctx, db.ChangeSet{OfferID: offerID, Responses: []model.Response{reopened}})
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	err = d.Commit(ctx, db.ChangeSet{OfferID: uuid.NewString(), FilledDelta: 1})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = d.GetOffer(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDB_Attributes(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	id := "emp-" + uuid.NewString()
	accepted := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, d.UpsertEmployee(ctx, attributes.Employee{
		EmployeeID:        id,
		SeniorityYears:    4,
		PerformanceRating: 88,
		AttendanceRate:    0.97,
		PriorOfferCount:   3,
		LastAcceptedAt:    &accepted,
		Skills:            []string{"forklift", "picking"},
	}))

	got, err := d.GetAttributes(ctx, []string{id, "emp-unknown"})
	require.NoError(t, err)
	require.Contains(t, got, id)
	assert.NotContains(t, got, "emp-unknown")
	assert.Equal(t, 88.0, got[id].PerformanceRating)
	assert.True(t, accepted.Equal(*got[id].LastAcceptedAt))
}
