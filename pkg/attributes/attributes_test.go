package attributes

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/core/model"
)

// countingProvider records how often it was asked for each employee
type countingProvider struct {
	employees Static
	calls     map[string]int
	err       error
}

func (p *countingProvider) GetAttributes(ctx context.Context, employeeIDs []string) (map[string]Employee, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	for _, id := range employeeIDs {
		p.calls[id]++
	}
	return p.employees.GetAttributes(ctx, employeeIDs)
}

func TestSnapshot(t *testing.T) {
	published := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	lastAccepted := published.AddDate(0, 0, -30)
	offer := &model.Offer{ID: "offer-1", PublishedAt: published, RequiredSkills: []string{"forklift", "picking"}}
	resp := model.Response{ID: "resp-1", SubmittedAt: published.Add(90 * time.Minute)}
	emp := Employee{
		EmployeeID:        "emp-1",
		SeniorityYears:    4,
		PerformanceRating: 88,
		AttendanceRate:    0.97,
		PriorOfferCount:   3,
		LastAcceptedAt:    &lastAccepted,
		Skills:            []string{"Forklift"},
	}

	f := Snapshot(emp, offer, resp)

	assert.Equal(t, 4.0, f.SeniorityYears)
	assert.Equal(t, 88.0, f.PerformanceRating)
	assert.Equal(t, 3, f.PriorOfferCount)
	assert.InDelta(t, 30.0, f.DaysSinceLastAccepted, 1e-9)
	assert.InDelta(t, 90.0, f.ResponseLatencyMinutes, 1e-9)
	assert.Equal(t, 50.0, f.SkillMatchPercent)
}

func TestSnapshot_NeverAccepted(t *testing.T) {
	offer := &model.Offer{PublishedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}

	f := Snapshot(Employee{EmployeeID: "emp-1"}, offer, model.Response{SubmittedAt: offer.PublishedAt})

	assert.Equal(t, -1.0, f.DaysSinceLastAccepted)
	assert.Equal(t, 0.0, f.ResponseLatencyMinutes)
	assert.Equal(t, 100.0, f.SkillMatchPercent)
}

func TestStatic_OmitsUnknownEmployees(t *testing.T) {
	s := Static{"emp-1": {EmployeeID: "emp-1"}}

	got, err := s.GetAttributes(context.Background(), []string{"emp-1", "emp-2"})

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "emp-1")
}

func newCached(t *testing.T, next Provider) (*Cached, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCached(next, client, time.Hour, zap.NewNop()), mr
}

func TestCached_ReadThrough(t *testing.T) {
	next := &countingProvider{employees: Static{
		"emp-1": {EmployeeID: "emp-1", PerformanceRating: 70},
		"emp-2": {EmployeeID: "emp-2", PerformanceRating: 80},
	}}
	c, mr := newCached(t, next)
	ctx := context.Background()

	first, err := c.GetAttributes(ctx, []string{"emp-1", "emp-2", "emp-3"})
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.True(t, mr.Exists("laborflow:attrs:emp-1"))
	assert.False(t, mr.Exists("laborflow:attrs:emp-3"))

	second, err := c.GetAttributes(ctx, []string{"emp-1", "emp-2"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls["emp-1"])
	assert.Equal(t, 1, next.calls["emp-2"])
}

func TestCached_Invalidate(t *testing.T) {
	next := &countingProvider{employees: Static{"emp-1": {EmployeeID: "emp-1"}}}
	c, mr := newCached(t, next)
	ctx := context.Background()

	_, err := c.GetAttributes(ctx, []string{"emp-1"})
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "emp-1"))
	assert.False(t, mr.Exists("laborflow:attrs:emp-1"))

	_, err = c.GetAttributes(ctx, []string{"emp-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls["emp-1"])
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	next := &countingProvider{employees: Static{"emp-1": {EmployeeID: "emp-1", PerformanceRating: 70}}}
	c, mr := newCached(t, next)
	mr.Close()

	got, err := c.GetAttributes(context.Background(), []string{"emp-1"})

	require.NoError(t, err)
	assert.Equal(t, 70.0, got["emp-1"].PerformanceRating)
}

func TestCached_ProviderError(t *testing.T) {
	next := &countingProvider{err: errors.New("db down")}
	c, _ := newCached(t, next)

	_, err := c.GetAttributes(context.Background(), []string{"emp-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch employee attributes")
}
