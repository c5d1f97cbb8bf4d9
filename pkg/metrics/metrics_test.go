package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
	"github.com/mm1618bu/laborflow/pkg/core/model"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("process", nil, 10*time.Millisecond)
	m.ObserveOperation("process", apperr.ConcurrencyConflict("offer-1", errors.New("held")), time.Millisecond)
	m.ObserveOperation("process", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 1.0, counterValue(t, m, "laborflow_operations_total", map[string]string{"operation": "process", "code": "OK"}))
	assert.Equal(t, 1.0, counterValue(t, m, "laborflow_operations_total", map[string]string{"operation": "process", "code": "CONCURRENCY_CONFLICT"}))
	assert.Equal(t, 1.0, counterValue(t, m, "laborflow_operations_total", map[string]string{"operation": "process", "code": "INTERNAL"}))
}

func TestObserveDecisions(t *testing.T) {
	m := New()
	result := &model.ProcessingResult{ProcessingDetails: []model.ProcessingDetail{
		{ActionTaken: model.ActionApproved},
		{ActionTaken: model.ActionApproved},
		{ActionTaken: model.ActionWaitlisted},
	}}

	m.ObserveDecisions(result)
	m.ObserveDecisions(nil)

	assert.Equal(t, 2.0, counterValue(t, m, "laborflow_decisions_total", map[string]string{"action": "approved"}))
	assert.Equal(t, 1.0, counterValue(t, m, "laborflow_decisions_total", map[string]string{"action": "waitlisted"}))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("process", nil, time.Second)
	m.ObserveDecisions(&model.ProcessingResult{})
	m.ObserveNotifications(1, 2)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveNotifications(2, 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `laborflow_notifications_total{result="failed"} 1`)
}
