package db

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mm1618bu/laborflow/pkg/core/apperr"
	"github.com/mm1618bu/laborflow/pkg/core/model"
)

// Memory is an in-process Database, used by tests and when no database URL is configured.
// Every read returns copies, so callers can never mutate stored state.
type Memory struct {
	mu        sync.RWMutex
	offers    map[string]model.Offer
	responses map[string][]model.Response // by offer ID, in insertion order
	runs      []RunRecord
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		offers:    make(map[string]model.Offer),
		responses: make(map[string][]model.Response),
	}
}

// PutOffer inserts or replaces an offer
func (m *Memory) PutOffer(offer model.Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offer.RequiredSkills = slices.Clone(offer.RequiredSkills)
	m.offers[offer.ID] = offer
}

// PutResponse inserts or replaces a response
func (m *Memory) PutResponse(r model.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.responses[r.OfferID]
	for i := range list {
		if list[i].ID == r.ID {
			list[i] = cloneResponse(r)
			return
		}
	}
	m.responses[r.OfferID] = append(list, cloneResponse(r))
}

// GetOffer returns a copy of the offer
func (m *Memory) GetOffer(ctx context.Context, offerID string) (*model.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offers[offerID]
	if !ok {
		return nil, apperr.NotFound(offerID, "", "offer %s not found", offerID)
	}
	o.RequiredSkills = slices.Clone(o.RequiredSkills)
	return &o, nil
}

// ListResponses returns copies of every response to the offer
func (m *Memory) ListResponses(ctx context.Context, offerID string) ([]model.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.responses[offerID]
	out := make([]model.Response, len(list))
	for i, r := range list {
		out[i] = cloneResponse(r)
	}
	return out, nil
}

// LastRunAt returns the completion time of the latest run of the operation, or nil
func (m *Memory) LastRunAt(ctx context.Context, offerID string, operation Operation) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last *time.Time
	for _, run := range m.runs {
		if run.OfferID != offerID || run.Operation != operation {
			continue
		}
		if last == nil || run.CompletedAt.After(*last) {
			t := run.CompletedAt
			last = &t
		}
	}
	return last, nil
}

// Runs returns the audit trail of an offer in commit order
func (m *Memory) Runs(offerID string) []RunRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RunRecord
	for _, run := range m.runs {
		if run.OfferID == offerID {
			out = append(out, run)
		}
	}
	return out
}

// Commit validates the whole change set before applying any of it
func (m *Memory) Commit(ctx context.Context, cs ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	offer, ok := m.offers[cs.OfferID]
	if !ok {
		return apperr.NotFound(cs.OfferID, "", "offer %s not found", cs.OfferID)
	}

	filled := offer.PositionsFilled + cs.FilledDelta
	if filled > offer.PositionsAvailable {
		return apperr.CapacityExceeded(offer.ID, "", offer.PositionsAvailable, offer.PositionsFilled)
	}
	if filled < 0 {
		return apperr.InvalidState(offer.ID, "", "positions filled cannot drop below zero")
	}

	list := m.responses[cs.OfferID]
	index := make(map[string]int, len(list))
	for i, r := range list {
		index[r.ID] = i
	}
	for _, r := range cs.Responses {
		i, ok := index[r.ID]
		if !ok {
			return apperr.NotFound(cs.OfferID, r.ID, "response %s not found", r.ID)
		}
		if err := CheckTransition(list[i], r); err != nil {
			return err
		}
	}

	offer.PositionsFilled = filled
	if cs.OfferStatus != "" {
		offer.Status = cs.OfferStatus
	}
	m.offers[offer.ID] = offer
	for _, r := range cs.Responses {
		list[index[r.ID]] = cloneResponse(r)
	}
	if cs.Run != nil {
		m.runs = append(m.runs, *cs.Run)
	}
	return nil
}

// CheckTransition refuses a response update that the state machine does not allow.
// Rewriting a response without changing its status is always allowed.
func CheckTransition(stored, updated model.Response) error {
	if stored.Status == updated.Status {
		return nil
	}
	if !model.CanTransition(stored.Status, updated.Status) {
		return apperr.InvalidState(stored.OfferID, stored.ID, "cannot move response from %s to %s", stored.Status, updated.Status)
	}
	return nil
}

func cloneResponse(r model.Response) model.Response {
	if r.PriorityScore != nil {
		s := *r.PriorityScore
		r.PriorityScore = &s
	}
	if r.Factors != nil {
		f := *r.Factors
		r.Factors = &f
	}
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		r.DecidedAt = &t
	}
	return r
}
