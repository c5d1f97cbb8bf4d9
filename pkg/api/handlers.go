package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/configstore"
	"github.com/mm1618bu/laborflow/pkg/core/allocation"
	"github.com/mm1618bu/laborflow/pkg/core/model"
)

// ProcessRequest triggers an allocation run. Config fields override the resolved
// workflow config for this run only.
type ProcessRequest struct {
	OfferID         string                 `json:"offer_id"`
	ProcessedBy     string                 `json:"processed_by"`
	WorkflowConfig  *configstore.Patch     `json:"workflow_config,omitempty"`
	PriorityWeights *model.PriorityWeights `json:"priority_weights,omitempty"`
	DryRun          bool                   `json:"dry_run"`
}

type BatchRequest struct {
	OfferID     string   `json:"offer_id"`
	ResponseIDs []string `json:"response_ids" validate:"required,min=1,dive,required"`
	ActorID     string   `json:"actor_id" validate:"required"`
	Notes       string   `json:"notes,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

type PromotionRequest struct {
	OfferID            string `json:"offer_id"`
	PositionsAvailable int    `json:"positions_available"`
	ActorID            string `json:"actor_id"`
}

type WithdrawRequest struct {
	ActorID     string `json:"actor_id"`
	AutoPromote bool   `json:"auto_promote"`
}

// TrimRequest trims the waitlist to MaxSize, or to the resolved max waitlist size when omitted
type TrimRequest struct {
	OfferID string `json:"offer_id"`
	MaxSize *int   `json:"max_size,omitempty"`
	ActorID string `json:"actor_id"`
}

// decode reads a JSON body into v and validates it.
// An empty body leaves v at its zero value.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(v); err != nil {
			writeBadRequest(w, fmt.Sprintf("invalid request body: %v", err))
			return false
		}
	}
	if err := s.validate.Struct(v); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}

// checkOfferID rejects a body offer_id that disagrees with the path
func checkOfferID(w http.ResponseWriter, pathID, bodyID string) bool {
	if bodyID != "" && bodyID != pathID {
		writeBadRequest(w, fmt.Sprintf("offer_id %q does not match path offer %q", bodyID, pathID))
		return false
	}
	return true
}

// resolve loads the offer and merges its workflow config layers with request
func (s *Server) resolve(r *http.Request, offerID string, request *configstore.Patch) (model.WorkflowConfig, error) {
	offer, err := s.deps.Offers.GetOffer(r.Context(), offerID)
	if err != nil {
		return model.WorkflowConfig{}, err
	}
	return s.deps.Configs.Resolve(offer, request)
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offerID")

	var req ProcessRequest
	if !s.decode(w, r, &req) || !checkOfferID(w, offerID, req.OfferID) {
		return
	}

	var patch configstore.Patch
	if req.WorkflowConfig != nil {
		patch = *req.WorkflowConfig
	}
	if req.PriorityWeights != nil {
		patch.Weights = req.PriorityWeights
	}

	cfg, err := s.resolve(r, offerID, &patch)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.deps.Engine.Process(r.Context(), offerID, cfg, allocation.Options{
		DryRun:      req.DryRun,
		ProcessedBy: req.ProcessedBy,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) workflowStatus(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offerID")

	cfg, err := s.resolve(r, offerID, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status, err := s.deps.Engine.Status(r.Context(), offerID, cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	s.batch(w, r, true)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	s.batch(w, r, false)
}

func (s *Server) batch(w http.ResponseWriter, r *http.Request, approve bool) {
	offerID := chi.URLParam(r, "offerID")

	var req BatchRequest
	if !s.decode(w, r, &req) || !checkOfferID(w, offerID, req.OfferID) {
		return
	}

	var result *model.BatchResult
	var err error
	if approve {
		result, err = s.deps.Batch.Approve(r.Context(), offerID, req.ResponseIDs, req.ActorID, req.Notes)
	} else {
		result, err = s.deps.Batch.Reject(r.Context(), offerID, req.ResponseIDs, req.ActorID, req.Reason)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) promote(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offerID")

	var req PromotionRequest
	if !s.decode(w, r, &req) || !checkOfferID(w, offerID, req.OfferID) {
		return
	}

	result, err := s.deps.Waitlist.Promote(r.Context(), offerID, req.PositionsAvailable, actorOr(req.ActorID))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offerID")
	responseID := chi.URLParam(r, "responseID")

	var req WithdrawRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.deps.Waitlist.Withdraw(r.Context(), offerID, responseID, actorOr(req.ActorID), req.AutoPromote)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) trim(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offerID")

	var req TrimRequest
	if !s.decode(w, r, &req) || !checkOfferID(w, offerID, req.OfferID) {
		return
	}

	maxSize := 0
	if req.MaxSize != nil {
		maxSize = *req.MaxSize
	} else {
		cfg, err := s.resolve(r, offerID, nil)
		if err != nil {
			s.writeError(w, err)
			return
		}
		maxSize = cfg.MaxWaitlistSize
	}

	result, err := s.deps.Waitlist.Trim(r.Context(), offerID, maxSize, actorOr(req.ActorID))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listWaitlist(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offerID")

	entries, err := s.deps.Waitlist.Entries(r.Context(), offerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.WaitlistEntry{}
	}
	s.logger.Debug("Listed waitlist", zap.String("offer_id", offerID), zap.Int("entries", len(entries)))
	writeJSON(w, http.StatusOK, entries)
}

func actorOr(actor string) string {
	if actor == "" {
		return allocation.SystemActor
	}
	return actor
}
