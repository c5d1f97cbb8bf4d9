package db

import (
	"time"

	"github.com/mm1618bu/laborflow/pkg/core/model"
)

// Operation names the workflow operation that produced a run record
type Operation string

const (
	OperationProcess  Operation = "process"
	OperationApprove  Operation = "approve"
	OperationReject   Operation = "reject"
	OperationPromote  Operation = "promote"
	OperationWithdraw Operation = "withdraw"
	OperationTrim     Operation = "trim"
)

// RunRecord is one row of the append-only processing_runs audit trail
type RunRecord struct {
	ID              string
	OfferID         string
	Operation       Operation
	Actor           string
	ProcessedCount  int
	ApprovedCount   int
	WaitlistedCount int
	RejectedCount   int
	NoActionCount   int
	OfferClosed     bool
	CompletedAt     time.Time
}

// ChangeSet is every write of one workflow operation on one offer.
// Commit applies all of it or none of it.
type ChangeSet struct {
	OfferID string

	// FilledDelta is added to positions_filled; the result must stay within [0, positions_available]
	FilledDelta int

	// OfferStatus replaces the offer status when non-empty
	OfferStatus model.OfferStatus

	// Responses are full replacement rows for responses of this offer
	Responses []model.Response

	// Run is appended to the audit trail when non-nil
	Run *RunRecord
}

// IsEmpty returns true if committing the change set would write nothing
func (cs ChangeSet) IsEmpty() bool {
	return cs.FilledDelta == 0 && cs.OfferStatus == "" && len(cs.Responses) == 0 && cs.Run == nil
}
