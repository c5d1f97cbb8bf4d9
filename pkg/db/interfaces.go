package db

import (
	"context"
	"time"

	"github.com/mm1618bu/laborflow/pkg/core/model"
)

// OfferStore defines the read operations on offers
type OfferStore interface {
	GetOffer(ctx context.Context, offerID string) (*model.Offer, error)
}

// ResponseStore defines the read operations on responses
type ResponseStore interface {
	ListResponses(ctx context.Context, offerID string) ([]model.Response, error)
}

// RunStore defines the read operations on the processing run audit trail
type RunStore interface {
	LastRunAt(ctx context.Context, offerID string, operation Operation) (*time.Time, error)
}

// Committer applies a change set atomically
type Committer interface {
	Commit(ctx context.Context, cs ChangeSet) error
}

// Database defines the interface for all database operations.
// Both the in-memory Memory store and postgres.DB implement this interface.
type Database interface {
	OfferStore
	ResponseStore
	RunStore
	Committer
}
