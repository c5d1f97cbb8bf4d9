package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/internal/config"
	"github.com/mm1618bu/laborflow/pkg/configstore"
	"github.com/mm1618bu/laborflow/pkg/core/allocation"
	"github.com/mm1618bu/laborflow/pkg/core/model"
	"github.com/mm1618bu/laborflow/pkg/core/override"
	"github.com/mm1618bu/laborflow/pkg/core/waitlist"
	"github.com/mm1618bu/laborflow/pkg/db"
	"github.com/mm1618bu/laborflow/pkg/metrics"
	"github.com/mm1618bu/laborflow/pkg/postgres"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg      *config.Config
	Database db.Database
	Postgres *postgres.DB // nil when running on the in-memory store
	Configs  *configstore.Store
	Engine   *allocation.Engine
	Waitlist *waitlist.Manager
	Batch    *override.Batch
	Metrics  *metrics.Metrics
	Health   func(ctx context.Context) error
	Logger   *zap.Logger
	Ctx      context.Context
}

// resolveConfig loads the offer and merges its workflow config layers with request
func (app *AppContext) resolveConfig(offerID string, request *configstore.Patch) (model.WorkflowConfig, error) {
	offer, err := app.Database.GetOffer(app.Ctx, offerID)
	if err != nil {
		return model.WorkflowConfig{}, err
	}
	return app.Configs.Resolve(offer, request)
}
