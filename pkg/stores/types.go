package stores

import (
	"context"
	"database/sql"

	"github.com/leadforge/leadforge/pkg/engine"
)

// Store defines the interface for the persistence layer. It bundles the
// engine repositories with lifecycle management and the activity log.
type Store interface {
	engine.CampaignRepository
	engine.MembershipRepository
	engine.DealRepository
	engine.ProspectDirectory

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Activity log operations
	AppendActivity(ctx context.Context, activity *engine.Activity) error
	ListActivities(ctx context.Context, campaignID *string, level *string, limit, offset int) ([]*engine.Activity, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
