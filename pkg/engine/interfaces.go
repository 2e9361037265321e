package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// CampaignRepository persists campaign definitions. Sequences are written
// once at creation; implementations must not expose a sequence update path.
type CampaignRepository interface {
	// CreateCampaign stores a new campaign definition.
	CreateCampaign(ctx context.Context, campaign *CampaignDefinition) error

	// GetCampaign retrieves a campaign by ID.
	GetCampaign(ctx context.Context, id string) (*CampaignDefinition, error)

	// ListCampaigns returns all campaign definitions.
	ListCampaigns(ctx context.Context) ([]*CampaignDefinition, error)

	// UpdateCampaignStatus persists a status change.
	UpdateCampaignStatus(ctx context.Context, id string, status CampaignStatus) error

	// DeleteCampaign removes a campaign and cascades to its memberships.
	DeleteCampaign(ctx context.Context, id string) error
}

// MembershipRepository persists campaign memberships.
type MembershipRepository interface {
	// CreateMembership stores a new membership. Returns a conflict error
	// when the (campaign, prospect) pair already exists.
	CreateMembership(ctx context.Context, membership *CampaignMembership) error

	// GetMembership retrieves a membership by its key.
	GetMembership(ctx context.Context, key MembershipKey) (*CampaignMembership, error)

	// ListMemberships returns all memberships for a campaign.
	ListMemberships(ctx context.Context, campaignID string) ([]*CampaignMembership, error)

	// ListActiveMemberships returns all non-completed memberships whose
	// campaign is in the given status.
	ListActiveMemberships(ctx context.Context, status CampaignStatus) ([]*CampaignMembership, error)

	// UpdateMembership persists progress fields (index, status, attempts,
	// completion time) for an existing membership.
	UpdateMembership(ctx context.Context, membership *CampaignMembership) error

	// DeleteMembership removes a membership. Deleting an absent membership
	// is a no-op.
	DeleteMembership(ctx context.Context, key MembershipKey) error
}

// DealRepository persists pipeline deals keyed by deal id.
type DealRepository interface {
	// CreateDeal stores a new deal.
	CreateDeal(ctx context.Context, deal *Deal) error

	// GetDeal retrieves a deal by ID.
	GetDeal(ctx context.Context, id string) (*Deal, error)

	// ListDeals returns all deals, optionally filtered by stage.
	ListDeals(ctx context.Context, stage *StageID) ([]*Deal, error)

	// UpdateDeal persists field and stage changes for an existing deal.
	UpdateDeal(ctx context.Context, deal *Deal) error

	// DeleteDeal removes a deal. Deleting an absent deal is a no-op.
	DeleteDeal(ctx context.Context, id string) error
}

// ProspectDirectory resolves prospect contact data.
type ProspectDirectory interface {
	// GetProspect retrieves a prospect by ID.
	GetProspect(ctx context.Context, id string) (*Prospect, error)
}

// OutreachSender performs the actual email/SMS delivery. Implementations
// live outside the engine; a send error is treated as a synchronous result,
// never a hang. Deduplication of retried sends is the transport's concern.
type OutreachSender interface {
	// Send delivers one message. Subject is empty for SMS.
	Send(ctx context.Context, channel Channel, recipient, content, subject string) error
}

// Clock supplies the current time. Injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return ClockFunc(time.Now) }

// SchedulerMetrics receives scheduler instrumentation. All methods are
// called from Tick and its workers; implementations must be safe for
// concurrent use.
type SchedulerMetrics interface {
	// RecordTickStarted counts a tick beginning.
	RecordTickStarted()

	// RecordTickCompleted counts a tick finishing with the given status.
	RecordTickCompleted(status string, duration time.Duration)

	// SetDueMemberships records how many memberships were due this tick.
	SetDueMemberships(count float64)

	// RecordSend counts one delivery attempt by channel and outcome.
	RecordSend(channel, status string, duration time.Duration)

	// RecordSendRetry counts a repeated attempt for the same step.
	RecordSendRetry()

	// RecordSendExhausted counts a membership hitting the attempt cap.
	RecordSendExhausted()

	// SetMembershipCount records the membership population per status.
	SetMembershipCount(status string, count float64)

	// RecordStepAdvanced counts a successful step advancement.
	RecordStepAdvanced(campaignID string)

	// RecordError counts a classified failure.
	RecordError(errorClass, errorCode string)
}

// SchedulerTracer opens spans around scheduler work units.
type SchedulerTracer interface {
	// StartTickSpan opens a span covering one full tick.
	StartTickSpan(ctx context.Context) (context.Context, trace.Span)

	// StartStepSpan opens a span covering one due membership.
	StartStepSpan(ctx context.Context, campaignID, prospectID string, stepIndex int) (context.Context, trace.Span)

	// StartSendSpan opens a span covering one delivery attempt.
	StartSendSpan(ctx context.Context, channel, recipient string) (context.Context, trace.Span)
}

// ActivityPublisher receives operator-facing activity entries emitted by the
// engine (sends, failures, completions, stage moves).
type ActivityPublisher interface {
	// Publish emits one activity entry. Implementations must not block the
	// caller on slow consumers.
	Publish(ctx context.Context, activity *Activity)
}

// Activity is one operator-facing log entry.
type Activity struct {
	// Type is the activity type, e.g. "send.succeeded" or "send.failed".
	Type string `json:"type"`

	// Level is the severity (info, warning, error).
	Level string `json:"level"`

	// CampaignID is the related campaign, if any.
	CampaignID string `json:"campaign_id,omitempty"`

	// ProspectID is the related prospect, if any.
	ProspectID string `json:"prospect_id,omitempty"`

	// StepIndex is the related sequence index, if any.
	StepIndex int `json:"step_index"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Timestamp is when the activity occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Activity types emitted by the engine.
const (
	ActivitySendSucceeded       = "send.succeeded"
	ActivitySendFailed          = "send.failed"
	ActivitySendExhausted       = "send.exhausted"
	ActivityMembershipAdvanced  = "membership.advanced"
	ActivityMembershipCompleted = "membership.completed"
	ActivityDealMoved           = "deal.moved"
	ActivityCampaignCreated     = "campaign.created"
	ActivityCampaignStatus      = "campaign.status_changed"
)
