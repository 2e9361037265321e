package engine

import (
	"time"
)

// CampaignStep is a single timed touch in a campaign sequence.
type CampaignStep struct {
	// DayOffset is the number of days after enrollment at which the step fires.
	// Offsets must be non-decreasing across the sequence; ties fire together.
	DayOffset int `json:"day_offset" yaml:"day_offset" validate:"min=0"`

	// Channel is the outreach transport for this step.
	Channel Channel `json:"channel" yaml:"channel" validate:"required,oneof=email sms"`

	// Content is the message body template.
	Content string `json:"content" yaml:"content" validate:"required"`

	// Subject is the email subject line. Ignored for SMS.
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// DueAt returns the instant at which this step becomes due for a membership
// enrolled at startedAt.
func (s CampaignStep) DueAt(startedAt time.Time) time.Time {
	return startedAt.Add(time.Duration(s.DayOffset) * 24 * time.Hour)
}

// CampaignDefinition is an immutable template for a multi-touch sequence.
// The sequence is fixed at creation; there is deliberately no update path.
type CampaignDefinition struct {
	// ID is the unique identifier for this campaign.
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable campaign name.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Sequence is the ordered list of timed steps. Steps fire in index order.
	Sequence []CampaignStep `json:"sequence" yaml:"sequence" validate:"required,min=1,dive"`

	// Status is the campaign lifecycle status.
	Status CampaignStatus `json:"status" yaml:"status"`

	// CreatedAt is when the campaign was created.
	CreatedAt time.Time `json:"created_at" yaml:"-"`

	// UpdatedAt is when the campaign status last changed.
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// CampaignMembership tracks one prospect's progress through one campaign.
// The (CampaignID, ProspectID) pair is unique.
type CampaignMembership struct {
	// CampaignID references the campaign definition.
	CampaignID string `json:"campaign_id"`

	// ProspectID references the enrolled prospect.
	ProspectID string `json:"prospect_id"`

	// ProspectName is denormalized for the activity log.
	ProspectName string `json:"prospect_name"`

	// ProspectEmail is the recipient address for email steps.
	ProspectEmail string `json:"prospect_email"`

	// CurrentStepIndex is the next sequence index to fire. Monotonically
	// non-decreasing except through an explicit operator override.
	CurrentStepIndex int `json:"current_step_index"`

	// Status is pending until the first step fires, then in-progress,
	// then completed once the index passes the end of the sequence.
	Status MembershipStatus `json:"status"`

	// SendAttempts counts failed delivery attempts for the current step.
	// Reset to zero whenever the index advances.
	SendAttempts int `json:"send_attempts"`

	// StartedAt is the enrollment time; step offsets are measured from it.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is set when the membership reaches completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// UpdatedAt is when the membership last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the unique (campaign, prospect) identity of the membership.
func (m *CampaignMembership) Key() MembershipKey {
	return MembershipKey{CampaignID: m.CampaignID, ProspectID: m.ProspectID}
}

// MembershipKey is the unique identity of a campaign membership.
type MembershipKey struct {
	CampaignID string
	ProspectID string
}

// Prospect holds the contact data the sender needs.
type Prospect struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Deal is a prospect's representation within the sales pipeline. A deal
// occupies exactly one stage at a time; the registry is keyed by deal id so
// lookups never depend on the caller knowing the current stage.
type Deal struct {
	// ID is the unique identifier for this deal.
	ID string `json:"id"`

	// ProspectID references the prospect this deal is for.
	ProspectID string `json:"prospect_id"`

	// Name is the display name, usually the business name.
	Name string `json:"name" validate:"required"`

	// Stage is the pipeline stage the deal currently occupies.
	Stage StageID `json:"stage"`

	// Value is the estimated deal value. Never negative.
	Value float64 `json:"value" validate:"min=0"`

	// HealthScore rates the lead quality from 0 to 100.
	HealthScore int `json:"health_score" validate:"min=0,max=100"`

	// LastContactAt is when the prospect was last contacted.
	LastContactAt *time.Time `json:"last_contact_at,omitempty"`

	// Notes holds free-form operator notes.
	Notes string `json:"notes,omitempty"`

	// CreatedAt is when the deal entered the pipeline.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the deal last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// PipelineStats are the aggregate pipeline metrics.
type PipelineStats struct {
	// TotalValue is the sum of deal values across all stages.
	TotalValue float64 `json:"total_value"`

	// TotalDeals is the number of deals across all stages.
	TotalDeals int `json:"total_deals"`

	// WonDeals is the number of deals in the won stage.
	WonDeals int `json:"won_deals"`

	// ConversionRate is won/total, zero when the pipeline is empty.
	ConversionRate float64 `json:"conversion_rate"`

	// DealsByStage counts deals per stage.
	DealsByStage map[StageID]int `json:"deals_by_stage"`
}

// TickReport summarizes one scheduler evaluation pass.
type TickReport struct {
	// StartedAt is when the tick began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the pass took.
	Duration time.Duration `json:"duration"`

	// Evaluated is the number of memberships examined.
	Evaluated int `json:"evaluated"`

	// Due is the number of memberships with a due step this tick.
	Due int `json:"due"`

	// Sent is the number of successful sends.
	Sent int `json:"sent"`

	// Failed is the number of failed sends (retried on a later tick).
	Failed int `json:"failed"`

	// Skipped is the number of due memberships left untouched because a
	// send for the same membership was still in flight.
	Skipped int `json:"skipped"`

	// Exhausted is the number of memberships skipped because the current
	// step hit the send attempt cap.
	Exhausted int `json:"exhausted"`

	// Completed is the number of memberships that reached completed this tick.
	Completed int `json:"completed"`
}
