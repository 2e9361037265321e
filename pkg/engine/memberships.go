package engine

import (
	"context"
	"fmt"
)

// Tracker manages campaign memberships: enrollment, removal, and step
// advancement. Advancement is monotonic; only an explicit operator override
// may rewind a membership.
type Tracker struct {
	campaigns   CampaignRepository
	memberships MembershipRepository
	clock       Clock
	activity    ActivityPublisher
}

// NewTracker creates a membership tracker.
func NewTracker(campaigns CampaignRepository, memberships MembershipRepository, clock Clock, activity ActivityPublisher) *Tracker {
	if clock == nil {
		clock = SystemClock()
	}
	return &Tracker{
		campaigns:   campaigns,
		memberships: memberships,
		clock:       clock,
		activity:    activity,
	}
}

// AddProspect enrolls a prospect into a campaign at step zero. The
// (campaign, prospect) pair is unique; enrolling twice is a conflict.
func (t *Tracker) AddProspect(ctx context.Context, campaignID, prospectID, name, email string) (*CampaignMembership, error) {
	if prospectID == "" {
		return nil, NewPermanentError("prospect id is required", nil).WithCode(ErrCodeValidation)
	}
	if _, err := t.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	now := t.clock.Now()
	membership := &CampaignMembership{
		CampaignID:       campaignID,
		ProspectID:       prospectID,
		ProspectName:     name,
		ProspectEmail:    email,
		CurrentStepIndex: 0,
		Status:           MembershipStatusPending,
		StartedAt:        now,
		UpdatedAt:        now,
	}
	if err := t.memberships.CreateMembership(ctx, membership); err != nil {
		return nil, err
	}
	return membership, nil
}

// RemoveProspect deletes a membership. Removing an absent membership is a
// no-op, not an error.
func (t *Tracker) RemoveProspect(ctx context.Context, campaignID, prospectID string) error {
	return t.memberships.DeleteMembership(ctx, MembershipKey{CampaignID: campaignID, ProspectID: prospectID})
}

// GetMembership retrieves a membership by its key.
func (t *Tracker) GetMembership(ctx context.Context, campaignID, prospectID string) (*CampaignMembership, error) {
	return t.memberships.GetMembership(ctx, MembershipKey{CampaignID: campaignID, ProspectID: prospectID})
}

// ListMemberships returns all memberships for a campaign.
func (t *Tracker) ListMemberships(ctx context.Context, campaignID string) ([]*CampaignMembership, error) {
	return t.memberships.ListMemberships(ctx, campaignID)
}

// AdvanceStep moves a membership forward to newIndex. A request to move
// backwards is rejected; the scheduler only ever advances. When newIndex
// passes the end of the sequence the membership completes and never fires
// again. Advancing resets the per-step send attempt counter.
func (t *Tracker) AdvanceStep(ctx context.Context, campaignID, prospectID string, newIndex int) (*CampaignMembership, error) {
	membership, err := t.memberships.GetMembership(ctx, MembershipKey{CampaignID: campaignID, ProspectID: prospectID})
	if err != nil {
		return nil, err
	}
	if newIndex < membership.CurrentStepIndex {
		return nil, NewPermanentError(
			fmt.Sprintf("cannot move membership back from step %d to %d",
				membership.CurrentStepIndex, newIndex), nil).
			WithCode(ErrCodeInvalidAdvancement).WithResource(prospectID)
	}

	campaign, err := t.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return t.apply(ctx, membership, campaign, newIndex)
}

// OverrideStep sets a membership's step index without the monotonic guard.
// This is the operator escape hatch behind the manual-override API; it also
// clears completion when rewinding into the sequence.
func (t *Tracker) OverrideStep(ctx context.Context, campaignID, prospectID string, newIndex int) (*CampaignMembership, error) {
	if newIndex < 0 {
		return nil, NewPermanentError("step index must not be negative", nil).WithCode(ErrCodeValidation)
	}
	membership, err := t.memberships.GetMembership(ctx, MembershipKey{CampaignID: campaignID, ProspectID: prospectID})
	if err != nil {
		return nil, err
	}
	campaign, err := t.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if newIndex < len(campaign.Sequence) {
		membership.CompletedAt = nil
	}
	return t.apply(ctx, membership, campaign, newIndex)
}

// apply writes the new index and derives status. Completion is terminal:
// status flips to completed exactly when the index reaches the sequence end;
// any other index leaves the membership in progress. Pending exists only
// between enrollment and the first advancement or override.
func (t *Tracker) apply(ctx context.Context, membership *CampaignMembership, campaign *CampaignDefinition, newIndex int) (*CampaignMembership, error) {
	now := t.clock.Now()
	membership.CurrentStepIndex = newIndex
	membership.SendAttempts = 0
	membership.UpdatedAt = now

	if newIndex >= len(campaign.Sequence) {
		membership.Status = MembershipStatusCompleted
		if membership.CompletedAt == nil {
			completed := now
			membership.CompletedAt = &completed
		}
	} else {
		membership.Status = MembershipStatusInProgress
	}

	if err := t.memberships.UpdateMembership(ctx, membership); err != nil {
		return nil, fmt.Errorf("failed to update membership: %w", err)
	}

	if membership.Status == MembershipStatusCompleted {
		t.publish(ctx, &Activity{
			Type:       ActivityMembershipCompleted,
			Level:      "info",
			CampaignID: membership.CampaignID,
			ProspectID: membership.ProspectID,
			StepIndex:  newIndex,
			Message:    fmt.Sprintf("prospect %s completed campaign %s", membership.ProspectID, campaign.Name),
			Timestamp:  now,
		})
	}
	return membership, nil
}

func (t *Tracker) publish(ctx context.Context, activity *Activity) {
	if t.activity == nil {
		return
	}
	t.activity.Publish(ctx, activity)
}
