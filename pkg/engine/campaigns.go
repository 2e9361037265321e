package engine

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// CampaignManager owns the campaign definition lifecycle: creation with
// sequence validation, status transitions, and cascading deletion.
type CampaignManager struct {
	campaigns CampaignRepository
	clock     Clock
	activity  ActivityPublisher
	validate  *validator.Validate
}

// NewCampaignManager creates a campaign manager over the given repository.
func NewCampaignManager(campaigns CampaignRepository, clock Clock, activity ActivityPublisher) *CampaignManager {
	if clock == nil {
		clock = SystemClock()
	}
	return &CampaignManager{
		campaigns: campaigns,
		clock:     clock,
		activity:  activity,
		validate:  validator.New(),
	}
}

// ValidateSequence checks a campaign sequence: non-empty, valid channels,
// non-negative and non-decreasing day offsets.
func ValidateSequence(sequence []CampaignStep) error {
	if len(sequence) == 0 {
		return NewPermanentError("sequence must not be empty", nil).WithCode(ErrCodeValidation)
	}
	prev := 0
	for i, step := range sequence {
		if step.DayOffset < 0 {
			return NewPermanentError(
				fmt.Sprintf("step %d: day offset must not be negative", i), nil).
				WithCode(ErrCodeValidation)
		}
		if step.DayOffset < prev {
			return NewPermanentError(
				fmt.Sprintf("step %d: day offset %d is before step %d's offset %d",
					i, step.DayOffset, i-1, prev), nil).
				WithCode(ErrCodeValidation)
		}
		if err := step.Channel.Validate(); err != nil {
			return NewPermanentError(fmt.Sprintf("step %d", i), err).WithCode(ErrCodeValidation)
		}
		if step.Content == "" {
			return NewPermanentError(
				fmt.Sprintf("step %d: content is required", i), nil).
				WithCode(ErrCodeValidation)
		}
		prev = step.DayOffset
	}
	return nil
}

// CreateCampaign validates and stores a new campaign. New campaigns start
// active. The sequence is immutable after this call.
func (m *CampaignManager) CreateCampaign(ctx context.Context, name string, sequence []CampaignStep) (*CampaignDefinition, error) {
	campaign := &CampaignDefinition{
		ID:       uuid.New().String(),
		Name:     name,
		Sequence: sequence,
		Status:   CampaignStatusActive,
	}
	if err := m.validate.Struct(campaign); err != nil {
		return nil, NewPermanentError("invalid campaign", err).WithCode(ErrCodeValidation)
	}
	if err := ValidateSequence(sequence); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	if err := m.campaigns.CreateCampaign(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	m.publish(ctx, &Activity{
		Type:       ActivityCampaignCreated,
		Level:      "info",
		CampaignID: campaign.ID,
		Message:    fmt.Sprintf("campaign %q created with %d steps", name, len(sequence)),
		Timestamp:  now,
	})
	return campaign, nil
}

// GetCampaign retrieves a campaign by id.
func (m *CampaignManager) GetCampaign(ctx context.Context, id string) (*CampaignDefinition, error) {
	return m.campaigns.GetCampaign(ctx, id)
}

// ListCampaigns returns all campaign definitions.
func (m *CampaignManager) ListCampaigns(ctx context.Context) ([]*CampaignDefinition, error) {
	return m.campaigns.ListCampaigns(ctx)
}

// SetStatus transitions a campaign between active, paused, and stopped.
// Stopped is terminal. A status change takes effect for every scheduler
// tick that starts after it commits.
func (m *CampaignManager) SetStatus(ctx context.Context, id string, target CampaignStatus) (*CampaignDefinition, error) {
	if err := target.Validate(); err != nil {
		return nil, NewPermanentError("invalid target status", err).WithCode(ErrCodeInvalidState)
	}

	campaign, err := m.campaigns.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.CanTransitionTo(target) {
		return nil, NewPermanentError(
			fmt.Sprintf("cannot change campaign status %s -> %s", campaign.Status, target), nil).
			WithCode(ErrCodeInvalidState).WithResource(id)
	}

	if err := m.campaigns.UpdateCampaignStatus(ctx, id, target); err != nil {
		return nil, fmt.Errorf("failed to update campaign status: %w", err)
	}
	campaign.Status = target
	campaign.UpdatedAt = m.clock.Now()

	m.publish(ctx, &Activity{
		Type:       ActivityCampaignStatus,
		Level:      "info",
		CampaignID: id,
		Message:    fmt.Sprintf("campaign %q is now %s", campaign.Name, target),
		Timestamp:  campaign.UpdatedAt,
	})
	return campaign, nil
}

// DeleteCampaign removes a campaign and cascades to its memberships.
func (m *CampaignManager) DeleteCampaign(ctx context.Context, id string) error {
	return m.campaigns.DeleteCampaign(ctx, id)
}

func (m *CampaignManager) publish(ctx context.Context, activity *Activity) {
	if m.activity == nil {
		return
	}
	m.activity.Publish(ctx, activity)
}
