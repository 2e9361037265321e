package engine

import (
	"encoding/json"
	"fmt"
)

// CampaignStatus represents the lifecycle status of a campaign definition.
type CampaignStatus string

const (
	// CampaignStatusActive indicates the campaign is live and its steps fire.
	CampaignStatusActive CampaignStatus = "active"

	// CampaignStatusPaused indicates the campaign is temporarily frozen.
	// Memberships keep their position and resume when the campaign reactivates.
	CampaignStatusPaused CampaignStatus = "paused"

	// CampaignStatusStopped indicates the campaign is permanently halted.
	// There is no transition out of stopped.
	CampaignStatusStopped CampaignStatus = "stopped"
)

// campaignTransitions lists the legal campaign status moves.
var campaignTransitions = map[CampaignStatus]map[CampaignStatus]bool{
	CampaignStatusActive:  {CampaignStatusPaused: true, CampaignStatusStopped: true},
	CampaignStatusPaused:  {CampaignStatusActive: true, CampaignStatusStopped: true},
	CampaignStatusStopped: {},
}

// CanTransitionTo returns true if the status change is legal.
func (s CampaignStatus) CanTransitionTo(target CampaignStatus) bool {
	return campaignTransitions[s][target]
}

// IsTerminal returns true if no further status changes are allowed.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusStopped
}

// IsFrozen returns true if memberships of this campaign must not fire.
func (s CampaignStatus) IsFrozen() bool {
	return s == CampaignStatusPaused || s == CampaignStatusStopped
}

// Validate checks if the campaign status is valid.
func (s CampaignStatus) Validate() error {
	switch s {
	case CampaignStatusActive, CampaignStatusPaused, CampaignStatusStopped:
		return nil
	default:
		return fmt.Errorf("invalid campaign status: %s", s)
	}
}

// MembershipStatus represents a prospect's progress state within a campaign.
type MembershipStatus string

const (
	// MembershipStatusPending indicates no step has fired yet.
	MembershipStatusPending MembershipStatus = "pending"

	// MembershipStatusInProgress indicates at least one step has fired.
	MembershipStatusInProgress MembershipStatus = "in-progress"

	// MembershipStatusCompleted indicates every step in the sequence has fired.
	MembershipStatusCompleted MembershipStatus = "completed"
)

// IsTerminal returns true if the membership will never fire another step.
func (s MembershipStatus) IsTerminal() bool {
	return s == MembershipStatusCompleted
}

// Validate checks if the membership status is valid.
func (s MembershipStatus) Validate() error {
	switch s {
	case MembershipStatusPending, MembershipStatusInProgress, MembershipStatusCompleted:
		return nil
	default:
		return fmt.Errorf("invalid membership status: %s", s)
	}
}

// Channel represents the outreach transport used by a campaign step.
type Channel string

const (
	// ChannelEmail delivers the step content by email.
	ChannelEmail Channel = "email"

	// ChannelSMS delivers the step content by SMS.
	ChannelSMS Channel = "sms"
)

// Validate checks if the channel is valid.
func (c Channel) Validate() error {
	switch c {
	case ChannelEmail, ChannelSMS:
		return nil
	default:
		return fmt.Errorf("invalid channel: %s", c)
	}
}

// StageID identifies a pipeline stage.
type StageID string

const (
	// StageFound is the entry stage for new deals.
	StageFound StageID = "found"

	// StageContacted indicates first outreach has gone out.
	StageContacted StageID = "contacted"

	// StageReplied indicates the prospect has responded.
	StageReplied StageID = "replied"

	// StageMeeting indicates a meeting has been booked.
	StageMeeting StageID = "meeting"

	// StageWon is a terminal stage for closed-won deals.
	StageWon StageID = "won"

	// StageLost is a terminal stage for closed-lost deals.
	StageLost StageID = "lost"
)

// IsTerminal returns true for the two closing stages.
func (s StageID) IsTerminal() bool {
	return s == StageWon || s == StageLost
}

// Validate checks if the stage id is valid.
func (s StageID) Validate() error {
	switch s {
	case StageFound, StageContacted, StageReplied, StageMeeting, StageWon, StageLost:
		return nil
	default:
		return fmt.Errorf("invalid stage: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s CampaignStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *CampaignStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = CampaignStatus(str)
	return s.Validate()
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s MembershipStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *MembershipStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = MembershipStatus(str)
	return s.Validate()
}
