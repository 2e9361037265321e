package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// stageOrder is the strict forward order of the non-terminal stages.
// Won and lost sit outside the order and are reachable from any of these.
var stageOrder = []StageID{StageFound, StageContacted, StageReplied, StageMeeting}

// stageIndex returns the position of a non-terminal stage, or -1.
func stageIndex(stage StageID) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// Stages returns the full stage sequence, terminals last.
func Stages() []StageID {
	out := make([]StageID, 0, len(stageOrder)+2)
	out = append(out, stageOrder...)
	out = append(out, StageWon, StageLost)
	return out
}

// ValidateMove checks a stage transition against the pipeline graph: moves
// between adjacent non-terminal stages (either direction) and moves from any
// non-terminal stage into a terminal stage are legal, nothing else.
func ValidateMove(from, to StageID) error {
	if err := from.Validate(); err != nil {
		return NewPermanentError("unknown source stage", err).WithCode(ErrCodeInvalidTransition)
	}
	if err := to.Validate(); err != nil {
		return NewPermanentError("unknown target stage", err).WithCode(ErrCodeInvalidTransition)
	}
	if from == to {
		return NewPermanentError(fmt.Sprintf("deal already in stage %s", to), nil).
			WithCode(ErrCodeInvalidTransition)
	}
	if from.IsTerminal() {
		return NewPermanentError(fmt.Sprintf("no moves out of terminal stage %s", from), nil).
			WithCode(ErrCodeInvalidTransition)
	}
	if to.IsTerminal() {
		return nil
	}
	fi, ti := stageIndex(from), stageIndex(to)
	if fi-ti != 1 && ti-fi != 1 {
		return NewPermanentError(fmt.Sprintf("stages %s and %s are not adjacent", from, to), nil).
			WithCode(ErrCodeInvalidTransition)
	}
	return nil
}

// Pipeline enforces valid stage moves and exposes aggregate pipeline metrics.
type Pipeline struct {
	deals    DealRepository
	clock    Clock
	activity ActivityPublisher
}

// NewPipeline creates a pipeline service over the given deal repository.
func NewPipeline(deals DealRepository, clock Clock, activity ActivityPublisher) *Pipeline {
	if clock == nil {
		clock = SystemClock()
	}
	return &Pipeline{
		deals:    deals,
		clock:    clock,
		activity: activity,
	}
}

// AddDeal inserts a new deal into the first stage and returns it.
func (p *Pipeline) AddDeal(ctx context.Context, deal Deal) (*Deal, error) {
	if deal.Name == "" {
		return nil, NewPermanentError("deal name is required", nil).WithCode(ErrCodeValidation)
	}
	if deal.Value < 0 {
		return nil, NewPermanentError("deal value must not be negative", nil).WithCode(ErrCodeValidation)
	}
	if deal.HealthScore < 0 || deal.HealthScore > 100 {
		return nil, NewPermanentError("health score must be between 0 and 100", nil).WithCode(ErrCodeValidation)
	}

	now := p.clock.Now()
	deal.ID = uuid.New().String()
	deal.Stage = StageFound
	deal.CreatedAt = now
	deal.UpdatedAt = now

	if err := p.deals.CreateDeal(ctx, &deal); err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}
	return &deal, nil
}

// MoveDeal moves a deal between stages. The caller states the stage it
// believes the deal is in; a mismatch is rejected as a conflict so stale
// clients cannot apply a move they did not validate.
func (p *Pipeline) MoveDeal(ctx context.Context, dealID string, from, to StageID) (*Deal, error) {
	if err := ValidateMove(from, to); err != nil {
		return nil, err
	}

	deal, err := p.deals.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Stage != from {
		return nil, NewConflictError(
			fmt.Sprintf("deal is in stage %s, not %s", deal.Stage, from), nil).
			WithCode(ErrCodeInvalidTransition).WithResource(dealID)
	}

	deal.Stage = to
	deal.UpdatedAt = p.clock.Now()
	if err := p.deals.UpdateDeal(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to move deal: %w", err)
	}

	p.publish(ctx, &Activity{
		Type:      ActivityDealMoved,
		Level:     "info",
		Message:   fmt.Sprintf("deal %s moved %s -> %s", deal.Name, from, to),
		Timestamp: deal.UpdatedAt,
	})
	return deal, nil
}

// DeleteDeal removes a deal permanently. The lookup is stage-agnostic and
// deleting an absent deal is a no-op, not an error.
func (p *Pipeline) DeleteDeal(ctx context.Context, dealID string) error {
	return p.deals.DeleteDeal(ctx, dealID)
}

// GetDeal retrieves a deal by id.
func (p *Pipeline) GetDeal(ctx context.Context, dealID string) (*Deal, error) {
	return p.deals.GetDeal(ctx, dealID)
}

// ListDeals returns all deals, optionally filtered by stage.
func (p *Pipeline) ListDeals(ctx context.Context, stage *StageID) ([]*Deal, error) {
	return p.deals.ListDeals(ctx, stage)
}

// ComputeStats aggregates the pipeline. ConversionRate is zero, not NaN,
// when the pipeline is empty.
func (p *Pipeline) ComputeStats(ctx context.Context) (*PipelineStats, error) {
	deals, err := p.deals.ListDeals(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}

	stats := &PipelineStats{
		DealsByStage: make(map[StageID]int, len(stageOrder)+2),
	}
	for _, stage := range Stages() {
		stats.DealsByStage[stage] = 0
	}
	for _, deal := range deals {
		stats.TotalDeals++
		stats.TotalValue += deal.Value
		stats.DealsByStage[deal.Stage]++
		if deal.Stage == StageWon {
			stats.WonDeals++
		}
	}
	if stats.TotalDeals > 0 {
		stats.ConversionRate = float64(stats.WonDeals) / float64(stats.TotalDeals)
	}
	return stats, nil
}

func (p *Pipeline) publish(ctx context.Context, activity *Activity) {
	if p.activity == nil {
		return
	}
	p.activity.Publish(ctx, activity)
}
