package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxSendAttempts caps retries of a failing step before the
// membership is parked for operator attention. Zero disables the cap.
const DefaultMaxSendAttempts = 10

// SchedulerOptions configure a DripScheduler.
type SchedulerOptions struct {
	// MaxParallel is the maximum number of concurrent send workers.
	MaxParallel int

	// MaxSendAttempts caps failed sends per step; 0 means unlimited.
	MaxSendAttempts int

	// Metrics receives tick and send instrumentation. Optional.
	Metrics SchedulerMetrics

	// Tracer opens spans around ticks, steps, and sends. Optional.
	Tracer SchedulerTracer
}

// DripScheduler is the core orchestrator: each tick it evaluates all
// memberships of active campaigns, fires due steps through the sender, and
// advances membership state. Delivery is at-least-once per step: a failed
// send leaves the index untouched so the same step is due again next tick.
type DripScheduler struct {
	campaigns   CampaignRepository
	memberships MembershipRepository
	tracker     *Tracker
	sender      OutreachSender
	clock       Clock
	activity    ActivityPublisher

	maxParallel     int
	maxSendAttempts int
	metrics         SchedulerMetrics
	tracer          SchedulerTracer

	// mu guards inFlight: the same membership is never processed twice
	// concurrently, even across overlapping ticks.
	mu       sync.Mutex
	inFlight map[MembershipKey]struct{}
}

// NewDripScheduler creates a scheduler over the given collaborators.
func NewDripScheduler(
	campaigns CampaignRepository,
	memberships MembershipRepository,
	tracker *Tracker,
	sender OutreachSender,
	clock Clock,
	activity ActivityPublisher,
	opts SchedulerOptions,
) *DripScheduler {
	if clock == nil {
		clock = SystemClock()
	}
	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 10
	}
	maxAttempts := opts.MaxSendAttempts
	if maxAttempts < 0 {
		maxAttempts = DefaultMaxSendAttempts
	}
	return &DripScheduler{
		campaigns:       campaigns,
		memberships:     memberships,
		tracker:         tracker,
		sender:          sender,
		clock:           clock,
		activity:        activity,
		maxParallel:     maxParallel,
		maxSendAttempts: maxAttempts,
		metrics:         opts.Metrics,
		tracer:          opts.Tracer,
		inFlight:        make(map[MembershipKey]struct{}),
	}
}

// dueItem is one membership with a resolvable due step.
type dueItem struct {
	membership *CampaignMembership
	campaign   *CampaignDefinition
	step       CampaignStep
}

// Tick runs one evaluation pass. It is safe to call on every scheduler
// interval indefinitely: memberships with no due step are untouched, and a
// pass with no elapsed time since the last one performs no sends. A single
// membership's failure never halts the rest of the pass.
func (s *DripScheduler) Tick(ctx context.Context) (*TickReport, error) {
	now := s.clock.Now()
	report := &TickReport{StartedAt: now}

	if s.metrics != nil {
		s.metrics.RecordTickStarted()
	}
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.StartTickSpan(ctx)
		defer span.End()
	}

	// Campaign statuses are read once per tick; a pause or stop committed
	// after this point applies to the next tick. Sends already in flight
	// complete and their advancement is applied, so a resume never repeats
	// a delivered step.
	active, err := s.activeCampaigns(ctx)
	if err != nil {
		return nil, s.tickFailed(now, span, err)
	}

	memberships, err := s.memberships.ListActiveMemberships(ctx, CampaignStatusActive)
	if err != nil {
		return nil, s.tickFailed(now, span, fmt.Errorf("failed to list memberships: %w", err))
	}

	statusCounts := make(map[MembershipStatus]int)
	due := make([]dueItem, 0)
	for _, m := range memberships {
		report.Evaluated++
		statusCounts[m.Status]++
		campaign, ok := active[m.CampaignID]
		if !ok {
			continue
		}
		if m.Status.IsTerminal() || m.CurrentStepIndex >= len(campaign.Sequence) {
			continue
		}
		step := campaign.Sequence[m.CurrentStepIndex]
		if now.Before(step.DueAt(m.StartedAt)) {
			continue
		}
		report.Due++
		if s.maxSendAttempts > 0 && m.SendAttempts >= s.maxSendAttempts {
			report.Exhausted++
			continue
		}
		due = append(due, dueItem{membership: m, campaign: campaign, step: step})
	}

	s.processDue(ctx, due, report)
	report.Duration = s.clock.Now().Sub(now)

	if s.metrics != nil {
		s.metrics.RecordTickCompleted("success", report.Duration)
		s.metrics.SetDueMemberships(float64(report.Due))
		for status, count := range statusCounts {
			s.metrics.SetMembershipCount(string(status), float64(count))
		}
	}
	return report, nil
}

// tickFailed records a failed pass before the error propagates to the caller.
func (s *DripScheduler) tickFailed(start time.Time, span trace.Span, err error) error {
	if s.metrics != nil {
		s.metrics.RecordTickCompleted("error", s.clock.Now().Sub(start))
		s.metrics.RecordError(string(ClassOf(err)), CodeOf(err))
	}
	if span != nil {
		span.RecordError(err)
	}
	return err
}

// Run ticks on the given interval until the context is cancelled.
func (s *DripScheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.publish(ctx, &Activity{
					Type:      "tick.failed",
					Level:     "error",
					Message:   fmt.Sprintf("evaluation pass failed: %v", err),
					Timestamp: s.clock.Now(),
				})
			}
		}
	}
}

// activeCampaigns returns the active campaign definitions keyed by id.
func (s *DripScheduler) activeCampaigns(ctx context.Context) (map[string]*CampaignDefinition, error) {
	campaigns, err := s.campaigns.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	active := make(map[string]*CampaignDefinition, len(campaigns))
	for _, c := range campaigns {
		if c.Status == CampaignStatusActive {
			active[c.ID] = c
		}
	}
	return active, nil
}

// processDue fans the due items out over a bounded worker pool. Items are
// independent: each worker only touches its own membership, and report
// counters are the only shared state.
func (s *DripScheduler) processDue(ctx context.Context, due []dueItem, report *TickReport) {
	if len(due) == 0 {
		return
	}

	workerCount := s.maxParallel
	if len(due) < workerCount {
		workerCount = len(due)
	}

	work := make(chan dueItem, len(due))
	for _, item := range due {
		work <- item
	}
	close(work)

	var wg sync.WaitGroup
	var reportMu sync.Mutex
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				outcome, completed := s.processItem(ctx, item)
				reportMu.Lock()
				switch outcome {
				case itemSent:
					report.Sent++
				case itemFailed:
					report.Failed++
				case itemSkipped:
					report.Skipped++
				}
				if completed {
					report.Completed++
				}
				reportMu.Unlock()

				select {
				case <-ctx.Done():
					return
				default:
				}
			}
		}()
	}
	wg.Wait()
}

// itemOutcome is the disposition of one due membership within a pass.
type itemOutcome int

const (
	itemSent itemOutcome = iota
	itemFailed
	itemSkipped
)

// processItem sends one due step and advances or records the failure.
// Returns the item's disposition and whether the membership completed.
func (s *DripScheduler) processItem(ctx context.Context, item dueItem) (outcome itemOutcome, completed bool) {
	key := item.membership.Key()
	if !s.acquire(key) {
		// Another worker holds this membership; it will be re-evaluated
		// next tick if still due.
		return itemSkipped, false
	}
	defer s.release(key)

	m := item.membership
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.StartStepSpan(ctx, m.CampaignID, m.ProspectID, m.CurrentStepIndex)
		defer span.End()
	}

	recipient := s.recipient(ctx, m, item.step.Channel)
	if s.metrics != nil && m.SendAttempts > 0 {
		s.metrics.RecordSendRetry()
	}

	sendCtx := ctx
	var sendSpan trace.Span
	if s.tracer != nil {
		sendCtx, sendSpan = s.tracer.StartSendSpan(ctx, string(item.step.Channel), recipient)
	}
	sendStart := s.clock.Now()
	err := s.sender.Send(sendCtx, item.step.Channel, recipient, item.step.Content, item.step.Subject)
	sendDuration := s.clock.Now().Sub(sendStart)
	if sendSpan != nil {
		if err != nil {
			sendSpan.RecordError(err)
		}
		sendSpan.End()
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSend(string(item.step.Channel), "failure", sendDuration)
		}
		s.recordFailure(ctx, m, item, err)
		return itemFailed, false
	}
	if s.metrics != nil {
		s.metrics.RecordSend(string(item.step.Channel), "success", sendDuration)
	}

	advanced, aerr := s.tracker.AdvanceStep(ctx, m.CampaignID, m.ProspectID, m.CurrentStepIndex+1)
	if aerr != nil {
		// The send went out but the advancement did not stick; the step
		// stays due and will be re-sent. At-least-once, by contract.
		s.publish(ctx, &Activity{
			Type:       ActivitySendFailed,
			Level:      "error",
			CampaignID: m.CampaignID,
			ProspectID: m.ProspectID,
			StepIndex:  m.CurrentStepIndex,
			Message:    fmt.Sprintf("sent step %d but failed to advance: %v", m.CurrentStepIndex, aerr),
			Timestamp:  s.clock.Now(),
		})
		return itemSent, false
	}

	if s.metrics != nil {
		s.metrics.RecordStepAdvanced(m.CampaignID)
	}
	s.publish(ctx, &Activity{
		Type:       ActivitySendSucceeded,
		Level:      "info",
		CampaignID: m.CampaignID,
		ProspectID: m.ProspectID,
		StepIndex:  m.CurrentStepIndex,
		Message:    fmt.Sprintf("step %d (%s) sent to %s", m.CurrentStepIndex, item.step.Channel, m.ProspectName),
		Timestamp:  s.clock.Now(),
	})
	return itemSent, advanced.Status == MembershipStatusCompleted
}

// recordFailure bumps the attempt counter without moving the index, so the
// step remains due on the next tick.
func (s *DripScheduler) recordFailure(ctx context.Context, m *CampaignMembership, item dueItem, sendErr error) {
	if s.metrics != nil {
		s.metrics.RecordError(string(ClassOf(sendErr)), CodeOf(sendErr))
	}
	m.SendAttempts++
	m.UpdatedAt = s.clock.Now()
	if err := s.memberships.UpdateMembership(ctx, m); err != nil {
		s.publish(ctx, &Activity{
			Type:       ActivitySendFailed,
			Level:      "error",
			CampaignID: m.CampaignID,
			ProspectID: m.ProspectID,
			StepIndex:  m.CurrentStepIndex,
			Message:    fmt.Sprintf("failed to record send failure: %v", err),
			Timestamp:  m.UpdatedAt,
		})
		return
	}

	activityType := ActivitySendFailed
	level := "warning"
	msg := fmt.Sprintf("step %d (%s) failed for %s (attempt %d): %v",
		m.CurrentStepIndex, item.step.Channel, m.ProspectName, m.SendAttempts, sendErr)
	if s.maxSendAttempts > 0 && m.SendAttempts >= s.maxSendAttempts {
		activityType = ActivitySendExhausted
		level = "error"
		msg = fmt.Sprintf("step %d for %s exhausted %d send attempts; parked until overridden",
			m.CurrentStepIndex, m.ProspectName, m.SendAttempts)
		if s.metrics != nil {
			s.metrics.RecordSendExhausted()
		}
	}
	s.publish(ctx, &Activity{
		Type:       activityType,
		Level:      level,
		CampaignID: m.CampaignID,
		ProspectID: m.ProspectID,
		StepIndex:  m.CurrentStepIndex,
		Message:    msg,
		Timestamp:  m.UpdatedAt,
	})
}

// recipient resolves the delivery address for a step. Email uses the
// denormalized membership address; SMS falls back to it when no separate
// number is stored.
func (s *DripScheduler) recipient(_ context.Context, m *CampaignMembership, _ Channel) string {
	return m.ProspectEmail
}

// acquire takes the per-membership lock without blocking. Returns false if
// the membership is already being processed.
func (s *DripScheduler) acquire(key MembershipKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.inFlight[key]; held {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *DripScheduler) release(key MembershipKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

func (s *DripScheduler) publish(ctx context.Context, activity *Activity) {
	if s.activity == nil {
		return
	}
	s.activity.Publish(ctx, activity)
}
