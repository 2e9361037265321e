package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// In-memory campaign repository for testing
type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*CampaignDefinition
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: make(map[string]*CampaignDefinition)}
}

func (r *memCampaignRepo) CreateCampaign(_ context.Context, c *CampaignDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *memCampaignRepo) GetCampaign(_ context.Context, id string) (*CampaignDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, NewPermanentError(fmt.Sprintf("campaign %s not found", id), nil).
			WithCode(ErrCodeNotFound).WithResource(id)
	}
	cp := *c
	return &cp, nil
}

func (r *memCampaignRepo) ListCampaigns(_ context.Context) ([]*CampaignDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*CampaignDefinition, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memCampaignRepo) UpdateCampaignStatus(_ context.Context, id string, status CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return NewPermanentError(fmt.Sprintf("campaign %s not found", id), nil).
			WithCode(ErrCodeNotFound).WithResource(id)
	}
	c.Status = status
	return nil
}

func (r *memCampaignRepo) DeleteCampaign(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[id]; !ok {
		return NewPermanentError(fmt.Sprintf("campaign %s not found", id), nil).
			WithCode(ErrCodeNotFound).WithResource(id)
	}
	delete(r.campaigns, id)
	return nil
}

// In-memory membership repository for testing
type memMembershipRepo struct {
	mu          sync.Mutex
	memberships map[MembershipKey]*CampaignMembership
}

func newMemMembershipRepo() *memMembershipRepo {
	return &memMembershipRepo{memberships: make(map[MembershipKey]*CampaignMembership)}
}

func (r *memMembershipRepo) CreateMembership(_ context.Context, m *CampaignMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.memberships[m.Key()]; exists {
		return NewConflictError("membership already exists", nil).
			WithCode(ErrCodeDuplicateMembership).WithResource(m.ProspectID)
	}
	cp := *m
	r.memberships[m.Key()] = &cp
	return nil
}

func (r *memMembershipRepo) GetMembership(_ context.Context, key MembershipKey) (*CampaignMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[key]
	if !ok {
		return nil, NewPermanentError("membership not found", nil).
			WithCode(ErrCodeMembershipNotFound).WithResource(key.ProspectID)
	}
	cp := *m
	return &cp, nil
}

func (r *memMembershipRepo) ListMemberships(_ context.Context, campaignID string) ([]*CampaignMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*CampaignMembership, 0)
	for _, m := range r.memberships {
		if m.CampaignID == campaignID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMembershipRepo) ListActiveMemberships(_ context.Context, _ CampaignStatus) ([]*CampaignMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*CampaignMembership, 0)
	for _, m := range r.memberships {
		if m.Status != MembershipStatusCompleted {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMembershipRepo) UpdateMembership(_ context.Context, m *CampaignMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memberships[m.Key()]; !ok {
		return NewPermanentError("membership not found", nil).
			WithCode(ErrCodeMembershipNotFound).WithResource(m.ProspectID)
	}
	cp := *m
	r.memberships[m.Key()] = &cp
	return nil
}

func (r *memMembershipRepo) DeleteMembership(_ context.Context, key MembershipKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.memberships, key)
	return nil
}

// In-memory deal repository for testing
type memDealRepo struct {
	mu    sync.Mutex
	deals map[string]*Deal
}

func newMemDealRepo() *memDealRepo {
	return &memDealRepo{deals: make(map[string]*Deal)}
}

func (r *memDealRepo) CreateDeal(_ context.Context, d *Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.deals[d.ID] = &cp
	return nil
}

func (r *memDealRepo) GetDeal(_ context.Context, id string) (*Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deals[id]
	if !ok {
		return nil, NewPermanentError(fmt.Sprintf("deal %s not found", id), nil).
			WithCode(ErrCodeNotFound).WithResource(id)
	}
	cp := *d
	return &cp, nil
}

func (r *memDealRepo) ListDeals(_ context.Context, stage *StageID) ([]*Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Deal, 0)
	for _, d := range r.deals {
		if stage != nil && d.Stage != *stage {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memDealRepo) UpdateDeal(_ context.Context, d *Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deals[d.ID]; !ok {
		return NewPermanentError(fmt.Sprintf("deal %s not found", d.ID), nil).
			WithCode(ErrCodeNotFound).WithResource(d.ID)
	}
	cp := *d
	r.deals[d.ID] = &cp
	return nil
}

func (r *memDealRepo) DeleteDeal(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.deals, id)
	return nil
}

// Mock sender for testing
type mockSender struct {
	mu        sync.Mutex
	sends     []sentMessage
	failAll   bool
	failFor   map[string]bool
	sendDelay time.Duration
}

type sentMessage struct {
	Channel   Channel
	Recipient string
	Content   string
	Subject   string
}

func newMockSender() *mockSender {
	return &mockSender{failFor: make(map[string]bool)}
}

func (m *mockSender) Send(ctx context.Context, channel Channel, recipient, content, subject string) error {
	if m.sendDelay > 0 {
		select {
		case <-time.After(m.sendDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failFor[recipient] {
		return NewTransientError("mock send failure", nil).WithCode(ErrCodeSendFailed)
	}
	m.sends = append(m.sends, sentMessage{Channel: channel, Recipient: recipient, Content: content, Subject: subject})
	return nil
}

func (m *mockSender) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

func (m *mockSender) sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage{}, m.sends...)
}

// Mock activity publisher for testing
type mockActivityPublisher struct {
	mu         sync.Mutex
	activities []Activity
}

func newMockActivityPublisher() *mockActivityPublisher {
	return &mockActivityPublisher{activities: make([]Activity, 0)}
}

func (m *mockActivityPublisher) Publish(_ context.Context, activity *Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, *activity)
}

func (m *mockActivityPublisher) byType(activityType string) []Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Activity, 0)
	for _, a := range m.activities {
		if a.Type == activityType {
			out = append(out, a)
		}
	}
	return out
}

// fakeClock is a settable clock for deterministic scheduling tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Mock scheduler metrics for testing
type mockSchedulerMetrics struct {
	mu               sync.Mutex
	ticksStarted     int
	tickStatuses     []string
	dueMemberships   float64
	sends            map[string]int
	retries          int
	exhausted        int
	membershipCounts map[string]float64
	stepsAdvanced    map[string]int
	errorCodes       []string
}

func newMockSchedulerMetrics() *mockSchedulerMetrics {
	return &mockSchedulerMetrics{
		sends:            make(map[string]int),
		membershipCounts: make(map[string]float64),
		stepsAdvanced:    make(map[string]int),
	}
}

func (m *mockSchedulerMetrics) RecordTickStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticksStarted++
}

func (m *mockSchedulerMetrics) RecordTickCompleted(status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickStatuses = append(m.tickStatuses, status)
}

func (m *mockSchedulerMetrics) SetDueMemberships(count float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dueMemberships = count
}

func (m *mockSchedulerMetrics) RecordSend(channel, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends[channel+"/"+status]++
}

func (m *mockSchedulerMetrics) RecordSendRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *mockSchedulerMetrics) RecordSendExhausted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exhausted++
}

func (m *mockSchedulerMetrics) SetMembershipCount(status string, count float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.membershipCounts[status] = count
}

func (m *mockSchedulerMetrics) RecordStepAdvanced(campaignID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepsAdvanced[campaignID]++
}

func (m *mockSchedulerMetrics) RecordError(_, errorCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCodes = append(m.errorCodes, errorCode)
}

func (m *mockSchedulerMetrics) sendCount(channel, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sends[channel+"/"+status]
}

// Mock scheduler tracer for testing. Counts spans; the returned spans are
// the no-op spans carried by the context.
type mockSchedulerTracer struct {
	mu        sync.Mutex
	tickSpans int
	stepSpans int
	sendSpans int
}

func (f *mockSchedulerTracer) StartTickSpan(ctx context.Context) (context.Context, trace.Span) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickSpans++
	return ctx, trace.SpanFromContext(ctx)
}

func (f *mockSchedulerTracer) StartStepSpan(ctx context.Context, _, _ string, _ int) (context.Context, trace.Span) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stepSpans++
	return ctx, trace.SpanFromContext(ctx)
}

func (f *mockSchedulerTracer) StartSendSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendSpans++
	return ctx, trace.SpanFromContext(ctx)
}
