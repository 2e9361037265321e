package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leadforge/leadforge/pkg/engine"
)

// Activity severity levels.
const (
	ActivityLevelInfo    = "info"
	ActivityLevelWarning = "warning"
	ActivityLevelError   = "error"
)

// ActivitySubscriber is a function that handles activity entries.
type ActivitySubscriber func(activity engine.Activity)

// ActivityFilter determines if an activity should be delivered.
type ActivityFilter func(activity engine.Activity) bool

// ActivityPublisher buffers activity entries emitted by the engine and fans
// them out to subscribers. Publish never blocks the caller; when the buffer
// is full the entry is dropped.
type ActivityPublisher struct {
	config      ActivityConfig
	logger      *Logger
	buffer      chan engine.Activity
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber ActivitySubscriber
	filter     ActivityFilter
}

// NewActivityPublisher creates a new activity publisher with the given
// configuration.
func NewActivityPublisher(cfg ActivityConfig, logger *Logger) (*ActivityPublisher, error) {
	if !cfg.Enabled {
		return &ActivityPublisher{config: cfg, logger: logger}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ap := &ActivityPublisher{
		config:      cfg,
		logger:      logger,
		buffer:      make(chan engine.Activity, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	ap.wg.Add(1)
	go ap.processActivities()

	return ap, nil
}

// Publish implements engine.ActivityPublisher.
func (ap *ActivityPublisher) Publish(ctx context.Context, activity *engine.Activity) {
	if !ap.config.Enabled || activity == nil {
		return
	}

	entry := *activity
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Level == "" {
		entry.Level = ActivityLevelInfo
	}

	select {
	case ap.buffer <- entry:
	case <-ap.ctx.Done():
	default:
		if ap.logger != nil {
			ap.logger.WithField("type", entry.Type).Warn("activity buffer full, entry dropped")
		}
	}
}

// Subscribe adds a new activity subscriber. A nil filter receives everything.
func (ap *ActivityPublisher) Subscribe(subscriber ActivitySubscriber, filter ActivityFilter) {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	ap.subscribers = append(ap.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processActivities drains the buffer and delivers entries to subscribers.
func (ap *ActivityPublisher) processActivities() {
	defer ap.wg.Done()

	for {
		select {
		case activity := <-ap.buffer:
			ap.deliver(activity)
		case <-ap.ctx.Done():
			// Drain remaining entries before shutting down
			for {
				select {
				case activity := <-ap.buffer:
					ap.deliver(activity)
				default:
					return
				}
			}
		}
	}
}

// deliver hands an activity to every subscriber whose filter accepts it.
func (ap *ActivityPublisher) deliver(activity engine.Activity) {
	ap.mu.RLock()
	defer ap.mu.RUnlock()

	for _, entry := range ap.subscribers {
		if entry.filter != nil && !entry.filter(activity) {
			continue
		}
		entry.subscriber(activity)
	}
}

// Shutdown gracefully shuts down the publisher, delivering buffered entries.
func (ap *ActivityPublisher) Shutdown(ctx context.Context) error {
	if !ap.config.Enabled {
		return nil
	}

	ap.cancel()

	done := make(chan struct{})
	go func() {
		ap.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("activity publisher shutdown timeout")
	}
}

// Common activity filters.

// FilterByLevel creates a filter that only allows activities of a minimum
// severity.
func FilterByLevel(minLevel string) ActivityFilter {
	levels := map[string]int{
		ActivityLevelInfo:    0,
		ActivityLevelWarning: 1,
		ActivityLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(activity engine.Activity) bool {
		return levels[activity.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows activities of specific types.
func FilterByType(types ...string) ActivityFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(activity engine.Activity) bool {
		return typeSet[activity.Type]
	}
}

// FilterByCampaignID creates a filter that only allows activities for a
// specific campaign.
func FilterByCampaignID(campaignID string) ActivityFilter {
	return func(activity engine.Activity) bool {
		return activity.CampaignID == campaignID
	}
}

// LoggingSubscriber returns a subscriber that writes activities to the given
// logger at the matching level.
func LoggingSubscriber(logger *Logger) ActivitySubscriber {
	return func(activity engine.Activity) {
		l := logger.WithField("type", activity.Type)
		if activity.CampaignID != "" {
			l = l.WithCampaignID(activity.CampaignID)
		}
		if activity.ProspectID != "" {
			l = l.WithProspectID(activity.ProspectID)
		}

		switch activity.Level {
		case ActivityLevelError:
			l.Error(activity.Message)
		case ActivityLevelWarning:
			l.Warn(activity.Message)
		default:
			l.Info(activity.Message)
		}
	}
}
