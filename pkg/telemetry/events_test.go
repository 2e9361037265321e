package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leadforge/leadforge/pkg/engine"
)

// collector records delivered activities for assertions.
type collector struct {
	mu      sync.Mutex
	entries []engine.Activity
}

func (c *collector) subscriber() ActivitySubscriber {
	return func(activity engine.Activity) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.entries = append(c.entries, activity)
	}
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *collector) get(i int) engine.Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[i]
}

func newTestPublisher(t *testing.T, bufferSize int) *ActivityPublisher {
	t.Helper()
	ap, err := NewActivityPublisher(ActivityConfig{Enabled: true, BufferSize: bufferSize}, nil)
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	return ap
}

func shutdownPublisher(t *testing.T, ap *ActivityPublisher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ap.Shutdown(ctx); err != nil {
		t.Fatalf("failed to shut down publisher: %v", err)
	}
}

func TestActivityPublisher_FanOut(t *testing.T) {
	ap := newTestPublisher(t, 16)

	var first, second collector
	ap.Subscribe(first.subscriber(), nil)
	ap.Subscribe(second.subscriber(), nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ap.Publish(ctx, &engine.Activity{Type: engine.ActivitySendSucceeded, Message: "sent"})
	}

	shutdownPublisher(t, ap)

	if first.len() != 3 {
		t.Errorf("expected 3 deliveries to first subscriber, got %d", first.len())
	}
	if second.len() != 3 {
		t.Errorf("expected 3 deliveries to second subscriber, got %d", second.len())
	}
}

func TestActivityPublisher_Defaults(t *testing.T) {
	ap := newTestPublisher(t, 4)

	var got collector
	ap.Subscribe(got.subscriber(), nil)

	ap.Publish(context.Background(), &engine.Activity{Type: engine.ActivityDealMoved, Message: "moved"})
	shutdownPublisher(t, ap)

	if got.len() != 1 {
		t.Fatalf("expected 1 delivery, got %d", got.len())
	}
	entry := got.get(0)
	if entry.Level != ActivityLevelInfo {
		t.Errorf("expected default level info, got %s", entry.Level)
	}
	if entry.Timestamp.IsZero() {
		t.Error("expected timestamp to be defaulted")
	}
}

func TestActivityPublisher_FilteredDelivery(t *testing.T) {
	ap := newTestPublisher(t, 16)

	var warnings, c1Only collector
	ap.Subscribe(warnings.subscriber(), FilterByLevel(ActivityLevelWarning))
	ap.Subscribe(c1Only.subscriber(), FilterByCampaignID("c1"))

	ctx := context.Background()
	ap.Publish(ctx, &engine.Activity{Type: engine.ActivitySendSucceeded, Level: ActivityLevelInfo, CampaignID: "c1"})
	ap.Publish(ctx, &engine.Activity{Type: engine.ActivitySendFailed, Level: ActivityLevelWarning, CampaignID: "c2"})
	ap.Publish(ctx, &engine.Activity{Type: engine.ActivitySendExhausted, Level: ActivityLevelError, CampaignID: "c1"})

	shutdownPublisher(t, ap)

	if warnings.len() != 2 {
		t.Errorf("expected 2 warning-or-worse deliveries, got %d", warnings.len())
	}
	if c1Only.len() != 2 {
		t.Errorf("expected 2 c1 deliveries, got %d", c1Only.len())
	}
}

func TestActivityPublisher_Disabled(t *testing.T) {
	ap, err := NewActivityPublisher(ActivityConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}

	var got collector
	ap.Subscribe(got.subscriber(), nil)
	ap.Publish(context.Background(), &engine.Activity{Type: engine.ActivitySendSucceeded})

	if err := ap.Shutdown(context.Background()); err != nil {
		t.Errorf("disabled publisher shutdown failed: %v", err)
	}
	if got.len() != 0 {
		t.Errorf("expected no deliveries when disabled, got %d", got.len())
	}
}

func TestActivityPublisher_NilActivity(t *testing.T) {
	ap := newTestPublisher(t, 4)
	ap.Publish(context.Background(), nil)
	shutdownPublisher(t, ap)
}

func TestFilterByType(t *testing.T) {
	filter := FilterByType(engine.ActivitySendFailed, engine.ActivitySendExhausted)

	if !filter(engine.Activity{Type: engine.ActivitySendFailed}) {
		t.Error("expected send.failed to pass")
	}
	if filter(engine.Activity{Type: engine.ActivitySendSucceeded}) {
		t.Error("expected send.succeeded to be filtered out")
	}
}

func TestFilterByLevel(t *testing.T) {
	filter := FilterByLevel(ActivityLevelWarning)

	if filter(engine.Activity{Level: ActivityLevelInfo}) {
		t.Error("expected info to be filtered out")
	}
	if !filter(engine.Activity{Level: ActivityLevelWarning}) {
		t.Error("expected warning to pass")
	}
	if !filter(engine.Activity{Level: ActivityLevelError}) {
		t.Error("expected error to pass")
	}
}
