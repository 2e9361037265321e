package stores

import (
	"context"
	"testing"
	"time"

	"github.com/leadforge/leadforge/pkg/engine"
)

// setupTestStore creates an in-memory SQLite store for testing. A single
// connection keeps every query on the same in-memory database.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testCampaign(id string) *engine.CampaignDefinition {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return &engine.CampaignDefinition{
		ID:   id,
		Name: "welcome-drip",
		Sequence: []engine.CampaignStep{
			{DayOffset: 1, Channel: engine.ChannelEmail, Content: "intro", Subject: "Hi"},
			{DayOffset: 3, Channel: engine.ChannelSMS, Content: "follow-up"},
		},
		Status:    engine.CampaignStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testMembership(campaignID, prospectID string) *engine.CampaignMembership {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return &engine.CampaignMembership{
		CampaignID:    campaignID,
		ProspectID:    prospectID,
		ProspectName:  "Pat",
		ProspectEmail: prospectID + "@example.com",
		Status:        engine.MembershipStatusPending,
		StartedAt:     now,
		UpdatedAt:     now,
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests that migrations create the expected tables
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tables := []string{"campaigns", "memberships", "deals", "activities"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		if err := store.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestCampaignCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	campaign := testCampaign("c1")
	if err := store.CreateCampaign(ctx, campaign); err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}

	got, err := store.GetCampaign(ctx, "c1")
	if err != nil {
		t.Fatalf("failed to get campaign: %v", err)
	}
	if got.Name != campaign.Name {
		t.Errorf("expected name %s, got %s", campaign.Name, got.Name)
	}
	if len(got.Sequence) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(got.Sequence))
	}
	if got.Sequence[1].Channel != engine.ChannelSMS {
		t.Errorf("expected sms channel on step 1, got %s", got.Sequence[1].Channel)
	}
	if got.Status != engine.CampaignStatusActive {
		t.Errorf("expected active status, got %s", got.Status)
	}

	if err := store.UpdateCampaignStatus(ctx, "c1", engine.CampaignStatusPaused); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}
	got, _ = store.GetCampaign(ctx, "c1")
	if got.Status != engine.CampaignStatusPaused {
		t.Errorf("expected paused status, got %s", got.Status)
	}

	list, err := store.ListCampaigns(ctx)
	if err != nil {
		t.Fatalf("failed to list campaigns: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 campaign, got %d", len(list))
	}
}

func TestGetCampaign_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetCampaign(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing campaign, got nil")
	}
	if !engine.HasCode(err, engine.ErrCodeNotFound) {
		t.Errorf("expected code %s, got: %v", engine.ErrCodeNotFound, err)
	}
}

func TestUpdateCampaignStatus_NotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpdateCampaignStatus(context.Background(), "missing", engine.CampaignStatusPaused)
	if !engine.HasCode(err, engine.ErrCodeNotFound) {
		t.Errorf("expected code %s, got: %v", engine.ErrCodeNotFound, err)
	}
}

func TestMembershipCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreateCampaign(ctx, testCampaign("c1")); err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}
	m := testMembership("c1", "p1")
	if err := store.CreateMembership(ctx, m); err != nil {
		t.Fatalf("failed to create membership: %v", err)
	}

	got, err := store.GetMembership(ctx, m.Key())
	if err != nil {
		t.Fatalf("failed to get membership: %v", err)
	}
	if got.ProspectEmail != "p1@example.com" {
		t.Errorf("expected email p1@example.com, got %s", got.ProspectEmail)
	}
	if got.CompletedAt != nil {
		t.Error("expected nil completedAt")
	}

	completed := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	got.CurrentStepIndex = 2
	got.Status = engine.MembershipStatusCompleted
	got.CompletedAt = &completed
	got.UpdatedAt = completed
	if err := store.UpdateMembership(ctx, got); err != nil {
		t.Fatalf("failed to update membership: %v", err)
	}

	got, _ = store.GetMembership(ctx, m.Key())
	if got.CurrentStepIndex != 2 {
		t.Errorf("expected index 2, got %d", got.CurrentStepIndex)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Errorf("expected completedAt %v, got %v", completed, got.CompletedAt)
	}
}

func TestCreateMembership_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_ = store.CreateCampaign(ctx, testCampaign("c1"))
	if err := store.CreateMembership(ctx, testMembership("c1", "p1")); err != nil {
		t.Fatalf("first enrollment failed: %v", err)
	}

	err := store.CreateMembership(ctx, testMembership("c1", "p1"))
	if err == nil {
		t.Fatal("expected duplicate membership error, got nil")
	}
	if !engine.HasCode(err, engine.ErrCodeDuplicateMembership) {
		t.Errorf("expected code %s, got: %v", engine.ErrCodeDuplicateMembership, err)
	}
	if !engine.IsConflict(err) {
		t.Errorf("expected conflict classification, got: %v", err)
	}
}

func TestDeleteCampaign_CascadesMemberships(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_ = store.CreateCampaign(ctx, testCampaign("c1"))
	_ = store.CreateMembership(ctx, testMembership("c1", "p1"))
	_ = store.CreateMembership(ctx, testMembership("c1", "p2"))

	if err := store.DeleteCampaign(ctx, "c1"); err != nil {
		t.Fatalf("failed to delete campaign: %v", err)
	}

	_, err := store.GetMembership(ctx, engine.MembershipKey{CampaignID: "c1", ProspectID: "p1"})
	if !engine.HasCode(err, engine.ErrCodeMembershipNotFound) {
		t.Errorf("expected membership gone after cascade, got: %v", err)
	}
}

func TestListActiveMemberships(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	active := testCampaign("active-c")
	paused := testCampaign("paused-c")
	paused.Status = engine.CampaignStatusPaused
	_ = store.CreateCampaign(ctx, active)
	_ = store.CreateCampaign(ctx, paused)

	_ = store.CreateMembership(ctx, testMembership("active-c", "p1"))
	_ = store.CreateMembership(ctx, testMembership("paused-c", "p2"))

	done := testMembership("active-c", "p3")
	done.Status = engine.MembershipStatusCompleted
	_ = store.CreateMembership(ctx, done)

	got, err := store.ListActiveMemberships(ctx, engine.CampaignStatusActive)
	if err != nil {
		t.Fatalf("failed to list active memberships: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 active membership, got %d", len(got))
	}
	if got[0].ProspectID != "p1" {
		t.Errorf("expected p1, got %s", got[0].ProspectID)
	}
}

func TestGetProspect(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_ = store.CreateCampaign(ctx, testCampaign("c1"))
	_ = store.CreateMembership(ctx, testMembership("c1", "p1"))

	prospect, err := store.GetProspect(ctx, "p1")
	if err != nil {
		t.Fatalf("failed to get prospect: %v", err)
	}
	if prospect.Name != "Pat" || prospect.Email != "p1@example.com" {
		t.Errorf("unexpected prospect: %+v", prospect)
	}

	_, err = store.GetProspect(ctx, "ghost")
	if !engine.HasCode(err, engine.ErrCodeNotFound) {
		t.Errorf("expected code %s, got: %v", engine.ErrCodeNotFound, err)
	}
}

func TestDeleteMembership_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	key := engine.MembershipKey{CampaignID: "c1", ProspectID: "ghost"}
	if err := store.DeleteMembership(ctx, key); err != nil {
		t.Errorf("expected no-op delete, got: %v", err)
	}
}

func TestDealCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	deal := &engine.Deal{
		ID:          "d1",
		ProspectID:  "p1",
		Name:        "Miller's Bakery",
		Stage:       engine.StageFound,
		Value:       1200,
		HealthScore: 75,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateDeal(ctx, deal); err != nil {
		t.Fatalf("failed to create deal: %v", err)
	}

	got, err := store.GetDeal(ctx, "d1")
	if err != nil {
		t.Fatalf("failed to get deal: %v", err)
	}
	if got.Value != 1200 || got.Stage != engine.StageFound {
		t.Errorf("unexpected deal: %+v", got)
	}

	got.Stage = engine.StageContacted
	if err := store.UpdateDeal(ctx, got); err != nil {
		t.Fatalf("failed to update deal: %v", err)
	}
	got, _ = store.GetDeal(ctx, "d1")
	if got.Stage != engine.StageContacted {
		t.Errorf("expected stage contacted, got %s", got.Stage)
	}

	if err := store.DeleteDeal(ctx, "d1"); err != nil {
		t.Fatalf("failed to delete deal: %v", err)
	}
	if err := store.DeleteDeal(ctx, "d1"); err != nil {
		t.Errorf("expected idempotent delete, got: %v", err)
	}
}

func TestListDeals_StageFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, stage := range []engine.StageID{engine.StageFound, engine.StageFound, engine.StageWon} {
		deal := &engine.Deal{
			ID:          string(rune('a' + i)),
			Name:        "deal",
			Stage:       stage,
			HealthScore: 50,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := store.CreateDeal(ctx, deal); err != nil {
			t.Fatalf("failed to create deal: %v", err)
		}
	}

	all, err := store.ListDeals(ctx, nil)
	if err != nil {
		t.Fatalf("failed to list deals: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 deals, got %d", len(all))
	}

	found := engine.StageFound
	filtered, err := store.ListDeals(ctx, &found)
	if err != nil {
		t.Fatalf("failed to list filtered deals: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("expected 2 deals in found, got %d", len(filtered))
	}
}

func TestActivityLog(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	entries := []*engine.Activity{
		{Type: engine.ActivitySendSucceeded, Level: "info", CampaignID: "c1", ProspectID: "p1", StepIndex: 0, Message: "sent", Timestamp: base},
		{Type: engine.ActivitySendFailed, Level: "warning", CampaignID: "c1", ProspectID: "p2", StepIndex: 0, Message: "failed", Timestamp: base.Add(time.Minute)},
		{Type: engine.ActivityDealMoved, Level: "info", Message: "moved", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := store.AppendActivity(ctx, e); err != nil {
			t.Fatalf("failed to append activity: %v", err)
		}
	}

	all, err := store.ListActivities(ctx, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list activities: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 activities, got %d", len(all))
	}
	// Newest first.
	if all[0].Type != engine.ActivityDealMoved {
		t.Errorf("expected newest entry first, got %s", all[0].Type)
	}

	campaign := "c1"
	byCampaign, err := store.ListActivities(ctx, &campaign, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to filter by campaign: %v", err)
	}
	if len(byCampaign) != 2 {
		t.Errorf("expected 2 entries for c1, got %d", len(byCampaign))
	}

	level := "warning"
	byLevel, err := store.ListActivities(ctx, nil, &level, 10, 0)
	if err != nil {
		t.Fatalf("failed to filter by level: %v", err)
	}
	if len(byLevel) != 1 || byLevel[0].Type != engine.ActivitySendFailed {
		t.Errorf("expected the warning entry, got %+v", byLevel)
	}

	paged, err := store.ListActivities(ctx, nil, nil, 1, 1)
	if err != nil {
		t.Fatalf("failed to page activities: %v", err)
	}
	if len(paged) != 1 || paged[0].Type != engine.ActivitySendFailed {
		t.Errorf("expected second-newest entry, got %+v", paged)
	}
}
