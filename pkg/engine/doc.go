// Package engine provides the core types and interfaces for the LeadForge outreach engine.
//
// # Overview
//
// LeadForge tracks prospects through a sales pipeline and through timed,
// multi-step outreach sequences. The engine is built from four parts:
//
//  1. Pipeline - Stage graph with validated deal transitions (Pipeline)
//  2. Campaigns - Immutable timed sequence templates (CampaignManager)
//  3. Memberships - Per-prospect campaign progress (Tracker)
//  4. Scheduler - Periodic due-step evaluation and delivery (DripScheduler)
//
// # Core Domain Types
//
//   - Deal: A prospect's representation in the pipeline, occupying one stage
//   - CampaignDefinition: An ordered sequence of timed steps (day offset, channel, content)
//   - CampaignMembership: One prospect's position within one campaign
//   - TickReport: The outcome of one scheduler evaluation pass
//   - Activity: An operator-facing log entry
//
// # Delivery Semantics
//
// A step at index i is due when now >= startedAt + sequence[i].DayOffset days
// and the owning campaign is active. The scheduler sends first and advances
// second: a failed send leaves the index untouched, so the step remains due
// and is retried on the next tick. Delivery is therefore at-least-once per
// step; deduplication on retry belongs to the transport behind OutreachSender.
// A configurable attempt cap parks memberships whose step fails persistently.
//
// # Concurrency
//
// Ticks fan due memberships out over a bounded worker pool. Each worker owns
// its membership's read-modify-write; a per-membership in-flight set ensures
// the same membership is never processed twice concurrently, including across
// overlapping ticks. Campaign pause/stop takes effect for ticks that start
// after the change; in-flight sends complete and their advancement is kept.
//
// # External Collaborators
//
// Persistence, prospect lookup, delivery, and time are injected interfaces
// (CampaignRepository, MembershipRepository, DealRepository,
// ProspectDirectory, OutreachSender, Clock), keeping the engine deterministic
// under test.
package engine
