package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/leadforge/leadforge/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting); the
	// membership cascade on campaign delete depends on it.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CreateCampaign stores a new campaign definition
func (s *SQLiteStore) CreateCampaign(ctx context.Context, campaign *engine.CampaignDefinition) error {
	sequence, err := json.Marshal(campaign.Sequence)
	if err != nil {
		return fmt.Errorf("failed to encode sequence: %w", err)
	}

	query := `
		INSERT INTO campaigns (id, name, sequence, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		campaign.ID,
		campaign.Name,
		string(sequence),
		campaign.Status,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

// GetCampaign retrieves a campaign by ID
func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*engine.CampaignDefinition, error) {
	query := `
		SELECT id, name, sequence, status, created_at, updated_at
		FROM campaigns
		WHERE id = ?
	`

	return s.scanCampaign(s.db.QueryRowContext(ctx, query, id), id)
}

// ListCampaigns returns all campaign definitions
func (s *SQLiteStore) ListCampaigns(ctx context.Context) ([]*engine.CampaignDefinition, error) {
	query := `
		SELECT id, name, sequence, status, created_at, updated_at
		FROM campaigns
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*engine.CampaignDefinition{}
	for rows.Next() {
		campaign := &engine.CampaignDefinition{}
		var sequence string
		err := rows.Scan(
			&campaign.ID,
			&campaign.Name,
			&sequence,
			&campaign.Status,
			&campaign.CreatedAt,
			&campaign.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		if err := json.Unmarshal([]byte(sequence), &campaign.Sequence); err != nil {
			return nil, fmt.Errorf("failed to decode sequence: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, nil
}

// UpdateCampaignStatus persists a campaign status change
func (s *SQLiteStore) UpdateCampaignStatus(ctx context.Context, id string, status engine.CampaignStatus) error {
	query := `UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return engine.NewPermanentError("campaign not found", nil).
			WithCode(engine.ErrCodeNotFound).WithResource(id)
	}

	return nil
}

// DeleteCampaign removes a campaign and all of its memberships
func (s *SQLiteStore) DeleteCampaign(ctx context.Context, id string) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE campaign_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return engine.NewPermanentError("campaign not found", nil).
			WithCode(engine.ErrCodeNotFound).WithResource(id)
	}

	return tx.Commit()
}

// CreateMembership stores a new membership record
func (s *SQLiteStore) CreateMembership(ctx context.Context, m *engine.CampaignMembership) error {
	query := `
		INSERT INTO memberships (
			campaign_id, prospect_id, prospect_name, prospect_email,
			current_step_index, status, send_attempts, started_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		m.CampaignID,
		m.ProspectID,
		m.ProspectName,
		m.ProspectEmail,
		m.CurrentStepIndex,
		m.Status,
		m.SendAttempts,
		m.StartedAt,
		m.CompletedAt,
		m.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "constraint failed") {
			return engine.NewConflictError("prospect already enrolled in campaign", err).
				WithCode(engine.ErrCodeDuplicateMembership).WithResource(m.ProspectID)
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}

	return nil
}

// GetMembership retrieves a membership by its (campaign, prospect) key
func (s *SQLiteStore) GetMembership(ctx context.Context, key engine.MembershipKey) (*engine.CampaignMembership, error) {
	query := `
		SELECT campaign_id, prospect_id, prospect_name, prospect_email,
		       current_step_index, status, send_attempts, started_at, completed_at, updated_at
		FROM memberships
		WHERE campaign_id = ? AND prospect_id = ?
	`

	m := &engine.CampaignMembership{}
	err := s.db.QueryRowContext(ctx, query, key.CampaignID, key.ProspectID).Scan(
		&m.CampaignID,
		&m.ProspectID,
		&m.ProspectName,
		&m.ProspectEmail,
		&m.CurrentStepIndex,
		&m.Status,
		&m.SendAttempts,
		&m.StartedAt,
		&m.CompletedAt,
		&m.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, engine.NewPermanentError("membership not found", nil).
			WithCode(engine.ErrCodeMembershipNotFound).WithResource(key.ProspectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// ListMemberships returns all memberships for a campaign
func (s *SQLiteStore) ListMemberships(ctx context.Context, campaignID string) ([]*engine.CampaignMembership, error) {
	query := `
		SELECT campaign_id, prospect_id, prospect_name, prospect_email,
		       current_step_index, status, send_attempts, started_at, completed_at, updated_at
		FROM memberships
		WHERE campaign_id = ?
		ORDER BY started_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	return s.collectMemberships(rows)
}

// ListActiveMemberships returns all non-completed memberships whose campaign
// has the given status
func (s *SQLiteStore) ListActiveMemberships(ctx context.Context, status engine.CampaignStatus) ([]*engine.CampaignMembership, error) {
	query := `
		SELECT m.campaign_id, m.prospect_id, m.prospect_name, m.prospect_email,
		       m.current_step_index, m.status, m.send_attempts, m.started_at, m.completed_at, m.updated_at
		FROM memberships m
		JOIN campaigns c ON c.id = m.campaign_id
		WHERE c.status = ? AND m.status != 'completed'
		ORDER BY m.started_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list active memberships: %w", err)
	}
	defer rows.Close()

	return s.collectMemberships(rows)
}

// GetProspect resolves prospect contact data from the most recent
// enrollment carrying it
func (s *SQLiteStore) GetProspect(ctx context.Context, id string) (*engine.Prospect, error) {
	query := `
		SELECT prospect_id, prospect_name, prospect_email
		FROM memberships
		WHERE prospect_id = ?
		ORDER BY started_at DESC
		LIMIT 1
	`

	p := &engine.Prospect{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Email)

	if err == sql.ErrNoRows {
		return nil, engine.NewPermanentError("prospect not found", nil).
			WithCode(engine.ErrCodeNotFound).WithResource(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prospect: %w", err)
	}

	return p, nil
}

// UpdateMembership persists progress fields for an existing membership
func (s *SQLiteStore) UpdateMembership(ctx context.Context, m *engine.CampaignMembership) error {
	query := `
		UPDATE memberships
		SET current_step_index = ?, status = ?, send_attempts = ?, completed_at = ?, updated_at = ?
		WHERE campaign_id = ? AND prospect_id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		m.CurrentStepIndex,
		m.Status,
		m.SendAttempts,
		m.CompletedAt,
		m.UpdatedAt,
		m.CampaignID,
		m.ProspectID,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return engine.NewPermanentError("membership not found", nil).
			WithCode(engine.ErrCodeMembershipNotFound).WithResource(m.ProspectID)
	}

	return nil
}

// DeleteMembership removes a membership; absent rows are a no-op
func (s *SQLiteStore) DeleteMembership(ctx context.Context, key engine.MembershipKey) error {
	query := `DELETE FROM memberships WHERE campaign_id = ? AND prospect_id = ?`

	if _, err := s.db.ExecContext(ctx, query, key.CampaignID, key.ProspectID); err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	return nil
}

// CreateDeal stores a new deal record
func (s *SQLiteStore) CreateDeal(ctx context.Context, deal *engine.Deal) error {
	query := `
		INSERT INTO deals (
			id, prospect_id, name, stage, value, health_score,
			last_contact_at, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		deal.ID,
		deal.ProspectID,
		deal.Name,
		deal.Stage,
		deal.Value,
		deal.HealthScore,
		deal.LastContactAt,
		deal.Notes,
		deal.CreatedAt,
		deal.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create deal: %w", err)
	}

	return nil
}

// GetDeal retrieves a deal by ID
func (s *SQLiteStore) GetDeal(ctx context.Context, id string) (*engine.Deal, error) {
	query := `
		SELECT id, prospect_id, name, stage, value, health_score,
		       last_contact_at, notes, created_at, updated_at
		FROM deals
		WHERE id = ?
	`

	deal := &engine.Deal{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&deal.ID,
		&deal.ProspectID,
		&deal.Name,
		&deal.Stage,
		&deal.Value,
		&deal.HealthScore,
		&deal.LastContactAt,
		&deal.Notes,
		&deal.CreatedAt,
		&deal.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, engine.NewPermanentError("deal not found", nil).
			WithCode(engine.ErrCodeNotFound).WithResource(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	return deal, nil
}

// ListDeals returns all deals, optionally filtered by stage
func (s *SQLiteStore) ListDeals(ctx context.Context, stage *engine.StageID) ([]*engine.Deal, error) {
	query := `
		SELECT id, prospect_id, name, stage, value, health_score,
		       last_contact_at, notes, created_at, updated_at
		FROM deals
		WHERE (? IS NULL OR stage = ?)
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, stage, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	deals := []*engine.Deal{}
	for rows.Next() {
		deal := &engine.Deal{}
		err := rows.Scan(
			&deal.ID,
			&deal.ProspectID,
			&deal.Name,
			&deal.Stage,
			&deal.Value,
			&deal.HealthScore,
			&deal.LastContactAt,
			&deal.Notes,
			&deal.CreatedAt,
			&deal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, deal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deals: %w", err)
	}

	return deals, nil
}

// UpdateDeal persists field and stage changes for an existing deal
func (s *SQLiteStore) UpdateDeal(ctx context.Context, deal *engine.Deal) error {
	query := `
		UPDATE deals
		SET prospect_id = ?, name = ?, stage = ?, value = ?, health_score = ?,
		    last_contact_at = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		deal.ProspectID,
		deal.Name,
		deal.Stage,
		deal.Value,
		deal.HealthScore,
		deal.LastContactAt,
		deal.Notes,
		deal.UpdatedAt,
		deal.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update deal: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return engine.NewPermanentError("deal not found", nil).
			WithCode(engine.ErrCodeNotFound).WithResource(deal.ID)
	}

	return nil
}

// DeleteDeal removes a deal; absent rows are a no-op
func (s *SQLiteStore) DeleteDeal(ctx context.Context, id string) error {
	query := `DELETE FROM deals WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete deal: %w", err)
	}

	return nil
}

// AppendActivity appends a new activity entry to the log
func (s *SQLiteStore) AppendActivity(ctx context.Context, activity *engine.Activity) error {
	query := `
		INSERT INTO activities (type, level, campaign_id, prospect_id, step_index, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		activity.Type,
		activity.Level,
		nullable(activity.CampaignID),
		nullable(activity.ProspectID),
		activity.StepIndex,
		activity.Message,
		activity.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}

	return nil
}

// ListActivities retrieves activity entries with optional filters and pagination
func (s *SQLiteStore) ListActivities(ctx context.Context, campaignID *string, level *string, limit, offset int) ([]*engine.Activity, error) {
	query := `
		SELECT type, level, campaign_id, prospect_id, step_index, message, timestamp
		FROM activities
		WHERE (? IS NULL OR campaign_id = ?)
		  AND (? IS NULL OR level = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, campaignID, campaignID, level, level, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []*engine.Activity{}
	for rows.Next() {
		activity := &engine.Activity{}
		var campaign, prospect sql.NullString
		err := rows.Scan(
			&activity.Type,
			&activity.Level,
			&campaign,
			&prospect,
			&activity.StepIndex,
			&activity.Message,
			&activity.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activity.CampaignID = campaign.String
		activity.ProspectID = prospect.String
		activities = append(activities, activity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}

	return activities, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// scanCampaign scans a single campaign row, decoding the sequence blob.
func (s *SQLiteStore) scanCampaign(row *sql.Row, id string) (*engine.CampaignDefinition, error) {
	campaign := &engine.CampaignDefinition{}
	var sequence string
	err := row.Scan(
		&campaign.ID,
		&campaign.Name,
		&sequence,
		&campaign.Status,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, engine.NewPermanentError("campaign not found", nil).
			WithCode(engine.ErrCodeNotFound).WithResource(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	if err := json.Unmarshal([]byte(sequence), &campaign.Sequence); err != nil {
		return nil, fmt.Errorf("failed to decode sequence: %w", err)
	}

	return campaign, nil
}

// collectMemberships drains a membership result set.
func (s *SQLiteStore) collectMemberships(rows *sql.Rows) ([]*engine.CampaignMembership, error) {
	memberships := []*engine.CampaignMembership{}
	for rows.Next() {
		m := &engine.CampaignMembership{}
		err := rows.Scan(
			&m.CampaignID,
			&m.ProspectID,
			&m.ProspectName,
			&m.ProspectEmail,
			&m.CurrentStepIndex,
			&m.Status,
			&m.SendAttempts,
			&m.StartedAt,
			&m.CompletedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}

	return memberships, nil
}

// nullable maps an empty string to NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
