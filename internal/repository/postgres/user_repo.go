// internal/repository/postgres/user_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow-service/internal/domain/identity"
	xerrors "leadflow-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID retrieves a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*identity.User, error) {
	query := `
		SELECT id, name, email, role, is_active, reporting_to, created_at
		FROM users
		WHERE id = $1
	`

	var u identity.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.Role, &u.IsActive, &u.ReportingTo, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &u, nil
}

// AddLeads bumps total, pending and today's counters by n. Today's counter
// restarts when day moves past the stored date.
func (r *UserRepository) AddLeads(ctx context.Context, userID int64, n int, day time.Time) error {
	query := `
		INSERT INTO user_lead_stats (user_id, total_leads, pending_leads, todays_leads, todays_date, updated_at)
		VALUES ($1, $2, $2, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_leads = user_lead_stats.total_leads + EXCLUDED.total_leads,
			pending_leads = user_lead_stats.pending_leads + EXCLUDED.pending_leads,
			todays_leads = CASE
				WHEN user_lead_stats.todays_date = EXCLUDED.todays_date
				THEN user_lead_stats.todays_leads + EXCLUDED.todays_leads
				ELSE EXCLUDED.todays_leads
			END,
			todays_date = EXCLUDED.todays_date,
			updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, userID, n, day); err != nil {
		return fmt.Errorf("failed to add leads: %w", err)
	}
	return nil
}

// ReleaseLeads lowers the pending counter by n, never below zero.
func (r *UserRepository) ReleaseLeads(ctx context.Context, userID int64, n int) error {
	query := `
		UPDATE user_lead_stats
		SET pending_leads = GREATEST(pending_leads - $2, 0), updated_at = NOW()
		WHERE user_id = $1
	`

	if _, err := r.db.Exec(ctx, query, userID, n); err != nil {
		return fmt.Errorf("failed to release leads: %w", err)
	}
	return nil
}

// LeadCounters returns the stored counters, zeroed when none exist yet.
func (r *UserRepository) LeadCounters(ctx context.Context, userID int64) (*identity.LeadCounters, error) {
	query := `
		SELECT user_id, total_leads, pending_leads, todays_leads, todays_date, updated_at
		FROM user_lead_stats
		WHERE user_id = $1
	`

	var lc identity.LeadCounters
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&lc.UserID, &lc.TotalLeads, &lc.PendingLeads, &lc.TodaysLeads, &lc.TodaysDate, &lc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &identity.LeadCounters{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lead counters: %w", err)
	}

	return &lc, nil
}
