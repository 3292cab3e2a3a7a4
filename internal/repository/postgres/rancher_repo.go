// internal/repository/postgres/rancher_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pasturelink-service/internal/domain/rancher"
	xerrors "pasturelink-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RancherRepository struct {
	db *pgxpool.Pool
}

func NewRancherRepository(db *pgxpool.Pool) *RancherRepository {
	return &RancherRepository{db: db}
}

// Absent limits and scores fall back to their defaults here, once, so every
// caller sees a fully-populated record.
var rancherColumns = fmt.Sprintf(`
	id, ranch_name, contact_name, email, phone, state, additional_states,
	active_status, agreement_signed, COALESCE(onboarding_status, ''),
	current_active_referrals,
	COALESCE(NULLIF(max_active_referrals, 0), %d),
	COALESCE(NULLIF(performance_score, 0), %d),
	last_assigned_at, created_at, updated_at
`, rancher.DefaultMaxActiveReferrals, rancher.DefaultPerformanceScore)

// Create inserts a new rancher
func (r *RancherRepository) Create(ctx context.Context, rc *rancher.Rancher) error {
	query := `
		INSERT INTO ranchers (
			ranch_name, contact_name, email, phone, state, additional_states,
			active_status, agreement_signed, onboarding_status,
			current_active_referrals, max_active_referrals, performance_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		rc.RanchName, rc.ContactName, rc.Email, rc.Phone, rc.State, rc.AdditionalStates,
		rc.ActiveStatus, rc.AgreementSigned, rc.OnboardingStatus,
		rc.MaxActiveReferrals, rc.PerformanceScore,
	).Scan(&rc.ID, &rc.CreatedAt, &rc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create rancher: %w", err)
	}

	return nil
}

// FindByID retrieves a rancher by ID
func (r *RancherRepository) FindByID(ctx context.Context, id int64) (*rancher.Rancher, error) {
	query := `SELECT ` + rancherColumns + ` FROM ranchers WHERE id = $1`

	rc, err := r.scanRancher(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find rancher: %w", err)
	}

	return rc, nil
}

// FindAll retrieves the full rancher population for matching
func (r *RancherRepository) FindAll(ctx context.Context) ([]rancher.Rancher, error) {
	query := `SELECT ` + rancherColumns + ` FROM ranchers ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranchers: %w", err)
	}
	defer rows.Close()

	ranchers := []rancher.Rancher{}
	for rows.Next() {
		rc, err := r.scanRancher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rancher: %w", err)
		}
		ranchers = append(ranchers, *rc)
	}

	return ranchers, rows.Err()
}

// List retrieves ranchers with filters
func (r *RancherRepository) List(ctx context.Context, filters *rancher.ListFilters) ([]rancher.Rancher, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filters.State != "" {
		conditions = append(conditions, fmt.Sprintf("(state = $%d OR $%d = ANY(additional_states))", argPos, argPos))
		args = append(args, strings.ToUpper(filters.State))
		argPos++
	}
	if filters.ActiveStatus != "" {
		conditions = append(conditions, fmt.Sprintf("active_status = $%d", argPos))
		args = append(args, filters.ActiveStatus)
		argPos++
	}
	if filters.MatchableOnly {
		conditions = append(conditions,
			"active_status = 'active'",
			"agreement_signed = true",
			"(onboarding_status IS NULL OR onboarding_status = '' OR onboarding_status = 'live')",
		)
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM ranchers WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ranchers: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM ranchers WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		rancherColumns, where, argPos, argPos+1,
	)
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ranchers: %w", err)
	}
	defer rows.Close()

	ranchers := []rancher.Rancher{}
	for rows.Next() {
		rc, err := r.scanRancher(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan rancher: %w", err)
		}
		ranchers = append(ranchers, *rc)
	}

	return ranchers, total, rows.Err()
}

// UpdateActiveStatus updates a rancher's active status
func (r *RancherRepository) UpdateActiveStatus(ctx context.Context, id int64, status rancher.ActiveStatus) error {
	query := `UPDATE ranchers SET active_status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update active status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdateOnboarding updates a rancher's onboarding stage and agreement flag
func (r *RancherRepository) UpdateOnboarding(ctx context.Context, id int64, status rancher.OnboardingStatus, agreementSigned bool) error {
	query := `
		UPDATE ranchers
		SET onboarding_status = $2, agreement_signed = $3, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, status, agreementSigned)
	if err != nil {
		return fmt.Errorf("failed to update onboarding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdateMaxActive updates a rancher's capacity limit
func (r *RancherRepository) UpdateMaxActive(ctx context.Context, id int64, max int) error {
	query := `UPDATE ranchers SET max_active_referrals = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, max)
	if err != nil {
		return fmt.Errorf("failed to update capacity limit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// IncrementActive claims one active-referral slot. The write commits only
// while the counter has headroom; a failed guard returns the untouched
// counters with ok=false.
func (r *RancherRepository) IncrementActive(ctx context.Context, id int64) (current, max int, ok bool, err error) {
	query := `
		UPDATE ranchers
		SET current_active_referrals = current_active_referrals + 1,
		    last_assigned_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND current_active_referrals < max_active_referrals
		RETURNING current_active_referrals, max_active_referrals
	`

	err = r.db.QueryRow(ctx, query, id).Scan(&current, &max)
	if err == nil {
		return current, max, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, false, fmt.Errorf("failed to increment active referrals: %w", err)
	}

	// Guard failed or the rancher does not exist; re-read to tell which.
	rc, ferr := r.FindByID(ctx, id)
	if ferr != nil {
		return 0, 0, false, ferr
	}
	return rc.CurrentActiveReferrals, rc.MaxActiveReferrals, false, nil
}

// DecrementActive frees one active-referral slot, never going below zero.
func (r *RancherRepository) DecrementActive(ctx context.Context, id int64) (current int, ok bool, err error) {
	query := `
		UPDATE ranchers
		SET current_active_referrals = current_active_referrals - 1,
		    updated_at = NOW()
		WHERE id = $1 AND current_active_referrals > 0
		RETURNING current_active_referrals
	`

	err = r.db.QueryRow(ctx, query, id).Scan(&current)
	if err == nil {
		return current, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to decrement active referrals: %w", err)
	}

	rc, ferr := r.FindByID(ctx, id)
	if ferr != nil {
		return 0, false, ferr
	}
	return rc.CurrentActiveReferrals, false, nil
}

func (r *RancherRepository) scanRancher(row pgx.Row) (*rancher.Rancher, error) {
	var rc rancher.Rancher
	err := row.Scan(
		&rc.ID, &rc.RanchName, &rc.ContactName, &rc.Email, &rc.Phone, &rc.State,
		&rc.AdditionalStates, &rc.ActiveStatus, &rc.AgreementSigned, &rc.OnboardingStatus,
		&rc.CurrentActiveReferrals, &rc.MaxActiveReferrals, &rc.PerformanceScore,
		&rc.LastAssignedAt, &rc.CreatedAt, &rc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}
