// internal/repository/postgres/referral_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pasturelink-service/internal/domain/referral"
	xerrors "pasturelink-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReferralRepository struct {
	db *pgxpool.Pool
}

func NewReferralRepository(db *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{db: db}
}

const referralColumns = `
	id, reference, buyer_id, buyer_name, buyer_email, buyer_phone, buyer_state,
	order_type, budget_band, intent_score, intent_class, notes,
	suggested_rancher_id, assigned_rancher_id, status,
	sale_amount, commission_due, commission_paid,
	created_at, approved_at, intro_sent_at, closed_at, updated_at
`

// Create inserts a new referral
func (r *ReferralRepository) Create(ctx context.Context, ref *referral.Referral) error {
	query := `
		INSERT INTO referrals (
			reference, buyer_id, buyer_name, buyer_email, buyer_phone, buyer_state,
			order_type, budget_band, intent_score, intent_class, notes,
			suggested_rancher_id, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		ref.Reference, ref.BuyerID, ref.BuyerName, ref.BuyerEmail, ref.BuyerPhone,
		ref.BuyerState, ref.OrderType, ref.BudgetBand, ref.IntentScore,
		ref.IntentClass, ref.Notes, ref.SuggestedRancherID, ref.Status,
	).Scan(&ref.ID, &ref.CreatedAt, &ref.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create referral: %w", err)
	}

	return nil
}

// FindByID retrieves a referral by ID
func (r *ReferralRepository) FindByID(ctx context.Context, id int64) (*referral.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1`

	ref, err := r.scanReferral(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find referral: %w", err)
	}

	return ref, nil
}

// FindByReference retrieves a referral by its public reference
func (r *ReferralRepository) FindByReference(ctx context.Context, reference string) (*referral.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE reference = $1`

	ref, err := r.scanReferral(r.db.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find referral: %w", err)
	}

	return ref, nil
}

// Update persists the mutable referral fields
func (r *ReferralRepository) Update(ctx context.Context, ref *referral.Referral) error {
	query := `
		UPDATE referrals
		SET notes = $2, suggested_rancher_id = $3, assigned_rancher_id = $4,
		    status = $5, sale_amount = $6, commission_due = $7, commission_paid = $8,
		    approved_at = $9, intro_sent_at = $10, closed_at = $11, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(
		ctx, query,
		ref.ID, ref.Notes, ref.SuggestedRancherID, ref.AssignedRancherID,
		ref.Status, ref.SaleAmount, ref.CommissionDue, ref.CommissionPaid,
		ref.ApprovedAt, ref.IntroSentAt, ref.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update referral: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// List retrieves referrals with filters
func (r *ReferralRepository) List(ctx context.Context, filters *referral.ListFilters) ([]referral.Referral, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filters.Status)
		argPos++
	}
	if filters.RancherID != 0 {
		conditions = append(conditions, fmt.Sprintf("assigned_rancher_id = $%d", argPos))
		args = append(args, filters.RancherID)
		argPos++
	}
	if filters.BuyerID != 0 {
		conditions = append(conditions, fmt.Sprintf("buyer_id = $%d", argPos))
		args = append(args, filters.BuyerID)
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM referrals WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count referrals: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM referrals WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		referralColumns, where, argPos, argPos+1,
	)
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list referrals: %w", err)
	}
	defer rows.Close()

	referrals := []referral.Referral{}
	for rows.Next() {
		ref, err := r.scanReferral(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan referral: %w", err)
		}
		referrals = append(referrals, *ref)
	}

	return referrals, total, rows.Err()
}

// GetStats retrieves pipeline statistics
func (r *ReferralRepository) GetStats(ctx context.Context) (*referral.PipelineStats, error) {
	stats := &referral.PipelineStats{
		ByStatus: map[string]int64{},
	}

	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM referrals GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan referral stats: %w", err)
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get referral stats: %w", err)
	}

	query := `
		SELECT
			COALESCE(SUM(commission_due) FILTER (WHERE NOT commission_paid), 0),
			COALESCE(SUM(commission_due) FILTER (WHERE commission_paid), 0)
		FROM referrals
		WHERE status = 'closed_won'
	`
	err = r.db.QueryRow(ctx, query).Scan(&stats.TotalCommissionDue, &stats.TotalCommissionPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to get commission totals: %w", err)
	}

	return stats, nil
}

func (r *ReferralRepository) scanReferral(row pgx.Row) (*referral.Referral, error) {
	var ref referral.Referral
	err := row.Scan(
		&ref.ID, &ref.Reference, &ref.BuyerID, &ref.BuyerName, &ref.BuyerEmail,
		&ref.BuyerPhone, &ref.BuyerState, &ref.OrderType, &ref.BudgetBand,
		&ref.IntentScore, &ref.IntentClass, &ref.Notes,
		&ref.SuggestedRancherID, &ref.AssignedRancherID, &ref.Status,
		&ref.SaleAmount, &ref.CommissionDue, &ref.CommissionPaid,
		&ref.CreatedAt, &ref.ApprovedAt, &ref.IntroSentAt, &ref.ClosedAt, &ref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
