// internal/repository/postgres/buyer_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pasturelink-service/internal/domain/buyer"
	xerrors "pasturelink-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BuyerRepository struct {
	db *pgxpool.Pool
}

func NewBuyerRepository(db *pgxpool.Pool) *BuyerRepository {
	return &BuyerRepository{db: db}
}

const buyerColumns = `
	id, full_name, email, phone, state, order_type, budget_band, interests,
	notes, segment, intent_score, intent_class, referral_status,
	created_at, updated_at
`

// Create inserts a new buyer
func (r *BuyerRepository) Create(ctx context.Context, b *buyer.Buyer) error {
	query := `
		INSERT INTO buyers (
			full_name, email, phone, state, order_type, budget_band,
			interests, notes, segment, intent_score, intent_class, referral_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		b.FullName, b.Email, b.Phone, b.State, b.OrderType, b.BudgetBand,
		b.Interests, b.Notes, b.Segment, b.IntentScore, b.IntentClass, b.ReferralStatus,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create buyer: %w", err)
	}

	return nil
}

// FindByID retrieves a buyer by ID
func (r *BuyerRepository) FindByID(ctx context.Context, id int64) (*buyer.Buyer, error) {
	query := `SELECT ` + buyerColumns + ` FROM buyers WHERE id = $1`

	b, err := r.scanBuyer(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find buyer: %w", err)
	}

	return b, nil
}

// FindByEmail retrieves a buyer by email
func (r *BuyerRepository) FindByEmail(ctx context.Context, email string) (*buyer.Buyer, error) {
	query := `SELECT ` + buyerColumns + ` FROM buyers WHERE lower(email) = lower($1)`

	b, err := r.scanBuyer(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find buyer: %w", err)
	}

	return b, nil
}

// List retrieves buyers with filters
func (r *BuyerRepository) List(ctx context.Context, filters *buyer.ListFilters) ([]buyer.Buyer, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filters.Segment != "" {
		conditions = append(conditions, fmt.Sprintf("segment = $%d", argPos))
		args = append(args, filters.Segment)
		argPos++
	}
	if filters.IntentClass != "" {
		conditions = append(conditions, fmt.Sprintf("intent_class = $%d", argPos))
		args = append(args, filters.IntentClass)
		argPos++
	}
	if filters.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", argPos))
		args = append(args, strings.ToUpper(filters.State))
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM buyers WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count buyers: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM buyers WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		buyerColumns, where, argPos, argPos+1,
	)
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list buyers: %w", err)
	}
	defer rows.Close()

	buyers := []buyer.Buyer{}
	for rows.Next() {
		b, err := r.scanBuyer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan buyer: %w", err)
		}
		buyers = append(buyers, *b)
	}

	return buyers, total, rows.Err()
}

// UpdateReferralStatus updates the buyer's referral-status mirror field
func (r *BuyerRepository) UpdateReferralStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE buyers SET referral_status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update buyer referral status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// GetStats retrieves intake statistics
func (r *BuyerRepository) GetStats(ctx context.Context) (*buyer.BuyerStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE segment = 'beef_buyer'),
			COUNT(*) FILTER (WHERE segment = 'community'),
			COUNT(*) FILTER (WHERE intent_class = 'high')
		FROM buyers
	`

	var stats buyer.BuyerStats
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalBuyers, &stats.BeefBuyers, &stats.CommunityBuyers, &stats.HighIntent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get buyer stats: %w", err)
	}

	return &stats, nil
}

func (r *BuyerRepository) scanBuyer(row pgx.Row) (*buyer.Buyer, error) {
	var b buyer.Buyer
	err := row.Scan(
		&b.ID, &b.FullName, &b.Email, &b.Phone, &b.State, &b.OrderType,
		&b.BudgetBand, &b.Interests, &b.Notes, &b.Segment, &b.IntentScore,
		&b.IntentClass, &b.ReferralStatus, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
