// internal/service/intake/intake.go
package intake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pasturelink-service/internal/domain/buyer"
	"pasturelink-service/internal/domain/rancher"
	"pasturelink-service/internal/domain/referral"
	xerrors "pasturelink-service/internal/pkg/errors"
	"pasturelink-service/internal/service/intent"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Lifecycle is the slice of the lifecycle service the intake path uses.
type Lifecycle interface {
	Create(ctx context.Context, b *buyer.Buyer) (*referral.Referral, error)
}

// IntakeService handles buyer applications: scores the declared signals
// once, records the buyer, and hands qualifying beef buyers to the referral
// lifecycle.
type IntakeService struct {
	buyers    buyer.Repository
	ranchers  rancher.Repository
	lifecycle Lifecycle
	logger    *zap.Logger
}

func NewIntakeService(
	buyers buyer.Repository,
	ranchers rancher.Repository,
	lifecycle Lifecycle,
	logger *zap.Logger,
) *IntakeService {
	return &IntakeService{
		buyers:    buyers,
		ranchers:  ranchers,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// SubmitBuyer processes a buyer application end to end. Community
// applicants are recorded without matching; beef buyers with high or medium
// intent get a referral with a suggested rancher when one is available.
func (s *IntakeService) SubmitBuyer(ctx context.Context, req *buyer.ApplicationRequest) (*buyer.ApplicationResult, error) {
	state := strings.ToUpper(strings.TrimSpace(req.State))
	if len(state) != 2 {
		return nil, fmt.Errorf("state must be a two-letter code: %w", xerrors.ErrInvalidInput)
	}

	if existing, err := s.buyers.FindByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, fmt.Errorf("buyer with email %s already applied: %w", req.Email, xerrors.ErrConflict)
	}

	sig := intent.Signals{
		Interests:  req.Interests,
		OrderType:  req.OrderType,
		BudgetBand: req.BudgetBand,
		Notes:      req.Notes,
		Phone:      req.Phone,
		Email:      req.Email,
	}
	score := intent.Score(sig)
	class := intent.Classify(score)
	segment := intent.SegmentOf(req.Interests)

	b := &buyer.Buyer{
		FullName:    strings.TrimSpace(req.FullName),
		Email:       strings.TrimSpace(req.Email),
		Phone:       sql.NullString{String: req.Phone, Valid: req.Phone != ""},
		State:       state,
		OrderType:   strings.ToLower(req.OrderType),
		BudgetBand:  req.BudgetBand,
		Interests:   pq.StringArray(req.Interests),
		Notes:       sql.NullString{String: req.Notes, Valid: req.Notes != ""},
		Segment:     segment,
		IntentScore: score,
		IntentClass: class,
	}

	switch {
	case segment == buyer.SegmentCommunity:
		b.ReferralStatus = buyer.StandingCommunity
	default:
		b.ReferralStatus = buyer.StandingUnmatched
	}

	if err := s.buyers.Create(ctx, b); err != nil {
		s.logger.Error("failed to create buyer", zap.Error(err))
		return nil, fmt.Errorf("failed to create buyer: %w", err)
	}

	result := &buyer.ApplicationResult{
		BuyerID:     b.ID,
		Segment:     segment,
		IntentScore: score,
		IntentClass: class,
	}

	// Matching runs only for auto-approved beef buyers. Low-intent beef
	// buyers wait for manual review and stay unmatched.
	if segment != buyer.SegmentBeefBuyer || class == buyer.IntentLow {
		s.logger.Info("buyer recorded without matching",
			zap.Int64("buyer_id", b.ID),
			zap.String("segment", string(segment)),
			zap.String("intent_class", string(class)),
		)
		return result, nil
	}

	ref, err := s.lifecycle.Create(ctx, b)
	if err != nil {
		s.logger.Error("failed to create referral for buyer",
			zap.Int64("buyer_id", b.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create referral: %w", err)
	}

	result.ReferralID = ref.ID
	result.ReferralRef = ref.Reference
	if ref.SuggestedRancherID.Valid {
		rc, err := s.ranchers.FindByID(ctx, ref.SuggestedRancherID.Int64)
		if err != nil {
			s.logger.Warn("suggested rancher not found after match",
				zap.Int64("rancher_id", ref.SuggestedRancherID.Int64),
				zap.Error(err),
			)
		} else {
			result.Matched = true
			result.SuggestedRancher = &buyer.SuggestedRancher{
				ID:    rc.ID,
				Name:  rc.RanchName,
				State: rc.State,
			}
		}
	}

	s.logger.Info("buyer application processed",
		zap.Int64("buyer_id", b.ID),
		zap.Int("intent_score", score),
		zap.Bool("matched", result.Matched),
	)

	return result, nil
}

// GetBuyer retrieves a buyer by ID.
func (s *IntakeService) GetBuyer(ctx context.Context, id int64) (*buyer.Buyer, error) {
	return s.buyers.FindByID(ctx, id)
}

// ListBuyers retrieves buyers with filters.
func (s *IntakeService) ListBuyers(ctx context.Context, filters *buyer.ListFilters) ([]buyer.Buyer, int64, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	return s.buyers.List(ctx, filters)
}

// GetBuyerStats retrieves intake statistics.
func (s *IntakeService) GetBuyerStats(ctx context.Context) (*buyer.BuyerStats, error) {
	return s.buyers.GetStats(ctx)
}
