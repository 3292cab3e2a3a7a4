// internal/service/referral/lifecycle.go
package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pasturelink-service/internal/domain/buyer"
	"pasturelink-service/internal/domain/rancher"
	"pasturelink-service/internal/domain/referral"
	"pasturelink-service/internal/pkg/capacity"
	xerrors "pasturelink-service/internal/pkg/errors"
	"pasturelink-service/internal/pkg/metrics"
	"pasturelink-service/internal/service/matching"
	"pasturelink-service/internal/service/notification"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LifecycleService owns every referral state transition. Status is never
// written outside this service, and every capacity mutation goes through the
// ledger, so the transition table and the counter bounds hold no matter
// which boundary (intake, operator action, chat callback) drives a change.
type LifecycleService struct {
	referrals referral.Repository
	ranchers  rancher.Repository
	buyers    buyer.Repository
	ledger    *capacity.Ledger
	notifier  notification.Publisher
	logger    *zap.Logger

	// When true, closing a referral frees the assigned rancher's capacity
	// slot. The default keeps closed referrals counted against capacity
	// ("lifetime relationship slots").
	releaseOnClose bool
}

func NewLifecycleService(
	referrals referral.Repository,
	ranchers rancher.Repository,
	buyers buyer.Repository,
	ledger *capacity.Ledger,
	notifier notification.Publisher,
	releaseOnClose bool,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		referrals:      referrals,
		ranchers:       ranchers,
		buyers:         buyers,
		ledger:         ledger,
		notifier:       notifier,
		releaseOnClose: releaseOnClose,
		logger:         logger,
	}
}

// Create opens a referral for a qualifying buyer: the selector runs once and
// its pick is stored as a suggestion only. The capacity ledger is not
// touched until approval commits the suggestion.
func (s *LifecycleService) Create(ctx context.Context, b *buyer.Buyer) (*referral.Referral, error) {
	if b.Segment != buyer.SegmentBeefBuyer {
		return nil, fmt.Errorf("only beef buyers enter the referral pipeline: %w", xerrors.ErrInvalidInput)
	}

	population, err := s.ranchers.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rancher population: %w", err)
	}

	eligible := matching.Eligible(b.State, population)
	pick, matched := matching.Select(eligible)

	ref := &referral.Referral{
		Reference:   newReference(),
		BuyerID:     b.ID,
		BuyerName:   b.FullName,
		BuyerEmail:  b.Email,
		BuyerPhone:  b.Phone,
		BuyerState:  b.State,
		OrderType:   b.OrderType,
		BudgetBand:  b.BudgetBand,
		IntentScore: b.IntentScore,
		IntentClass: string(b.IntentClass),
		Notes:       b.Notes,
		Status:      referral.StatusPendingApproval,
	}
	if matched {
		ref.SuggestedRancherID = sql.NullInt64{Int64: pick.ID, Valid: true}
	}

	if err := s.referrals.Create(ctx, ref); err != nil {
		return nil, fmt.Errorf("failed to create referral: %w", err)
	}

	s.mirrorBuyerStatus(ctx, ref)
	metrics.ReferralsCreated.Inc()

	s.logger.Info("referral created",
		zap.String("reference", ref.Reference),
		zap.Int64("buyer_id", b.ID),
		zap.Bool("matched", matched),
		zap.Int64("suggested_rancher_id", ref.SuggestedRancherID.Int64),
	)

	return ref, nil
}

// Rematch re-runs the selector for a still-pending referral and refreshes
// the stored suggestion.
func (s *LifecycleService) Rematch(ctx context.Context, id int64) (*referral.Referral, error) {
	ref, err := s.referrals.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.Status != referral.StatusPendingApproval {
		return nil, fmt.Errorf("referral %s is %s, only pending referrals can be rematched: %w",
			ref.Reference, ref.Status, xerrors.ErrInvalidTransition)
	}

	population, err := s.ranchers.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rancher population: %w", err)
	}

	pick, matched := matching.Select(matching.Eligible(ref.BuyerState, population))
	if !matched {
		return nil, fmt.Errorf("no rancher serves %s with capacity: %w", ref.BuyerState, xerrors.ErrNoEligibleRancher)
	}

	ref.SuggestedRancherID = sql.NullInt64{Int64: pick.ID, Valid: true}
	if err := s.referrals.Update(ctx, ref); err != nil {
		return nil, fmt.Errorf("failed to update referral: %w", err)
	}

	s.logger.Info("referral rematched",
		zap.String("reference", ref.Reference),
		zap.Int64("suggested_rancher_id", pick.ID),
	)

	return ref, nil
}

// Approve commits a pending suggestion (or an operator override) to a
// rancher. Capacity is re-checked at approval time through the ledger; the
// approval and the counter claim succeed or fail together.
func (s *LifecycleService) Approve(ctx context.Context, id int64, overrideRancherID *int64) (*referral.Referral, error) {
	ref, err := s.referrals.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.Status != referral.StatusPendingApproval {
		return nil, fmt.Errorf("referral %s is already %s: %w",
			ref.Reference, ref.Status, xerrors.ErrAlreadyApproved)
	}

	rancherID := ref.SuggestedRancherID.Int64
	if overrideRancherID != nil {
		rancherID = *overrideRancherID
	}
	if rancherID == 0 {
		return nil, fmt.Errorf("referral %s has no suggested rancher and no override was given: %w",
			ref.Reference, xerrors.ErrInvalidInput)
	}

	rc, err := s.ranchers.FindByID(ctx, rancherID)
	if err != nil {
		return nil, fmt.Errorf("rancher %d: %w", rancherID, err)
	}

	current, max, err := s.ledger.Commit(ctx, rc.ID)
	if err != nil {
		if errors.Is(err, xerrors.ErrAtCapacity) {
			metrics.CapacityConflicts.Inc()
			metrics.Approvals.WithLabelValues("capacity_conflict").Inc()
			return nil, fmt.Errorf("rancher %q is at capacity (%d/%d): %w",
				rc.RanchName, current, max, xerrors.ErrAtCapacity)
		}
		metrics.Approvals.WithLabelValues("error").Inc()
		return nil, err
	}

	now := time.Now()
	ref.AssignedRancherID = sql.NullInt64{Int64: rc.ID, Valid: true}
	ref.Status = referral.StatusIntroSent
	ref.ApprovedAt = sql.NullTime{Time: now, Valid: true}
	ref.IntroSentAt = sql.NullTime{Time: now, Valid: true}

	if err := s.referrals.Update(ctx, ref); err != nil {
		// Give the slot back so the claim and the status change remain one
		// unit of work.
		if rbErr := s.ledger.Release(ctx, rc.ID); rbErr != nil {
			s.logger.Error("failed to roll back capacity claim after approve error",
				zap.Int64("rancher_id", rc.ID),
				zap.Error(rbErr),
			)
		}
		metrics.Approvals.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to update referral: %w", err)
	}

	s.mirrorBuyerStatus(ctx, ref)
	metrics.Approvals.WithLabelValues("success").Inc()
	s.publish(ctx, notification.EventReferralApproved, ref, rc, "")

	s.logger.Info("referral approved",
		zap.String("reference", ref.Reference),
		zap.Int64("rancher_id", rc.ID),
		zap.Int("active_referrals", current),
	)

	return ref, nil
}

// Reassign transfers a referral to a different rancher. The prior rancher's
// slot is released only if that rancher actually held the referral; the new
// rancher's capacity is checked before anything changes hands.
func (s *LifecycleService) Reassign(ctx context.Context, id, rancherID int64) (*referral.Referral, error) {
	ref, err := s.referrals.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.Status.Terminal() {
		return nil, fmt.Errorf("referral %s is %s and cannot be reassigned: %w",
			ref.Reference, ref.Status, xerrors.ErrInvalidTransition)
	}

	var priorID int64
	if ref.AssignedRancherID.Valid {
		priorID = ref.AssignedRancherID.Int64
	}
	if priorID == rancherID {
		return nil, fmt.Errorf("referral %s is already assigned to rancher %d: %w",
			ref.Reference, rancherID, xerrors.ErrInvalidInput)
	}

	rc, err := s.ranchers.FindByID(ctx, rancherID)
	if err != nil {
		return nil, fmt.Errorf("rancher %d: %w", rancherID, err)
	}

	current, max, err := s.ledger.Transfer(ctx, priorID, rc.ID)
	if err != nil {
		if errors.Is(err, xerrors.ErrAtCapacity) {
			metrics.CapacityConflicts.Inc()
			return nil, fmt.Errorf("rancher %q is at capacity (%d/%d): %w",
				rc.RanchName, current, max, xerrors.ErrAtCapacity)
		}
		return nil, err
	}

	now := time.Now()
	ref.AssignedRancherID = sql.NullInt64{Int64: rc.ID, Valid: true}
	ref.SuggestedRancherID = sql.NullInt64{Int64: rc.ID, Valid: true}
	ref.Status = referral.StatusIntroSent
	ref.IntroSentAt = sql.NullTime{Time: now, Valid: true}
	if !ref.ApprovedAt.Valid {
		ref.ApprovedAt = sql.NullTime{Time: now, Valid: true}
	}

	if err := s.referrals.Update(ctx, ref); err != nil {
		var rbErr error
		if priorID != 0 {
			_, _, rbErr = s.ledger.Transfer(ctx, rc.ID, priorID)
		} else {
			rbErr = s.ledger.Release(ctx, rc.ID)
		}
		if rbErr != nil {
			s.logger.Error("failed to roll back capacity transfer after reassign error",
				zap.Int64("from_rancher_id", rc.ID),
				zap.Int64("to_rancher_id", priorID),
				zap.Error(rbErr),
			)
		}
		return nil, fmt.Errorf("failed to update referral: %w", err)
	}

	s.mirrorBuyerStatus(ctx, ref)
	metrics.Reassignments.Inc()
	s.publish(ctx, notification.EventReferralReassigned, ref, rc, "")

	s.logger.Info("referral reassigned",
		zap.String("reference", ref.Reference),
		zap.Int64("from_rancher_id", priorID),
		zap.Int64("to_rancher_id", rc.ID),
	)

	return ref, nil
}

// Advance applies an operator-chosen move among the working states. The
// capacity ledger is never involved here.
func (s *LifecycleService) Advance(ctx context.Context, id int64, to referral.Status, notes string) (*referral.Referral, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", to, xerrors.ErrInvalidInput)
	}
	if to.Terminal() || to == referral.StatusPendingApproval {
		return nil, fmt.Errorf("status %s is not reachable by a status update: %w", to, xerrors.ErrInvalidTransition)
	}

	ref, err := s.referrals.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !referral.CanOperatorMove(ref.Status, to) {
		return nil, fmt.Errorf("referral %s cannot move from %s to %s: %w",
			ref.Reference, ref.Status, to, xerrors.ErrInvalidTransition)
	}

	from := ref.Status
	ref.Status = to
	appendNotes(ref, notes)

	if err := s.referrals.Update(ctx, ref); err != nil {
		return nil, fmt.Errorf("failed to update referral: %w", err)
	}

	s.mirrorBuyerStatus(ctx, ref)

	s.logger.Info("referral status advanced",
		zap.String("reference", ref.Reference),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	return ref, nil
}

// CloseWon marks the referral won with a positive sale amount and computes
// the commission due.
func (s *LifecycleService) CloseWon(ctx context.Context, id int64, saleAmount decimal.Decimal, notes string) (*referral.Referral, error) {
	if !saleAmount.IsPositive() {
		return nil, fmt.Errorf("sale amount must be positive, got %s: %w", saleAmount, xerrors.ErrInvalidInput)
	}

	ref, err := s.referrals.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !referral.Closeable(ref.Status) {
		return nil, fmt.Errorf("referral %s is %s and cannot be closed: %w",
			ref.Reference, ref.Status, xerrors.ErrInvalidTransition)
	}

	ref.SaleAmount = decimal.NullDecimal{Decimal: saleAmount, Valid: true}
	ref.CommissionDue = decimal.NullDecimal{Decimal: referral.CommissionFor(saleAmount), Valid: true}
	s.close(ref, referral.StatusClosedWon, notes)

	if err := s.referrals.Update(ctx, ref); err != nil {
		return nil, fmt.Errorf("failed to update referral: %w", err)
	}

	s.afterClose(ctx, ref, "won")

	s.logger.Info("referral closed won",
		zap.String("reference", ref.Reference),
		zap.String("sale_amount", saleAmount.String()),
		zap.String("commission_due", ref.CommissionDue.Decimal.String()),
	)

	return ref, nil
}

// CloseLost marks the referral lost.
func (s *LifecycleService) CloseLost(ctx context.Context, id int64, notes string) (*referral.Referral, error) {
	ref, err := s.referrals.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !referral.Closeable(ref.Status) {
		return nil, fmt.Errorf("referral %s is %s and cannot be closed: %w",
			ref.Reference, ref.Status, xerrors.ErrInvalidTransition)
	}

	s.close(ref, referral.StatusClosedLost, notes)

	if err := s.referrals.Update(ctx, ref); err != nil {
		return nil, fmt.Errorf("failed to update referral: %w", err)
	}

	s.afterClose(ctx, ref, "lost")

	s.logger.Info("referral closed lost", zap.String("reference", ref.Reference))

	return ref, nil
}

// Reject closes a still-pending referral as lost. No rancher was ever
// committed, so the capacity ledger is untouched.
func (s *LifecycleService) Reject(ctx context.Context, id int64, notes string) (*referral.Referral, error) {
	ref, err := s.referrals.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.Status != referral.StatusPendingApproval {
		return nil, fmt.Errorf("referral %s is %s, only pending referrals can be rejected: %w",
			ref.Reference, ref.Status, xerrors.ErrInvalidTransition)
	}

	s.close(ref, referral.StatusClosedLost, notes)

	if err := s.referrals.Update(ctx, ref); err != nil {
		return nil, fmt.Errorf("failed to update referral: %w", err)
	}

	s.mirrorBuyerStatus(ctx, ref)
	metrics.Closed.WithLabelValues("rejected").Inc()

	s.logger.Info("referral rejected", zap.String("reference", ref.Reference))

	return ref, nil
}

// MarkCommissionPaid records the payout of a won referral's commission.
func (s *LifecycleService) MarkCommissionPaid(ctx context.Context, id int64) (*referral.Referral, error) {
	ref, err := s.referrals.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.Status != referral.StatusClosedWon {
		return nil, fmt.Errorf("referral %s is %s, commission applies to won referrals only: %w",
			ref.Reference, ref.Status, xerrors.ErrInvalidTransition)
	}
	if ref.CommissionPaid {
		return nil, fmt.Errorf("commission for referral %s already paid: %w", ref.Reference, xerrors.ErrConflict)
	}

	ref.CommissionPaid = true
	if err := s.referrals.Update(ctx, ref); err != nil {
		return nil, fmt.Errorf("failed to update referral: %w", err)
	}

	s.logger.Info("commission marked paid",
		zap.String("reference", ref.Reference),
		zap.String("commission_due", ref.CommissionDue.Decimal.String()),
	)

	return ref, nil
}

// Get retrieves a referral by ID.
func (s *LifecycleService) Get(ctx context.Context, id int64) (*referral.Referral, error) {
	return s.referrals.FindByID(ctx, id)
}

// List retrieves referrals with filters.
func (s *LifecycleService) List(ctx context.Context, filters *referral.ListFilters) ([]referral.Referral, int64, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	return s.referrals.List(ctx, filters)
}

// GetStats retrieves pipeline statistics.
func (s *LifecycleService) GetStats(ctx context.Context) (*referral.PipelineStats, error) {
	return s.referrals.GetStats(ctx)
}

// ========== Helper Methods ==========

func (s *LifecycleService) close(ref *referral.Referral, to referral.Status, notes string) {
	ref.Status = to
	ref.ClosedAt = sql.NullTime{Time: time.Now(), Valid: true}
	appendNotes(ref, notes)
}

func (s *LifecycleService) afterClose(ctx context.Context, ref *referral.Referral, outcome string) {
	if s.releaseOnClose && ref.AssignedRancherID.Valid {
		if err := s.ledger.Release(ctx, ref.AssignedRancherID.Int64); err != nil {
			s.logger.Error("failed to release capacity on close",
				zap.String("reference", ref.Reference),
				zap.Int64("rancher_id", ref.AssignedRancherID.Int64),
				zap.Error(err),
			)
		}
	}

	s.mirrorBuyerStatus(ctx, ref)
	metrics.Closed.WithLabelValues(outcome).Inc()

	if ref.AssignedRancherID.Valid {
		rc, err := s.ranchers.FindByID(ctx, ref.AssignedRancherID.Int64)
		if err != nil {
			s.logger.Warn("assigned rancher not found for close notification",
				zap.Int64("rancher_id", ref.AssignedRancherID.Int64),
				zap.Error(err),
			)
			return
		}
		s.publish(ctx, notification.EventReferralClosed, ref, rc, outcome)
	}
}

// mirrorBuyerStatus keeps the buyer's referral-status mirror in step with
// the referral. The mirror is presentation state, so a failed write is
// logged rather than failing the transition.
func (s *LifecycleService) mirrorBuyerStatus(ctx context.Context, ref *referral.Referral) {
	if err := s.buyers.UpdateReferralStatus(ctx, ref.BuyerID, string(ref.Status)); err != nil {
		s.logger.Warn("failed to mirror referral status onto buyer",
			zap.Int64("buyer_id", ref.BuyerID),
			zap.String("status", string(ref.Status)),
			zap.Error(err),
		)
	}
}

func (s *LifecycleService) publish(ctx context.Context, eventType string, ref *referral.Referral, rc *rancher.Rancher, outcome string) {
	if s.notifier == nil {
		return
	}

	event := notification.Event{
		Type:     eventType,
		Referral: ref.Reference,
		Rancher: notification.RancherIdentity{
			ID:    rc.ID,
			Name:  rc.RanchName,
			State: rc.State,
		},
		Buyer: notification.BuyerIdentity{
			Name:  ref.BuyerName,
			Email: ref.BuyerEmail,
			Phone: ref.BuyerPhone.String,
		},
		OrderType:  ref.OrderType,
		BudgetBand: ref.BudgetBand,
		Notes:      ref.Notes.String,
		Outcome:    outcome,
	}
	if ref.SaleAmount.Valid {
		event.SaleAmount = ref.SaleAmount.Decimal.String()
	}

	s.notifier.Publish(ctx, event)
}

func appendNotes(ref *referral.Referral, notes string) {
	if notes == "" {
		return
	}
	if ref.Notes.Valid && ref.Notes.String != "" {
		ref.Notes.String += "\n" + notes
	} else {
		ref.Notes = sql.NullString{String: notes, Valid: true}
	}
}

func newReference() string {
	return "REF-" + ulid.Make().String()
}
