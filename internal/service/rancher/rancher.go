// internal/service/rancher/rancher.go
package rancher

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pasturelink-service/internal/domain/rancher"
	xerrors "pasturelink-service/internal/pkg/errors"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// onboardingOrder is the forward progression of onboarding stages.
var onboardingOrder = map[rancher.OnboardingStatus]int{
	rancher.OnboardingDocsSent:             1,
	rancher.OnboardingAgreementSigned:      2,
	rancher.OnboardingVerificationComplete: 3,
	rancher.OnboardingLive:                 4,
}

// RancherService handles rancher applications and onboarding. Capacity
// counter mutations are not done here; those belong to the ledger.
type RancherService struct {
	ranchers rancher.Repository
	logger   *zap.Logger
}

func NewRancherService(ranchers rancher.Repository, logger *zap.Logger) *RancherService {
	return &RancherService{
		ranchers: ranchers,
		logger:   logger,
	}
}

// SubmitApplication registers a rancher who applied to sell. New ranchers
// start pending onboarding with docs sent and cannot be matched until they
// go live.
func (s *RancherService) SubmitApplication(ctx context.Context, req *rancher.ApplicationRequest) (*rancher.Rancher, error) {
	state := strings.ToUpper(strings.TrimSpace(req.State))
	if len(state) != 2 {
		return nil, fmt.Errorf("state must be a two-letter code: %w", xerrors.ErrInvalidInput)
	}

	maxActive := req.MaxActiveReferrals
	if maxActive <= 0 {
		maxActive = rancher.DefaultMaxActiveReferrals
	}

	additional := make([]string, 0, len(req.AdditionalStates))
	for _, st := range req.AdditionalStates {
		st = strings.ToUpper(strings.TrimSpace(st))
		if len(st) == 2 && st != state {
			additional = append(additional, st)
		}
	}

	r := &rancher.Rancher{
		RanchName:          strings.TrimSpace(req.RanchName),
		ContactName:        strings.TrimSpace(req.ContactName),
		Email:              strings.TrimSpace(req.Email),
		Phone:              sql.NullString{String: req.Phone, Valid: req.Phone != ""},
		State:              state,
		AdditionalStates:   pq.StringArray(additional),
		ActiveStatus:       rancher.StatusPendingOnboarding,
		OnboardingStatus:   rancher.OnboardingDocsSent,
		MaxActiveReferrals: maxActive,
		PerformanceScore:   rancher.DefaultPerformanceScore,
	}

	if err := s.ranchers.Create(ctx, r); err != nil {
		s.logger.Error("failed to create rancher", zap.Error(err))
		return nil, fmt.Errorf("failed to create rancher: %w", err)
	}

	s.logger.Info("rancher application received",
		zap.Int64("rancher_id", r.ID),
		zap.String("ranch_name", r.RanchName),
		zap.String("state", r.State),
	)

	return r, nil
}

// AdvanceOnboarding moves a rancher forward through onboarding. Reaching
// agreement_signed records the signature; reaching live activates the
// rancher for matching.
func (s *RancherService) AdvanceOnboarding(ctx context.Context, id int64, to rancher.OnboardingStatus) (*rancher.Rancher, error) {
	rank, ok := onboardingOrder[to]
	if !ok {
		return nil, fmt.Errorf("unknown onboarding status %q: %w", to, xerrors.ErrInvalidInput)
	}

	r, err := s.ranchers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if current, ok := onboardingOrder[r.OnboardingStatus]; ok && rank <= current {
		return nil, fmt.Errorf("rancher %d is already %s, onboarding only moves forward: %w",
			id, r.OnboardingStatus, xerrors.ErrInvalidTransition)
	}

	agreementSigned := r.AgreementSigned || rank >= onboardingOrder[rancher.OnboardingAgreementSigned]

	if err := s.ranchers.UpdateOnboarding(ctx, id, to, agreementSigned); err != nil {
		return nil, fmt.Errorf("failed to update onboarding: %w", err)
	}

	if to == rancher.OnboardingLive {
		if err := s.ranchers.UpdateActiveStatus(ctx, id, rancher.StatusActive); err != nil {
			return nil, fmt.Errorf("failed to activate rancher: %w", err)
		}
	}

	s.logger.Info("rancher onboarding advanced",
		zap.Int64("rancher_id", id),
		zap.String("onboarding_status", string(to)),
	)

	return s.ranchers.FindByID(ctx, id)
}

// SetActiveStatus pauses or resumes a rancher. Resuming requires the
// agreement to be signed and onboarding to be complete.
func (s *RancherService) SetActiveStatus(ctx context.Context, id int64, status rancher.ActiveStatus) (*rancher.Rancher, error) {
	r, err := s.ranchers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if status == rancher.StatusActive {
		if !r.AgreementSigned {
			return nil, fmt.Errorf("rancher %d has not signed the agreement: %w", id, xerrors.ErrInvalidTransition)
		}
		if r.OnboardingStatus != "" && r.OnboardingStatus != rancher.OnboardingLive {
			return nil, fmt.Errorf("rancher %d has not completed onboarding: %w", id, xerrors.ErrInvalidTransition)
		}
	}

	if err := s.ranchers.UpdateActiveStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to update active status: %w", err)
	}

	s.logger.Info("rancher active status updated",
		zap.Int64("rancher_id", id),
		zap.String("active_status", string(status)),
	)

	return s.ranchers.FindByID(ctx, id)
}

// SetCapacityLimit adjusts a rancher's maximum active referrals. The limit
// can never drop below the current active count, which would break the
// ledger invariant.
func (s *RancherService) SetCapacityLimit(ctx context.Context, id int64, max int) (*rancher.Rancher, error) {
	if max < 1 {
		return nil, fmt.Errorf("max active referrals must be at least 1: %w", xerrors.ErrInvalidInput)
	}

	r, err := s.ranchers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if max < r.CurrentActiveReferrals {
		return nil, fmt.Errorf("max active referrals %d is below the current active count %d: %w",
			max, r.CurrentActiveReferrals, xerrors.ErrConflict)
	}

	if err := s.ranchers.UpdateMaxActive(ctx, id, max); err != nil {
		return nil, fmt.Errorf("failed to update capacity limit: %w", err)
	}

	s.logger.Info("rancher capacity limit updated",
		zap.Int64("rancher_id", id),
		zap.Int("max_active_referrals", max),
	)

	return s.ranchers.FindByID(ctx, id)
}

// Get retrieves a rancher by ID.
func (s *RancherService) Get(ctx context.Context, id int64) (*rancher.Rancher, error) {
	return s.ranchers.FindByID(ctx, id)
}

// List retrieves ranchers with filters.
func (s *RancherService) List(ctx context.Context, filters *rancher.ListFilters) ([]rancher.Rancher, int64, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	return s.ranchers.List(ctx, filters)
}
