// internal/service/referral/lifecycle_test.go
package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pasturelink-service/internal/domain/buyer"
	"pasturelink-service/internal/domain/rancher"
	"pasturelink-service/internal/domain/referral"
	"pasturelink-service/internal/pkg/capacity"
	xerrors "pasturelink-service/internal/pkg/errors"
	"pasturelink-service/internal/service/notification"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ==========================
// In-memory fakes
// ==========================

type memBuyers struct {
	mu     sync.Mutex
	byID   map[int64]*buyer.Buyer
	nextID int64
}

func newMemBuyers() *memBuyers {
	return &memBuyers{byID: map[int64]*buyer.Buyer{}}
}

func (m *memBuyers) Create(_ context.Context, b *buyer.Buyer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b.ID = m.nextID
	b.CreatedAt = time.Now()
	cp := *b
	m.byID[b.ID] = &cp
	return nil
}

func (m *memBuyers) FindByID(_ context.Context, id int64) (*buyer.Buyer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBuyers) FindByEmail(_ context.Context, email string) (*buyer.Buyer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.byID {
		if b.Email == email {
			cp := *b
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (m *memBuyers) List(_ context.Context, _ *buyer.ListFilters) ([]buyer.Buyer, int64, error) {
	return nil, 0, nil
}

func (m *memBuyers) UpdateReferralStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	b.ReferralStatus = status
	return nil
}

func (m *memBuyers) GetStats(_ context.Context) (*buyer.BuyerStats, error) {
	return &buyer.BuyerStats{}, nil
}

func (m *memBuyers) referralStatus(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].ReferralStatus
}

type memRanchers struct {
	mu   sync.Mutex
	byID map[int64]*rancher.Rancher
}

func newMemRanchers() *memRanchers {
	return &memRanchers{byID: map[int64]*rancher.Rancher{}}
}

func (m *memRanchers) add(r rancher.Rancher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[r.ID] = &r
}

func (m *memRanchers) Create(_ context.Context, r *rancher.Rancher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.byID) + 1)
	cp := *r
	m.byID[r.ID] = &cp
	return nil
}

func (m *memRanchers) FindByID(_ context.Context, id int64) (*rancher.Rancher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRanchers) FindAll(_ context.Context) ([]rancher.Rancher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]rancher.Rancher, 0, len(m.byID))
	for i := int64(1); i <= int64(len(m.byID))+64; i++ {
		if r, ok := m.byID[i]; ok {
			all = append(all, *r)
		}
	}
	return all, nil
}

func (m *memRanchers) List(_ context.Context, _ *rancher.ListFilters) ([]rancher.Rancher, int64, error) {
	return nil, 0, nil
}

func (m *memRanchers) UpdateActiveStatus(_ context.Context, id int64, status rancher.ActiveStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	r.ActiveStatus = status
	return nil
}

func (m *memRanchers) UpdateOnboarding(_ context.Context, id int64, status rancher.OnboardingStatus, signed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	r.OnboardingStatus = status
	r.AgreementSigned = signed
	return nil
}

func (m *memRanchers) UpdateMaxActive(_ context.Context, id int64, max int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	r.MaxActiveReferrals = max
	return nil
}

func (m *memRanchers) IncrementActive(_ context.Context, id int64) (int, int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return 0, 0, false, xerrors.ErrNotFound
	}
	if r.CurrentActiveReferrals >= r.MaxActiveReferrals {
		return r.CurrentActiveReferrals, r.MaxActiveReferrals, false, nil
	}
	r.CurrentActiveReferrals++
	r.LastAssignedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return r.CurrentActiveReferrals, r.MaxActiveReferrals, true, nil
}

func (m *memRanchers) DecrementActive(_ context.Context, id int64) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return 0, false, xerrors.ErrNotFound
	}
	if r.CurrentActiveReferrals <= 0 {
		return 0, false, nil
	}
	r.CurrentActiveReferrals--
	return r.CurrentActiveReferrals, true, nil
}

func (m *memRanchers) activeCount(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].CurrentActiveReferrals
}

func (m *memRanchers) totalActive() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, r := range m.byID {
		total += r.CurrentActiveReferrals
	}
	return total
}

type memReferrals struct {
	mu         sync.Mutex
	byID       map[int64]*referral.Referral
	nextID     int64
	failUpdate error
}

func newMemReferrals() *memReferrals {
	return &memReferrals{byID: map[int64]*referral.Referral{}}
}

func (m *memReferrals) Create(_ context.Context, ref *referral.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ref.ID = m.nextID
	ref.CreatedAt = time.Now()
	cp := *ref
	m.byID[ref.ID] = &cp
	return nil
}

func (m *memReferrals) FindByID(_ context.Context, id int64) (*referral.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.byID[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *ref
	return &cp, nil
}

func (m *memReferrals) FindByReference(_ context.Context, reference string) (*referral.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ref := range m.byID {
		if ref.Reference == reference {
			cp := *ref
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (m *memReferrals) Update(_ context.Context, ref *referral.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	if _, ok := m.byID[ref.ID]; !ok {
		return xerrors.ErrNotFound
	}
	cp := *ref
	m.byID[ref.ID] = &cp
	return nil
}

func (m *memReferrals) List(_ context.Context, _ *referral.ListFilters) ([]referral.Referral, int64, error) {
	return nil, 0, nil
}

func (m *memReferrals) GetStats(_ context.Context) (*referral.PipelineStats, error) {
	return &referral.PipelineStats{ByStatus: map[string]int64{}}, nil
}

type capturingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *capturingNotifier) Publish(_ context.Context, event notification.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *capturingNotifier) captured() []notification.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.Event{}, n.events...)
}

// ==========================
// Fixture
// ==========================

type fixture struct {
	svc       *LifecycleService
	buyers    *memBuyers
	ranchers  *memRanchers
	referrals *memReferrals
	notifier  *capturingNotifier
}

func newFixture(t *testing.T, releaseOnClose bool) *fixture {
	t.Helper()
	buyers := newMemBuyers()
	ranchers := newMemRanchers()
	referrals := newMemReferrals()
	notifier := &capturingNotifier{}
	ledger := capacity.NewLedger(ranchers, zap.NewNop())
	svc := NewLifecycleService(referrals, ranchers, buyers, ledger, notifier, releaseOnClose, zap.NewNop())
	return &fixture{
		svc:       svc,
		buyers:    buyers,
		ranchers:  ranchers,
		referrals: referrals,
		notifier:  notifier,
	}
}

func texasRancher(id int64, current int) rancher.Rancher {
	return rancher.Rancher{
		ID:                     id,
		RanchName:              fmt.Sprintf("Ranch %d", id),
		State:                  "TX",
		ActiveStatus:           rancher.StatusActive,
		AgreementSigned:        true,
		OnboardingStatus:       rancher.OnboardingLive,
		CurrentActiveReferrals: current,
		MaxActiveReferrals:     5,
		PerformanceScore:       50,
	}
}

func (f *fixture) texasBuyer(t *testing.T) *buyer.Buyer {
	t.Helper()
	b := &buyer.Buyer{
		FullName:    "Jordan Hale",
		Email:       "jordan@example.com",
		Phone:       sql.NullString{String: "555-0100", Valid: true},
		State:       "TX",
		OrderType:   buyer.OrderHalf,
		BudgetBand:  buyer.Budget1000To2000,
		Segment:     buyer.SegmentBeefBuyer,
		IntentScore: 80,
		IntentClass: buyer.IntentHigh,
	}
	require.NoError(t, f.buyers.Create(context.Background(), b))
	return b
}

func (f *fixture) pendingReferral(t *testing.T) *referral.Referral {
	t.Helper()
	b := f.texasBuyer(t)
	ref, err := f.svc.Create(context.Background(), b)
	require.NoError(t, err)
	return ref
}

// ==========================
// Create
// ==========================

func TestCreate_SuggestsWithoutCommitting(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 2))

	ref := f.pendingReferral(t)

	assert.Equal(t, referral.StatusPendingApproval, ref.Status)
	require.True(t, ref.SuggestedRancherID.Valid)
	assert.Equal(t, int64(1), ref.SuggestedRancherID.Int64)
	assert.False(t, ref.AssignedRancherID.Valid)
	assert.Equal(t, 2, f.ranchers.activeCount(1), "suggestion must not claim capacity")
	assert.Equal(t, string(referral.StatusPendingApproval), f.buyers.referralStatus(ref.BuyerID))
	assert.Contains(t, ref.Reference, "REF-")
}

func TestCreate_NoEligibleRancher(t *testing.T) {
	f := newFixture(t, false)
	// Only rancher serves a different state.
	r := texasRancher(1, 0)
	r.State = "MT"
	f.ranchers.add(r)

	ref := f.pendingReferral(t)

	assert.Equal(t, referral.StatusPendingApproval, ref.Status)
	assert.False(t, ref.SuggestedRancherID.Valid)
}

func TestCreate_RejectsCommunityBuyer(t *testing.T) {
	f := newFixture(t, false)
	b := &buyer.Buyer{Segment: buyer.SegmentCommunity, State: "TX"}
	require.NoError(t, f.buyers.Create(context.Background(), b))

	_, err := f.svc.Create(context.Background(), b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidInput))
}

func TestCreate_SnapshotsBuyerFields(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))

	ref := f.pendingReferral(t)

	assert.Equal(t, "Jordan Hale", ref.BuyerName)
	assert.Equal(t, "jordan@example.com", ref.BuyerEmail)
	assert.Equal(t, "TX", ref.BuyerState)
	assert.Equal(t, 80, ref.IntentScore)
	assert.Equal(t, string(buyer.IntentHigh), ref.IntentClass)
}

// ==========================
// Approve
// ==========================

func TestApprove_Success(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 2))
	ref := f.pendingReferral(t)

	approved, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, referral.StatusIntroSent, approved.Status)
	require.True(t, approved.AssignedRancherID.Valid)
	assert.Equal(t, int64(1), approved.AssignedRancherID.Int64)
	assert.True(t, approved.ApprovedAt.Valid)
	assert.True(t, approved.IntroSentAt.Valid)
	assert.Equal(t, 3, f.ranchers.activeCount(1))

	rc, err := f.ranchers.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, rc.LastAssignedAt.Valid)

	assert.Equal(t, string(referral.StatusIntroSent), f.buyers.referralStatus(ref.BuyerID))

	events := f.notifier.captured()
	require.Len(t, events, 1)
	assert.Equal(t, notification.EventReferralApproved, events[0].Type)
	assert.Equal(t, "Ranch 1", events[0].Rancher.Name)
	assert.Equal(t, "Jordan Hale", events[0].Buyer.Name)
}

func TestApprove_OverrideRancher(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	f.ranchers.add(texasRancher(2, 3))
	ref := f.pendingReferral(t)
	require.Equal(t, int64(1), ref.SuggestedRancherID.Int64)

	override := int64(2)
	approved, err := f.svc.Approve(context.Background(), ref.ID, &override)
	require.NoError(t, err)

	assert.Equal(t, int64(2), approved.AssignedRancherID.Int64)
	assert.Equal(t, 0, f.ranchers.activeCount(1))
	assert.Equal(t, 4, f.ranchers.activeCount(2))
}

func TestApprove_AtCapacityRejected(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 4))
	ref := f.pendingReferral(t)

	// Fill the last slot behind the approval's back.
	_, _, ok, err := f.ranchers.IncrementActive(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Approve(context.Background(), ref.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrAtCapacity))
	assert.Contains(t, err.Error(), "at capacity (5/5)")
	assert.Equal(t, 5, f.ranchers.activeCount(1))

	unchanged, err := f.referrals.FindByID(context.Background(), ref.ID)
	require.NoError(t, err)
	assert.Equal(t, referral.StatusPendingApproval, unchanged.Status)
}

func TestApprove_NoDoubleCommit(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)

	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 1, f.ranchers.activeCount(1))

	_, err = f.svc.Approve(context.Background(), ref.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrAlreadyApproved))
	assert.Equal(t, 1, f.ranchers.activeCount(1), "capacity must not be claimed twice")
}

func TestApprove_NoRancherResolvable(t *testing.T) {
	f := newFixture(t, false)
	ref := f.pendingReferral(t) // no ranchers at all, so no suggestion

	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidInput))
}

func TestApprove_UpdateFailureReleasesClaim(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 2))
	ref := f.pendingReferral(t)

	f.referrals.failUpdate = errors.New("store unreachable")
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.Error(t, err)

	assert.Equal(t, 2, f.ranchers.activeCount(1), "failed approval must give the slot back")
}

// Two simultaneous approvals with one slot left: exactly one succeeds.
func TestApprove_ConcurrentOneWinner(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 4))

	refA := f.pendingReferral(t)
	b := &buyer.Buyer{
		FullName: "Casey Reed", Email: "casey@example.com", State: "TX",
		Segment: buyer.SegmentBeefBuyer, IntentClass: buyer.IntentHigh,
	}
	require.NoError(t, f.buyers.Create(context.Background(), b))
	refB, err := f.svc.Create(context.Background(), b)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, id := range []int64{refA.ID, refB.ID} {
		wg.Add(1)
		go func(refID int64) {
			defer wg.Done()
			_, err := f.svc.Approve(context.Background(), refID, nil)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		if err == nil {
			successes++
		} else if errors.Is(err, xerrors.ErrAtCapacity) {
			conflicts++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 5, f.ranchers.activeCount(1))
}

// ==========================
// Reassign
// ==========================

func TestReassign_ConservesSlots(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	f.ranchers.add(texasRancher(2, 1))
	ref := f.pendingReferral(t)

	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)
	totalBefore := f.ranchers.totalActive()

	reassigned, err := f.svc.Reassign(context.Background(), ref.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), reassigned.AssignedRancherID.Int64)
	assert.Equal(t, int64(2), reassigned.SuggestedRancherID.Int64)
	assert.Equal(t, referral.StatusIntroSent, reassigned.Status)
	assert.Equal(t, 0, f.ranchers.activeCount(1), "prior holder releases exactly one slot")
	assert.Equal(t, 2, f.ranchers.activeCount(2), "new holder claims exactly one slot")
	assert.Equal(t, totalBefore, f.ranchers.totalActive(), "total active slots conserved")

	events := f.notifier.captured()
	require.Len(t, events, 2)
	assert.Equal(t, notification.EventReferralReassigned, events[1].Type)
}

func TestReassign_UnassignedPendingClaimsOnlyNewSlot(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	f.ranchers.add(texasRancher(2, 0))
	ref := f.pendingReferral(t)

	reassigned, err := f.svc.Reassign(context.Background(), ref.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, referral.StatusIntroSent, reassigned.Status)
	assert.True(t, reassigned.ApprovedAt.Valid)
	assert.Equal(t, 0, f.ranchers.activeCount(1), "suggested-only rancher never held a slot")
	assert.Equal(t, 1, f.ranchers.activeCount(2))
}

func TestReassign_ToFullRancherRejected(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	f.ranchers.add(texasRancher(2, 5))
	ref := f.pendingReferral(t)
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Reassign(context.Background(), ref.ID, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrAtCapacity))
	assert.Equal(t, 1, f.ranchers.activeCount(1), "prior holder keeps the slot on abort")
	assert.Equal(t, 5, f.ranchers.activeCount(2))
}

func TestReassign_TerminalRejected(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	f.ranchers.add(texasRancher(2, 0))
	ref := f.pendingReferral(t)
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.CloseLost(context.Background(), ref.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Reassign(context.Background(), ref.ID, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidTransition))
}

func TestReassign_SameRancherRejected(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Reassign(context.Background(), ref.ID, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidInput))
	assert.Equal(t, 1, f.ranchers.activeCount(1))
}

// ==========================
// Advance
// ==========================

func TestAdvance_OperatorMoves(t *testing.T) {
	tests := []struct {
		name    string
		to      referral.Status
		allowed bool
	}{
		{"intro to contacted", referral.StatusRancherContacted, true},
		{"intro to negotiation", referral.StatusNegotiation, true},
		{"intro to dormant", referral.StatusDormant, true},
		{"intro to pending", referral.StatusPendingApproval, false},
		{"intro to won directly", referral.StatusClosedWon, false},
		{"unknown status", referral.Status("galloping"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.ranchers.add(texasRancher(1, 0))
			ref := f.pendingReferral(t)
			_, err := f.svc.Approve(context.Background(), ref.ID, nil)
			require.NoError(t, err)

			updated, err := f.svc.Advance(context.Background(), ref.ID, tt.to, "")
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, updated.Status)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestAdvance_DormantIsReversible(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Advance(context.Background(), ref.ID, referral.StatusDormant, "gone quiet")
	require.NoError(t, err)
	revived, err := f.svc.Advance(context.Background(), ref.ID, referral.StatusNegotiation, "back in touch")
	require.NoError(t, err)
	assert.Equal(t, referral.StatusNegotiation, revived.Status)
}

func TestAdvance_FromPendingRejected(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)

	_, err := f.svc.Advance(context.Background(), ref.ID, referral.StatusNegotiation, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidTransition))
}

// ==========================
// Close / Reject
// ==========================

func TestCloseWon_CommissionExact(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)

	sale := decimal.RequireFromString("2500.00")
	closed, err := f.svc.CloseWon(context.Background(), ref.ID, sale, "deal done")
	require.NoError(t, err)

	assert.Equal(t, referral.StatusClosedWon, closed.Status)
	assert.True(t, closed.ClosedAt.Valid)
	require.True(t, closed.SaleAmount.Valid)
	require.True(t, closed.CommissionDue.Valid)
	assert.True(t, closed.CommissionDue.Decimal.Equal(decimal.RequireFromString("250.00")),
		"commission on 2500.00 must be exactly 250.00, got %s", closed.CommissionDue.Decimal)
	assert.False(t, closed.CommissionPaid)

	// Default policy: closed referrals keep occupying capacity.
	assert.Equal(t, 1, f.ranchers.activeCount(1))

	events := f.notifier.captured()
	require.Len(t, events, 2)
	assert.Equal(t, notification.EventReferralClosed, events[1].Type)
	assert.Equal(t, "won", events[1].Outcome)
	assert.Equal(t, "2500", events[1].SaleAmount)
}

func TestCloseWon_SaleAmountValidation(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)

	for _, amount := range []string{"0", "-100.00"} {
		_, err := f.svc.CloseWon(context.Background(), ref.ID, decimal.RequireFromString(amount), "")
		require.Error(t, err, "amount %s", amount)
		assert.True(t, errors.Is(err, xerrors.ErrInvalidInput))
	}
}

func TestCloseWon_ReleaseOnClosePolicy(t *testing.T) {
	f := newFixture(t, true)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 1, f.ranchers.activeCount(1))

	_, err = f.svc.CloseWon(context.Background(), ref.ID, decimal.RequireFromString("1800"), "")
	require.NoError(t, err)
	assert.Equal(t, 0, f.ranchers.activeCount(1), "release-on-close frees the slot")
}

func TestCloseLost_NoCommission(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)

	closed, err := f.svc.CloseLost(context.Background(), ref.ID, "went elsewhere")
	require.NoError(t, err)

	assert.Equal(t, referral.StatusClosedLost, closed.Status)
	assert.False(t, closed.SaleAmount.Valid)
	assert.False(t, closed.CommissionDue.Valid)
	assert.Equal(t, 1, f.ranchers.activeCount(1))
}

func TestClose_PendingRejected(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)

	_, err := f.svc.CloseWon(context.Background(), ref.ID, decimal.RequireFromString("100"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidTransition))
}

func TestReject_NeverTouchesLedger(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 2))
	ref := f.pendingReferral(t)

	rejected, err := f.svc.Reject(context.Background(), ref.ID, "not a fit")
	require.NoError(t, err)

	assert.Equal(t, referral.StatusClosedLost, rejected.Status)
	assert.True(t, rejected.ClosedAt.Valid)
	assert.Equal(t, 2, f.ranchers.activeCount(1))
	assert.Equal(t, string(referral.StatusClosedLost), f.buyers.referralStatus(ref.BuyerID))
}

func TestReject_OnlyFromPending(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), ref.ID, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidTransition))
}

// ==========================
// Rematch & Commission
// ==========================

func TestRematch_RefreshesSuggestion(t *testing.T) {
	f := newFixture(t, false)
	ref := f.pendingReferral(t)
	require.False(t, ref.SuggestedRancherID.Valid)

	// A rancher goes live after the referral was created.
	f.ranchers.add(texasRancher(1, 0))

	rematched, err := f.svc.Rematch(context.Background(), ref.ID)
	require.NoError(t, err)
	require.True(t, rematched.SuggestedRancherID.Valid)
	assert.Equal(t, int64(1), rematched.SuggestedRancherID.Int64)
}

func TestRematch_NoEligibleRancher(t *testing.T) {
	f := newFixture(t, false)
	ref := f.pendingReferral(t)

	_, err := f.svc.Rematch(context.Background(), ref.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrNoEligibleRancher))
}

func TestMarkCommissionPaid(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.CloseWon(context.Background(), ref.ID, decimal.RequireFromString("1800"), "")
	require.NoError(t, err)

	paid, err := f.svc.MarkCommissionPaid(context.Background(), ref.ID)
	require.NoError(t, err)
	assert.True(t, paid.CommissionPaid)

	_, err = f.svc.MarkCommissionPaid(context.Background(), ref.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrConflict))
}

func TestMarkCommissionPaid_LostRejected(t *testing.T) {
	f := newFixture(t, false)
	f.ranchers.add(texasRancher(1, 0))
	ref := f.pendingReferral(t)
	_, err := f.svc.Approve(context.Background(), ref.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.CloseLost(context.Background(), ref.ID, "")
	require.NoError(t, err)

	_, err = f.svc.MarkCommissionPaid(context.Background(), ref.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidTransition))
}
