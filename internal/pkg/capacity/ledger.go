// internal/pkg/capacity/ledger.go
package capacity

import (
	"context"
	"fmt"
	"sync"

	xerrors "pasturelink-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Store is the subset of the rancher repository the ledger mutates through.
// Both writes are conditional: the store commits an increment only while
// current < max and a decrement only while current > 0, reporting a failed
// guard as ok=false with the row untouched.
type Store interface {
	IncrementActive(ctx context.Context, id int64) (current, max int, ok bool, err error)
	DecrementActive(ctx context.Context, id int64) (current int, ok bool, err error)
}

// Ledger owns every mutation of a rancher's active-referral count. All call
// sites (approve, reassign, close) go through here; nothing else performs a
// read-modify-write on the counter. A per-rancher mutex serializes
// concurrent mutations so two simultaneous approvals against the same
// rancher cannot both observe headroom.
type Ledger struct {
	store  Store
	logger *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewLedger(store Store, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
		locks:  make(map[int64]*sync.Mutex),
	}
}

func (l *Ledger) lockFor(id int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[id] = lk
	}
	return lk
}

// Commit claims one active-referral slot on the rancher. Returns the counter
// after the claim, or ErrAtCapacity when no headroom remains.
func (l *Ledger) Commit(ctx context.Context, rancherID int64) (current, max int, err error) {
	lk := l.lockFor(rancherID)
	lk.Lock()
	defer lk.Unlock()

	current, max, ok, err := l.store.IncrementActive(ctx, rancherID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to claim capacity for rancher %d: %w", rancherID, err)
	}
	if !ok {
		return current, max, fmt.Errorf("rancher %d is at capacity (%d/%d): %w",
			rancherID, current, max, xerrors.ErrAtCapacity)
	}
	return current, max, nil
}

// Release frees one active-referral slot. Releasing a rancher whose counter
// is already zero is a logged no-op, which defends the double-decrement
// hazard on reassignment races.
func (l *Ledger) Release(ctx context.Context, rancherID int64) error {
	lk := l.lockFor(rancherID)
	lk.Lock()
	defer lk.Unlock()

	_, ok, err := l.store.DecrementActive(ctx, rancherID)
	if err != nil {
		return fmt.Errorf("failed to release capacity for rancher %d: %w", rancherID, err)
	}
	if !ok {
		l.logger.Warn("capacity release skipped, counter already zero",
			zap.Int64("rancher_id", rancherID),
		)
	}
	return nil
}

// Transfer moves one slot from one rancher to another: the target is claimed
// first (so an at-capacity target aborts the whole transfer), then the prior
// holder is released. Locks are taken in ascending id order to avoid
// deadlock between two opposing transfers. fromID of zero means no rancher
// held the referral, in which case only the claim happens.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID int64) (current, max int, err error) {
	if fromID == toID {
		return 0, 0, fmt.Errorf("cannot transfer rancher %d to itself: %w", toID, xerrors.ErrInvalidInput)
	}
	if fromID == 0 {
		return l.Commit(ctx, toID)
	}

	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	firstLk, secondLk := l.lockFor(first), l.lockFor(second)
	firstLk.Lock()
	defer firstLk.Unlock()
	secondLk.Lock()
	defer secondLk.Unlock()

	current, max, ok, err := l.store.IncrementActive(ctx, toID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to claim capacity for rancher %d: %w", toID, err)
	}
	if !ok {
		return current, max, fmt.Errorf("rancher %d is at capacity (%d/%d): %w",
			toID, current, max, xerrors.ErrAtCapacity)
	}

	if _, ok, err := l.store.DecrementActive(ctx, fromID); err != nil {
		// Undo the claim so the transfer leaves no partial state behind.
		if _, _, rbErr := l.store.DecrementActive(ctx, toID); rbErr != nil {
			l.logger.Error("failed to roll back capacity claim after transfer error",
				zap.Int64("rancher_id", toID),
				zap.Error(rbErr),
			)
		}
		return 0, 0, fmt.Errorf("failed to release capacity for rancher %d: %w", fromID, err)
	} else if !ok {
		l.logger.Warn("transfer release skipped, counter already zero",
			zap.Int64("rancher_id", fromID),
		)
	}

	return current, max, nil
}
