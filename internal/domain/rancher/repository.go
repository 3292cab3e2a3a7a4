// internal/domain/rancher/repository.go
package rancher

import "context"

type Repository interface {
	Create(ctx context.Context, r *Rancher) error
	FindByID(ctx context.Context, id int64) (*Rancher, error)
	FindAll(ctx context.Context) ([]Rancher, error)
	List(ctx context.Context, filters *ListFilters) ([]Rancher, int64, error)
	UpdateActiveStatus(ctx context.Context, id int64, status ActiveStatus) error
	UpdateOnboarding(ctx context.Context, id int64, status OnboardingStatus, agreementSigned bool) error
	UpdateMaxActive(ctx context.Context, id int64, max int) error

	// Capacity ledger primitives. Both are conditional writes: the increment
	// commits only while current < max (and stamps last_assigned_at), the
	// decrement only while current > 0. A failed guard returns the row
	// untouched with ok=false.
	IncrementActive(ctx context.Context, id int64) (current, max int, ok bool, err error)
	DecrementActive(ctx context.Context, id int64) (current int, ok bool, err error)
}
