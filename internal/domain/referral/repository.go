// internal/domain/referral/repository.go
package referral

import "context"

type Repository interface {
	Create(ctx context.Context, r *Referral) error
	FindByID(ctx context.Context, id int64) (*Referral, error)
	FindByReference(ctx context.Context, ref string) (*Referral, error)
	Update(ctx context.Context, r *Referral) error
	List(ctx context.Context, filters *ListFilters) ([]Referral, int64, error)
	GetStats(ctx context.Context) (*PipelineStats, error)
}
