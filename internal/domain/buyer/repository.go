// internal/domain/buyer/repository.go
package buyer

import "context"

type Repository interface {
	Create(ctx context.Context, b *Buyer) error
	FindByID(ctx context.Context, id int64) (*Buyer, error)
	FindByEmail(ctx context.Context, email string) (*Buyer, error)
	List(ctx context.Context, filters *ListFilters) ([]Buyer, int64, error)
	UpdateReferralStatus(ctx context.Context, id int64, status string) error
	GetStats(ctx context.Context) (*BuyerStats, error)
}
