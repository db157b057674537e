package record

import (
	"context"

	"vinylshop/internal/db"
	"vinylshop/internal/domain"
)

// Repository persists mirrored catalog records. Methods taking a db.Querier
// participate in a caller-owned transaction; the reconciler and settlement
// both need their writes to share one transaction with other repositories.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	ListForSale(ctx context.Context) ([]domain.Record, error)
	ListAll(ctx context.Context) ([]domain.Record, error)

	// GetForUpdate fetches the record with a row lock so a stock check and
	// the subsequent write cannot race a concurrent mutation.
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*domain.Record, error)

	CreateBatch(ctx context.Context, q db.Querier, records []domain.Record) (int, error)
	Update(ctx context.Context, q db.Querier, rec domain.Record) error
	UpdateInventory(ctx context.Context, q db.Querier, id string, quantity int, status domain.RecordStatus) error
	SetListingID(ctx context.Context, q db.Querier, id string, listingID *int64) error
	Retire(ctx context.Context, q db.Querier, id string) error
	Delete(ctx context.Context, q db.Querier, id string) error
}
