package collection

import (
	"context"

	domcol "github.com/kailas-cloud/scorpius/internal/domain/collection"
)

// Repository defines the storage contract for collections.
type Repository interface {
	Ensure(ctx context.Context, col domcol.Collection) (created bool, err error)
	Get(ctx context.Context, name string) (domcol.Collection, error)
	List(ctx context.Context) ([]domcol.Collection, error)
	Count(ctx context.Context, name string) (int, error)
}
