package database

import (
	"context"
)

type ReviewRepository interface {
	Save(ctx context.Context, bundles []ReviewBundle, modelID int64) (int, error)
	VerifyIntegrity(ctx context.Context) (int, error)

	ListByModel(ctx context.Context, modelID int64) ([]Review, error)
	Count(ctx context.Context) (int, error)
}

// CatalogRepository is the read-only view of the vehicle catalog.
type CatalogRepository interface {
	ModelExists(ctx context.Context, modelID int64) (bool, error)
	FindModelID(ctx context.Context, brand, model string) (int64, bool, error)
}

type RequestHistoryRepository interface {
	RecordRequest(ctx context.Context, url string, success bool, errMsg string) error
	Count(ctx context.Context) (int, error)
}
