package domain

import (
	"context"

	"github.com/google/uuid"
)

// DatasetRepository persists dataset identities across restarts.
type DatasetRepository interface {
	// Save inserts or replaces the record for ds.ID.
	Save(ctx context.Context, ds Dataset) error
	// Get returns ErrDatasetNotFound when id is unknown.
	Get(ctx context.Context, id uuid.UUID) (Dataset, error)
	// List returns all datasets ordered by import time.
	List(ctx context.Context) ([]Dataset, error)
	// Delete removes the record. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}
