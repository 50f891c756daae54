package domain

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Dataset identifies one imported slice directory in the cache.
// Directory is always <cache root>/<ID>.
type Dataset struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Directory  string    `json:"directory"`
	ImportedAt time.Time `json:"imported_at"`
}

// NewDataset builds the identity for id under root.
func NewDataset(root string, id uuid.UUID, name string) Dataset {
	return Dataset{
		ID:        id,
		Name:      name,
		Directory: DatasetDirectory(root, id),
	}
}

// DatasetDirectory returns the cache directory for id.
func DatasetDirectory(root string, id uuid.UUID) string {
	return filepath.Join(root, id.String())
}
