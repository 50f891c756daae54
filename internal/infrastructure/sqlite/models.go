package sqlite

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/dcmcache/internal/domain"
)

// DatasetModel is the row shape of the datasets table. Times are stored as
// Unix milliseconds.
type DatasetModel struct {
	ID         string
	Name       string
	Directory  string
	ImportedAt int64
}

func toDatasetModel(ds domain.Dataset) DatasetModel {
	return DatasetModel{
		ID:         ds.ID.String(),
		Name:       ds.Name,
		Directory:  ds.Directory,
		ImportedAt: ds.ImportedAt.UnixMilli(),
	}
}

func (m DatasetModel) toDomain() (domain.Dataset, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("corrupt dataset id %q: %w", m.ID, err)
	}
	return domain.Dataset{
		ID:         id,
		Name:       m.Name,
		Directory:  m.Directory,
		ImportedAt: time.UnixMilli(m.ImportedAt).UTC(),
	}, nil
}
