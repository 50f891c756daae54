package presentation

import (
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/sliceindex"
)

// DatasetDTO represents a live dataset for presentation
type DatasetDTO struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Directory  string    `json:"directory"`
	ImportedAt time.Time `json:"imported_at"`
}

// SliceDTO represents one valid slice file
type SliceDTO struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// SlicesDTO lists a dataset's slices in anatomical (file name) order
type SlicesDTO struct {
	DatasetID uuid.UUID  `json:"dataset_id"`
	Slices    []SliceDTO `json:"slices"`
}

// MeshDTO locates a reconstructed mesh
type MeshDTO struct {
	DatasetID uuid.UUID `json:"dataset_id"`
	Threshold float64   `json:"threshold"`
	MeshPath  string    `json:"mesh_path"`
}

// FromDomainDataset converts a dataset identity to a DTO.
func FromDomainDataset(ds domain.Dataset) DatasetDTO {
	return DatasetDTO{
		ID:         ds.ID,
		Name:       ds.Name,
		Directory:  ds.Directory,
		ImportedAt: ds.ImportedAt,
	}
}

// FromDomainDatasets converts a list; the result is never nil.
func FromDomainDatasets(list []domain.Dataset) []DatasetDTO {
	out := make([]DatasetDTO, 0, len(list))
	for _, ds := range list {
		out = append(out, FromDomainDataset(ds))
	}
	return out
}

// FromSlices converts slices keeping their order; the result is never nil.
func FromSlices(id uuid.UUID, slices []*sliceindex.Slice) SlicesDTO {
	dto := SlicesDTO{DatasetID: id, Slices: make([]SliceDTO, 0, len(slices))}
	for _, s := range slices {
		dto.Slices = append(dto.Slices, SliceDTO{Name: s.Name(), Path: s.Path()})
	}
	return dto
}
