package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zjrosen/dcmcache/internal/domain"
)

const datasetColumns = `id, name, directory, imported_at`

// datasetRepository implements domain.DatasetRepository using SQLite.
type datasetRepository struct {
	db *sql.DB
}

func newDatasetRepository(db *sql.DB) *datasetRepository {
	return &datasetRepository{db: db}
}

var _ domain.DatasetRepository = (*datasetRepository)(nil)

func scanDataset(scanner interface{ Scan(...any) error }) (domain.Dataset, error) {
	var model DatasetModel
	if err := scanner.Scan(&model.ID, &model.Name, &model.Directory, &model.ImportedAt); err != nil {
		return domain.Dataset{}, err
	}
	return model.toDomain()
}

// Save implements domain.DatasetRepository.
func (r *datasetRepository) Save(ctx context.Context, ds domain.Dataset) error {
	m := toDatasetModel(ds)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO datasets (`+datasetColumns+`) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, directory = excluded.directory, imported_at = excluded.imported_at`,
		m.ID, m.Name, m.Directory, m.ImportedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

// Get implements domain.DatasetRepository.
func (r *datasetRepository) Get(ctx context.Context, id uuid.UUID) (domain.Dataset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = ?`, id.String())
	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Dataset{}, fmt.Errorf("%w: %s", domain.ErrDatasetNotFound, id)
	}
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("failed to get dataset: %w", err)
	}
	return ds, nil
}

// List implements domain.DatasetRepository.
func (r *datasetRepository) List(ctx context.Context) ([]domain.Dataset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+datasetColumns+` FROM datasets ORDER BY imported_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// Delete implements domain.DatasetRepository.
func (r *datasetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return nil
}
