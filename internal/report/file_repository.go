package report

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/storage/jsonfile"
)

// FileRepository keeps reports in a JSON array file.
type FileRepository struct {
	collection *jsonfile.Collection[Report]
}

// NewFileRepository opens (or creates) the reports file at path.
func NewFileRepository(path string, logger zerolog.Logger) (*FileRepository, error) {
	c, err := jsonfile.Open[Report](path, logger)
	if err != nil {
		return nil, err
	}
	return &FileRepository{collection: c}, nil
}

// Close stops the collection writer.
func (r *FileRepository) Close() error {
	return r.collection.Close()
}

// Append stores the report.
func (r *FileRepository) Append(ctx context.Context, report *Report) error {
	return r.collection.Mutate(ctx, func(items []Report) ([]Report, error) {
		return append(items, *cloneReport(report)), nil
	})
}

// Update mutates the stored report inside the collection's writer.
func (r *FileRepository) Update(ctx context.Context, id string, mutate func(*Report) error) (*Report, error) {
	var updated *Report
	err := r.collection.Mutate(ctx, func(items []Report) ([]Report, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			working := cloneReport(&items[i])
			if err := mutate(working); err != nil {
				return nil, err
			}
			items[i] = *working
			updated = cloneReport(working)
			return items, nil
		}
		return nil, ErrReportNotFound
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns the report with id.
func (r *FileRepository) Get(ctx context.Context, id string) (*Report, error) {
	var found *Report
	err := r.collection.Read(ctx, func(items []Report) error {
		for i := range items {
			if items[i].ID == id {
				found = cloneReport(&items[i])
				return nil
			}
		}
		return ErrReportNotFound
	})
	return found, err
}

// List returns every report in file order.
func (r *FileRepository) List(ctx context.Context) ([]*Report, error) {
	var out []*Report
	err := r.collection.Read(ctx, func(items []Report) error {
		out = make([]*Report, 0, len(items))
		for i := range items {
			out = append(out, cloneReport(&items[i]))
		}
		return nil
	})
	return out, err
}

var _ Repository = (*FileRepository)(nil)
