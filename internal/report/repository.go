package report

import "context"

// Repository persists reports. Reports are appended and updated, never deleted.
type Repository interface {
	// Append stores a new report.
	Append(ctx context.Context, r *Report) error

	// Update applies mutate to the stored report and persists the result in
	// one atomic step. It returns ErrReportNotFound without writing when id
	// is unknown; an error from mutate aborts the write.
	Update(ctx context.Context, id string, mutate func(r *Report) error) (*Report, error)

	// Get returns the report with id.
	Get(ctx context.Context, id string) (*Report, error)

	// List returns every report in creation order.
	List(ctx context.Context) ([]*Report, error)
}
