package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reportColumns = `id, reporter, type, location, description, photo, status, created_at, updated_at, updated_by`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL report repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Append inserts the report.
func (r *PostgresRepository) Append(ctx context.Context, report *Report) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		report.ID,
		report.Reporter,
		report.Type,
		report.Location,
		report.Description,
		report.Photo,
		string(report.Status),
		report.CreatedAt,
		report.UpdatedAt,
		report.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", report.ID, err)
	}
	return nil
}

// Update locks the row, applies mutate and writes it back in one transaction.
func (r *PostgresRepository) Update(ctx context.Context, id string, mutate func(*Report) error) (*Report, error) {
	var updated *Report

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1 FOR UPDATE`, id)
		report, err := scanReport(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrReportNotFound
		}
		if err != nil {
			return err
		}

		if err := mutate(report); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE reports
			SET status = $2, photo = $3, updated_at = $4, updated_by = $5
			WHERE id = $1
		`, report.ID, string(report.Status), report.Photo, report.UpdatedAt, report.UpdatedBy)
		if err != nil {
			return err
		}

		updated = report
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns the report with id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	return report, err
}

// List returns every report in creation order.
func (r *PostgresRepository) List(ctx context.Context) ([]*Report, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

func scanReport(row pgx.Row) (*Report, error) {
	var (
		report Report
		status string
	)
	err := row.Scan(
		&report.ID,
		&report.Reporter,
		&report.Type,
		&report.Location,
		&report.Description,
		&report.Photo,
		&status,
		&report.CreatedAt,
		&report.UpdatedAt,
		&report.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	report.Status = Status(status)
	return &report, nil
}

var _ Repository = (*PostgresRepository)(nil)
