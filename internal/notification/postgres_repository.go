package notification

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidtracker/aidtracker/internal/dispatch"
)

const notificationColumns = `id, title, message, app, user_id, station, incident_type, report_id, read, read_at, created_at`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL notification repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// AppendBatch inserts every notification in one transaction.
func (r *PostgresRepository) AppendBatch(ctx context.Context, ns []Notification) error {
	if len(ns) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, n := range ns {
			batch.Queue(`
				INSERT INTO notifications (`+notificationColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, n.ID, n.Title, n.Message, n.App, n.User, string(n.Station), string(n.IncidentType),
				n.ReportID, n.Read, n.ReadAt, n.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// ListForUser returns the notifications visible to user.
func (r *PostgresRepository) ListForUser(ctx context.Context, user string) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 OR user_id = $2
		ORDER BY created_at, id
	`, user, Everyone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// MarkRead marks a notification read. read_at keeps its first value.
func (r *PostgresRepository) MarkRead(ctx context.Context, id, owner string, at time.Time) (*Notification, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND ($2::text = '' OR user_id = $2)
		RETURNING `+notificationColumns, id, owner, at)

	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	return n, err
}

// MarkAllRead marks the user's unread notifications read.
func (r *PostgresRepository) MarkAllRead(ctx context.Context, user string, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE, read_at = $2
		WHERE user_id = $1 AND NOT read
	`, user, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes one of the user's notifications.
func (r *PostgresRepository) Delete(ctx context.Context, user, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, user)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// ClearForUser removes every notification addressed to user.
func (r *PostgresRepository) ClearForUser(ctx context.Context, user string) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, user)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// CountUnread counts unread notifications visible to user.
func (r *PostgresRepository) CountUnread(ctx context.Context, user string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE (user_id = $1 OR user_id = $2) AND NOT read
	`, user, Everyone).Scan(&count)
	return count, err
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n            Notification
		station      string
		incidentType string
	)
	err := row.Scan(
		&n.ID,
		&n.Title,
		&n.Message,
		&n.App,
		&n.User,
		&station,
		&incidentType,
		&n.ReportID,
		&n.Read,
		&n.ReadAt,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Station = dispatch.Station(station)
	n.IncidentType = dispatch.Category(incidentType)
	return &n, nil
}

var _ Repository = (*PostgresRepository)(nil)
