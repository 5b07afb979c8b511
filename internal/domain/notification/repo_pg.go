package notification

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/organlink/organlink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const notificationCols = `notification_id, hospital_id, type, title, message, related_id,
	metadata, is_read, created_at`

func (r *repoPG) scan(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.NotificationID, &n.HospitalID, &n.Type, &n.Title, &n.Message,
		&n.RelatedID, &n.Metadata, &n.IsRead, &n.CreatedAt)
	return &n, err
}

func (r *repoPG) Create(ctx context.Context, n *Notification) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (notification_id, hospital_id, type, title, message,
			related_id, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		n.NotificationID, n.HospitalID, n.Type, n.Title, n.Message,
		n.RelatedID, n.Metadata).Scan(&n.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, notificationID string) (*Notification, error) {
	n, err := r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+notificationCols+` FROM notifications WHERE notification_id = $1`, notificationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

func (r *repoPG) ListByHospital(ctx context.Context, hospitalID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	filter := ``
	if unreadOnly {
		filter = ` AND NOT is_read`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE hospital_id = $1`+filter,
		hospitalID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+notificationCols+` FROM notifications
		WHERE hospital_id = $1`+filter+`
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		hospitalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Notification
	for rows.Next() {
		n, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UnreadCount(ctx context.Context, hospitalID string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE hospital_id = $1 AND NOT is_read`,
		hospitalID).Scan(&n)
	return n, err
}

func (r *repoPG) MarkRead(ctx context.Context, notificationID, hospitalID string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE notification_id = $1 AND hospital_id = $2`,
		notificationID, hospitalID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) MarkAllRead(ctx context.Context, hospitalID string) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE hospital_id = $1 AND NOT is_read`, hospitalID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) MarkReadByRelated(ctx context.Context, relatedID, hospitalID string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE related_id = $1 AND hospital_id = $2`, relatedID, hospitalID)
	return err
}

func (r *repoPG) Delete(ctx context.Context, notificationID, hospitalID string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM notifications WHERE notification_id = $1 AND hospital_id = $2`,
		notificationID, hospitalID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
