package hospital

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

const hospitalCols = `hospital_id, name, email, password_hash, city, state, country, status,
	created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(&h.HospitalID, &h.Name, &h.Email, &h.PasswordHash, &h.City,
		&h.State, &h.Country, &h.Status, &h.CreatedAt, &h.UpdatedAt)
	return &h, err
}

func (r *repoPG) Create(ctx context.Context, h *Hospital) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO hospitals (hospital_id, name, email, password_hash, city, state, country, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		h.HospitalID, h.Name, h.Email, h.PasswordHash, h.City, h.State, h.Country,
		h.Status).Scan(&h.CreatedAt, &h.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, hospitalID string) (*Hospital, error) {
	h, err := r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+hospitalCols+` FROM hospitals WHERE hospital_id = $1`, hospitalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Hospital, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM hospitals`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+hospitalCols+` FROM hospitals ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Hospital
	for rows.Next() {
		h, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, h *Hospital) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE hospitals SET name=$2, email=$3, city=$4, state=$5, country=$6, updated_at=NOW()
		WHERE hospital_id = $1`,
		h.HospitalID, h.Name, h.Email, h.City, h.State, h.Country)
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, hospitalID, status string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE hospitals SET status = $2, updated_at = NOW() WHERE hospital_id = $1`,
		hospitalID, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Hospital, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+hospitalCols+` FROM hospitals
		WHERE status = $1
		ORDER BY country, state, city, name`, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Hospital
	for rows.Next() {
		h, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}
