package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

const requestCols = `request_id, patient_id, requesting_hospital_id, organ_type, blood_type,
	urgency_level, best_score, status, match_details, matched_donor_id, matched_hospital_id,
	created_at, updated_at`

func (r *repoPG) scanRequest(row pgx.Row) (*MatchingRequest, error) {
	var (
		req     MatchingRequest
		details []byte
	)
	err := row.Scan(&req.RequestID, &req.PatientID, &req.RequestingHospitalID,
		&req.OrganType, &req.BloodType, &req.UrgencyLevel, &req.BestScore,
		&req.Status, &details, &req.MatchedDonorID, &req.MatchedHospitalID,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &req.Matches); err != nil {
			return nil, fmt.Errorf("decode match details for %s: %w", req.RequestID, err)
		}
	}
	return &req, nil
}

func (r *repoPG) Create(ctx context.Context, req *MatchingRequest) error {
	details, err := json.Marshal(req.Matches)
	if err != nil {
		return fmt.Errorf("encode match details: %w", err)
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO matching_requests (request_id, patient_id, requesting_hospital_id,
			organ_type, blood_type, urgency_level, best_score, status, match_details)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		req.RequestID, req.PatientID, req.RequestingHospitalID,
		req.OrganType, req.BloodType, req.UrgencyLevel, req.BestScore,
		req.Status, details).Scan(&req.CreatedAt, &req.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, requestID string) (*MatchingRequest, error) {
	req, err := r.scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM matching_requests WHERE request_id = $1`, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	return req, err
}

func (r *repoPG) ListByHospital(ctx context.Context, hospitalID string, limit, offset int) ([]*MatchingRequest, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM matching_requests WHERE requesting_hospital_id = $1`,
		hospitalID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+requestCols+` FROM matching_requests
		WHERE requesting_hospital_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		hospitalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MatchingRequest
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, req)
	}
	return items, total, rows.Err()
}

// Resolve flips a matched request to its decision status. The status guard
// in the WHERE clause makes the first responder win; later attempts see
// zero rows updated.
func (r *repoPG) Resolve(ctx context.Context, requestID, status string, donorID, hospitalID *string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE matching_requests
		SET status = $2, matched_donor_id = $3, matched_hospital_id = $4, updated_at = NOW()
		WHERE request_id = $1 AND status = $5`,
		requestID, status, donorID, hospitalID, StatusMatched)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) StatusCounts(ctx context.Context, hospitalID string) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, COUNT(*) FROM matching_requests
		WHERE requesting_hospital_id = $1
		GROUP BY status`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) IncomingForHospital(ctx context.Context, hospitalID string) ([]*IncomingMatch, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT n.notification_id, r.request_id, r.patient_id, r.organ_type, r.blood_type,
			r.urgency_level, r.requesting_hospital_id, h.name, n.metadata, n.created_at
		FROM notifications n
		JOIN matching_requests r ON r.request_id = n.related_id
		JOIN hospitals h ON h.hospital_id = r.requesting_hospital_id
		WHERE n.hospital_id = $1 AND n.type = 'organ_match' AND NOT n.is_read
		ORDER BY n.created_at DESC`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*IncomingMatch
	for rows.Next() {
		var (
			m        IncomingMatch
			metadata []byte
		)
		if err := rows.Scan(&m.NotificationID, &m.RequestID, &m.PatientID, &m.OrganType,
			&m.BloodType, &m.UrgencyLevel, &m.RequestingHospitalID, &m.RequestingHospital,
			&metadata, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			var payload MatchPayload
			if err := json.Unmarshal(metadata, &payload); err != nil {
				return nil, fmt.Errorf("decode notification payload %s: %w", m.NotificationID, err)
			}
			m.Matches = payload.Matches
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

func (r *repoPG) IncomingCount(ctx context.Context, hospitalID string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE hospital_id = $1 AND type = 'organ_match'`,
		hospitalID).Scan(&n)
	return n, err
}
