package donor

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

const donorCols = `donor_id, hospital_id, full_name, age, gender, blood_type, organs_to_donate,
	medical_history, contact_phone, contact_email, signature_hash, signature_verified,
	ledger_tx_hash, is_active, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Donor, error) {
	var d Donor
	err := row.Scan(&d.DonorID, &d.HospitalID, &d.FullName, &d.Age, &d.Gender,
		&d.BloodType, &d.OrgansToDonate, &d.MedicalHistory, &d.ContactPhone,
		&d.ContactEmail, &d.SignatureHash, &d.SignatureVerified, &d.LedgerTxHash,
		&d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Donor) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO donors (donor_id, hospital_id, full_name, age, gender, blood_type,
			organs_to_donate, medical_history, contact_phone, contact_email,
			signature_hash, signature_verified, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		d.DonorID, d.HospitalID, d.FullName, d.Age, d.Gender, d.BloodType,
		d.OrgansToDonate, d.MedicalHistory, d.ContactPhone, d.ContactEmail,
		d.SignatureHash, d.SignatureVerified, d.IsActive).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, donorID string) (*Donor, error) {
	d, err := r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+donorCols+` FROM donors WHERE donor_id = $1`, donorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (r *repoPG) ListByHospital(ctx context.Context, hospitalID string, limit, offset int) ([]*Donor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM donors WHERE hospital_id = $1`, hospitalID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+donorCols+` FROM donors
		WHERE hospital_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, hospitalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Donor
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, d *Donor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE donors SET full_name=$2, age=$3, gender=$4, blood_type=$5, organs_to_donate=$6,
			medical_history=$7, contact_phone=$8, contact_email=$9, updated_at=NOW()
		WHERE donor_id = $1`,
		d.DonorID, d.FullName, d.Age, d.Gender, d.BloodType, d.OrgansToDonate,
		d.MedicalHistory, d.ContactPhone, d.ContactEmail)
	return err
}

func (r *repoPG) UpdateSignature(ctx context.Context, donorID, hash string, verified bool) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE donors SET signature_hash=$2, signature_verified=$3, updated_at=NOW()
		WHERE donor_id = $1`, donorID, hash, verified)
	return err
}

func (r *repoPG) SetLedgerTx(ctx context.Context, donorID, txHash string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE donors SET ledger_tx_hash=$2, updated_at=NOW() WHERE donor_id = $1`,
		donorID, txHash)
	return err
}

func (r *repoPG) SetActive(ctx context.Context, donorID string, active bool) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE donors SET is_active=$2, updated_at=NOW() WHERE donor_id = $1`,
		donorID, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) Delete(ctx context.Context, donorID string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM donors WHERE donor_id = $1`, donorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) FindCandidates(ctx context.Context, organType string, bloodTypes []string, excludeHospitalID string) ([]*Donor, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT d.donor_id, d.hospital_id, h.name, d.full_name, d.blood_type,
			d.organs_to_donate, d.created_at
		FROM donors d
		JOIN hospitals h ON h.hospital_id = d.hospital_id
		WHERE d.is_active
		  AND d.signature_verified
		  AND $1 = ANY(d.organs_to_donate)
		  AND d.blood_type = ANY($2)
		  AND d.hospital_id <> $3
		  AND h.status = 'active'
		ORDER BY d.created_at`,
		organType, bloodTypes, excludeHospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Donor
	for rows.Next() {
		var d Donor
		if err := rows.Scan(&d.DonorID, &d.HospitalID, &d.HospitalName, &d.FullName,
			&d.BloodType, &d.OrgansToDonate, &d.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}
