package patient

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

const patientCols = `patient_id, hospital_id, full_name, age, gender, blood_type, organ_needed,
	urgency_level, medical_condition, contact_phone, contact_email, signature_hash,
	signature_verified, ledger_tx_hash, is_active, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.PatientID, &p.HospitalID, &p.FullName, &p.Age, &p.Gender,
		&p.BloodType, &p.OrganNeeded, &p.UrgencyLevel, &p.MedicalCondition,
		&p.ContactPhone, &p.ContactEmail, &p.SignatureHash, &p.SignatureVerified,
		&p.LedgerTxHash, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (patient_id, hospital_id, full_name, age, gender, blood_type,
			organ_needed, urgency_level, medical_condition, contact_phone, contact_email,
			signature_hash, signature_verified, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		p.PatientID, p.HospitalID, p.FullName, p.Age, p.Gender, p.BloodType,
		p.OrganNeeded, p.UrgencyLevel, p.MedicalCondition, p.ContactPhone, p.ContactEmail,
		p.SignatureHash, p.SignatureVerified, p.IsActive).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, patientID string) (*Patient, error) {
	p, err := r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE patient_id = $1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) ListByHospital(ctx context.Context, hospitalID string, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE hospital_id = $1`, hospitalID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE hospital_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, hospitalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET full_name=$2, age=$3, gender=$4, blood_type=$5, organ_needed=$6,
			urgency_level=$7, medical_condition=$8, contact_phone=$9, contact_email=$10,
			updated_at=NOW()
		WHERE patient_id = $1`,
		p.PatientID, p.FullName, p.Age, p.Gender, p.BloodType, p.OrganNeeded,
		p.UrgencyLevel, p.MedicalCondition, p.ContactPhone, p.ContactEmail)
	return err
}

func (r *repoPG) UpdateSignature(ctx context.Context, patientID, hash string, verified bool) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET signature_hash=$2, signature_verified=$3, updated_at=NOW()
		WHERE patient_id = $1`, patientID, hash, verified)
	return err
}

func (r *repoPG) SetLedgerTx(ctx context.Context, patientID, txHash string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET ledger_tx_hash=$2, updated_at=NOW() WHERE patient_id = $1`,
		patientID, txHash)
	return err
}

func (r *repoPG) SetActive(ctx context.Context, patientID string, active bool) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET is_active=$2, updated_at=NOW() WHERE patient_id = $1`,
		patientID, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) Delete(ctx context.Context, patientID string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE patient_id = $1`, patientID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
