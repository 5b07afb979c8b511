package donor

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, d *Donor) error
	GetByID(ctx context.Context, donorID string) (*Donor, error)
	ListByHospital(ctx context.Context, hospitalID string, limit, offset int) ([]*Donor, int, error)
	Update(ctx context.Context, d *Donor) error
	UpdateSignature(ctx context.Context, donorID, hash string, verified bool) error
	SetLedgerTx(ctx context.Context, donorID, txHash string) error
	SetActive(ctx context.Context, donorID string, active bool) (bool, error)
	Delete(ctx context.Context, donorID string) (bool, error)
	// FindCandidates returns the matching pool: active, signature-verified
	// donors at other hospitals pledging the organ with an acceptable blood
	// type. Rows carry the hospital name for candidate snapshots.
	FindCandidates(ctx context.Context, organType string, bloodTypes []string, excludeHospitalID string) ([]*Donor, error)
}
