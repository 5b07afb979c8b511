package patient

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, patientID string) (*Patient, error)
	ListByHospital(ctx context.Context, hospitalID string, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
	UpdateSignature(ctx context.Context, patientID, hash string, verified bool) error
	SetLedgerTx(ctx context.Context, patientID, txHash string) error
	SetActive(ctx context.Context, patientID string, active bool) (bool, error)
	Delete(ctx context.Context, patientID string) (bool, error)
}
