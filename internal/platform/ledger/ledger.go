// Package ledger abstracts the testnet registry contract that mirrors donor
// and patient registrations. Writes are fire-and-forget audit records made
// only after the row already exists in PostgreSQL; a ledger outage never
// blocks portal operations.
package ledger

import (
	"context"

	"github.com/rs/zerolog"
)

// Registrar records registrations and signature verdicts on the ledger.
// Implementations are expected to be slow and unreliable; callers invoke them
// asynchronously and treat failures as log-only events.
type Registrar interface {
	RegisterDonor(ctx context.Context, donorID, fullName, bloodType, signatureHash string) (txHash string, err error)
	RegisterPatient(ctx context.Context, patientID, fullName, bloodType, organNeeded, urgencyLevel, signatureHash string) (txHash string, err error)
	VerifySignature(ctx context.Context, recordID string, isPatient, verified bool) (txHash string, err error)
}

// LogRegistrar is the default Registrar used when no ledger endpoint is
// configured. It records the intent in the structured log and succeeds.
type LogRegistrar struct {
	logger zerolog.Logger
}

func NewLogRegistrar(logger zerolog.Logger) *LogRegistrar {
	return &LogRegistrar{logger: logger}
}

func (r *LogRegistrar) RegisterDonor(ctx context.Context, donorID, fullName, bloodType, signatureHash string) (string, error) {
	r.logger.Info().
		Str("donor_id", donorID).
		Str("blood_type", bloodType).
		Msg("ledger registration skipped: no ledger configured")
	return "", nil
}

func (r *LogRegistrar) RegisterPatient(ctx context.Context, patientID, fullName, bloodType, organNeeded, urgencyLevel, signatureHash string) (string, error) {
	r.logger.Info().
		Str("patient_id", patientID).
		Str("organ_needed", organNeeded).
		Msg("ledger registration skipped: no ledger configured")
	return "", nil
}

func (r *LogRegistrar) VerifySignature(ctx context.Context, recordID string, isPatient, verified bool) (string, error) {
	r.logger.Info().
		Str("record_id", recordID).
		Bool("verified", verified).
		Msg("ledger verification skipped: no ledger configured")
	return "", nil
}
