package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/organlink/organlink/internal/domain/matching"
	"github.com/organlink/organlink/internal/platform/ipfs"
	"github.com/organlink/organlink/internal/platform/ledger"
	"github.com/organlink/organlink/internal/platform/ocr"
)

var ErrNotFound = errors.New("patient not found")

type Service struct {
	repo      Repository
	pinner    ipfs.Pinner
	verifier  ocr.SignatureVerifier
	registrar ledger.Registrar
	log       zerolog.Logger
}

func NewService(repo Repository, pinner ipfs.Pinner, verifier ocr.SignatureVerifier, registrar ledger.Registrar, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		pinner:    pinner,
		verifier:  verifier,
		registrar: registrar,
		log:       log,
	}
}

func validate(p *Patient) error {
	if p.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if p.Age <= 0 || p.Age > 120 {
		return fmt.Errorf("age must be between 1 and 120")
	}
	if !matching.ValidBloodType(p.BloodType) {
		return fmt.Errorf("invalid blood_type: %s", p.BloodType)
	}
	if !ValidOrgans[p.OrganNeeded] {
		return fmt.Errorf("invalid organ_needed: %s", p.OrganNeeded)
	}
	if !matching.ValidUrgency(p.UrgencyLevel) {
		return fmt.Errorf("invalid urgency_level: %s", p.UrgencyLevel)
	}
	return nil
}

// Register creates a waiting-list entry and mirrors it to the ledger in the
// background. The row exists regardless of the ledger's health.
func (s *Service) Register(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	p.PatientID = "PAT_" + strings.ToUpper(uuid.NewString()[:12])
	p.IsActive = true
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}

	go s.mirrorToLedger(p.PatientID, p.FullName, p.BloodType, p.OrganNeeded, p.UrgencyLevel, p.SignatureHash)
	return nil
}

func (s *Service) mirrorToLedger(patientID, fullName, bloodType, organ, urgency, signatureHash string) {
	ctx := context.Background()
	txHash, err := s.registrar.RegisterPatient(ctx, patientID, fullName, bloodType, organ, urgency, signatureHash)
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", patientID).Msg("ledger registration failed")
		return
	}
	if txHash == "" {
		return
	}
	if err := s.repo.SetLedgerTx(ctx, patientID, txHash); err != nil {
		s.log.Error().Err(err).Str("patient_id", patientID).Msg("store ledger tx failed")
	}
}

// Get returns a patient only to its owning hospital.
func (s *Service) Get(ctx context.Context, patientID, hospitalID string) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.HospitalID != hospitalID {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, hospitalID string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.ListByHospital(ctx, hospitalID, limit, offset)
}

func (s *Service) Update(ctx context.Context, p *Patient, hospitalID string) error {
	existing, err := s.Get(ctx, p.PatientID, hospitalID)
	if err != nil {
		return err
	}
	p.HospitalID = existing.HospitalID
	if err := validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

// AttachSignature pins the uploaded consent document, runs the verifier over
// it and stores the resulting hash and verdict. The verdict is also mirrored
// to the ledger.
func (s *Service) AttachSignature(ctx context.Context, patientID, hospitalID, filename string, document []byte) (*Patient, error) {
	p, err := s.Get(ctx, patientID, hospitalID)
	if err != nil {
		return nil, err
	}
	if len(document) == 0 {
		return nil, fmt.Errorf("signature document is empty")
	}

	hash, err := s.pinner.PinFile(ctx, filename, document)
	if err != nil {
		return nil, fmt.Errorf("pin signature document: %w", err)
	}
	verdict, err := s.verifier.VerifySignature(ctx, document)
	if err != nil {
		s.log.Warn().Err(err).Str("patient_id", patientID).Msg("signature verification failed, leaving unverified")
		verdict = ocr.Verdict{}
	}

	if err := s.repo.UpdateSignature(ctx, patientID, hash, verdict.Verified); err != nil {
		return nil, err
	}
	go func() {
		if _, err := s.registrar.VerifySignature(context.Background(), patientID, true, verdict.Verified); err != nil {
			s.log.Error().Err(err).Str("patient_id", patientID).Msg("ledger verification failed")
		}
	}()

	p.SignatureHash = hash
	p.SignatureVerified = verdict.Verified
	return p, nil
}

func (s *Service) SetActive(ctx context.Context, patientID, hospitalID string, active bool) error {
	if _, err := s.Get(ctx, patientID, hospitalID); err != nil {
		return err
	}
	ok, err := s.repo.SetActive(ctx, patientID, active)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, patientID, hospitalID string) error {
	if _, err := s.Get(ctx, patientID, hospitalID); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Owned implements the matching engine's patient verification port.
func (s *Service) Owned(ctx context.Context, patientID, hospitalID string) (bool, error) {
	p, err := s.repo.GetByID(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.HospitalID == hospitalID && p.IsActive, nil
}
