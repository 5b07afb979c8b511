package donor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/organlink/organlink/internal/domain/matching"
	"github.com/organlink/organlink/internal/domain/patient"
	"github.com/organlink/organlink/internal/platform/ipfs"
	"github.com/organlink/organlink/internal/platform/ledger"
	"github.com/organlink/organlink/internal/platform/ocr"
)

var ErrNotFound = errors.New("donor not found")

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

func validate(d *Donor) error {
	if d.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if d.Age < 18 || d.Age > 100 {
		return fmt.Errorf("donor age must be between 18 and 100")
	}
	if !matching.ValidBloodType(d.BloodType) {
		return fmt.Errorf("invalid blood_type: %s", d.BloodType)
	}
	if len(d.OrgansToDonate) == 0 {
		return fmt.Errorf("at least one organ must be pledged")
	}
	for _, organ := range d.OrgansToDonate {
		if !patient.ValidOrgans[organ] {
			return fmt.Errorf("invalid organ: %s", organ)
		}
	}
	return nil
}

// Register creates a donor pledge and mirrors it to the ledger in the
// background.
func (s *Service) Register(ctx context.Context, d *Donor) error {
	if err := validate(d); err != nil {
		return err
	}
	d.DonorID = "DON_" + strings.ToUpper(uuid.NewString()[:12])
	d.IsActive = true
	if err := s.repo.Create(ctx, d); err != nil {
		return err
	}

	go s.mirrorToLedger(d.DonorID, d.FullName, d.BloodType, d.SignatureHash)
	return nil
}

func (s *Service) mirrorToLedger(donorID, fullName, bloodType, signatureHash string) {
	ctx := context.Background()
	txHash, err := s.registrar.RegisterDonor(ctx, donorID, fullName, bloodType, signatureHash)
	if err != nil {
		s.log.Error().Err(err).Str("donor_id", donorID).Msg("ledger registration failed")
		return
	}
	if txHash == "" {
		return
	}
	if err := s.repo.SetLedgerTx(ctx, donorID, txHash); err != nil {
		s.log.Error().Err(err).Str("donor_id", donorID).Msg("store ledger tx failed")
	}
}

// Get returns a donor only to its owning hospital.
func (s *Service) Get(ctx context.Context, donorID, hospitalID string) (*Donor, error) {
	d, err := s.repo.GetByID(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if d.HospitalID != hospitalID {
		return nil, ErrNotFound
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, hospitalID string, limit, offset int) ([]*Donor, int, error) {
	return s.repo.ListByHospital(ctx, hospitalID, limit, offset)
}

func (s *Service) Update(ctx context.Context, d *Donor, hospitalID string) error {
	existing, err := s.Get(ctx, d.DonorID, hospitalID)
	if err != nil {
		return err
	}
	d.HospitalID = existing.HospitalID
	if err := validate(d); err != nil {
		return err
	}
	return s.repo.Update(ctx, d)
}

// AttachSignature pins the consent document, verifies it and records the
// verdict. Only verified donors enter the matching pool.
func (s *Service) AttachSignature(ctx context.Context, donorID, hospitalID, filename string, document []byte) (*Donor, error) {
	d, err := s.Get(ctx, donorID, hospitalID)
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
		s.log.Warn().Err(err).Str("donor_id", donorID).Msg("signature verification failed, leaving unverified")
		verdict = ocr.Verdict{}
	}

	if err := s.repo.UpdateSignature(ctx, donorID, hash, verdict.Verified); err != nil {
		return nil, err
	}
	go func() {
		if _, err := s.registrar.VerifySignature(context.Background(), donorID, false, verdict.Verified); err != nil {
			s.log.Error().Err(err).Str("donor_id", donorID).Msg("ledger verification failed")
		}
	}()

	d.SignatureHash = hash
	d.SignatureVerified = verdict.Verified
	return d, nil
}

func (s *Service) SetActive(ctx context.Context, donorID, hospitalID string, active bool) error {
	if _, err := s.Get(ctx, donorID, hospitalID); err != nil {
		return err
	}
	ok, err := s.repo.SetActive(ctx, donorID, active)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, donorID, hospitalID string) error {
	if _, err := s.Get(ctx, donorID, hospitalID); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, donorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// FindCandidates exposes the matching pool query.
func (s *Service) FindCandidates(ctx context.Context, organType string, bloodTypes []string, excludeHospitalID string) ([]*Donor, error) {
	return s.repo.FindCandidates(ctx, organType, bloodTypes, excludeHospitalID)
}

// OwnedBy reports whether an active donor belongs to the hospital. Used when
// a hospital accepts a match with one of its donors.
func (s *Service) OwnedBy(ctx context.Context, donorID, hospitalID string) (bool, error) {
	d, err := s.repo.GetByID(ctx, donorID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return d.HospitalID == hospitalID && d.IsActive, nil
}
