package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/organlink/organlink/internal/platform/ocr"
)

type mockRepo struct {
	items map[string]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[string]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.items[p.PatientID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Patient, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) ListByHospital(_ context.Context, hospitalID string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.items {
		if p.HospitalID == hospitalID {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	existing, ok := m.items[p.PatientID]
	if !ok {
		return ErrNotFound
	}
	p.HospitalID = existing.HospitalID
	m.items[p.PatientID] = p
	return nil
}

func (m *mockRepo) UpdateSignature(_ context.Context, id, hash string, verified bool) error {
	p, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	p.SignatureHash = hash
	p.SignatureVerified = verified
	return nil
}

func (m *mockRepo) SetLedgerTx(_ context.Context, id, txHash string) error {
	p, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	p.LedgerTxHash = txHash
	return nil
}

func (m *mockRepo) SetActive(_ context.Context, id string, active bool) (bool, error) {
	p, ok := m.items[id]
	if !ok {
		return false, nil
	}
	p.IsActive = active
	return true, nil
}

func (m *mockRepo) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := m.items[id]; !ok {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

type fakePinner struct{ hash string }

func (f fakePinner) PinFile(_ context.Context, _ string, _ []byte) (string, error) {
	return f.hash, nil
}

func (f fakePinner) PinJSON(_ context.Context, _ string, _ interface{}) (string, error) {
	return f.hash, nil
}

type fakeVerifier struct{ verdict ocr.Verdict }

func (f fakeVerifier) VerifySignature(_ context.Context, _ []byte) (ocr.Verdict, error) {
	return f.verdict, nil
}

type recordingRegistrar struct {
	registered chan string
	verified   chan string
}

func newRecordingRegistrar() *recordingRegistrar {
	return &recordingRegistrar{
		registered: make(chan string, 4),
		verified:   make(chan string, 4),
	}
}

func (r *recordingRegistrar) RegisterDonor(_ context.Context, donorID, _, _, _ string) (string, error) {
	r.registered <- donorID
	return "0xdonor", nil
}

func (r *recordingRegistrar) RegisterPatient(_ context.Context, patientID, _, _, _, _, _ string) (string, error) {
	r.registered <- patientID
	return "0xpatient", nil
}

func (r *recordingRegistrar) VerifySignature(_ context.Context, recordID string, _, _ bool) (string, error) {
	r.verified <- recordID
	return "0xverify", nil
}

func waitFor(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ledger call")
		return ""
	}
}

func newTestService() (*Service, *mockRepo, *recordingRegistrar) {
	repo := newMockRepo()
	registrar := newRecordingRegistrar()
	svc := NewService(repo, fakePinner{hash: "Qmabc123"}, fakeVerifier{verdict: ocr.Verdict{Verified: true, Confidence: 0.92}}, registrar, zerolog.Nop())
	return svc, repo, registrar
}

func validPatient(hospitalID string) *Patient {
	return &Patient{
		HospitalID:   hospitalID,
		FullName:     "Asha Rao",
		Age:          41,
		Gender:       "female",
		BloodType:    "B+",
		OrganNeeded:  "Kidney",
		UrgencyLevel: "High",
	}
}

func TestRegister_AssignsIDAndMirrorsToLedger(t *testing.T) {
	svc, repo, registrar := newTestService()
	p := validPatient("HOSP_1")
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PatientID == "" || !p.IsActive {
		t.Errorf("patient not initialized: %+v", p)
	}
	if _, ok := repo.items[p.PatientID]; !ok {
		t.Error("patient not persisted")
	}
	if got := waitFor(t, registrar.registered); got != p.PatientID {
		t.Errorf("ledger saw %s, want %s", got, p.PatientID)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	cases := []func(*Patient){
		func(p *Patient) { p.FullName = "" },
		func(p *Patient) { p.Age = 0 },
		func(p *Patient) { p.Age = 130 },
		func(p *Patient) { p.BloodType = "Q+" },
		func(p *Patient) { p.OrganNeeded = "Spleen" },
		func(p *Patient) { p.UrgencyLevel = "Desperate" },
	}
	for i, mutate := range cases {
		p := validPatient("HOSP_1")
		mutate(p)
		if err := svc.Register(context.Background(), p); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, p)
		}
	}
}

func TestGet_ScopedToOwningHospital(t *testing.T) {
	svc, _, _ := newTestService()
	p := validPatient("HOSP_1")
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Get(context.Background(), p.PatientID, "HOSP_1"); err != nil {
		t.Errorf("owner fetch failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), p.PatientID, "HOSP_2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign fetch err = %v, want ErrNotFound", err)
	}
}

func TestAttachSignature(t *testing.T) {
	svc, repo, registrar := newTestService()
	p := validPatient("HOSP_1")
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("register: %v", err)
	}
	waitFor(t, registrar.registered)

	updated, err := svc.AttachSignature(context.Background(), p.PatientID, "HOSP_1", "consent.pdf", []byte("%PDF-1.4 consent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.SignatureHash != "Qmabc123" {
		t.Errorf("signature hash = %s, want Qmabc123", updated.SignatureHash)
	}
	if !updated.SignatureVerified {
		t.Error("signature should be verified by the OCR verdict")
	}
	if !repo.items[p.PatientID].SignatureVerified {
		t.Error("verdict not persisted")
	}
	if got := waitFor(t, registrar.verified); got != p.PatientID {
		t.Errorf("ledger verification saw %s, want %s", got, p.PatientID)
	}
}

func TestAttachSignature_EmptyDocument(t *testing.T) {
	svc, _, registrar := newTestService()
	p := validPatient("HOSP_1")
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("register: %v", err)
	}
	waitFor(t, registrar.registered)

	if _, err := svc.AttachSignature(context.Background(), p.PatientID, "HOSP_1", "x.pdf", nil); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestOwned(t *testing.T) {
	svc, _, registrar := newTestService()
	p := validPatient("HOSP_1")
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("register: %v", err)
	}
	waitFor(t, registrar.registered)

	if ok, _ := svc.Owned(context.Background(), p.PatientID, "HOSP_1"); !ok {
		t.Error("owner check failed for owning hospital")
	}
	if ok, _ := svc.Owned(context.Background(), p.PatientID, "HOSP_2"); ok {
		t.Error("owner check passed for foreign hospital")
	}
	if ok, _ := svc.Owned(context.Background(), "PAT_MISSING", "HOSP_1"); ok {
		t.Error("owner check passed for missing patient")
	}

	if err := svc.SetActive(context.Background(), p.PatientID, "HOSP_1", false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if ok, _ := svc.Owned(context.Background(), p.PatientID, "HOSP_1"); ok {
		t.Error("inactive patient must not pass the ownership check")
	}
}
