package matching

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// -- Mocks --

type mockRepo struct {
	items map[string]*MatchingRequest
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[string]*MatchingRequest)}
}

func (m *mockRepo) Create(_ context.Context, r *MatchingRequest) error {
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.items[r.RequestID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, requestID string) (*MatchingRequest, error) {
	r, ok := m.items[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) ListByHospital(_ context.Context, hospitalID string, limit, offset int) ([]*MatchingRequest, int, error) {
	var result []*MatchingRequest
	for _, r := range m.items {
		if r.RequestingHospitalID == hospitalID {
			result = append(result, r)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) Resolve(_ context.Context, requestID, status string, donorID, hospitalID *string) (bool, error) {
	r, ok := m.items[requestID]
	if !ok || r.Status != StatusMatched {
		return false, nil
	}
	r.Status = status
	r.MatchedDonorID = donorID
	r.MatchedHospitalID = hospitalID
	r.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockRepo) StatusCounts(_ context.Context, hospitalID string) (map[string]int, error) {
	counts := map[string]int{}
	for _, r := range m.items {
		if r.RequestingHospitalID == hospitalID {
			counts[r.Status]++
		}
	}
	return counts, nil
}

func (m *mockRepo) IncomingForHospital(_ context.Context, _ string) ([]*IncomingMatch, error) {
	return nil, nil
}

func (m *mockRepo) IncomingCount(_ context.Context, _ string) (int, error) {
	return 0, nil
}

type mockDonorSource struct {
	donors []Donor
	owners map[string]string // donor ID -> hospital ID
}

func (m *mockDonorSource) FindCandidates(_ context.Context, organType string, bloodTypes []string, excludeHospitalID string) ([]Donor, error) {
	allowed := map[string]bool{}
	for _, bt := range bloodTypes {
		allowed[bt] = true
	}
	var result []Donor
	for _, d := range m.donors {
		if d.HospitalID == excludeHospitalID || !allowed[d.BloodType] {
			continue
		}
		hasOrgan := false
		for _, o := range d.Organs {
			if o == organType {
				hasOrgan = true
			}
		}
		if hasOrgan {
			result = append(result, d)
		}
	}
	return result, nil
}

func (m *mockDonorSource) OwnedBy(_ context.Context, donorID, hospitalID string) (bool, error) {
	return m.owners[donorID] == hospitalID, nil
}

type mockPatientSource struct {
	owners map[string]string // patient ID -> hospital ID
}

func (m *mockPatientSource) Owned(_ context.Context, patientID, hospitalID string) (bool, error) {
	return m.owners[patientID] == hospitalID, nil
}

type sentNotification struct {
	HospitalID string
	Kind       string
	RelatedID  string
	Payload    interface{}
}

type mockNotifier struct {
	sent    []sentNotification
	marked  []string // "relatedID/hospitalID"
	sendErr error
}

func (m *mockNotifier) Notify(_ context.Context, hospitalID, kind, _, _, relatedID string, payload interface{}) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentNotification{HospitalID: hospitalID, Kind: kind, RelatedID: relatedID, Payload: payload})
	return nil
}

func (m *mockNotifier) MarkReadByRelated(_ context.Context, relatedID, hospitalID string) error {
	m.marked = append(m.marked, relatedID+"/"+hospitalID)
	return nil
}

// -- Fixtures --

func fixedScorer() *Scorer {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &Scorer{Proximity: PairHashEstimator{}, Now: func() time.Time { return now }}
}

func freshDonor(id, name, bt, hospital string, organs ...string) Donor {
	return Donor{
		DonorID:      id,
		FullName:     name,
		BloodType:    bt,
		Organs:       organs,
		HospitalID:   hospital,
		HospitalName: "Hospital " + hospital,
		RegisteredAt: time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC),
	}
}

func newTestService(repo *mockRepo, donors *mockDonorSource, patients *mockPatientSource, notifier *mockNotifier) *Service {
	return NewService(repo, donors, patients, notifier, fixedScorer(), zerolog.Nop())
}

// -- FindMatches --

func TestFindMatches_RanksCompatibleDonors(t *testing.T) {
	donors := &mockDonorSource{donors: []Donor{
		freshDonor("DON_1", "Donor One", "O+", "HOSP_2", "Kidney"),
		freshDonor("DON_2", "Donor Two", "O-", "HOSP_3", "Kidney"),
		freshDonor("DON_3", "Donor Three", "A+", "HOSP_2", "Kidney"),
	}}
	svc := newTestService(newMockRepo(), donors, &mockPatientSource{}, &mockNotifier{})

	need := Need{PatientID: "PAT_1", HospitalID: "HOSP_1", OrganType: "Kidney", BloodType: "O+", UrgencyLevel: "High"}
	result, err := svc.FindMatches(context.Background(), need)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// O+ recipient accepts O+ and O- donors; the A+ donor is filtered out.
	if result.TotalMatches != 2 {
		t.Fatalf("total matches = %d, want 2", result.TotalMatches)
	}
	if result.BestMatch == nil || result.BestMatch.DonorID != "DON_1" {
		t.Errorf("best match = %+v, want exact-type donor DON_1", result.BestMatch)
	}
	if result.Matches[0].CompatibilityScore != 100 {
		t.Errorf("exact donor compatibility = %v, want 100", result.Matches[0].CompatibilityScore)
	}
	if result.Matches[1].CompatibilityScore != 80 {
		t.Errorf("compatible donor compatibility = %v, want 80", result.Matches[1].CompatibilityScore)
	}
}

func TestFindMatches_Deterministic(t *testing.T) {
	donors := &mockDonorSource{donors: []Donor{
		freshDonor("DON_1", "One", "O+", "HOSP_2", "Kidney"),
		freshDonor("DON_2", "Two", "O-", "HOSP_3", "Kidney"),
		freshDonor("DON_3", "Three", "O+", "HOSP_4", "Kidney"),
	}}
	svc := newTestService(newMockRepo(), donors, &mockPatientSource{}, &mockNotifier{})
	need := Need{PatientID: "PAT_1", HospitalID: "HOSP_1", OrganType: "Kidney", BloodType: "O+", UrgencyLevel: "Medium"}

	first, err := svc.FindMatches(context.Background(), need)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.FindMatches(context.Background(), need)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first.Matches, again.Matches) {
			t.Fatalf("ranking changed between evaluations:\n%+v\n%+v", first.Matches, again.Matches)
		}
	}
}

func TestFindMatches_ExcludesRequestingHospital(t *testing.T) {
	donors := &mockDonorSource{donors: []Donor{
		freshDonor("DON_OWN", "Own Donor", "O+", "HOSP_1", "Kidney"),
		freshDonor("DON_EXT", "External Donor", "O+", "HOSP_2", "Kidney"),
	}}
	svc := newTestService(newMockRepo(), donors, &mockPatientSource{}, &mockNotifier{})
	need := Need{PatientID: "PAT_1", HospitalID: "HOSP_1", OrganType: "Kidney", BloodType: "O+", UrgencyLevel: "Low"}

	result, err := svc.FindMatches(context.Background(), need)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalMatches != 1 || result.Matches[0].DonorID != "DON_EXT" {
		t.Errorf("expected only the external donor, got %+v", result.Matches)
	}
}

func TestFindMatches_RejectsBadInput(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockDonorSource{}, &mockPatientSource{}, &mockNotifier{})
	cases := []Need{
		{HospitalID: "HOSP_1", OrganType: "Kidney", BloodType: "O+", UrgencyLevel: "High"},
		{PatientID: "PAT_1", HospitalID: "HOSP_1", BloodType: "O+", UrgencyLevel: "High"},
		{PatientID: "PAT_1", HospitalID: "HOSP_1", OrganType: "Kidney", BloodType: "X+", UrgencyLevel: "High"},
		{PatientID: "PAT_1", HospitalID: "HOSP_1", OrganType: "Kidney", BloodType: "O+", UrgencyLevel: "Extreme"},
	}
	for i, need := range cases {
		if _, err := svc.FindMatches(context.Background(), need); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, need)
		}
	}
}

// -- CreateRequest --

func TestCreateRequest_FanOutPerHospital(t *testing.T) {
	donors := &mockDonorSource{donors: []Donor{
		freshDonor("DON_A1", "A1", "O+", "HOSP_2", "Kidney"),
		freshDonor("DON_A2", "A2", "O-", "HOSP_2", "Kidney"),
		freshDonor("DON_B1", "B1", "O+", "HOSP_3", "Kidney"),
	}}
	patients := &mockPatientSource{owners: map[string]string{"PAT_1": "HOSP_1"}}
	notifier := &mockNotifier{}
	repo := newMockRepo()
	svc := newTestService(repo, donors, patients, notifier)

	need := Need{PatientID: "PAT_1", HospitalID: "HOSP_1", OrganType: "Kidney", BloodType: "O+", UrgencyLevel: "Critical"}
	req, err := svc.CreateRequest(context.Background(), need)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != StatusMatched {
		t.Fatalf("status = %s, want %s", req.Status, StatusMatched)
	}
	if req.BestScore != req.Matches[0].MatchScore {
		t.Errorf("best score = %v, want %v", req.BestScore, req.Matches[0].MatchScore)
	}

	if len(notifier.sent) != 2 {
		t.Fatalf("notifications sent = %d, want one per donor hospital (2)", len(notifier.sent))
	}
	for _, n := range notifier.sent {
		if n.Kind != "organ_match" || n.RelatedID != req.RequestID {
			t.Errorf("unexpected notification %+v", n)
		}
		payload, ok := n.Payload.(MatchPayload)
		if !ok {
			t.Fatalf("payload type %T, want MatchPayload", n.Payload)
		}
		for _, m := range payload.Matches {
			if m.HospitalID != n.HospitalID {
				t.Errorf("hospital %s received candidate of %s", n.HospitalID, m.HospitalID)
			}
		}
	}
}

func TestCreateRequest_NoMatches(t *testing.T) {
	patients := &mockPatientSource{owners: map[string]string{"PAT_1": "HOSP_1"}}
	notifier := &mockNotifier{}
	svc := newTestService(newMockRepo(), &mockDonorSource{}, patients, notifier)

	need := Need{PatientID: "PAT_1", HospitalID: "HOSP_1", OrganType: "Heart", BloodType: "AB-", UrgencyLevel: "Critical"}
	req, err := svc.CreateRequest(context.Background(), need)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != StatusNoMatches {
		t.Errorf("status = %s, want %s", req.Status, StatusNoMatches)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("notifications sent = %d, want 0", len(notifier.sent))
	}
	if req.BestScore != 0 {
		t.Errorf("best score = %v, want 0", req.BestScore)
	}
}

func TestCreateRequest_PatientMustBelongToHospital(t *testing.T) {
	patients := &mockPatientSource{owners: map[string]string{"PAT_1": "HOSP_9"}}
	svc := newTestService(newMockRepo(), &mockDonorSource{}, patients, &mockNotifier{})

	need := Need{PatientID: "PAT_1", HospitalID: "HOSP_1", OrganType: "Kidney", BloodType: "O+", UrgencyLevel: "High"}
	if _, err := svc.CreateRequest(context.Background(), need); err == nil {
		t.Fatal("expected error for foreign patient")
	}
}

func TestCreateRequest_NotificationFailureDoesNotFail(t *testing.T) {
	donors := &mockDonorSource{donors: []Donor{
		freshDonor("DON_1", "One", "O+", "HOSP_2", "Kidney"),
	}}
	patients := &mockPatientSource{owners: map[string]string{"PAT_1": "HOSP_1"}}
	notifier := &mockNotifier{sendErr: fmt.Errorf("broker down")}
	svc := newTestService(newMockRepo(), donors, patients, notifier)

	need := Need{PatientID: "PAT_1", HospitalID: "HOSP_1", OrganType: "Kidney", BloodType: "O+", UrgencyLevel: "High"}
	req, err := svc.CreateRequest(context.Background(), need)
	if err != nil {
		t.Fatalf("request should survive notification failure, got %v", err)
	}
	if req.Status != StatusMatched {
		t.Errorf("status = %s, want %s", req.Status, StatusMatched)
	}
}

// -- Respond --

func seededRequest(t *testing.T, repo *mockRepo, donors *mockDonorSource, patients *mockPatientSource, notifier *mockNotifier) *MatchingRequest {
	t.Helper()
	svc := newTestService(repo, donors, patients, notifier)
	need := Need{PatientID: "PAT_1", HospitalID: "HOSP_1", OrganType: "Kidney", BloodType: "O+", UrgencyLevel: "High"}
	req, err := svc.CreateRequest(context.Background(), need)
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return req
}

func respondFixtures() (*mockRepo, *mockDonorSource, *mockPatientSource, *mockNotifier) {
	donors := &mockDonorSource{
		donors: []Donor{
			freshDonor("DON_1", "One", "O+", "HOSP_2", "Kidney"),
			freshDonor("DON_2", "Two", "O-", "HOSP_3", "Kidney"),
		},
		owners: map[string]string{"DON_1": "HOSP_2", "DON_2": "HOSP_3"},
	}
	patients := &mockPatientSource{owners: map[string]string{"PAT_1": "HOSP_1"}}
	return newMockRepo(), donors, patients, &mockNotifier{}
}

func TestRespond_Accept(t *testing.T) {
	repo, donors, patients, notifier := respondFixtures()
	req := seededRequest(t, repo, donors, patients, notifier)
	svc := newTestService(repo, donors, patients, notifier)

	resolved, err := svc.Respond(context.Background(), req.RequestID, "HOSP_2", DecisionAccept, "DON_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Status != StatusAccepted {
		t.Errorf("status = %s, want %s", resolved.Status, StatusAccepted)
	}
	if resolved.MatchedDonorID == nil || *resolved.MatchedDonorID != "DON_1" {
		t.Errorf("matched donor = %v, want DON_1", resolved.MatchedDonorID)
	}
	if resolved.MatchedHospitalID == nil || *resolved.MatchedHospitalID != "HOSP_2" {
		t.Errorf("matched hospital = %v, want HOSP_2", resolved.MatchedHospitalID)
	}

	var response *sentNotification
	for i := range notifier.sent {
		if notifier.sent[i].Kind == "match_response" {
			response = &notifier.sent[i]
		}
	}
	if response == nil {
		t.Fatal("requesting hospital did not receive a match_response notification")
	}
	if response.HospitalID != "HOSP_1" {
		t.Errorf("response notified %s, want requesting hospital HOSP_1", response.HospitalID)
	}
	if len(notifier.marked) != 1 || notifier.marked[0] != req.RequestID+"/HOSP_2" {
		t.Errorf("original match notification not marked read: %v", notifier.marked)
	}
}

func TestRespond_AcceptRequiresOwnedDonor(t *testing.T) {
	repo, donors, patients, notifier := respondFixtures()
	req := seededRequest(t, repo, donors, patients, notifier)
	svc := newTestService(repo, donors, patients, notifier)

	_, err := svc.Respond(context.Background(), req.RequestID, "HOSP_3", DecisionAccept, "DON_1")
	if !errors.Is(err, ErrDonorNotOwned) {
		t.Fatalf("err = %v, want ErrDonorNotOwned", err)
	}

	got, _ := repo.GetByID(context.Background(), req.RequestID)
	if got.Status != StatusMatched {
		t.Errorf("request status mutated to %s by failed accept", got.Status)
	}
}

func TestRespond_SecondResponseConflicts(t *testing.T) {
	repo, donors, patients, notifier := respondFixtures()
	req := seededRequest(t, repo, donors, patients, notifier)
	svc := newTestService(repo, donors, patients, notifier)

	if _, err := svc.Respond(context.Background(), req.RequestID, "HOSP_2", DecisionAccept, "DON_1"); err != nil {
		t.Fatalf("first response: %v", err)
	}
	_, err := svc.Respond(context.Background(), req.RequestID, "HOSP_3", DecisionAccept, "DON_2")
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second response err = %v, want ErrAlreadyResolved", err)
	}

	got, _ := repo.GetByID(context.Background(), req.RequestID)
	if got.MatchedDonorID == nil || *got.MatchedDonorID != "DON_1" {
		t.Errorf("winner overwritten: %v", got.MatchedDonorID)
	}
}

func TestRespond_Reject(t *testing.T) {
	repo, donors, patients, notifier := respondFixtures()
	req := seededRequest(t, repo, donors, patients, notifier)
	svc := newTestService(repo, donors, patients, notifier)

	resolved, err := svc.Respond(context.Background(), req.RequestID, "HOSP_2", DecisionReject, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Status != StatusRejected {
		t.Errorf("status = %s, want %s", resolved.Status, StatusRejected)
	}
	if resolved.MatchedDonorID != nil {
		t.Errorf("rejected request should not record a donor, got %v", *resolved.MatchedDonorID)
	}
}

func TestRespond_InvalidDecision(t *testing.T) {
	repo, donors, patients, notifier := respondFixtures()
	req := seededRequest(t, repo, donors, patients, notifier)
	svc := newTestService(repo, donors, patients, notifier)

	if _, err := svc.Respond(context.Background(), req.RequestID, "HOSP_2", "maybe", ""); err == nil {
		t.Fatal("expected error for invalid decision")
	}
}

func TestRespond_UnknownRequest(t *testing.T) {
	repo, donors, patients, notifier := respondFixtures()
	svc := newTestService(repo, donors, patients, notifier)

	_, err := svc.Respond(context.Background(), "MATCH_REQ_MISSING", "HOSP_2", DecisionReject, "")
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("err = %v, want ErrRequestNotFound", err)
	}
}
