package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrRequestNotFound is returned when the request ID does not exist.
	ErrRequestNotFound = errors.New("matching request not found")
	// ErrAlreadyResolved is returned when a response arrives after another
	// hospital's decision has already been applied.
	ErrAlreadyResolved = errors.New("matching request already resolved")
	// ErrDonorNotOwned is returned when a hospital accepts with a donor that
	// is not registered under it.
	ErrDonorNotOwned = errors.New("donor does not belong to responding hospital")
)

type Service struct {
	requests Repository
	donors   DonorSource
	patients PatientSource
	notifier Notifier
	scorer   *Scorer
	log      zerolog.Logger
}

func NewService(requests Repository, donors DonorSource, patients PatientSource, notifier Notifier, scorer *Scorer, log zerolog.Logger) *Service {
	if scorer == nil {
		scorer = NewScorer(nil)
	}
	return &Service{
		requests: requests,
		donors:   donors,
		patients: patients,
		notifier: notifier,
		scorer:   scorer,
		log:      log,
	}
}

func validateNeed(n Need) error {
	if n.PatientID == "" {
		return fmt.Errorf("patient_id is required")
	}
	if n.OrganType == "" {
		return fmt.Errorf("organ_type is required")
	}
	if !ValidBloodType(n.BloodType) {
		return fmt.Errorf("invalid blood_type: %s", n.BloodType)
	}
	if !ValidUrgency(n.UrgencyLevel) {
		return fmt.Errorf("invalid urgency_level: %s", n.UrgencyLevel)
	}
	return nil
}

// FindMatches evaluates a need against the cross-hospital donor pool without
// persisting anything. Evaluation is a pure read: callers can preview the
// ranking before committing to a request.
func (s *Service) FindMatches(ctx context.Context, need Need) (*MatchResult, error) {
	if err := validateNeed(need); err != nil {
		return nil, err
	}

	result := &MatchResult{PatientID: need.PatientID, Matches: []MatchCandidate{}}

	bloodTypes := CompatibleDonorTypes(need.BloodType)
	if len(bloodTypes) == 0 {
		return result, nil
	}

	pool, err := s.donors.FindCandidates(ctx, need.OrganType, bloodTypes, need.HospitalID)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	for _, d := range pool {
		c := s.scorer.Score(need, d)
		if c.MatchScore <= 0 {
			continue
		}
		result.Matches = append(result.Matches, c)
	}
	Rank(result.Matches)

	result.TotalMatches = len(result.Matches)
	if result.TotalMatches > 0 {
		best := result.Matches[0]
		result.BestMatch = &best
	}
	return result, nil
}

// CreateRequest runs the matching pipeline end to end: evaluate the need,
// persist the request with its full candidate snapshot, and notify every
// hospital holding candidate donors. Notification failures are logged but do
// not fail the request.
func (s *Service) CreateRequest(ctx context.Context, need Need) (*MatchingRequest, error) {
	if err := validateNeed(need); err != nil {
		return nil, err
	}

	owned, err := s.patients.Owned(ctx, need.PatientID, need.HospitalID)
	if err != nil {
		return nil, fmt.Errorf("verify patient: %w", err)
	}
	if !owned {
		return nil, fmt.Errorf("patient %s not found for hospital %s", need.PatientID, need.HospitalID)
	}

	result, err := s.FindMatches(ctx, need)
	if err != nil {
		return nil, err
	}

	req := &MatchingRequest{
		RequestID:            "MATCH_REQ_" + strings.ToUpper(uuid.NewString()[:12]),
		PatientID:            need.PatientID,
		RequestingHospitalID: need.HospitalID,
		OrganType:            need.OrganType,
		BloodType:            need.BloodType,
		UrgencyLevel:         need.UrgencyLevel,
		Status:               StatusNoMatches,
		Matches:              result.Matches,
	}
	if result.TotalMatches > 0 {
		req.Status = StatusMatched
		req.BestScore = result.BestMatch.MatchScore
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create matching request: %w", err)
	}

	if req.Status == StatusMatched {
		s.fanOut(ctx, req)
	}

	s.log.Info().
		Str("request_id", req.RequestID).
		Str("patient_id", req.PatientID).
		Str("status", req.Status).
		Int("matches", result.TotalMatches).
		Msg("matching request created")
	return req, nil
}

// fanOut sends one organ_match notification per donor hospital, each
// carrying only that hospital's candidates in ranked order.
func (s *Service) fanOut(ctx context.Context, req *MatchingRequest) {
	byHospital := map[string][]MatchCandidate{}
	var order []string
	for _, c := range req.Matches {
		if _, seen := byHospital[c.HospitalID]; !seen {
			order = append(order, c.HospitalID)
		}
		byHospital[c.HospitalID] = append(byHospital[c.HospitalID], c)
	}

	for _, hospitalID := range order {
		subset := byHospital[hospitalID]
		payload := MatchPayload{
			Matches:   subset,
			PatientID: req.PatientID,
			RequestID: req.RequestID,
		}
		title := fmt.Sprintf("Organ Match Found: %s", req.OrganType)
		msg := fmt.Sprintf("%d of your donors matched a %s request (blood type %s, urgency %s)",
			len(subset), req.OrganType, req.BloodType, req.UrgencyLevel)
		if err := s.notifier.Notify(ctx, hospitalID, "organ_match", title, msg, req.RequestID, payload); err != nil {
			s.log.Error().Err(err).
				Str("request_id", req.RequestID).
				Str("hospital_id", hospitalID).
				Msg("organ match notification failed")
		}
	}
}

// Respond applies a donor hospital's accept or reject decision. Exactly one
// decision wins per request; a second response returns ErrAlreadyResolved.
func (s *Service) Respond(ctx context.Context, requestID, respondingHospitalID, decision, donorID string) (*MatchingRequest, error) {
	if decision != DecisionAccept && decision != DecisionReject {
		return nil, fmt.Errorf("invalid decision: %s", decision)
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Terminal() {
		return nil, ErrAlreadyResolved
	}

	status := StatusRejected
	var donorRef, hospitalRef *string
	if decision == DecisionAccept {
		if donorID == "" {
			return nil, fmt.Errorf("donor_id is required to accept")
		}
		owned, err := s.donors.OwnedBy(ctx, donorID, respondingHospitalID)
		if err != nil {
			return nil, fmt.Errorf("verify donor: %w", err)
		}
		if !owned {
			return nil, ErrDonorNotOwned
		}
		status = StatusAccepted
		donorRef, hospitalRef = &donorID, &respondingHospitalID
	}

	resolved, err := s.requests.Resolve(ctx, requestID, status, donorRef, hospitalRef)
	if err != nil {
		return nil, fmt.Errorf("resolve matching request: %w", err)
	}
	if !resolved {
		return nil, ErrAlreadyResolved
	}

	verb := "rejected"
	if decision == DecisionAccept {
		verb = "accepted"
	}
	title := fmt.Sprintf("Match Response: %s", req.OrganType)
	msg := fmt.Sprintf("Hospital %s %s your %s match request for patient %s",
		respondingHospitalID, verb, req.OrganType, req.PatientID)
	if err := s.notifier.Notify(ctx, req.RequestingHospitalID, "match_response", title, msg, req.RequestID, map[string]string{
		"decision":    decision,
		"donor_id":    donorID,
		"hospital_id": respondingHospitalID,
	}); err != nil {
		s.log.Error().Err(err).
			Str("request_id", req.RequestID).
			Msg("match response notification failed")
	}
	if err := s.notifier.MarkReadByRelated(ctx, req.RequestID, respondingHospitalID); err != nil {
		s.log.Error().Err(err).
			Str("request_id", req.RequestID).
			Msg("mark match notification read failed")
	}

	return s.requests.GetByID(ctx, requestID)
}

func (s *Service) GetRequest(ctx context.Context, requestID string) (*MatchingRequest, error) {
	return s.requests.GetByID(ctx, requestID)
}

func (s *Service) ListRequests(ctx context.Context, hospitalID string, limit, offset int) ([]*MatchingRequest, int, error) {
	return s.requests.ListByHospital(ctx, hospitalID, limit, offset)
}

// IncomingMatches lists unread organ_match notifications for a hospital,
// joined with their requests.
func (s *Service) IncomingMatches(ctx context.Context, hospitalID string) ([]*IncomingMatch, error) {
	return s.requests.IncomingForHospital(ctx, hospitalID)
}

// HospitalStats returns outgoing request counts by status plus the total
// number of organ_match notifications ever delivered to the hospital,
// read or not.
func (s *Service) HospitalStats(ctx context.Context, hospitalID string) (*Stats, error) {
	outgoing, err := s.requests.StatusCounts(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	incoming, err := s.requests.IncomingCount(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	return &Stats{Outgoing: outgoing, Incoming: incoming}, nil
}
