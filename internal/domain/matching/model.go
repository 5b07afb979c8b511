package matching

import (
	"time"
)

// Request status values. A request is evaluated synchronously at creation,
// so the persisted status is never "created": it lands on matched or
// no_matches and may later move to accepted or rejected. no_matches,
// accepted and rejected are terminal.
const (
	StatusMatched   = "matched"
	StatusNoMatches = "no_matches"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
)

// Decision values accepted by Respond.
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

// Urgency tiers and their scoring bonus.
var urgencyScores = map[string]float64{
	"Critical": 100,
	"High":     75,
	"Medium":   50,
	"Low":      25,
}

// ValidUrgency reports whether level is a recognized urgency tier.
func ValidUrgency(level string) bool {
	_, ok := urgencyScores[level]
	return ok
}

// Need is a patient's requirement driving one matching attempt.
type Need struct {
	PatientID    string `json:"patient_id"`
	HospitalID   string `json:"hospital_id"`
	OrganType    string `json:"organ_type"`
	BloodType    string `json:"blood_type"`
	UrgencyLevel string `json:"urgency_level"`
}

// Donor is the projection of a donor record the engine scores against. It is
// deliberately smaller than the registry's donor row; the storage adapter
// maps between the two.
type Donor struct {
	DonorID      string    `json:"donor_id"`
	FullName     string    `json:"full_name"`
	BloodType    string    `json:"blood_type"`
	Organs       []string  `json:"organs"`
	HospitalID   string    `json:"hospital_id"`
	HospitalName string    `json:"hospital_name"`
	RegisteredAt time.Time `json:"registered_at"`
}

// MatchCandidate is one donor scored against one need. All sub-scores and
// the composite lie in [0,100].
type MatchCandidate struct {
	DonorID            string    `json:"donor_id"`
	DonorName          string    `json:"donor_name"`
	BloodType          string    `json:"blood_type"`
	OrgansAvailable    []string  `json:"organs_available"`
	HospitalID         string    `json:"hospital_id"`
	HospitalName       string    `json:"hospital_name"`
	MatchScore         float64   `json:"match_score"`
	CompatibilityScore float64   `json:"compatibility_score"`
	UrgencyBonus       float64   `json:"urgency_bonus"`
	DistanceScore      float64   `json:"distance_score"`
	FreshnessScore     float64   `json:"freshness_score"`
	RegistrationTime   time.Time `json:"registration_time"`
}

// MatchResult is the ranked outcome of evaluating one need against the
// cross-hospital donor pool.
type MatchResult struct {
	PatientID    string           `json:"patient_id"`
	Matches      []MatchCandidate `json:"matches"`
	TotalMatches int              `json:"total_matches"`
	BestMatch    *MatchCandidate  `json:"best_match,omitempty"`
}

// MatchingRequest is the durable record of one matching attempt. The full
// ranked candidate snapshot is persisted so hospitals and auditors can see
// the alternatives even after resolution. Requests are never deleted.
type MatchingRequest struct {
	RequestID            string           `db:"request_id" json:"request_id"`
	PatientID            string           `db:"patient_id" json:"patient_id"`
	RequestingHospitalID string           `db:"requesting_hospital_id" json:"requesting_hospital_id"`
	OrganType            string           `db:"organ_type" json:"organ_type"`
	BloodType            string           `db:"blood_type" json:"blood_type"`
	UrgencyLevel         string           `db:"urgency_level" json:"urgency_level"`
	BestScore            float64          `db:"best_score" json:"best_score"`
	Status               string           `db:"status" json:"status"`
	Matches              []MatchCandidate `db:"match_details" json:"matches"`
	MatchedDonorID       *string          `db:"matched_donor_id" json:"matched_donor_id,omitempty"`
	MatchedHospitalID    *string          `db:"matched_hospital_id" json:"matched_hospital_id,omitempty"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether no further transition is defined for the request.
func (r *MatchingRequest) Terminal() bool {
	return r.Status == StatusNoMatches || r.Status == StatusAccepted || r.Status == StatusRejected
}

// ViewFor returns the request as hospitalID is allowed to see it. The
// requesting hospital sees the full ranked snapshot. A hospital holding
// candidate donors sees a copy whose Matches hold only its own donors;
// other hospitals' candidates are never exposed to it. Hospitals with no
// stake in the request get nil.
func (r *MatchingRequest) ViewFor(hospitalID string) *MatchingRequest {
	if r.RequestingHospitalID == hospitalID {
		return r
	}
	var own []MatchCandidate
	for _, m := range r.Matches {
		if m.HospitalID == hospitalID {
			own = append(own, m)
		}
	}
	if len(own) == 0 {
		return nil
	}
	view := *r
	view.Matches = own
	return &view
}

// MatchPayload is the notification payload carried to a donor hospital. It
// contains only that hospital's candidate subset, never the global ranking.
type MatchPayload struct {
	Matches   []MatchCandidate `json:"matches"`
	PatientID string           `json:"patient_id"`
	RequestID string           `json:"request_id"`
}

// IncomingMatch is an unread organ_match notification joined with its
// request, shown to hospitals holding candidate donors.
type IncomingMatch struct {
	NotificationID       string           `json:"notification_id"`
	RequestID            string           `json:"request_id"`
	PatientID            string           `json:"patient_id"`
	OrganType            string           `json:"organ_type"`
	BloodType            string           `json:"blood_type"`
	UrgencyLevel         string           `json:"urgency_level"`
	RequestingHospitalID string           `json:"requesting_hospital_id"`
	RequestingHospital   string           `json:"requesting_hospital_name"`
	Matches              []MatchCandidate `json:"matches"`
	CreatedAt            time.Time        `json:"created_at"`
}

// Stats summarizes a hospital's matching activity.
type Stats struct {
	Outgoing map[string]int `json:"outgoing"`
	Incoming int            `json:"incoming"`
}
