package matching

import (
	"context"
)

// Repository persists matching requests. Resolve applies the decision only
// when the request is still in the matched state, returning false when a
// concurrent responder got there first.
type Repository interface {
	Create(ctx context.Context, r *MatchingRequest) error
	GetByID(ctx context.Context, requestID string) (*MatchingRequest, error)
	ListByHospital(ctx context.Context, hospitalID string, limit, offset int) ([]*MatchingRequest, int, error)
	Resolve(ctx context.Context, requestID, status string, donorID, hospitalID *string) (bool, error)
	StatusCounts(ctx context.Context, hospitalID string) (map[string]int, error)
	IncomingForHospital(ctx context.Context, hospitalID string) ([]*IncomingMatch, error)
	// IncomingCount counts every organ_match notification the hospital has
	// received, including read ones; IncomingForHospital lists only unread.
	IncomingCount(ctx context.Context, hospitalID string) (int, error)
}

// DonorSource is the engine's view of the donor registry. FindCandidates
// returns active, signature-verified donors offering the organ with a blood
// type in bloodTypes, excluding the requesting hospital's own pool.
type DonorSource interface {
	FindCandidates(ctx context.Context, organType string, bloodTypes []string, excludeHospitalID string) ([]Donor, error)
	OwnedBy(ctx context.Context, donorID, hospitalID string) (bool, error)
}

// PatientSource verifies that the patient a request names belongs to the
// requesting hospital.
type PatientSource interface {
	Owned(ctx context.Context, patientID, hospitalID string) (bool, error)
}

// Notifier delivers cross-hospital notifications. Delivery failures must not
// fail the matching operation; the service logs and continues.
type Notifier interface {
	Notify(ctx context.Context, hospitalID, kind, title, message, relatedID string, payload interface{}) error
	MarkReadByRelated(ctx context.Context, relatedID, hospitalID string) error
}
