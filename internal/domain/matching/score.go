package matching

import (
	"math"
	"sort"
	"time"
)

// Composite weights. They sum to 1 so the composite stays in [0,100].
const (
	weightCompatibility = 0.4
	weightUrgency       = 0.3
	weightProximity     = 0.2
	weightFreshness     = 0.1
)

// ProximityEstimator scores how close a donor hospital is to the requesting
// hospital, on [0,100] with higher meaning nearer. Implementations may use
// geocoded distance; the default is a deterministic stand-in.
type ProximityEstimator interface {
	Estimate(requestingHospitalID, donorHospitalID string) float64
}

// PairHashEstimator derives a stable pseudo-distance from the hospital ID
// pair. The same pair always yields the same score, so rankings are
// reproducible across calls and across processes. Scores fall in [60,100];
// a donor at the requesting hospital itself scores 100.
type PairHashEstimator struct{}

func (PairHashEstimator) Estimate(requestingHospitalID, donorHospitalID string) float64 {
	if requestingHospitalID == donorHospitalID {
		return 100
	}
	var h int32
	for _, c := range requestingHospitalID + donorHospitalID {
		h = (h << 5) - h + int32(c)
	}
	return hashScore(h)
}

// hashScore maps a 32-bit hash onto [60,100). The absolute value is taken
// in 64-bit space so math.MinInt32 cannot overflow back to a negative.
func hashScore(h int32) float64 {
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return float64(v%40) + 60
}

// FreshnessScore steps down with the age of the donor registration: 100
// within a week, 80 within a month, 60 within a quarter, 40 within half a
// year, 20 beyond that.
func FreshnessScore(registeredAt, now time.Time) float64 {
	days := now.Sub(registeredAt).Hours() / 24
	switch {
	case days <= 7:
		return 100
	case days <= 30:
		return 80
	case days <= 90:
		return 60
	case days <= 180:
		return 40
	default:
		return 20
	}
}

// UrgencyBonus returns the scoring bonus for an urgency tier, defaulting to
// the Medium bonus for unknown tiers.
func UrgencyBonus(level string) float64 {
	if s, ok := urgencyScores[level]; ok {
		return s
	}
	return urgencyScores["Medium"]
}

// Scorer turns (need, donor) pairs into ranked candidates. Now is injectable
// so freshness is testable; a nil Proximity falls back to PairHashEstimator.
type Scorer struct {
	Proximity ProximityEstimator
	Now       func() time.Time
}

func NewScorer(p ProximityEstimator) *Scorer {
	if p == nil {
		p = PairHashEstimator{}
	}
	return &Scorer{Proximity: p, Now: time.Now}
}

// Score evaluates one donor against one need. The composite is rounded to
// two decimals; sub-scores are reported unrounded.
func (s *Scorer) Score(need Need, d Donor) MatchCandidate {
	compat := CompatibilityScore(d.BloodType, need.BloodType)
	urgency := UrgencyBonus(need.UrgencyLevel)
	distance := s.Proximity.Estimate(need.HospitalID, d.HospitalID)
	freshness := FreshnessScore(d.RegisteredAt, s.Now())

	composite := weightCompatibility*compat +
		weightUrgency*urgency +
		weightProximity*distance +
		weightFreshness*freshness

	return MatchCandidate{
		DonorID:            d.DonorID,
		DonorName:          d.FullName,
		BloodType:          d.BloodType,
		OrgansAvailable:    d.Organs,
		HospitalID:         d.HospitalID,
		HospitalName:       d.HospitalName,
		MatchScore:         math.Round(composite*100) / 100,
		CompatibilityScore: compat,
		UrgencyBonus:       urgency,
		DistanceScore:      distance,
		FreshnessScore:     freshness,
		RegistrationTime:   d.RegisteredAt,
	}
}

// Rank sorts candidates best first. Ties on the composite break toward the
// earlier donor registration, then the lexicographically smaller donor ID,
// so equal inputs always produce the same ordering.
func Rank(candidates []MatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if !a.RegistrationTime.Equal(b.RegistrationTime) {
			return a.RegistrationTime.Before(b.RegistrationTime)
		}
		return a.DonorID < b.DonorID
	})
}
