package matching

// canReceiveFrom maps a donor blood type to the set of recipient types that
// can safely receive from it. O- is the universal donor, AB+ the universal
// recipient.
var canReceiveFrom = map[string][]string{
	"A+":  {"A+", "AB+"},
	"A-":  {"A+", "A-", "AB+", "AB-"},
	"B+":  {"B+", "AB+"},
	"B-":  {"B+", "B-", "AB+", "AB-"},
	"AB+": {"AB+"},
	"AB-": {"AB+", "AB-"},
	"O+":  {"A+", "B+", "AB+", "O+"},
	"O-":  {"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"},
}

// ValidBloodType reports whether bt is one of the eight ABO/Rh types.
func ValidBloodType(bt string) bool {
	_, ok := canReceiveFrom[bt]
	return ok
}

// BloodCompatible reports whether a recipient of the given type can receive
// an organ from a donor of the given type.
func BloodCompatible(donor, recipient string) bool {
	for _, r := range canReceiveFrom[donor] {
		if r == recipient {
			return true
		}
	}
	return false
}

// CompatibleDonorTypes returns every donor blood type a recipient can accept.
// The candidate query filters on this set so incompatible donors never leave
// the database.
func CompatibleDonorTypes(recipient string) []string {
	var types []string
	for _, donor := range []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"} {
		if BloodCompatible(donor, recipient) {
			types = append(types, donor)
		}
	}
	return types
}

// CompatibilityScore scores the blood pairing: 100 for an exact type match,
// 80 for a compatible but non-identical pairing, 0 otherwise.
func CompatibilityScore(donor, recipient string) float64 {
	if donor == recipient {
		return 100
	}
	if BloodCompatible(donor, recipient) {
		return 80
	}
	return 0
}
