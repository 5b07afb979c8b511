package hospital

import (
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Hospital is a registered facility. Facilities authenticate as a unit:
// there are no per-user accounts, the hospital ID and password are issued
// out of band during onboarding.
type Hospital struct {
	HospitalID   string    `db:"hospital_id" json:"hospital_id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	City         string    `db:"city" json:"city"`
	State        string    `db:"state" json:"state"`
	Country      string    `db:"country" json:"country"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LocationEntry is one selectable hospital in the login location picker.
type LocationEntry struct {
	HospitalID string `json:"hospital_id"`
	Name       string `json:"name"`
}

// LocationTree groups active hospitals by country, state and city for the
// cascading dropdowns on the login screen.
type LocationTree map[string]map[string]map[string][]LocationEntry
