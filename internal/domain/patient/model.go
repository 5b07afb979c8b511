package patient

import (
	"time"
)

// Organs the portal accepts on waiting-list entries and donor pledges.
var ValidOrgans = map[string]bool{
	"Kidney":      true,
	"Liver":       true,
	"Heart":       true,
	"Lungs":       true,
	"Pancreas":    true,
	"Intestine":   true,
	"Corneas":     true,
	"Bone Marrow": true,
	"Skin":        true,
}

// Patient is a waiting-list entry owned by a hospital. Medical details never
// leave the owning hospital; the matching engine only reads the organ, blood
// type and urgency.
type Patient struct {
	PatientID         string    `db:"patient_id" json:"patient_id"`
	HospitalID        string    `db:"hospital_id" json:"hospital_id"`
	FullName          string    `db:"full_name" json:"full_name"`
	Age               int       `db:"age" json:"age"`
	Gender            string    `db:"gender" json:"gender"`
	BloodType         string    `db:"blood_type" json:"blood_type"`
	OrganNeeded       string    `db:"organ_needed" json:"organ_needed"`
	UrgencyLevel      string    `db:"urgency_level" json:"urgency_level"`
	MedicalCondition  string    `db:"medical_condition" json:"medical_condition,omitempty"`
	ContactPhone      string    `db:"contact_phone" json:"contact_phone,omitempty"`
	ContactEmail      string    `db:"contact_email" json:"contact_email,omitempty"`
	SignatureHash     string    `db:"signature_hash" json:"signature_hash,omitempty"`
	SignatureVerified bool      `db:"signature_verified" json:"signature_verified"`
	LedgerTxHash      string    `db:"ledger_tx_hash" json:"ledger_tx_hash,omitempty"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
