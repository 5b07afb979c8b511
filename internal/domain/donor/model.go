package donor

import (
	"time"
)

// Donor is a pledged donor registered by a hospital. A donor only enters the
// cross-hospital matching pool once the record is active and its consent
// signature has been verified.
type Donor struct {
	DonorID           string    `db:"donor_id" json:"donor_id"`
	HospitalID        string    `db:"hospital_id" json:"hospital_id"`
	HospitalName      string    `db:"-" json:"hospital_name,omitempty"`
	FullName          string    `db:"full_name" json:"full_name"`
	Age               int       `db:"age" json:"age"`
	Gender            string    `db:"gender" json:"gender"`
	BloodType         string    `db:"blood_type" json:"blood_type"`
	OrgansToDonate    []string  `db:"organs_to_donate" json:"organs_to_donate"`
	MedicalHistory    string    `db:"medical_history" json:"medical_history,omitempty"`
	ContactPhone      string    `db:"contact_phone" json:"contact_phone,omitempty"`
	ContactEmail      string    `db:"contact_email" json:"contact_email,omitempty"`
	SignatureHash     string    `db:"signature_hash" json:"signature_hash,omitempty"`
	SignatureVerified bool      `db:"signature_verified" json:"signature_verified"`
	LedgerTxHash      string    `db:"ledger_tx_hash" json:"ledger_tx_hash,omitempty"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
