package notification

import (
	"encoding/json"
	"time"
)

// Notification kinds.
const (
	TypeOrganMatch    = "organ_match"
	TypeMatchResponse = "match_response"
	TypeSystem        = "system"
)

// Notification is one inbox entry for a hospital. RelatedID links back to
// the originating record, e.g. a matching request ID; Metadata carries the
// kind-specific payload verbatim.
type Notification struct {
	NotificationID string          `db:"notification_id" json:"notification_id"`
	HospitalID     string          `db:"hospital_id" json:"hospital_id"`
	Type           string          `db:"type" json:"type"`
	Title          string          `db:"title" json:"title"`
	Message        string          `db:"message" json:"message"`
	RelatedID      *string         `db:"related_id" json:"related_id,omitempty"`
	Metadata       json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	IsRead         bool            `db:"is_read" json:"is_read"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

var validTypes = map[string]bool{
	TypeOrganMatch:    true,
	TypeMatchResponse: true,
	TypeSystem:        true,
}
