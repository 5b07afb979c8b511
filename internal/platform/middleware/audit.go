package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/organlink/organlink/internal/platform/auth"
)

// AuditEntry represents one access to a medical record. It captures which
// hospital touched what, when, from where, and the action type.
type AuditEntry struct {
	HospitalID string
	Role       string
	Resource   string
	RecordID   string
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries. It decouples the middleware from any
// concrete sink so tests can provide a mock implementation.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit returns Echo middleware that logs every access to patient, donor and
// matching records. The authenticated hospital comes from the token claims;
// record identifiers are recognized by their business-ID prefix.
//
// If no AuditRecorder is provided, entries go to the structured log only.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			// Execute the handler first so we capture the response status
			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
			}

			ctx := req.Context()
			entry.HospitalID = auth.HospitalIDFromContext(ctx)
			entry.Role = auth.RoleFromContext(ctx)

			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			entry.Action = httpMethodToAction(req.Method)
			entry.Resource = extractResource(path)
			entry.RecordID = extractRecordID(path)

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "record_access").
				Str("request_id", entry.RequestID).
				Str("hospital_id", entry.HospitalID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("record_id", entry.RecordID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

// auditedResources are the API surfaces that hold medical data. Login,
// locations and notifications are not audited.
var auditedResources = map[string]bool{
	"patients": true,
	"donors":   true,
	"matching": true,
}

// isAuditablePath returns true when the path reads or writes medical records.
func isAuditablePath(path string) bool {
	return auditedResources[extractResource(path)]
}

// httpMethodToAction maps HTTP methods to audit action codes.
func httpMethodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource parses the resource segment from an API path:
// /api/v1/patients/PAT_X -> patients.
func extractResource(path string) string {
	if !strings.HasPrefix(path, "/api/v1/") {
		return ""
	}
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return ""
}

// recordIDPrefixes are the business-ID prefixes issued by the registries.
var recordIDPrefixes = []string{"PAT_", "DON_", "MATCH_REQ_"}

// extractRecordID finds the first path segment that carries a record
// business ID.
func extractRecordID(path string) string {
	for _, segment := range strings.Split(path, "/") {
		for _, prefix := range recordIDPrefixes {
			if strings.HasPrefix(segment, prefix) && len(segment) > len(prefix) {
				return segment
			}
		}
	}
	return ""
}
