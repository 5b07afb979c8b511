// Package ocr abstracts signature-document verification. The actual OCR
// engine runs outside this repository; the portal only consumes the verdict.
package ocr

import "context"

// Verdict is the outcome of scanning a signature document.
type Verdict struct {
	Verified   bool     `json:"verified"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords,omitempty"`
}

// SignatureVerifier inspects an uploaded signature document.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, document []byte) (Verdict, error)
}

// ManualVerifier is used when no OCR engine is configured: every document is
// left unverified for manual review by hospital staff.
type ManualVerifier struct{}

func (ManualVerifier) VerifySignature(ctx context.Context, document []byte) (Verdict, error) {
	return Verdict{Verified: false, Confidence: 0}, nil
}
