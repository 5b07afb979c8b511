package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPRegistrar talks to the ledger relay service that holds the signing key
// and submits transactions to the registry contract. The relay exposes one
// endpoint per operation and returns the transaction hash once submitted.
type HTTPRegistrar struct {
	baseURL  string
	contract string
	client   *http.Client
	logger   zerolog.Logger
}

func NewHTTPRegistrar(baseURL, contract string, logger zerolog.Logger) *HTTPRegistrar {
	return &HTTPRegistrar{
		baseURL:  baseURL,
		contract: contract,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

type txResponse struct {
	TxHash string `json:"tx_hash"`
}

func (r *HTTPRegistrar) RegisterDonor(ctx context.Context, donorID, fullName, bloodType, signatureHash string) (string, error) {
	return r.post(ctx, "/registry/donors", map[string]interface{}{
		"contract":       r.contract,
		"donor_id":       donorID,
		"full_name":      fullName,
		"blood_type":     bloodType,
		"signature_hash": signatureHash,
	})
}

func (r *HTTPRegistrar) RegisterPatient(ctx context.Context, patientID, fullName, bloodType, organNeeded, urgencyLevel, signatureHash string) (string, error) {
	return r.post(ctx, "/registry/patients", map[string]interface{}{
		"contract":       r.contract,
		"patient_id":     patientID,
		"full_name":      fullName,
		"blood_type":     bloodType,
		"organ_needed":   organNeeded,
		"urgency_level":  urgencyLevel,
		"signature_hash": signatureHash,
	})
}

func (r *HTTPRegistrar) VerifySignature(ctx context.Context, recordID string, isPatient, verified bool) (string, error) {
	return r.post(ctx, "/registry/verify", map[string]interface{}{
		"contract":   r.contract,
		"record_id":  recordID,
		"is_patient": isPatient,
		"verified":   verified,
	})
}

func (r *HTTPRegistrar) post(ctx context.Context, path string, payload map[string]interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ledger payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ledger request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ledger relay returned %d: %s", resp.StatusCode, msg)
	}

	var out txResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ledger response: %w", err)
	}
	return out.TxHash, nil
}
