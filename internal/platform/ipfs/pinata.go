package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const pinataBaseURL = "https://api.pinata.cloud"

// PinataPinner pins content through the Pinata pinning service. The JWT is
// issued from the Pinata dashboard and passed as a bearer token.
type PinataPinner struct {
	jwt    string
	client *http.Client
}

func NewPinataPinner(jwt string) *PinataPinner {
	return &PinataPinner{
		jwt:    jwt,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type pinataResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

func (p *PinataPinner) PinFile(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write multipart form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pinataBaseURL+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.jwt)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return p.do(req)
}

func (p *PinataPinner) PinJSON(ctx context.Context, name string, v interface{}) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"pinataMetadata": map[string]string{"name": name},
		"pinataContent":  v,
	})
	if err != nil {
		return "", fmt.Errorf("marshal pin payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pinataBaseURL+"/pinning/pinJSONToIPFS", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.jwt)
	req.Header.Set("Content-Type", "application/json")

	return p.do(req)
}

func (p *PinataPinner) do(req *http.Request) (string, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pinata returned %d: %s", resp.StatusCode, msg)
	}

	var out pinataResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode pinata response: %w", err)
	}
	return out.IpfsHash, nil
}
