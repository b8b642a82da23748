package khalti

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://khalti.com/api/v2"

// Client verifies Khalti wallet payments. The lookup call is a plain
// POST with the merchant secret in the Authorization header.
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewClient(secretKey string) *Client {
	return &Client{
		secretKey:  secretKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithBaseURL points the client at a different endpoint,
// used for the sandbox and in tests.
func NewClientWithBaseURL(secretKey, baseURL string) *Client {
	c := NewClient(secretKey)
	c.baseURL = baseURL
	return c
}

// VerifyResult is the successful verification payload. Amount is in
// paisa, Khalti's minor unit.
type VerifyResult struct {
	TransactionID string `json:"idx"`
	Amount        int64  `json:"amount"`
	RawPayload    string `json:"-"`
}

// VerificationError is a provider-side rejection, as opposed to a
// transport failure.
type VerificationError struct {
	StatusCode int
	Detail     string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("khalti verification failed (%d): %s", e.StatusCode, e.Detail)
}

// Verify confirms a client-presented token against Khalti for the
// given amount in paisa.
func (c *Client) Verify(token string, amount int64) (*VerifyResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"token":  token,
		"amount": amount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/payment/verify/", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach khalti: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read khalti response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := extractDetail(respBody)
		return nil, &VerificationError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var result VerifyResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse khalti response: %w", err)
	}
	if result.TransactionID == "" {
		return nil, &VerificationError{StatusCode: resp.StatusCode, Detail: "missing transaction idx"}
	}
	result.RawPayload = string(respBody)
	return &result, nil
}

func extractDetail(body []byte) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if detail, ok := parsed["detail"].(string); ok {
			return detail
		}
	}
	return string(body)
}
