package pi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the production Pi platform API.
const DefaultBaseURL = "https://api.minepi.com/v2"

// ErrNoAPIKey signals a client constructed without a server API key.
var ErrNoAPIKey = errors.New("NO_API_KEY: Pi API key is not set")

// APIError carries the upstream status and body when the platform rejects
// a request.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Pi API returned status %d: %s", e.Status, e.Body)
}

// User is the subset of /me the server cares about.
type User struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

// PaymentDTO mirrors the platform's payment resource.
type PaymentDTO struct {
	Identifier string          `json:"identifier"`
	UserUID    string          `json:"user_uid"`
	Amount     float64         `json:"amount"`
	Memo       string          `json:"memo"`
	Metadata   json.RawMessage `json:"metadata"`
	ToAddress  string          `json:"to_address"`
	Status     struct {
		DeveloperApproved   bool `json:"developer_approved"`
		TransactionVerified bool `json:"transaction_verified"`
		DeveloperCompleted  bool `json:"developer_completed"`
		Cancelled           bool `json:"cancelled"`
		UserCancelled       bool `json:"user_cancelled"`
	} `json:"status"`
	Transaction *struct {
		TxID     string `json:"txid"`
		Verified bool   `json:"verified"`
	} `json:"transaction"`
}

// Client is a thin HTTP client for the Pi platform API. Server-to-server
// calls authenticate with "Key <api key>"; user lookups use the player's
// bearer access token instead.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether a server API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Me verifies a player's access token and returns their platform identity.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/me", "Bearer "+accessToken, nil, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetPayment fetches a payment by its platform identifier.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*PaymentDTO, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}
	var dto PaymentDTO
	err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, "Key "+c.apiKey, nil, &dto)
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// Approve tells the platform the server accepts the payment.
func (c *Client) Approve(ctx context.Context, paymentID string) (*PaymentDTO, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}
	var dto PaymentDTO
	err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/approve", "Key "+c.apiKey, nil, &dto)
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// Complete closes out the payment with its blockchain transaction id.
func (c *Client) Complete(ctx context.Context, paymentID, txid string) (*PaymentDTO, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}
	body := map[string]string{"txid": txid}
	var dto PaymentDTO
	err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/complete", "Key "+c.apiKey, body, &dto)
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// ValidateKey makes a cheap authenticated call to confirm the API key works.
func (c *Client) ValidateKey(ctx context.Context) error {
	if err := c.requireKey(); err != nil {
		return err
	}
	err := c.do(ctx, http.MethodGet, "/payments/incomplete_server_payments", "Key "+c.apiKey, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
		return fmt.Errorf("INVALID_API_KEY: %w", err)
	}
	return err
}

func (c *Client) requireKey() error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, authorization string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Pi API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read Pi API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode Pi API response: %w", err)
		}
	}
	return nil
}
