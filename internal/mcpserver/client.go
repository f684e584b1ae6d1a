package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds the connection settings for the CoverLedger API.
type Config struct {
	APIURL  string // e.g. http://localhost:8080
	APIKey  string // account API key (cl_...)
	Account string // policyholder address (0x...)
}

// Client is an HTTP client for the CoverLedger platform API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a CoverLedger API client.
func NewClient(cfg Config) *Client {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest performs an authenticated request against the platform API
// and returns the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(data))
	}

	return data, nil
}

// QuotePremium previews the risk score and premium for a coverage request.
func (c *Client) QuotePremium(ctx context.Context, account string, coverage uint64, category string) (json.RawMessage, error) {
	if account == "" {
		account = c.cfg.Account
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/quotes", map[string]any{
		"account":        account,
		"coverageAmount": coverage,
		"category":       category,
	})
}

// CreatePolicy issues a policy for the configured account.
func (c *Client) CreatePolicy(ctx context.Context, coverage uint64, category, evidenceDigest string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/policies", map[string]any{
		"coverageAmount": coverage,
		"category":       category,
		"evidenceDigest": evidenceDigest,
	})
}

// SubmitClaim files a claim against a policy.
func (c *Client) SubmitClaim(ctx context.Context, policyID string, amount uint64, description, evidenceDigest string) (json.RawMessage, error) {
	path := fmt.Sprintf("/v1/policies/%s/claims", url.PathEscape(policyID))
	return c.doRequest(ctx, http.MethodPost, path, map[string]any{
		"amount":         amount,
		"description":    description,
		"evidenceDigest": evidenceDigest,
	})
}

// GetPolicy fetches a policy by ID.
func (c *Client) GetPolicy(ctx context.Context, policyID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/policies/"+url.PathEscape(policyID), nil)
}

// ListPolicyClaims fetches the claims filed against a policy.
func (c *Client) ListPolicyClaims(ctx context.Context, policyID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/policies/%s/claims", url.PathEscape(policyID)), nil)
}

// GetClaim fetches a claim by ID.
func (c *Client) GetClaim(ctx context.Context, claimID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/claims/"+url.PathEscape(claimID), nil)
}

// GetProfile fetches the risk profile for an account.
func (c *Client) GetProfile(ctx context.Context, account string) (json.RawMessage, error) {
	if account == "" {
		account = c.cfg.Account
	}
	return c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/profile", url.PathEscape(account)), nil)
}

// GetBalance fetches the custody balance for an account.
func (c *Client) GetBalance(ctx context.Context, account string) (json.RawMessage, error) {
	if account == "" {
		account = c.cfg.Account
	}
	return c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/balance", url.PathEscape(account)), nil)
}

// ListAccountPolicies fetches the policies held by an account.
func (c *Client) ListAccountPolicies(ctx context.Context, account string) (json.RawMessage, error) {
	if account == "" {
		account = c.cfg.Account
	}
	return c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/policies", url.PathEscape(account)), nil)
}

// GetPlatformInfo fetches platform parameters and the current block height.
func (c *Client) GetPlatformInfo(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/platform", nil)
}
