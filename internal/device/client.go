// Package device is the relay's device-side counterpart: a client for the
// /v1/device endpoints and a simulator that executes claimed jobs.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ayo6706/ussd-relay/internal/api/problem"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/google/uuid"
)

// APIError is a non-2xx response from the relay.
type APIError struct {
	StatusCode int
	// Type is the problem slug, e.g. "transfer/not-processing".
	Type   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("relay responded %d", e.StatusCode)
	}
	return fmt.Sprintf("relay responded %d: %s", e.StatusCode, e.Detail)
}

// BalanceReport is the body of a balance result. Balance is the raw text read from the carrier.
type BalanceReport struct {
	Success bool    `json:"success"`
	Detail  string  `json:"detail"`
	Balance *string `json:"balance,omitempty"`
}

type transferReport struct {
	Status          string `json:"status"`
	CarrierResponse string `json:"carrier_response"`
}

type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
}

func NewClient(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		deviceID: deviceID,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// ClaimTransfer returns nil when no transfer is waiting.
func (c *Client) ClaimTransfer(ctx context.Context) (*models.TransferJob, error) {
	var job models.TransferJob
	found, err := c.do(ctx, http.MethodPost, "/v1/device/transfers/claim", nil, &job)
	if err != nil || !found {
		return nil, err
	}
	return &job, nil
}

func (c *Client) ReportTransfer(ctx context.Context, id int64, status, carrierResponse string) error {
	path := fmt.Sprintf("/v1/device/transfers/%d/result", id)
	_, err := c.do(ctx, http.MethodPost, path, transferReport{Status: status, CarrierResponse: carrierResponse}, nil)
	return err
}

// ClaimBalance returns the oldest waiting balance inquiry of any owner, or nil.
func (c *Client) ClaimBalance(ctx context.Context) (*models.BalanceJob, error) {
	var job models.BalanceJob
	found, err := c.do(ctx, http.MethodPost, "/v1/device/balance-jobs/claim", nil, &job)
	if err != nil || !found {
		return nil, err
	}
	return &job, nil
}

func (c *Client) ReportBalance(ctx context.Context, ownerID uuid.UUID, report BalanceReport) error {
	path := fmt.Sprintf("/v1/device/balance-jobs/%s/result", ownerID)
	_, err := c.do(ctx, http.MethodPost, path, report, nil)
	return err
}

// do reports false without error on 204.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (bool, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Device-Key", c.apiKey)
	req.Header.Set("X-Device-ID", c.deviceID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if p, err := problem.Decode(resp.Body); err == nil {
			apiErr.Detail = p.Detail
			apiErr.Type = p.Slug()
		}
		return false, apiErr
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decode response: %w", err)
		}
	}
	return true, nil
}
