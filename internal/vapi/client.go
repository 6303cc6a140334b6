package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"callpulse/internal/config"
)

// Client is the boundary to the external voice-calling platform. Only call
// initiation crosses it; everything else arrives back through webhooks.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

var ErrNotConfigured = errors.New("vapi: client not configured")

func NewClient(cfg config.VapiConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.vapi.ai"
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// CallRequest starts one outbound phone call.
type CallRequest struct {
	CustomerNumber string `json:"customerNumber"`
	AssistantID    string `json:"assistantId"`
	PhoneNumberID  string `json:"phoneNumberId"`
}

type callPayload struct {
	AssistantID   string `json:"assistantId"`
	PhoneNumberID string `json:"phoneNumberId"`
	Customer      struct {
		Number string `json:"number"`
	} `json:"customer"`
}

type callResponse struct {
	ID string `json:"id"`
}

// InitiateCall asks the platform to place the call and returns the platform
// call id, which keys all subsequent webhook events.
func (c *Client) InitiateCall(ctx context.Context, req CallRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	if req.CustomerNumber == "" || req.AssistantID == "" || req.PhoneNumberID == "" {
		return "", errors.New("vapi: customerNumber, assistantId and phoneNumberId are required")
	}

	var payload callPayload
	payload.AssistantID = req.AssistantID
	payload.PhoneNumberID = req.PhoneNumberID
	payload.Customer.Number = req.CustomerNumber

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("vapi: call request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("vapi: call request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out callResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("vapi: decode call response: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("vapi: call response missing id")
	}
	return out.ID, nil
}
