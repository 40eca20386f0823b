// Package webhook provides a Go client for mirroring window activation
// notifications to a custom HTTP endpoint. This allows users to integrate
// activation events with their own services, automation systems, or data
// pipelines, alongside the D-Bus delivery.
//
// Example usage:
//
//	client, err := webhook.NewClient("https://example.com/webhook")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = client.SubmitActivation(common.Activation{
//		EventID:       uuid.New().String(),
//		OccurredAt:    time.Now(),
//		Backend:       "kwin",
//		Caption:       "Terminal",
//		ResourceClass: "org.kde.konsole",
//		ResourceName:  "konsole",
//	})
package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/darinpp/toshy/internal/common"
)

// Configuration constants
const (
	defaultRequestTimeout = 30 * time.Second
	maxRetries            = 3
	baseRetryDelay        = 1 * time.Second
)

// Payload represents the JSON structure sent to the webhook endpoint.
// It carries the same attribute triple that NotifyActiveWindow receives
// over D-Bus, plus submission metadata.
type Payload struct {
	Timestamp  time.Time         `json:"timestamp"`
	Source     string            `json:"source"`
	Version    string            `json:"version"`
	Activation common.Activation `json:"activation"`
}

// Client provides methods for sending activation events to a webhook endpoint.
type Client struct {
	webhookURL    string
	httpClient    *http.Client
	DebugMode     bool
	CustomHeaders map[string]string
}

// NewClient creates a new webhook client.
// The webhookURL should be a valid HTTP or HTTPS URL.
//
// If webhookURL is empty, it will attempt to read from TOSHY_WEBHOOK_URL
// environment variable.
func NewClient(webhookURL string) (*Client, error) {
	// Use provided URL, or fall back to environment variable
	if webhookURL == "" {
		webhookURL = os.Getenv("TOSHY_WEBHOOK_URL")
	}

	if webhookURL == "" {
		return nil, fmt.Errorf("webhook URL not provided\n\nSet via:\n  1. TOSHY_WEBHOOK_URL environment variable\n  2. -webhook flag\n\nExample: https://example.com/toshy/webhook")
	}

	// Validate URL format (basic validation)
	if len(webhookURL) < 8 || (webhookURL[:7] != "http://" && webhookURL[:8] != "https://") {
		return nil, fmt.Errorf("invalid webhook URL: must start with http:// or https://\n\nProvided: %s", webhookURL)
	}

	client := &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		DebugMode:     false,
		CustomHeaders: make(map[string]string),
	}

	return client, nil
}

// Close performs any necessary cleanup.
// For webhook client, this is a no-op but included for consistency with other modules.
func (c *Client) Close() error {
	return nil
}

// debugLog prints debug messages if debug mode is enabled
func (c *Client) debugLog(format string, args ...interface{}) {
	if c.DebugMode {
		color.Cyan("[WEBHOOK DEBUG] "+format, args...)
	}
}

// SubmitActivation sends a single activation event to the webhook endpoint.
func (c *Client) SubmitActivation(activation common.Activation) error {
	if err := c.validateActivation(activation); err != nil {
		return fmt.Errorf("invalid activation: %v", err)
	}

	payload := Payload{
		Timestamp:  time.Now(),
		Source:     "toshy",
		Version:    "1.0.0",
		Activation: activation,
	}

	return c.sendPayload(payload)
}

// sendPayload sends the webhook payload with retry logic.
func (c *Client) sendPayload(payload Payload) error {
	// Marshal payload to JSON
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}

	c.debugLog("Payload: %s", string(jsonData))

	var lastErr error
	retryDelay := baseRetryDelay

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			c.debugLog("Retry attempt %d/%d after %v", attempt, maxRetries, retryDelay)
			time.Sleep(retryDelay)
			retryDelay *= 2 // Exponential backoff
		}

		// Create request
		req, err := http.NewRequest("POST", c.webhookURL, bytes.NewBuffer(jsonData))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %v", err)
			continue
		}

		// Set headers
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "toshy/1.0.0")

		// Add custom headers if configured
		for key, value := range c.CustomHeaders {
			req.Header.Set(key, value)
		}

		c.debugLog("Sending POST request to %s", c.webhookURL)

		// Send request
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %v", err)
			continue
		}

		// Read response body
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		c.debugLog("Response status: %d, body: %s", resp.StatusCode, string(body))

		// Check response status
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.debugLog("Successfully sent payload")
			return nil
		}

		// Handle different error codes
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client errors - don't retry
			return fmt.Errorf("webhook endpoint returned error %d: %s\n\nTroubleshooting:\n  1. Verify webhook URL is correct\n  2. Check authentication headers if required\n  3. Verify endpoint accepts JSON payloads", resp.StatusCode, string(body))
		}

		// Server errors - retry
		lastErr = fmt.Errorf("webhook endpoint returned error %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("failed after %d attempts: %v\n\nTroubleshooting:\n  1. Check network connectivity\n  2. Verify webhook endpoint is accessible\n  3. Check endpoint logs for errors", maxRetries, lastErr)
}

// validateActivation checks if an activation is valid before submission.
// Attribute values are never inspected: empty strings and the UNDEF
// placeholder both travel as-is.
func (c *Client) validateActivation(activation common.Activation) error {
	if activation.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if activation.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	if activation.Backend == "" {
		return fmt.Errorf("backend is required")
	}
	return nil
}

// SetHeader sets a custom HTTP header to be included in all webhook requests.
// This is useful for authentication tokens or API keys.
func (c *Client) SetHeader(key, value string) {
	c.CustomHeaders[key] = value
}

// SetTimeout sets the HTTP request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}
