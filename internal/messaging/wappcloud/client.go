// Package wappcloud provides the cloud multi-tenant WhatsApp gateway
// transport. Each barbershop maps to a named instance on the provider; the
// shared default instance carries shops without a dedicated session.
package wappcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/barbersync/barbersync/internal/messaging"
	"github.com/barbersync/barbersync/pkg/phone"
)

const (
	// ProviderName identifies this gateway transport.
	ProviderName = "whatsapp-cloud"

	// DefaultTimeout bounds one send request so a hung gateway cannot
	// stall a caller indefinitely.
	DefaultTimeout = 10 * time.Second
)

// ClientConfig holds configuration for the cloud gateway client.
type ClientConfig struct {
	// BaseURL is the gateway API base URL (required).
	BaseURL string

	// APIKey is the gateway API credential (required).
	APIKey string

	// DefaultInstance is the shared default instance name used when a
	// send specifies no session (required).
	DefaultInstance string

	// CountryCode is prefixed to national phone numbers.
	CountryCode string

	// HTTPClient overrides the HTTP client, for tests. If nil, a client
	// with DefaultTimeout is used.
	HTTPClient *http.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a cloud multi-tenant gateway transport.
type Client struct {
	baseURL         string
	apiKey          string
	defaultInstance string
	countryCode     string
	httpClient      *http.Client
	logger          zerolog.Logger
}

// NewClient creates a new cloud gateway client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		baseURL:         cfg.BaseURL,
		apiKey:          cfg.APIKey,
		defaultInstance: cfg.DefaultInstance,
		countryCode:     cfg.CountryCode,
		httpClient:      httpClient,
		logger:          cfg.Logger,
	}
}

// Name returns the transport name.
func (c *Client) Name() string {
	return ProviderName
}

// sendTextRequest is the gateway's send payload.
type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// errorResponse is the gateway's error payload shape.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Send delivers body to rawPhone through the given instance, or the shared
// default instance when session is empty.
func (c *Client) Send(ctx context.Context, session, rawPhone, body string) error {
	instance := session
	if instance == "" {
		instance = c.defaultInstance
	}

	msisdn := phone.Normalize(rawPhone, c.countryCode)
	if msisdn == "" {
		return &messaging.SendError{
			Kind:    messaging.ErrorTransient,
			Message: fmt.Sprintf("recipient %q has no digits", rawPhone),
		}
	}

	payload, err := json.Marshal(sendTextRequest{Number: msisdn, Text: body})
	if err != nil {
		return &messaging.SendError{Kind: messaging.ErrorTransient, Message: err.Error()}
	}

	endpoint := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, url.PathEscape(instance))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &messaging.SendError{Kind: messaging.ErrorTransient, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return messaging.ErrFromTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug().
			Str("instance", instance).
			Int("status", resp.StatusCode).
			Msg("message accepted by gateway")
		return nil
	}

	return messaging.ErrFromStatus(resp.StatusCode, gatewayCode(resp.Body), "gateway rejected send")
}

// gatewayCode extracts the provider's error code from an error response
// body, best effort.
func gatewayCode(body io.Reader) string {
	var errResp errorResponse
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&errResp); err != nil {
		return ""
	}
	if errResp.Error != "" {
		return errResp.Error
	}
	return errResp.Message
}

// Ensure Client implements the transport contract.
var _ messaging.Transport = (*Client)(nil)
