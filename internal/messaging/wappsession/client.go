// Package wappsession provides the self-hosted session WhatsApp gateway
// transport. The provider penalizes accounts with bot-like timing, so every
// send is preceded by a "composing" presence signal and a randomized typing
// delay before the message itself goes out.
package wappsession

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/barbersync/barbersync/internal/messaging"
	"github.com/barbersync/barbersync/pkg/phone"
)

const (
	// ProviderName identifies this gateway transport.
	ProviderName = "whatsapp-session"

	// DefaultTimeout bounds each gateway request.
	DefaultTimeout = 10 * time.Second

	// Default typing-delay bounds before the actual send.
	DefaultTypingDelayMin = 2 * time.Second
	DefaultTypingDelayMax = 3 * time.Second
)

// ClientConfig holds configuration for the session gateway client.
type ClientConfig struct {
	// BaseURL is the gateway API base URL (required).
	BaseURL string

	// APIKey is the gateway bearer credential (required).
	APIKey string

	// DefaultSession is the session name used when a send specifies no
	// session (required).
	DefaultSession string

	// CountryCode is prefixed to national phone numbers.
	CountryCode string

	// TypingDelayMin and TypingDelayMax bound the randomized pause
	// between the presence signal and the send. Defaults: 2s and 3s.
	TypingDelayMin time.Duration
	TypingDelayMax time.Duration

	// HTTPClient overrides the HTTP client, for tests. If nil, a client
	// with DefaultTimeout is used.
	HTTPClient *http.Client

	// Sleep overrides the typing-delay pause, for tests.
	Sleep func(ctx context.Context, d time.Duration)

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a self-hosted session gateway transport.
type Client struct {
	baseURL        string
	apiKey         string
	defaultSession string
	countryCode    string
	typingMin      time.Duration
	typingMax      time.Duration
	httpClient     *http.Client
	sleep          func(ctx context.Context, d time.Duration)
	logger         zerolog.Logger
}

// NewClient creates a new session gateway client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	typingMin := cfg.TypingDelayMin
	if typingMin <= 0 {
		typingMin = DefaultTypingDelayMin
	}
	typingMax := cfg.TypingDelayMax
	if typingMax < typingMin {
		typingMax = DefaultTypingDelayMax
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		defaultSession: cfg.DefaultSession,
		countryCode:    cfg.CountryCode,
		typingMin:      typingMin,
		typingMax:      typingMax,
		httpClient:     httpClient,
		sleep:          sleep,
		logger:         cfg.Logger,
	}
}

// Name returns the transport name.
func (c *Client) Name() string {
	return ProviderName
}

type typingRequest struct {
	Phone string `json:"phone"`
	Value bool   `json:"value"`
}

type sendMessageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Send signals typing presence, waits the randomized typing delay, then
// delivers body to rawPhone through the given session (or the default).
func (c *Client) Send(ctx context.Context, session, rawPhone, body string) error {
	if session == "" {
		session = c.defaultSession
	}

	chatID := phone.ChatID(rawPhone, c.countryCode)
	if chatID == "" {
		return &messaging.SendError{
			Kind:    messaging.ErrorTransient,
			Message: fmt.Sprintf("recipient %q has no digits", rawPhone),
		}
	}

	// Presence is best-effort: a missing typing signal only costs realism,
	// and the send result below is the authoritative session check.
	if err := c.post(ctx, session, "typing", typingRequest{Phone: chatID, Value: true}); err != nil {
		c.logger.Debug().Err(err).Str("session", session).Msg("typing presence failed")
	}

	c.sleep(ctx, c.typingDelay())

	if err := c.post(ctx, session, "send-message", sendMessageRequest{Phone: chatID, Message: body}); err != nil {
		return err
	}

	c.logger.Debug().Str("session", session).Msg("message accepted by gateway")
	return nil
}

// post performs one gateway call, translating failures into SendErrors.
func (c *Client) post(ctx context.Context, session, action string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return &messaging.SendError{Kind: messaging.ErrorTransient, Message: err.Error()}
	}

	endpoint := fmt.Sprintf("%s/api/%s/%s", c.baseURL, url.PathEscape(session), action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return &messaging.SendError{Kind: messaging.ErrorTransient, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return messaging.ErrFromTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return messaging.ErrFromStatus(resp.StatusCode, "", fmt.Sprintf("gateway rejected %s", action))
}

// typingDelay returns a uniformly random duration in the typing bounds.
func (c *Client) typingDelay() time.Duration {
	if c.typingMax == c.typingMin {
		return c.typingMin
	}
	return c.typingMin + rand.N(c.typingMax-c.typingMin)
}

// sleepContext sleeps for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Ensure Client implements the transport contract.
var _ messaging.Transport = (*Client)(nil)
