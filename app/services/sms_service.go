// Package services provides external service integrations like the SMS carrier and media storage
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/smsflow/config"
	"github.com/amirphl/smsflow/utils"
)

// SMSService sends a single message through the carrier
type SMSService interface {
	Send(ctx context.Context, to, body string, mediaURLs []string) error
}

// TwilioSMSService implements SMSService against the Twilio Messages API
type TwilioSMSService struct {
	config *config.SMSConfig
	client *http.Client
}

// twilioErrorResponse is the error body returned by Twilio on non-2xx responses
type twilioErrorResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// NewSMSService creates the SMS service selected by cfg.Provider
func NewSMSService(cfg *config.SMSConfig) SMSService {
	if cfg.Provider == "twilio" {
		return NewTwilioSMSService(cfg)
	}
	return NewMockSMSService()
}

// NewTwilioSMSService creates a Twilio backed SMS service
func NewTwilioSMSService(cfg *config.SMSConfig) *TwilioSMSService {
	return &TwilioSMSService{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Send posts one message. Body is omitted when empty and MediaUrl is repeated per url.
func (s *TwilioSMSService) Send(ctx context.Context, to, body string, mediaURLs []string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.config.SourceNumber)
	if body != "" {
		form.Set("Body", body)
	}
	for _, u := range mediaURLs {
		form.Add("MediaUrl", u)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.config.BaseURL, "/"), url.PathEscape(s.config.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var apiErr twilioErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
		return errors.New(apiErr.Message)
	}
	return fmt.Errorf("SMS delivery failed for %s: status %d", to, resp.StatusCode)
}

// MockSMSService implements SMSService for testing and local runs
type MockSMSService struct {
	mu           sync.Mutex
	SentMessages []MockSMSMessage
	failures     map[string]error
	delay        time.Duration
}

// MockSMSMessage represents a mock SMS message
type MockSMSMessage struct {
	Recipient string
	Message   string
	MediaURLs []string
	SentAt    time.Time
}

// NewMockSMSService creates a new mock SMS service
func NewMockSMSService() *MockSMSService {
	return &MockSMSService{
		SentMessages: make([]MockSMSMessage, 0),
		failures:     make(map[string]error),
	}
}

// FailFor makes every send to recipient return err
func (m *MockSMSService) FailFor(recipient string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[recipient] = err
}

// SetDelay makes every send block for d or until ctx is done
func (m *MockSMSService) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Send records a mock SMS message
func (m *MockSMSService) Send(ctx context.Context, to, body string, mediaURLs []string) error {
	m.mu.Lock()
	delay := m.delay
	failure := m.failures[to]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failure != nil {
		return failure
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, MockSMSMessage{
		Recipient: to,
		Message:   body,
		MediaURLs: mediaURLs,
		SentAt:    utils.UTCNow(),
	})
	return nil
}

// GetSentMessages returns a copy of all sent mock messages
func (m *MockSMSService) GetSentMessages() []MockSMSMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSMSMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}

// ClearSentMessages clears the sent messages list
func (m *MockSMSService) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = make([]MockSMSMessage, 0)
}
