package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sentinel-auth/internal/config"
	"sentinel-auth/internal/util"
)

// Gateway delivers text messages to a phone number. Implementations report a
// non-success delivery outcome as an error.
type Gateway interface {
	Send(ctx context.Context, phone, message string) error
	Configured() bool
}

// HTTPGateway talks to the provider's send endpoint: sender id and template
// id in the body, shared secret in a header, JSON status in the response.
type HTTPGateway struct {
	cfg        config.SMSConfig
	configured bool
	httpClient *http.Client
}

type sendRequest struct {
	Sender     string `json:"sender"`
	TemplateID string `json:"template_id"`
	Phone      string `json:"phone"`
	Message    string `json:"message"`
}

type sendResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func NewHTTPGateway(cfg *config.Config) *HTTPGateway {
	configured := cfg.SMSConfigured()
	if !configured {
		util.Warn("SMS gateway not fully configured, running in degraded mode")
	}
	return &HTTPGateway{
		cfg:        cfg.SMS,
		configured: configured,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *HTTPGateway) Configured() bool {
	return g.configured
}

func (g *HTTPGateway) Send(ctx context.Context, phone, message string) error {
	if !g.configured {
		return fmt.Errorf("sms gateway is not configured")
	}

	body, err := json.Marshal(sendRequest{
		Sender:     g.cfg.SenderID,
		TemplateID: g.cfg.TemplateID,
		Phone:      phone,
		Message:    message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.AuthKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode sms gateway response: %w", err)
	}
	if !strings.EqualFold(out.Status, "success") {
		return fmt.Errorf("sms gateway reported %q: %s", out.Status, out.Detail)
	}

	util.Debug("SMS delivered", util.String("phone", phone))
	return nil
}
