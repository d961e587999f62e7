// Package email dispatches lead notifications through the Resend
// transactional API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/common/configtypes"
)

const maxResponseBytes = 1 << 20

// Lead is a contact request captured alongside an audit.
type Lead struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email"`
	Website string `json:"website"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message,omitempty"`
}

// Sender posts lead emails to the Resend API.
type Sender struct {
	endpoint string
	apiKey   string
	from     string
	to       string
	client   *http.Client
	logger   *zap.Logger
}

func NewSender(cfg *configtypes.ResendConfig, logger *zap.Logger) (*Sender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("resend config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}

	return &Sender{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		to:       cfg.To,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}, nil
}

// SendLead dispatches the lead notification and returns the provider's
// message id when it reports one.
func (s *Sender) SendLead(ctx context.Context, lead Lead) (string, error) {
	subject := "New audit lead: " + lead.Email

	text := fmt.Sprintf("Email: %s\nWebsite: %s\n", lead.Email, lead.Website)
	if lead.Name != "" {
		text = "Name: " + lead.Name + "\n" + text
	}
	if lead.Source != "" {
		text += "Source: " + lead.Source + "\n"
	}
	if lead.Message != "" {
		text += "\n" + lead.Message + "\n"
	}

	payload, err := json.Marshal(map[string]any{
		"from":    s.from,
		"to":      []string{s.to},
		"subject": subject,
		"text":    text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("email dispatch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read email response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("email dispatch failed: status %d", resp.StatusCode)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		// Delivery succeeded; the id is informational only.
		s.logger.Warn("Email sent but response not decodable", zap.Error(err))
		return "", nil
	}

	s.logger.Info("Lead email sent",
		zap.String("lead_email", lead.Email),
		zap.String("message_id", result.ID))

	return result.ID, nil
}
