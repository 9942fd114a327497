// Package relay hands transactional emails to the automation webhook that sends them.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	apperrors "github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
)

const serviceName = "email relay"

// Client POSTs email requests to the configured webhook
type Client struct {
	WebhookURL string
	Secret     string
	HTTPClient *http.Client
}

func NewClient(cfg config.RelayConfig) *Client {
	return &Client{
		WebhookURL: cfg.WebhookURL,
		Secret:     cfg.Secret,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

var _ ports.EmailRelay = (*Client)(nil)

// Deliver sends msg. Without a webhook URL the email is logged and dropped.
func (c *Client) Deliver(ctx context.Context, msg models.EmailMessage) error {
	if c.WebhookURL == "" {
		log.Warn().Str("type", msg.Type).Str("to", msg.To).Msg("📧 Email relay not configured, dropping email")
		return nil
	}

	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.WebhookURL, bytes.NewBuffer(jsonBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	if c.Secret != "" {
		req.Header.Set(constants.HeaderRelaySecret, c.Secret)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return apperrors.NewUpstreamError(serviceName, 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBytes, _ := io.ReadAll(resp.Body)
		return apperrors.NewUpstreamError(serviceName, resp.StatusCode, string(respBytes))
	}
	return nil
}
