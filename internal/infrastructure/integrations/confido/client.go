// Package confido is a GraphQL client for Confido Legal payment links.
package confido

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	apperrors "github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
)

const serviceName = "confido"

const paymentLinkFields = `id url status amount amountPaid paidAt`

const createPaymentLinkMutation = `mutation CreatePaymentLink($input: CreatePaymentLinkInput!) {
  createPaymentLink(input: $input) { paymentLink { ` + paymentLinkFields + ` } }
}`

const paymentLinkQuery = `query PaymentLink($id: ID!) {
  paymentLink(id: $id) { ` + paymentLinkFields + ` }
}`

const voidPaymentLinkMutation = `mutation VoidPaymentLink($id: ID!) {
  voidPaymentLink(id: $id) { paymentLink { id status } }
}`

// Client posts GraphQL documents with a bearer API key
type Client struct {
	APIURL     string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(cfg config.ConfidoConfig) *Client {
	return &Client{
		APIURL:     cfg.APIURL,
		APIKey:     cfg.APIKey,
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
	}
}

var _ ports.Confido = (*Client)(nil)

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type paymentLink struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	Status     string     `json:"status"`
	Amount     int64      `json:"amount"`
	AmountPaid int64      `json:"amountPaid"`
	PaidAt     *time.Time `json:"paidAt"`
}

func (p paymentLink) toPort() *ports.PaymentLink {
	return &ports.PaymentLink{
		ID:          p.ID,
		URL:         p.URL,
		Status:      strings.ToLower(p.Status),
		AmountCents: p.Amount,
		PaidCents:   p.AmountPaid,
		PaidAt:      p.PaidAt,
	}
}

// CreatePaymentLink creates a payment link for the given amount in cents
func (c *Client) CreatePaymentLink(ctx context.Context, in ports.PaymentLinkInput) (*ports.PaymentLink, error) {
	input := map[string]interface{}{
		"amount":      in.AmountCents,
		"description": in.Description,
		"reference":   in.Reference,
		"payer": map[string]string{
			"name":  in.ClientName,
			"email": in.ClientEmail,
		},
	}
	if in.DueDate != nil {
		input["dueDate"] = in.DueDate.UTC().Format("2006-01-02")
	}

	var data struct {
		CreatePaymentLink struct {
			PaymentLink paymentLink `json:"paymentLink"`
		} `json:"createPaymentLink"`
	}
	if err := c.execute(ctx, createPaymentLinkMutation, map[string]interface{}{"input": input}, &data); err != nil {
		return nil, err
	}
	if data.CreatePaymentLink.PaymentLink.ID == "" {
		return nil, apperrors.NewUpstreamError(serviceName, 0, "payment link missing from response")
	}
	return data.CreatePaymentLink.PaymentLink.toPort(), nil
}

// GetPaymentLink fetches the current state of a payment link
func (c *Client) GetPaymentLink(ctx context.Context, id string) (*ports.PaymentLink, error) {
	var data struct {
		PaymentLink *paymentLink `json:"paymentLink"`
	}
	if err := c.execute(ctx, paymentLinkQuery, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.PaymentLink == nil {
		return nil, apperrors.NewUpstreamError(serviceName, 0, fmt.Sprintf("payment link %s not found", id))
	}
	return data.PaymentLink.toPort(), nil
}

// VoidPaymentLink cancels an unpaid payment link
func (c *Client) VoidPaymentLink(ctx context.Context, id string) error {
	var data json.RawMessage
	return c.execute(ctx, voidPaymentLinkMutation, map[string]interface{}{"id": id}, &data)
}

// execute posts a GraphQL document. GraphQL errors become upstream errors.
func (c *Client) execute(ctx context.Context, query string, variables map[string]interface{}, result interface{}) error {
	jsonBytes, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, bytes.NewBuffer(jsonBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return apperrors.NewUpstreamError(serviceName, 0, err.Error())
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewUpstreamError(serviceName, resp.StatusCode, err.Error())
	}
	if resp.StatusCode >= 400 {
		return apperrors.NewUpstreamError(serviceName, resp.StatusCode, string(respBytes))
	}

	var gr graphQLResponse
	if err := json.Unmarshal(respBytes, &gr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			msgs = append(msgs, e.Message)
		}
		return apperrors.NewUpstreamError(serviceName, resp.StatusCode, strings.Join(msgs, "; "))
	}
	if result != nil && len(gr.Data) > 0 {
		if err := json.Unmarshal(gr.Data, result); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
	}
	return nil
}
