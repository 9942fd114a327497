// Package ringcentral is a REST client for SMS, RingOut and the call log,
// authenticated with the JWT bearer grant.
package ringcentral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	apperrors "github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
)

const (
	serviceName    = "ringcentral"
	tokenCacheKey  = "ringcentral:access_token"
	tokenSafety    = 60 * time.Second
	extensionPath  = "/restapi/v1.0/account/~/extension/~"
	callLogPerPage = 250
)

// Client calls platform.ringcentral.com
type Client struct {
	ServerURL    string
	ClientID     string
	ClientSecret string
	JWT          string
	HTTPClient   *http.Client
	tokens       ports.TokenCache
}

// NewClient builds a client; tokens caches the access token between calls
func NewClient(cfg config.RingCentralConfig, tokens ports.TokenCache) *Client {
	return &Client{
		ServerURL:    strings.TrimRight(cfg.ServerURL, "/"),
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		JWT:          cfg.JWT,
		HTTPClient:   &http.Client{Timeout: 15 * time.Second},
		tokens:       tokens,
	}
}

var _ ports.RingCentral = (*Client)(nil)

// flexID accepts ids encoded as JSON strings or numbers
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexID(strings.Trim(string(b), `"`))
	return nil
}

type phoneNumber struct {
	PhoneNumber string `json:"phoneNumber"`
}

// accessToken returns a cached token or performs the JWT bearer grant
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(ctx, tokenCacheKey); ok {
		return token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", c.JWT)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ServerURL+"/restapi/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := c.send(req, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", apperrors.NewUpstreamError(serviceName, 0, "no access_token in response")
	}

	ttl := time.Duration(resp.ExpiresIn)*time.Second - tokenSafety
	if ttl > 0 {
		if err := c.tokens.Set(ctx, tokenCacheKey, resp.AccessToken, ttl); err != nil {
			return "", fmt.Errorf("failed to cache access token: %w", err)
		}
	}
	return resp.AccessToken, nil
}

// SendSMS sends a text message and returns its id
func (c *Client) SendSMS(ctx context.Context, from, to, text string) (string, error) {
	body := map[string]interface{}{
		"from": phoneNumber{from},
		"to":   []phoneNumber{{to}},
		"text": text,
	}
	var resp struct {
		ID flexID `json:"id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, extensionPath+"/sms", nil, body, &resp); err != nil {
		return "", err
	}
	return string(resp.ID), nil
}

// RingOut starts a two-legged call: from rings first, then to
func (c *Client) RingOut(ctx context.Context, from, to string) (string, error) {
	body := map[string]interface{}{
		"from":       phoneNumber{from},
		"to":         phoneNumber{to},
		"playPrompt": false,
	}
	var resp struct {
		ID flexID `json:"id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, extensionPath+"/ring-out", nil, body, &resp); err != nil {
		return "", err
	}
	return string(resp.ID), nil
}

// CallLog returns call records that started after since
func (c *Client) CallLog(ctx context.Context, since time.Time) ([]ports.CallRecord, error) {
	q := url.Values{}
	q.Set("dateFrom", since.UTC().Format(time.RFC3339))
	q.Set("perPage", fmt.Sprint(callLogPerPage))
	q.Set("view", "Simple")

	var resp struct {
		Records []struct {
			ID        flexID      `json:"id"`
			Direction string      `json:"direction"`
			From      phoneNumber `json:"from"`
			To        phoneNumber `json:"to"`
			Result    string      `json:"result"`
			Duration  int         `json:"duration"`
			StartTime time.Time   `json:"startTime"`
		} `json:"records"`
	}
	if err := c.doRequest(ctx, http.MethodGet, extensionPath+"/call-log", q, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]ports.CallRecord, 0, len(resp.Records))
	for _, r := range resp.Records {
		records = append(records, ports.CallRecord{
			ID:          string(r.ID),
			Direction:   strings.ToLower(r.Direction),
			From:        r.From.PhoneNumber,
			To:          r.To.PhoneNumber,
			Result:      r.Result,
			DurationSec: r.Duration,
			StartTime:   r.StartTime,
		})
	}
	return records, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	fullURL := c.ServerURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, result)
}

func (c *Client) send(req *http.Request, result interface{}) error {
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
		var apiErr struct {
			Message          string `json:"message"`
			ErrorDescription string `json:"error_description"`
		}
		msg := string(respBytes)
		if json.Unmarshal(respBytes, &apiErr) == nil {
			if apiErr.Message != "" {
				msg = apiErr.Message
			} else if apiErr.ErrorDescription != "" {
				msg = apiErr.ErrorDescription
			}
		}
		return apperrors.NewUpstreamError(serviceName, resp.StatusCode, msg)
	}

	if result != nil {
		if err := json.Unmarshal(respBytes, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
