// Package meta is a thin Graph API client for page OAuth and the Send API.
package meta

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
	serviceName       = "meta"
	defaultDialogBase = "https://www.facebook.com"
)

// Scopes requested on the OAuth dialog
var Scopes = []string{
	"pages_show_list",
	"pages_messaging",
	"pages_manage_metadata",
	"instagram_basic",
	"instagram_manage_messages",
}

// Client talks to graph.facebook.com
type Client struct {
	AppID       string
	AppSecret   string
	RedirectURL string
	GraphURL    string
	DialogBase  string
	Version     string
	HTTPClient  *http.Client
}

func NewClient(cfg config.MetaConfig) *Client {
	return &Client{
		AppID:       cfg.AppID,
		AppSecret:   cfg.AppSecret,
		RedirectURL: cfg.RedirectURL,
		GraphURL:    strings.TrimRight(cfg.GraphURL, "/"),
		DialogBase:  defaultDialogBase,
		Version:     cfg.GraphVersion,
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

var _ ports.MetaGraph = (*Client)(nil)

type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// DialogURL builds the OAuth dialog redirect
func (c *Client) DialogURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.AppID)
	q.Set("redirect_uri", c.RedirectURL)
	q.Set("state", state)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(Scopes, ","))
	return fmt.Sprintf("%s/%s/dialog/oauth?%s", c.DialogBase, c.Version, q.Encode())
}

// ExchangeCode trades the OAuth code for a short-lived user token
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("client_id", c.AppID)
	q.Set("client_secret", c.AppSecret)
	q.Set("redirect_uri", c.RedirectURL)
	q.Set("code", code)
	return c.accessToken(ctx, q)
}

// ExchangeLongLived trades a short-lived token for a ~60 day one
func (c *Client) ExchangeLongLived(ctx context.Context, shortToken string) (string, error) {
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", c.AppID)
	q.Set("client_secret", c.AppSecret)
	q.Set("fb_exchange_token", shortToken)
	return c.accessToken(ctx, q)
}

func (c *Client) accessToken(ctx context.Context, q url.Values) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/oauth/access_token", q, nil, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", apperrors.NewUpstreamError(serviceName, 0, "no access_token in response")
	}
	return resp.AccessToken, nil
}

// ListPages returns the pages the user manages, with page tokens
func (c *Client) ListPages(ctx context.Context, userToken string) ([]ports.MetaPageAccount, error) {
	q := url.Values{}
	q.Set("fields", "id,name,access_token,instagram_business_account")
	q.Set("access_token", userToken)

	var resp struct {
		Data []struct {
			ID                       string `json:"id"`
			Name                     string `json:"name"`
			AccessToken              string `json:"access_token"`
			InstagramBusinessAccount *struct {
				ID string `json:"id"`
			} `json:"instagram_business_account"`
		} `json:"data"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/me/accounts", q, nil, &resp); err != nil {
		return nil, err
	}

	pages := make([]ports.MetaPageAccount, 0, len(resp.Data))
	for _, d := range resp.Data {
		page := ports.MetaPageAccount{ID: d.ID, Name: d.Name, AccessToken: d.AccessToken}
		if d.InstagramBusinessAccount != nil {
			page.InstagramAccountID = d.InstagramBusinessAccount.ID
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// SubscribePage subscribes the app to the page's messaging webhooks
func (c *Client) SubscribePage(ctx context.Context, pageID, pageToken string) error {
	q := url.Values{}
	q.Set("subscribed_fields", "messages,messaging_postbacks")
	q.Set("access_token", pageToken)

	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/"+url.PathEscape(pageID)+"/subscribed_apps", q, nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return apperrors.NewUpstreamError(serviceName, 0, "page subscription was not accepted")
	}
	return nil
}

// SendMessage sends a text reply through the Send API and returns the message id
func (c *Client) SendMessage(ctx context.Context, pageToken, recipientID, text string) (string, error) {
	q := url.Values{}
	q.Set("access_token", pageToken)

	body := map[string]interface{}{
		"recipient":      map[string]string{"id": recipientID},
		"message":        map[string]string{"text": text},
		"messaging_type": "RESPONSE",
	}
	var resp struct {
		MessageID string `json:"message_id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/me/messages", q, body, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	fullURL := fmt.Sprintf("%s/%s%s", c.GraphURL, c.Version, path)
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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
		var ge graphError
		if json.Unmarshal(respBytes, &ge) == nil && ge.Error != nil {
			return apperrors.NewUpstreamError(serviceName, resp.StatusCode, ge.Error.Message)
		}
		return apperrors.NewUpstreamError(serviceName, resp.StatusCode, string(respBytes))
	}

	if result != nil {
		if err := json.Unmarshal(respBytes, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
