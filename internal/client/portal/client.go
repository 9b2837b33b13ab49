// Package portal is the HTTP client for the portal's sharing REST API:
// creating and updating map items and reading item data.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/apperr"
	"github.com/atinyakov/GophMaps/internal/client/auth"
	"github.com/atinyakov/GophMaps/internal/mapping"
)

// WebMapType is the item type used for saved maps.
const WebMapType = "Web Map"

// NewItem is the content and metadata of an item to create.
type NewItem struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Tags        []string          `json:"tags"`
	Folder      string            `json:"folder,omitempty"`
	Extent      *mapping.Envelope `json:"extent,omitempty"`
	Data        json.RawMessage   `json:"text"`
}

// ItemSummary describes an item owned by the signed-in user.
type ItemSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Type     string   `json:"type"`
	Tags     []string `json:"tags"`
	Modified int64    `json:"modified"`
}

// Client talks to one portal.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewClient returns a client for the portal REST root, e.g. https://host/sharing/rest.
func NewClient(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, log: log}
}

// BaseURL returns the portal REST root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ItemURL returns the address of an item's description.
func (c *Client) ItemURL(itemID string) string {
	return c.baseURL + "/content/items/" + url.PathEscape(itemID)
}

type addItemResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// CreateItem creates a web map item for the credential's user and returns its id.
func (c *Client) CreateItem(ctx context.Context, cred *auth.Credential, item NewItem) (string, error) {
	if err := checkCredential(cred); err != nil {
		return "", err
	}
	payload := struct {
		Type string `json:"type"`
		NewItem
	}{Type: WebMapType, NewItem: item}

	var out addItemResponse
	endpoint := c.baseURL + "/content/users/" + url.PathEscape(cred.Username) + "/addItem"
	if err := c.do(ctx, http.MethodPost, endpoint, cred, payload, &out); err != nil {
		return "", fmt.Errorf("create item: %w", err)
	}
	if !out.Success || out.ID == "" {
		return "", fmt.Errorf("create item: %w: portal did not return an item id", apperr.ErrNetwork)
	}
	c.log.Info("item created", zap.String("item", out.ID), zap.String("title", item.Title))
	return out.ID, nil
}

// UpdateItem replaces the data of an existing item. Metadata is left as it is.
func (c *Client) UpdateItem(ctx context.Context, cred *auth.Credential, itemID string, data []byte) error {
	if err := checkCredential(cred); err != nil {
		return err
	}
	payload := struct {
		Data json.RawMessage `json:"text"`
	}{Data: data}

	var out addItemResponse
	endpoint := c.baseURL + "/content/users/" + url.PathEscape(cred.Username) + "/items/" + url.PathEscape(itemID) + "/update"
	if err := c.do(ctx, http.MethodPost, endpoint, cred, payload, &out); err != nil {
		return fmt.Errorf("update item %s: %w", itemID, err)
	}
	if !out.Success {
		return fmt.Errorf("update item %s: %w: portal reported failure", itemID, apperr.ErrNetwork)
	}
	c.log.Info("item updated", zap.String("item", itemID))
	return nil
}

// ItemData reads an item's data anonymously.
func (c *Client) ItemData(ctx context.Context, itemID string) ([]byte, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.ItemURL(itemID)+"/data", nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("item data %s: %w", itemID, err)
	}
	return raw, nil
}

// ListItems returns the items owned by the credential's user.
func (c *Client) ListItems(ctx context.Context, cred *auth.Credential) ([]ItemSummary, error) {
	if err := checkCredential(cred); err != nil {
		return nil, err
	}
	var out struct {
		Items []ItemSummary `json:"items"`
	}
	endpoint := c.baseURL + "/content/users/" + url.PathEscape(cred.Username) + "/items"
	if err := c.do(ctx, http.MethodGet, endpoint, cred, nil, &out); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return out.Items, nil
}

func checkCredential(cred *auth.Credential) error {
	if cred == nil || cred.Token == "" || cred.Username == "" {
		return fmt.Errorf("%w: credential without token or username", apperr.ErrAuthenticationFailure)
	}
	return nil
}

// do sends a JSON request and decodes a JSON response. Every failure is an apperr.CallErr.
func (c *Client) do(ctx context.Context, method, endpoint string, cred *auth.Credential, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return apperr.CallErr{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != nil {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.CallErr{Req: req, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("portal call failed", zap.String("url", endpoint), zap.Int("status", resp.StatusCode))
		return apperr.CallErr{Req: req, Resp: resp, Err: fmt.Errorf("server error: %s", strings.TrimSpace(string(data)))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.CallErr{Req: req, Resp: resp, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return nil
}

// IsNotFound reports whether err came from a 404 response.
func IsNotFound(err error) bool {
	var ce apperr.CallErr
	return errors.As(err, &ce) && ce.Resp != nil && ce.Resp.StatusCode == http.StatusNotFound
}
