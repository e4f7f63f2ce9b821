// Package whatsapp is the client for the WhatsApp HTTP gateway (the bridge
// process that owns the authenticated WhatsApp session).
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL string, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ready reports whether the gateway session is authenticated and connected.
// Any transport or gateway error reads as not ready.
func (c *Client) Ready(ctx context.Context) bool {
	if c.baseURL == "" {
		return false
	}
	var status struct {
		Ready bool `json:"ready"`
	}
	if err := c.getJSON(ctx, "/session/status", &status); err != nil {
		return false
	}
	return status.Ready
}

// IsRegistered reports whether the address is a registered WhatsApp endpoint.
func (c *Client) IsRegistered(ctx context.Context, address string) (bool, error) {
	if c.baseURL == "" {
		return false, errors.New("whatsapp gateway url not configured")
	}
	var contact struct {
		Registered bool `json:"registered"`
	}
	err := c.getJSON(ctx, "/contacts/"+url.PathEscape(address), &contact)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return false, nil
		}
		return false, err
	}
	return contact.Registered, nil
}

// Send submits one message and returns nil on channel-level acknowledgment.
func (c *Client) Send(ctx context.Context, address string, text string) error {
	if c.baseURL == "" {
		return errors.New("whatsapp gateway url not configured")
	}
	raw, err := json.Marshal(map[string]string{
		"to":   address,
		"body": text,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp gateway returned %d", resp.StatusCode)
	}
	return nil
}

// ReadyCheck adapts Ready for /readyz.
func ReadyCheck(c *Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if c == nil {
			return errors.New("whatsapp gateway not configured")
		}
		if !c.Ready(ctx) {
			return errors.New("whatsapp session not ready")
		}
		return nil
	}
}

var errNotFound = errors.New("not found")

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp gateway returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
