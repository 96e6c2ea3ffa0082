// Package client performs contact reads and writes over HTTP with optimistic
// concurrency control. It tracks one opaque version token (ETag) per contact,
// sends it back as an If-Match precondition on writes, and announces
// successful mutations on the session bus.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"contactdesk/internal/bus"
	"contactdesk/internal/config"
	"contactdesk/internal/contactevents"
	"contactdesk/internal/domain/contact"
	"contactdesk/internal/domain/event"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	bus        *bus.Bus
	maxRetries int
	retryDelay time.Duration

	mu     sync.Mutex
	tokens map[string]string // contact id -> last observed version token
}

func New(cfg config.Client, b *bus.Bus) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		bus:        b,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		tokens:     make(map[string]string),
	}
}

// Token returns the cached version token for a contact, if any.
func (c *Client) Token(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.tokens[id]
	return tok, ok
}

func (c *Client) setToken(id, token string) {
	if token == "" {
		return
	}
	c.mu.Lock()
	c.tokens[id] = token
	c.mu.Unlock()
}

func (c *Client) clearToken(id string) {
	c.mu.Lock()
	delete(c.tokens, id)
	c.mu.Unlock()
}

// Get fetches the contact and caches the version token from the response.
func (c *Client) Get(ctx context.Context, id string) (*contact.Contact, error) {
	resp, err := c.do(ctx, http.MethodGet, c.contactURL(id), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readHTTPError(resp)
	}

	var out contact.Contact
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode contact %s: %w", id, err)
	}
	c.setToken(id, resp.Header.Get("ETag"))
	return &out, nil
}

// Update writes the patch with the cached token as an If-Match precondition.
// On success the fresh token is cached and a contact:changed event is
// emitted with a summary other sessions can patch their lists from.
func (c *Client) Update(ctx context.Context, id string, p contact.Patch) (*contact.Contact, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}

	token, _ := c.Token(id)
	resp, err := c.do(ctx, http.MethodPut, c.contactURL(id), body, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out contact.Contact
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode contact %s: %w", id, err)
		}
		c.setToken(id, resp.Header.Get("ETag"))
		contactevents.EmitContactChanged(c.bus, id, &event.ContactSummary{Name: out.Name, Kind: out.Kind})
		return &out, nil
	case http.StatusPreconditionRequired:
		return nil, ErrPreconditionRequired
	case http.StatusPreconditionFailed:
		return nil, c.conflict(id, resp)
	default:
		return nil, readHTTPError(resp)
	}
}

// Delete removes the contact with the cached token as a precondition. On
// success the token is cleared and a contact:deleted event is emitted.
func (c *Client) Delete(ctx context.Context, id string) error {
	token, _ := c.Token(id)
	resp, err := c.do(ctx, http.MethodDelete, c.contactURL(id), nil, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		c.clearToken(id)
		contactevents.EmitContactDeleted(c.bus, id, nil)
		return nil
	case http.StatusPreconditionRequired:
		return ErrPreconditionRequired
	case http.StatusPreconditionFailed:
		return c.conflict(id, resp)
	case http.StatusConflict:
		var blocked DeletionBlockedError
		if err := json.NewDecoder(resp.Body).Decode(&blocked); err != nil {
			return fmt.Errorf("decode conflict body: %w", err)
		}
		return &blocked
	default:
		return readHTTPError(resp)
	}
}

// conflict captures the server's current token from a 412 so the next
// attempt carries a fresh precondition without another Get.
func (c *Client) conflict(id string, resp *http.Response) error {
	current := resp.Header.Get("ETag")
	c.setToken(id, current)
	return &ConcurrencyConflictError{ID: id, CurrentToken: current}
}

func (c *Client) contactURL(id string) string {
	return fmt.Sprintf("%s/contacts/%s", c.baseURL, id)
}

// do issues the request with bounded retries. Only transport errors and
// 502/503/504 are retried: the If-Match precondition makes conditional
// writes safe to repeat.
func (c *Client) do(ctx context.Context, method, url string, body []byte, ifMatch string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if ifMatch != "" {
			req.Header.Set("If-Match", ifMatch)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s %s: %w", method, url, err)
			continue
		}

		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			lastErr = readHTTPError(resp)
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func readHTTPError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
}
