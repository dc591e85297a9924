// Package apiclient talks to the sendbtc HTTP API on behalf of the CLI.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/sendbtc/internal/payments"
)

// Client is an authenticated client of the /api/v1 routes.
type Client struct {
	Base   string
	Token  string
	HTTP   *http.Client
	Logger *slog.Logger
}

// New builds a client for base, e.g. http://127.0.0.1:8080.
func New(base, token string, timeout time.Duration) *Client {
	return &Client{
		Base:   strings.TrimRight(base, "/"),
		Token:  token,
		HTTP:   &http.Client{Timeout: timeout},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

// Quote is the subset of a quote the CLI acts on. Raw holds the full body.
type Quote struct {
	ID    string          `json:"id"`
	State string          `json:"state"`
	Raw   json.RawMessage `json:"-"`
}

// SubmitOptions carry the headers that guard a submit.
type SubmitOptions struct {
	PIN            string
	IdempotencyKey string
}

// Prepare registers a draft.
func (c *Client) Prepare(ctx context.Context, req payments.DraftRequest) (Quote, error) {
	return c.quote(ctx, http.MethodPost, "/payments", req, nil)
}

// Submit dispatches a prepared submission. A fresh idempotency key is used
// when none is given.
func (c *Client) Submit(ctx context.Context, id string, opts SubmitOptions) (Quote, error) {
	key := opts.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	headers := map[string]string{"Idempotency-Key": key}
	if opts.PIN != "" {
		headers["X-Spending-PIN"] = opts.PIN
	}
	return c.quote(ctx, http.MethodPost, "/payments/"+url.PathEscape(id)+"/submit", nil, headers)
}

// Status reports a submission.
func (c *Client) Status(ctx context.Context, id string) (Quote, error) {
	return c.quote(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil, nil)
}

// History lists recent submissions.
func (c *Client) History(ctx context.Context, limit int) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, "/payments?limit="+strconv.Itoa(limit), nil, nil)
}

// Balance returns the cached wallet balance.
func (c *Client) Balance(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, "/wallet/balance", nil, nil)
}

// Recipient checks a username handle.
func (c *Client) Recipient(ctx context.Context, handle string) (json.RawMessage, error) {
	return c.raw(ctx, http.MethodGet, "/recipients/"+url.PathEscape(handle), nil, nil)
}

func (c *Client) quote(ctx context.Context, method, path string, in any, headers map[string]string) (Quote, error) {
	body, err := c.raw(ctx, method, path, in, headers)
	if err != nil {
		return Quote{}, err
	}
	var q Quote
	if err := json.Unmarshal(body, &q); err != nil {
		return Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	q.Raw = body
	return q, nil
}

func (c *Client) raw(ctx context.Context, method, path string, in any, headers map[string]string) (json.RawMessage, error) {
	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+"/api/v1"+path, reader)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	c.Logger.Debug("api call", slog.String("method", method), slog.String("path", path),
		slog.Int("status", resp.StatusCode), slog.Duration("duration", time.Since(start)))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return body, nil
}
