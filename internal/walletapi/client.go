// Package walletapi talks to the wallet backend's GraphQL API.
package walletapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/congo-pay/sendbtc/internal/auth"
)

// Client is a GraphQL-over-HTTP client. Calls forward the caller's bearer
// token found in the context.
type Client struct {
	endpoint string
	http     *http.Client
}

// New builds a client for the GraphQL endpoint.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{endpoint: endpoint, http: &http.Client{Timeout: timeout}}
}

type request struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// ResponseError is returned when the API answered with errors and no data.
type ResponseError struct {
	Operation string
	Messages  []string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("wallet api %s: %v", e.Operation, e.Messages)
}

// do runs one operation and decodes its data into out. GraphQL errors that
// come with data are returned alongside it rather than as an error.
func (c *Client) do(ctx context.Context, operation, query string, vars map[string]any, out any) ([]graphQLError, error) {
	body, err := json.Marshal(request{OperationName: operation, Query: query, Variables: vars})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token, ok := auth.BearerFrom(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wallet api %s failed: %s", operation, resp.Status)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", operation, err)
	}
	if len(decoded.Data) == 0 || string(decoded.Data) == "null" {
		if len(decoded.Errors) == 0 {
			return nil, fmt.Errorf("wallet api %s returned no data", operation)
		}
		return decoded.Errors, nil
	}
	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", operation, err)
	}
	return decoded.Errors, nil
}

func messages(errs []graphQLError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Message)
	}
	return out
}
