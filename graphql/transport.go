// Package graphql sends single GraphQL-over-HTTP requests to the Frank
// Energie API and classifies the outcome into transport, query-level and
// authentication failures.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/devilmonastery/frankenergie/auth"
	"github.com/devilmonastery/frankenergie/internal/pkg/idgen"
)

// DefaultEndpoint is the production GraphQL endpoint
const DefaultEndpoint = "https://frank-graphql-prod.graphcdn.app/"

// maxResponseSize caps how much of a response body is read
const maxResponseSize = 10 << 20

// Request is one GraphQL operation
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// ErrorEntry is one element of a response's errors list
type ErrorEntry struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Response is the raw GraphQL response envelope. Data is left undecoded;
// interpreting it is up to the caller.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []ErrorEntry    `json:"errors,omitempty"`
}

// HasData reports whether the response carries a non-null data member
func (r *Response) HasData() bool {
	return r != nil && len(r.Data) > 0 && string(r.Data) != "null"
}

// Transport posts GraphQL requests to a single endpoint. It never retries.
type Transport struct {
	endpoint   string
	httpClient *http.Client
	log        *slog.Logger
}

// NewTransport creates a transport for endpoint. A nil httpClient gets an
// instrumented client with a 30 second timeout; a nil logger uses slog.Default.
func NewTransport(endpoint string, httpClient *http.Client, logger *slog.Logger) *Transport {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(30 * time.Second)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		endpoint:   endpoint,
		httpClient: httpClient,
		log:        logger.With(slog.String("component", "graphql_transport")),
	}
}

// Endpoint returns the URL requests are posted to
func (t *Transport) Endpoint() string {
	return t.endpoint
}

// Send posts req, attaching token as a bearer credential when non-nil.
//
// Errors:
//   - *AuthenticationError for HTTP 401/403 or a GraphQL auth rejection
//   - *GraphQLError for a well-formed errors list on a 2xx or 4xx response
//   - *TransportError for network failures, unreadable bodies, 5xx and other non-2xx statuses
func (t *Transport) Send(ctx context.Context, req Request, token *auth.Token) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	requestID := idgen.RequestID()
	httpReq, err := http.NewRequestWithContext(withOperation(ctx, req.OperationName), http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if token != nil && token.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}

	log := t.log.With(
		slog.String("operation", req.OperationName),
		slog.String("request_id", requestID),
		slog.Bool("authenticated", token != nil),
	)
	log.Debug("sending graphql request")

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		log.Warn("graphql request failed", slog.String("error", err.Error()))
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	log.Debug("graphql response received",
		slog.Int("status", resp.StatusCode),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	var out Response
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthenticationError{Reason: ReasonUnauthorized, StatusCode: resp.StatusCode, Errors: out.Errors}
	}
	if decodeErr == nil && IsAuthError(out.Errors) {
		return nil, &AuthenticationError{Reason: ReasonUnauthorized, StatusCode: resp.StatusCode, Errors: out.Errors}
	}
	// GraphQL servers answer malformed or invalid queries with 4xx and an
	// errors envelope
	if decodeErr == nil && len(out.Errors) > 0 &&
		resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		log.Debug("graphql request refused", slog.Int("status", resp.StatusCode), slog.Int("count", len(out.Errors)))
		return nil, &GraphQLError{Errors: out.Errors, Data: out.Data}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", preview(raw))}
	}
	if decodeErr != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", decodeErr)}
	}
	if len(out.Errors) > 0 {
		log.Debug("graphql response carries errors", slog.Int("count", len(out.Errors)))
		return nil, &GraphQLError{Errors: out.Errors, Data: out.Data}
	}

	return &out, nil
}

// preview trims a response body for error messages
func preview(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	if len(body) == 0 {
		return "<empty body>"
	}
	return string(body)
}
