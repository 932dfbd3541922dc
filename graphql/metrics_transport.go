package graphql

import (
	"context"
	"net/http"
	"time"

	"github.com/devilmonastery/frankenergie/internal/pkg/metrics"
)

type operationKey struct{}

// withOperation tags ctx with the GraphQL operation name for instrumentation
func withOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey{}, operation)
}

// operationFromContext returns the operation name set by withOperation
func operationFromContext(ctx context.Context) string {
	op, _ := ctx.Value(operationKey{}).(string)
	return op
}

// metricsTransport wraps an http.RoundTripper to collect metrics on GraphQL calls
type metricsTransport struct {
	base http.RoundTripper
}

// NewMetricsTransport creates a transport wrapper that records call counts,
// latency and failures per GraphQL operation. Install it on the HTTP client
// handed to NewTransport.
func NewMetricsTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &metricsTransport{base: base}
}

// RoundTrip implements http.RoundTripper
func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	metrics.RecordGraphQLCall(operationFromContext(req.Context()), statusCode, time.Since(start), err)

	return resp, err
}

// NewHTTPClient returns an instrumented HTTP client with the given timeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewMetricsTransport(nil),
	}
}
