package metrics

import (
	"strconv"
	"strings"
	"time"
)

// RecordGraphQLCall records one HTTP exchange with the GraphQL endpoint
// operation: GraphQL operation name ("" becomes "anonymous")
// statusCode: HTTP status, 0 when no response was received
// err: transport error, nil when a response arrived
func RecordGraphQLCall(operation string, statusCode int, duration time.Duration, err error) {
	if operation == "" {
		operation = "anonymous"
	}

	GraphQLRequests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	GraphQLDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))

	if err != nil || statusCode >= 400 {
		GraphQLErrors.WithLabelValues(operation, ClassifyHTTPError(statusCode, err)).Inc()
	}
}

// RecordResult maps an error to the "success"/"error" label used by the
// session counters
func RecordResult(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ClassifyHTTPError categorizes a failed HTTP exchange for metrics
func ClassifyHTTPError(statusCode int, err error) string {
	if err != nil {
		errStr := strings.ToLower(err.Error())
		switch {
		case strings.Contains(errStr, "context canceled"):
			return "canceled"
		case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
			return "timeout"
		case strings.Contains(errStr, "connection") || strings.Contains(errStr, "connect"):
			return "connection"
		case strings.Contains(errStr, "tls"):
			return "tls"
		default:
			return "network"
		}
	}

	switch {
	case statusCode == 400:
		return "bad_request"
	case statusCode == 401:
		return "unauthorized"
	case statusCode == 403:
		return "forbidden"
	case statusCode == 404:
		return "not_found"
	case statusCode == 429:
		return "rate_limited"
	case statusCode >= 500:
		return "server_error"
	case statusCode >= 400:
		return "client_error"
	default:
		return "unknown"
	}
}
