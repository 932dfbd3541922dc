package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GraphQL API Metrics
var (
	// GraphQLRequests tracks calls to the GraphQL endpoint
	GraphQLRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frankenergie_graphql_requests_total",
			Help: "Total GraphQL requests by operation and HTTP status code",
		},
		[]string{"operation", "status_code"},
	)

	// GraphQLDuration tracks GraphQL request latency
	GraphQLDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "frankenergie_graphql_request_duration_ms",
			Help:                            "GraphQL request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"operation"},
	)

	// GraphQLErrors tracks failed GraphQL requests by error class
	GraphQLErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frankenergie_graphql_errors_total",
			Help: "Total GraphQL request failures by operation and error type",
		},
		[]string{"operation", "error_type"},
	)
)

// Session Metrics
var (
	// SessionRefreshes tracks token refresh network calls
	SessionRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frankenergie_session_refreshes_total",
			Help: "Total token refresh calls by result",
		},
		[]string{"result"},
	)

	// SessionLogins tracks login attempts
	SessionLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frankenergie_session_logins_total",
			Help: "Total login attempts by result",
		},
		[]string{"result"},
	)

	// SessionTransitions tracks session state machine transitions
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frankenergie_session_transitions_total",
			Help: "Total session state transitions",
		},
		[]string{"from", "to"},
	)

	// QueryRetries tracks queries re-sent after a forced refresh
	QueryRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frankenergie_query_auth_retries_total",
			Help: "Total queries re-sent once after an authentication rejection",
		},
		[]string{"result"},
	)
)
