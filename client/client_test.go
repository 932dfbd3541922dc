package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/frankenergie/graphql"
	"github.com/devilmonastery/frankenergie/internal/pkg/metrics"
	"github.com/devilmonastery/frankenergie/session"
)

var tokenSeq atomic.Int64

func mintToken(exp time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"jti": fmt.Sprintf("c%d", tokenSeq.Add(1)),
	})
	s, _ := token.SigningString()
	return s + ".fake_signature"
}

func tokenPairBody(field, access, refresh string) string {
	return fmt.Sprintf(`{"data":{%q:{"authToken":%q,"refreshToken":%q}}}`, field, access, refresh)
}

const authRejectedBody = `{"data":null,"errors":[{"message":"user-error:auth-not-authorised"}]}`

const monthSummaryBody = `{"data":{"monthSummary":{"actualCostsUntilLastMeterReadingDate":12.34,"expectedCostsUntilLastMeterReadingDate":20,"expectedCosts":40,"lastMeterReadingDate":"2023-01-01"}}}`

// fakeAPI is a scripted GraphQL endpoint that records calls per operation
type fakeAPI struct {
	mu      sync.Mutex
	calls   map[string]int
	bearers map[string][]string
	handle  func(op string, vars map[string]any, bearer string, call int) (int, string)
}

func newFakeAPI(t *testing.T, handle func(op string, vars map[string]any, bearer string, call int) (int, string)) (*fakeAPI, *httptest.Server) {
	api := &fakeAPI{
		calls:   make(map[string]int),
		bearers: make(map[string][]string),
		handle:  handle,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphql.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		api.mu.Lock()
		api.calls[req.OperationName]++
		call := api.calls[req.OperationName]
		api.bearers[req.OperationName] = append(api.bearers[req.OperationName], bearer)
		api.mu.Unlock()

		status, body := api.handle(req.OperationName, req.Variables, bearer, call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return api, server
}

func (a *fakeAPI) count(op string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[op]
}

func (a *fakeAPI) bearer(op string, call int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bearers[op][call-1]
}

// loginOK answers Login and RenewToken with fresh tokens and delegates the rest
func loginOK(now func() time.Time, rest func(op string, vars map[string]any, bearer string, call int) (int, string)) func(string, map[string]any, string, int) (int, string) {
	return func(op string, vars map[string]any, bearer string, call int) (int, string) {
		switch op {
		case "Login":
			return http.StatusOK, tokenPairBody("login", mintToken(now().Add(time.Hour)), "refresh-login")
		case "RenewToken":
			return http.StatusOK, tokenPairBody("renewToken", mintToken(now().Add(2*time.Hour)), "refresh-renewed")
		}
		return rest(op, vars, bearer, call)
	}
}

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	opts = append([]Option{WithEndpoint(server.URL), WithHTTPClient(server.Client())}, opts...)
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

func TestPrices_PublicWithoutSession(t *testing.T) {
	var gotVars map[string]any
	api, server := newFakeAPI(t, func(op string, vars map[string]any, bearer string, call int) (int, string) {
		gotVars = vars
		return http.StatusOK, `{"data":{
			"marketPricesElectricity":[{"from":"2025-03-01T00:00:00Z","till":"2025-03-01T01:00:00Z","marketPrice":0.1,"marketPriceTax":0.021,"sourcingMarkupPrice":0.02,"energyTaxPrice":0.1}],
			"marketPricesGas":[]}}`
	})
	c := newTestClient(t, server)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	prices, err := c.Prices(context.Background(), start, time.Time{})
	require.NoError(t, err)

	assert.Len(t, prices.Electricity, 1)
	assert.Equal(t, "", api.bearer("MarketPrices", 1))
	assert.Equal(t, "2025-03-01", gotVars["startDate"])
	assert.Equal(t, "2025-03-02", gotVars["endDate"])
}

func TestExecute_UnauthenticatedMakesNoRequest(t *testing.T) {
	api, server := newFakeAPI(t, func(string, map[string]any, string, int) (int, string) {
		return http.StatusOK, monthSummaryBody
	})
	c := newTestClient(t, server)

	_, err := c.MonthSummary(context.Background(), "site")

	var authErr *graphql.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, graphql.ReasonNotAuthenticated, authErr.Reason)
	assert.Equal(t, 0, api.count("MonthSummary"))
	assert.False(t, c.IsAuthenticated())
}

func TestLoginThenQuery(t *testing.T) {
	api, server := newFakeAPI(t, loginOK(time.Now, func(op string, vars map[string]any, bearer string, call int) (int, string) {
		return http.StatusOK, monthSummaryBody
	}))
	c := newTestClient(t, server)

	token, err := c.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)
	assert.True(t, c.IsAuthenticated())
	assert.True(t, c.AuthenticationValid())
	assert.Equal(t, session.StateAuthenticated, c.Session().State())

	summary, err := c.MonthSummary(context.Background(), "site")
	require.NoError(t, err)
	assert.Equal(t, 12.34, summary.ActualCostsUntilLastMeterReadingDate)
	assert.Equal(t, token.AccessToken, api.bearer("MonthSummary", 1))
	assert.Equal(t, "", api.bearer("Login", 1))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	_, server := newFakeAPI(t, func(string, map[string]any, string, int) (int, string) {
		return http.StatusOK, `{"data":{"login":null},"errors":[{"message":"user-error:password-invalid"}]}`
	})
	c := newTestClient(t, server)

	_, err := c.Login(context.Background(), "user@example.com", "wrong")

	var authErr *graphql.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, graphql.ReasonInvalidCredentials, authErr.Reason)
	assert.Equal(t, session.StateFailed, c.Session().State())
	assert.False(t, c.IsAuthenticated())
}

func TestExecute_RetriesOnceAfterRejection(t *testing.T) {
	api, server := newFakeAPI(t, loginOK(time.Now, func(op string, vars map[string]any, bearer string, call int) (int, string) {
		if call == 1 {
			return http.StatusOK, authRejectedBody
		}
		return http.StatusOK, monthSummaryBody
	}))
	c := newTestClient(t, server)

	first, err := c.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.QueryRetries.WithLabelValues("success"))

	summary, err := c.MonthSummary(context.Background(), "site")
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01", summary.LastMeterReadingDate)

	assert.Equal(t, 2, api.count("MonthSummary"))
	assert.Equal(t, 1, api.count("RenewToken"))
	assert.Equal(t, first.AccessToken, api.bearer("MonthSummary", 1))
	assert.Equal(t, first.AccessToken, api.bearer("RenewToken", 1))
	assert.Equal(t, c.Session().Token().AccessToken, api.bearer("MonthSummary", 2))
	assert.NotEqual(t, first.AccessToken, api.bearer("MonthSummary", 2))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.QueryRetries.WithLabelValues("success")))
}

func TestExecute_ConcurrentRejectionsShareOneRenewal(t *testing.T) {
	var stale atomic.Value
	stale.Store("")
	renew := loginOK(time.Now, nil)
	api, server := newFakeAPI(t, func(op string, vars map[string]any, bearer string, call int) (int, string) {
		switch op {
		case "Login":
			return renew(op, vars, bearer, call)
		case "RenewToken":
			time.Sleep(50 * time.Millisecond)
			return renew(op, vars, bearer, call)
		}
		if bearer == stale.Load().(string) {
			return http.StatusOK, authRejectedBody
		}
		return http.StatusOK, monthSummaryBody
	})
	c := newTestClient(t, server)

	first, err := c.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)
	stale.Store(first.AccessToken)

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Execute(context.Background(), graphql.Request{
				Query:         "query MonthSummary { monthSummary { expectedCosts } }",
				OperationName: "MonthSummary",
			}, true)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, api.count("RenewToken"))
	assert.GreaterOrEqual(t, api.count("MonthSummary"), callers)
	assert.Equal(t, first.AccessToken, api.bearer("RenewToken", 1))
	assert.NotEqual(t, first.AccessToken, c.Session().Token().AccessToken)
}

func TestExecute_SecondRejectionSurfaces(t *testing.T) {
	api, server := newFakeAPI(t, loginOK(time.Now, func(string, map[string]any, string, int) (int, string) {
		return http.StatusUnauthorized, `{"errors":[{"message":"user-error:auth-required"}]}`
	}))
	c := newTestClient(t, server)

	_, err := c.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	_, err = c.Invoices(context.Background(), "site")

	var authErr *graphql.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, graphql.ReasonUnauthorized, authErr.Reason)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, 2, api.count("Invoices"))
	assert.Equal(t, 1, api.count("RenewToken"))
}

func TestExecute_ServerErrorKeepsSession(t *testing.T) {
	_, server := newFakeAPI(t, loginOK(time.Now, func(string, map[string]any, string, int) (int, string) {
		return http.StatusInternalServerError, "upstream exploded"
	}))
	c := newTestClient(t, server)

	token, err := c.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	_, err = c.Me(context.Background(), "")

	var transportErr *graphql.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)
	assert.Equal(t, session.StateAuthenticated, c.Session().State())
	assert.Same(t, token, c.Session().Token())
}

func TestExecute_GraphQLErrorCarriesPartialData(t *testing.T) {
	_, server := newFakeAPI(t, loginOK(time.Now, func(string, map[string]any, string, int) (int, string) {
		return http.StatusOK, `{"data":{"smartBatteries":[]},"errors":[{"message":"provider timeout","path":["smartBatteries",0]}]}`
	}))
	c := newTestClient(t, server)

	_, err := c.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	_, err = c.SmartBatteries(context.Background())

	var gqlErr *graphql.GraphQLError
	require.ErrorAs(t, err, &gqlErr)
	assert.JSONEq(t, `{"smartBatteries":[]}`, string(gqlErr.Data))
	assert.Equal(t, session.StateAuthenticated, c.Session().State())
}

func TestRefreshRejected_NoFurtherRequests(t *testing.T) {
	var mu sync.Mutex
	now := time.Now()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	api, server := newFakeAPI(t, func(op string, vars map[string]any, bearer string, call int) (int, string) {
		switch op {
		case "Login":
			return http.StatusOK, tokenPairBody("login", mintToken(clock().Add(time.Hour)), "refresh-login")
		case "RenewToken":
			return http.StatusOK, authRejectedBody
		}
		return http.StatusOK, monthSummaryBody
	})
	c := newTestClient(t, server, WithClock(clock))

	_, err := c.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	assert.False(t, c.AuthenticationValid())

	_, err = c.MonthSummary(context.Background(), "site")
	var authErr *graphql.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, graphql.ReasonRefreshRejected, authErr.Reason)
	assert.Equal(t, session.StateFailed, c.Session().State())

	_, err = c.MonthSummary(context.Background(), "site")
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, graphql.ReasonRefreshRejected, authErr.Reason)

	assert.Equal(t, 1, api.count("RenewToken"))
	assert.Equal(t, 0, api.count("MonthSummary"))
}

func TestSmartBatterySessionsVariables(t *testing.T) {
	var gotVars map[string]any
	_, server := newFakeAPI(t, loginOK(time.Now, func(op string, vars map[string]any, bearer string, call int) (int, string) {
		gotVars = vars
		return http.StatusOK, `{"data":{"smartBatterySessions":{"deviceId":"dev-1","sessions":[]}}}`
	}))
	c := newTestClient(t, server)

	_, err := c.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	sessions, err := c.SmartBatterySessions(context.Background(), "dev-1", start, start.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, "dev-1", sessions.DeviceID)
	assert.Equal(t, "dev-1", gotVars["deviceId"])
	assert.Equal(t, "2024-06-01", gotVars["startDate"])
	assert.Equal(t, "2024-06-08", gotVars["endDate"])
}

func TestRenewToken(t *testing.T) {
	api, server := newFakeAPI(t, loginOK(time.Now, nil))
	c := newTestClient(t, server)

	_, err := c.RenewToken(context.Background())
	assert.ErrorIs(t, err, graphql.ErrAuthentication)
	assert.Equal(t, 0, api.count("RenewToken"))

	first, err := c.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	renewed, err := c.RenewToken(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, renewed.AccessToken)
	assert.Equal(t, "refresh-renewed", renewed.RefreshToken)
	assert.Equal(t, 1, api.count("RenewToken"))
}

func TestNew_WithTokens(t *testing.T) {
	_, err := New(WithTokens("garbage", "r"))
	assert.Error(t, err)

	c, err := New(WithTokens(mintToken(time.Now().Add(time.Hour)), "r"))
	require.NoError(t, err)
	assert.True(t, c.IsAuthenticated())
	assert.True(t, c.AuthenticationValid())

	c.Logout()
	assert.False(t, c.IsAuthenticated())
}

// memoryTokens is an in-memory TokenManager
type memoryTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
	saves   int
	clears  int
}

func (m *memoryTokens) LoadTokens() (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access, m.refresh, nil
}

func (m *memoryTokens) SaveTokens(access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = access, refresh
	m.saves++
	return nil
}

func (m *memoryTokens) ClearTokens() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = "", ""
	m.clears++
	return nil
}

func TestTokenManager_PersistsAcrossClients(t *testing.T) {
	api, server := newFakeAPI(t, loginOK(time.Now, func(string, map[string]any, string, int) (int, string) {
		return http.StatusOK, monthSummaryBody
	}))
	store := &memoryTokens{}

	first := newTestClient(t, server, WithTokenManager(store))
	token, err := first.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, store.access)
	assert.Equal(t, "refresh-login", store.refresh)
	assert.Equal(t, 1, store.saves)

	second := newTestClient(t, server, WithTokenManager(store))
	assert.True(t, second.IsAuthenticated())

	_, err = second.MonthSummary(context.Background(), "site")
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, api.bearer("MonthSummary", 1))
	assert.Equal(t, 1, store.saves, "unchanged token is not saved again")

	second.Logout()
	assert.Equal(t, "", store.access)
	assert.Equal(t, 1, store.clears)
}

func TestTokenManager_DiscardsUnreadableTokens(t *testing.T) {
	_, server := newFakeAPI(t, loginOK(time.Now, nil))
	store := &memoryTokens{access: "garbage", refresh: "r"}

	c := newTestClient(t, server, WithTokenManager(store))
	assert.False(t, c.IsAuthenticated())
	assert.Equal(t, 1, store.clears)
}

func TestTokenSource(t *testing.T) {
	_, server := newFakeAPI(t, loginOK(time.Now, nil))
	c := newTestClient(t, server)

	token, err := c.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	ot, err := c.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, ot.AccessToken)
	assert.True(t, ot.Valid())
}
