package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/frankenergie/internal/config"
	"github.com/devilmonastery/frankenergie/models"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{45 * time.Second, "45 seconds"},
		{time.Minute + 30*time.Second, "1 minute"},
		{2*time.Hour + 5*time.Minute, "2 hours and 5 minutes"},
		{26*time.Hour + time.Minute, "1 day, 2 hours and 1 minute"},
		{-3 * time.Hour, "3 hours"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.d))
		})
	}
}

func unsignedToken(exp time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	s, _ := token.SigningString()
	return s + ".fake_signature"
}

func TestFileCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	creds := NewFileCredentials(path)

	access, refresh, err := creds.LoadTokens()
	require.NoError(t, err)
	assert.Empty(t, access)
	assert.Empty(t, refresh)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := unsignedToken(exp)
	require.NoError(t, creds.SaveTokens(token, "refresh-1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	access, refresh, err = creds.LoadTokens()
	require.NoError(t, err)
	assert.Equal(t, token, access)
	assert.Equal(t, "refresh-1", refresh)

	stored, err := creds.Load()
	require.NoError(t, err)
	assert.True(t, exp.Equal(stored.ExpiresAt))

	require.NoError(t, creds.ClearTokens())
	require.NoError(t, creds.ClearTokens(), "clearing twice is fine")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileCredentials_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := NewFileCredentials(path).LoadTokens()
	assert.Error(t, err)
}

func TestValidateOutput(t *testing.T) {
	for _, f := range []string{"table", "json", "yaml", "markdown"} {
		assert.NoError(t, validateOutput(f))
	}
	assert.Error(t, validateOutput("xml"))
}

func runView(t *testing.T, format string, data any, v view) string {
	t.Helper()

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.WithValue(context.Background(), cliContextKey, &CliContext{
		Config: config.Default(),
		Output: format,
	}))

	require.NoError(t, printResult(cmd, data, v))
	return buf.String()
}

func TestPrintResult(t *testing.T) {
	summary := &models.MonthSummary{
		ActualCostsUntilLastMeterReadingDate:   12.5,
		ExpectedCostsUntilLastMeterReadingDate: 14,
		ExpectedCosts:                          80.25,
		LastMeterReadingDate:                   "2025-03-10",
	}
	v := summaryView{summary}

	t.Run("json", func(t *testing.T) {
		var decoded models.MonthSummary
		require.NoError(t, json.Unmarshal([]byte(runView(t, outputJSON, summary, v)), &decoded))
		assert.Equal(t, *summary, decoded)
	})

	t.Run("yaml uses json field names", func(t *testing.T) {
		out := runView(t, outputYAML, summary, v)
		assert.Contains(t, out, "expectedCosts: 80.25")
		assert.Contains(t, out, "lastMeterReadingDate:")
		assert.Contains(t, out, "2025-03-10")
	})

	t.Run("table", func(t *testing.T) {
		out := runView(t, outputTable, summary, v)
		assert.Contains(t, out, "Expected this month:")
		assert.Contains(t, out, "€80.25")
	})

	t.Run("markdown", func(t *testing.T) {
		out := runView(t, outputMarkdown, summary, v)
		assert.Contains(t, out, "Month summary")
		assert.Contains(t, out, "€12.50")
	})
}

func TestInvoicesView_MissingPeriods(t *testing.T) {
	v := invoicesView{&models.Invoices{
		Current: &models.Invoice{StartDate: "2025-03-01", PeriodDescription: "March", TotalAmount: 99.5},
	}}

	rows := v.rows()
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"previous", "-", "-", "-"}, rows[0])
	assert.Equal(t, []string{"current", "2025-03-01", "March", "€99.50"}, rows[1])
}

func TestMdTable(t *testing.T) {
	got := mdTable([]string{"A", "B"}, [][]string{{"1", "2"}})
	assert.Equal(t, "| A | B |\n| --- | --- |\n| 1 | 2 |\n", got)
}

func TestPricesCommand(t *testing.T) {
	var gotVars map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OperationName string         `json:"operationName"`
			Variables     map[string]any `json:"variables"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		gotVars = req.Variables

		assert.Equal(t, "MarketPrices", req.OperationName)
		assert.Empty(t, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{
			"marketPricesElectricity":[{"from":"2025-03-01T00:00:00+01:00","till":"2025-03-01T01:00:00+01:00","marketPrice":0.1,"marketPriceTax":0.021,"sourcingMarkupPrice":0.02,"energyTaxPrice":0.1}],
			"marketPricesGas":[]}}`)
	}))
	defer server.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "frankenergie.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
api:
  endpoint: %s
auth:
  credentials_file: %s
log:
  level: error
`, server.URL, filepath.Join(dir, "credentials.json"))), 0o600))

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"prices", "--config", cfgPath, "--date", "2025-03-01", "-o", "json"})
	require.NoError(t, root.Execute())

	assert.Equal(t, "2025-03-01", gotVars["startDate"])
	assert.Equal(t, "2025-03-02", gotVars["endDate"])

	var prices models.MarketPrices
	require.NoError(t, json.Unmarshal(out.Bytes(), &prices))
	require.Len(t, prices.Electricity, 1)
	assert.InDelta(t, 0.241, prices.Electricity[0].Total(), 1e-9)
	assert.Empty(t, prices.Gas)
}

func TestAuthStatus_NotLoggedIn(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "frankenergie.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("auth:\n  credentials_file: "+filepath.Join(dir, "creds.json")+"\n"), 0o600))

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"auth", "status", "--config", cfgPath})
	require.NoError(t, root.Execute())

	assert.Equal(t, "Not logged in", strings.TrimSpace(out.String()))
}
