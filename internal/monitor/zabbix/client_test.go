package zabbix

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcCall struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// rpcServer answers each JSON-RPC method from a canned result table.
func rpcServer(t *testing.T, results map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api_jsonrpc.php", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var call rpcCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))

		result, ok := results[call.Method]
		require.True(t, ok, "unexpected method %s", call.Method)

		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"result":  result,
			"id":      1,
		}))
	}))
}

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{URL: url, Token: "test-token"}, logger)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://zbx.local/api_jsonrpc.php", normalizeURL("https://zbx.local"))
	assert.Equal(t, "https://zbx.local/api_jsonrpc.php", normalizeURL("https://zbx.local/"))
	assert.Equal(t, "https://zbx.local/api_jsonrpc.php", normalizeURL(" https://zbx.local/api_jsonrpc.php "))
}

func TestVersion(t *testing.T) {
	srv := rpcServer(t, map[string]any{"apiinfo.version": "7.0.0"})
	defer srv.Close()

	version, err := newClient(t, srv.URL).Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7.0.0", version)
}

func TestStatuses(t *testing.T) {
	srv := rpcServer(t, map[string]any{
		"host.get": []Host{
			{HostID: "1", Host: "web01", Name: "Web Frontend", Status: "0"},
			{HostID: "2", Host: "old01", Name: "Legacy Box", Status: "1"},
		},
		"problem.get": []Problem{
			{EventID: "100", Name: "High CPU", Severity: "4", Clock: "1700000000"},
			{EventID: "101", Name: "Disk almost full", Severity: "2", Clock: "1700000100"},
		},
	})
	defer srv.Close()

	statuses, err := newClient(t, srv.URL).Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	web := statuses[0]
	assert.Equal(t, "critical", web.Status)
	assert.Equal(t, 4, web.HighestSeverity)
	assert.Equal(t, 2, web.ProblemCount)
	assert.Equal(t, "High CPU", web.Message)
	require.Len(t, web.Problems, 2)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), web.Problems[0].Since)

	legacy := statuses[1]
	assert.Equal(t, "unknown", legacy.Status)
	assert.Equal(t, "Monitoring disabled", legacy.Message)
}

func TestStatuses_HealthyHost(t *testing.T) {
	srv := rpcServer(t, map[string]any{
		"host.get":    []Host{{HostID: "1", Name: "Web Frontend", Status: "0"}},
		"problem.get": []Problem{},
	})
	defer srv.Close()

	statuses, err := newClient(t, srv.URL).Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "ok", statuses[0].Status)
	assert.Equal(t, "All systems operational", statuses[0].Message)
}

func TestHostStatus_NotFound(t *testing.T) {
	srv := rpcServer(t, map[string]any{"host.get": []Host{}})
	defer srv.Close()

	status, err := newClient(t, srv.URL).HostStatus(context.Background(), "99")
	require.NoError(t, err)
	assert.Equal(t, "unknown", status.Status)
	assert.Equal(t, "Host not found", status.Message)
}

func TestCall_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"error": map[string]any{
				"code":    -32602,
				"message": "Invalid params.",
				"data":    "Session terminated",
			},
			"id": 1,
		}))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Version(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid params.")
	assert.Contains(t, err.Error(), "Session terminated")
}

func TestSeverityToStatus(t *testing.T) {
	assert.Equal(t, "down", severityToStatus(5))
	assert.Equal(t, "critical", severityToStatus(4))
	assert.Equal(t, "warning", severityToStatus(2))
	assert.Equal(t, "ok", severityToStatus(1))
	assert.Equal(t, "ok", severityToStatus(0))
}
