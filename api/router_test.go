package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"streamline/api/router/handlers"
	"streamline/core"
	"streamline/database"
	"streamline/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server   *httptest.Server
	svc      *core.ProxyService
	proxyLog string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, database.InitDB(filepath.Join(dir, "streamline.db")))
	t.Cleanup(func() { database.CloseDB() })

	ctrl := core.NewController(core.NewEventBus(), core.ControllerOptions{
		ListenHost:      "127.0.0.1",
		ShutdownTimeout: 2 * time.Second,
		Recorder:        database.RunStore{},
	})
	svc := core.NewProxyService(ctrl, "")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		svc.Stop(ctx)
	})

	proxyLog := filepath.Join(dir, "proxy.log")
	srv := httptest.NewServer(NewHandler(Options{
		Proxy:   svc,
		Metrics: core.NewMetrics(),
		Logs:    handlers.LogPaths{App: filepath.Join(dir, "app.log"), Proxy: proxyLog},
	}))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, svc: svc, proxyLog: proxyLog}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	require.NoError(t, err)
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func boolPtr(b bool) *bool { return &b }

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"version"`)

	resp, _ = env.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRuleEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/rules", models.BlockRuleInput{Pattern: "ads.example.com", Description: "ads"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var rule models.BlockRule
	require.NoError(t, json.Unmarshal(body, &rule))
	assert.False(t, rule.Active)

	resp, _ = env.do(t, http.MethodPost, "/api/rules", models.BlockRuleInput{Pattern: "ads.example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/rules", models.BlockRuleInput{Pattern: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, "/api/rules?pattern=ads.example.com", models.BlockRuleInput{Pattern: "ads2.example.com", Active: boolPtr(true)})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &rule))
	assert.Equal(t, "ads2.example.com", rule.Pattern)
	assert.True(t, rule.Active)

	resp, _ = env.do(t, http.MethodPut, "/api/rules?pattern=missing", models.BlockRuleInput{Pattern: "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/rules", models.BlockRuleInput{Pattern: "tracker"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body = env.do(t, http.MethodPost, "/api/rules/enable", models.BlockRulePatterns{Patterns: []string{"tracker"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"updated":1}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rules []models.BlockRule
	require.NoError(t, json.Unmarshal(body, &rules))
	require.Len(t, rules, 2)
	assert.Equal(t, "ads2.example.com", rules[0].Pattern)
	assert.Equal(t, "tracker", rules[1].Pattern)

	resp, _ = env.do(t, http.MethodGet, "/api/rules?pattern=tracker", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/rules/disable", models.BlockRulePatterns{Patterns: []string{"tracker", "ads2.example.com"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"updated":2}`, string(body))

	resp, body = env.do(t, http.MethodDelete, "/api/rules", models.BlockRulePatterns{Patterns: []string{"tracker", "absent"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"deleted":1}`, string(body))
	resp, _ = env.do(t, http.MethodGet, "/api/rules?pattern=tracker", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPut, "/api/settings", models.AppSettings{ProxyPort: "23456"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"proxy_port":"23456"}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"proxy_port":"23456"}`, string(body))

	for _, bad := range []string{"0", "65536", "12a", "123456"} {
		resp, _ = env.do(t, http.MethodPut, "/api/settings", models.AppSettings{ProxyPort: bad})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
	}
}

func TestProxyLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t)
	port := strconv.Itoa(freePort(t))

	resp, body := env.do(t, http.MethodPost, "/api/proxy/start", models.ProxyStartRequest{Port: port})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var apiErr models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &apiErr))
	assert.Equal(t, "NoActiveRules", apiErr.Kind)

	require.NoError(t, database.AddBlockRule(models.BlockRule{Pattern: "ads", Active: true}))

	resp, _ = env.do(t, http.MethodPost, "/api/proxy/start", models.ProxyStartRequest{Port: "99999"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/proxy/start", models.ProxyStartRequest{Port: port})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var st models.ProxyStatusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.True(t, st.Running)
	assert.Equal(t, 1, st.PatternCount)

	resp, body = env.do(t, http.MethodPost, "/api/proxy/start", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &apiErr))
	assert.Equal(t, "AlreadyRunning", apiErr.Kind)

	resp, body = env.do(t, http.MethodGet, "/api/proxy/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, port, strconv.Itoa(st.Port))

	resp, _ = env.do(t, http.MethodPost, "/api/proxy/stop", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/proxy/stop", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	assert.Eventually(t, func() bool {
		runs, err := database.GetRecentProxyRuns(5)
		return err == nil && len(runs) == 1 && runs[0].State == models.ProxyRunStateStopped
	}, 2*time.Second, 20*time.Millisecond)
	resp, body = env.do(t, http.MethodGet, "/api/proxy/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []models.ProxyRun
	require.NoError(t, json.Unmarshal(body, &runs))
	assert.Len(t, runs, 1)
}

func TestProxyStartPortUnavailable(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, database.AddBlockRule(models.BlockRule{Pattern: "ads", Active: true}))

	held, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer held.Close()

	resp, body := env.do(t, http.MethodPost, "/api/proxy/start", models.ProxyStartRequest{Port: strconv.Itoa(held.Addr().(*net.TCPAddr).Port)})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var apiErr models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &apiErr))
	assert.Equal(t, "PortUnavailable", apiErr.Kind)
	assert.False(t, env.svc.Status().Running)
}

func TestLogEndpoints(t *testing.T) {
	env := newTestEnv(t)
	content := "2024-03-01 10:00:00 - INFO - GET http://a/ HTTP/1.1 << 200 OK 0.1KB\n" +
		"2024-03-01 10:00:01 - WARNING - GET http://ads/ HTTP/1.1 << 403 Forbidden 0.0KB\n"
	require.NoError(t, os.WriteFile(env.proxyLog, []byte(content), 0600))

	resp, body := env.do(t, http.MethodGet, "/api/logs?level=WARNING", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs handlers.LogsResponse
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Len(t, logs.Lines, 1)
	assert.Contains(t, logs.Lines[0], "403 Forbidden")

	resp, _ = env.do(t, http.MethodGet, "/api/logs?level=LOUD", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/logs?file=other", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/logs?file=app", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "a missing log file reads as empty")
	require.NoError(t, json.Unmarshal(body, &logs))
	assert.Empty(t, logs.Lines)

	resp, _ = env.do(t, http.MethodDelete, "/api/logs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info, err := os.Stat(env.proxyLog)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestSwaggerAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/swagger.json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &doc))
	paths, ok := doc["paths"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, paths, "/proxy/start")
	assert.Contains(t, paths, "/rules")

	resp, body = env.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "streamline_proxy_running")
}
