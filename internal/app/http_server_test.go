package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/offers/internal/health"
)

func serveProbe(t *testing.T, mux http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestMetricsMux_Probes(t *testing.T) {
	stale := time.Now().Add(-time.Hour)

	tests := []struct {
		name     string
		checkers map[string]healthcheck.Checker
		path     string
		wantCode int
		wantBody string
	}{
		{name: "liveness", path: "/livez", wantCode: http.StatusOK, wantBody: "ok"},
		{name: "ready without checks", path: "/readyz", wantCode: http.StatusOK, wantBody: "ready"},
		{
			name: "backlog degrades but stays ready",
			checkers: map[string]healthcheck.Checker{
				"outbox": healthcheck.NewBacklogChecker("outbox", func(context.Context) (int, time.Time, error) {
					return 3, stale, nil
				}, time.Minute),
			},
			path:     "/readyz",
			wantCode: http.StatusOK,
			wantBody: "ready",
		},
		{
			name: "storage down",
			checkers: map[string]healthcheck.Checker{
				"storage": healthcheck.NewSimpleChecker("storage", func(context.Context) error {
					return errors.New("connection refused")
				}),
			},
			path:     "/readyz",
			wantCode: http.StatusServiceUnavailable,
			wantBody: "not ready",
		},
		{
			name: "storage down keeps liveness",
			checkers: map[string]healthcheck.Checker{
				"storage": healthcheck.NewSimpleChecker("storage", func(context.Context) error {
					return errors.New("connection refused")
				}),
			},
			path:     "/livez",
			wantCode: http.StatusOK,
			wantBody: "ok",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := healthcheck.NewHandler("test")
			for name, checker := range tc.checkers {
				handler.RegisterChecker(name, checker)
			}

			rec := serveProbe(t, metricsMux(handler), http.MethodGet, tc.path)
			require.Equal(t, tc.wantCode, rec.Code)
			require.Equal(t, tc.wantBody, rec.Body.String())
		})
	}
}

func TestMetricsMux_HealthzReport(t *testing.T) {
	handler := healthcheck.NewHandler("v-test")
	handler.RegisterChecker("inventory", healthcheck.NewStateChecker("inventory", func() string { return "circuit open" }))
	mux := metricsMux(handler)

	rec := serveProbe(t, mux, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload healthcheck.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, healthcheck.StatusDegraded, payload.Status)
	require.Equal(t, "v-test", payload.Version)
	require.Equal(t, "circuit open", payload.Checks["inventory"].Message)

	metrics := serveProbe(t, mux, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), "go_goroutines")

	require.Equal(t, http.StatusMethodNotAllowed, serveProbe(t, mux, http.MethodPost, "/livez").Code)
}

func TestStartMetricsServer_StopsWithContext(t *testing.T) {
	logger := log.WithField("test", "metrics-server")
	port := findFreePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	srv := startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), logger, healthcheck.NewHandler("test"))
	require.NotNil(t, srv)
	waitForServer(t, port)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/livez", port))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 50*time.Millisecond)
		if err != nil {
			return true
		}
		_ = conn.Close()
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStartMetricsServer_BusyAddrOnlyLogs(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := startMetricsServer(ctx, listener.Addr().String(), log.WithField("test", "metrics-busy"), healthcheck.NewHandler("test"))
	require.NotNil(t, srv)
}

func TestShutdownHelpers_NilSafe(t *testing.T) {
	logger := log.WithField("test", "shutdown")
	require.NotPanics(t, func() { shutdownHTTP(nil, logger) })
	require.NotPanics(t, func() { stopGRPC(nil, logger) })
}

func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

func waitForServer(t *testing.T, port int) {
	t.Helper()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 50*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond, "server on port %d did not start", port)
}
