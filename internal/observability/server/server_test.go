package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reviewbot/internal/observability/metrics"
	logx "reviewbot/pkg/logx"
)

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"127.0.0.1:9464": true,
		"localhost:80":   true,
		"[::1]:9000":     true,
		":9464":          false,
		"0.0.0.0:9464":   false,
		"10.0.0.5:9464":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		require.Equal(t, want, isLoopbackAddr(addr), addr)
	}
}

func TestWithAuth(t *testing.T) {
	t.Parallel()
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

	h := withAuth("secret", ok)
	cases := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"no credentials", "/healthz", "", http.StatusUnauthorized},
		{"bearer", "/healthz", "Bearer secret", http.StatusNoContent},
		{"wrong bearer", "/healthz", "Bearer nope", http.StatusUnauthorized},
		{"query", "/healthz?token=secret", "", http.StatusNoContent},
		{"wrong query wins over header", "/healthz?token=x", "Bearer secret", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}

	open := withAuth("  ", ok)
	rec := httptest.NewRecorder()
	open(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	healthy := true
	s := New(Config{}, nil, func() (bool, any) {
		return healthy, map[string]string{"schedule": "every 10m0s"}
	}, logx.Nop())
	h := s.Handler(Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["ok"])
	require.Equal(t, "every 10m0s", body["details"].(map[string]any)["schedule"])

	healthy = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsAndPprofRoutes(t *testing.T) {
	t.Parallel()
	m := metrics.New()
	m.ObservePoll(metrics.ResultOK, "", time.Millisecond, time.Now())
	s := New(Config{}, m.Handler(), nil, logx.Nop())

	h := s.Handler(Config{Pprof: false})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "reviewbot_polls_total")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	h = s.Handler(Config{Pprof: true})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNoMetricsHandler(t *testing.T) {
	t.Parallel()
	s := New(Config{}, nil, nil, logx.Nop())
	rec := httptest.NewRecorder()
	s.Handler(Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartServeStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, nil, nil, logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.Start(ctx)
	require.Eventually(t, func() bool { return s.Addr() != "" }, 3*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.Stop(ctx)
	require.Empty(t, s.Addr())

	// disabled reconfigure keeps it stopped
	s.Reconfigure(ctx, Config{Enabled: false})
	require.Empty(t, s.Addr())
}

func TestRefusesPublicBindWithoutToken(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, nil, nil, logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, s.Addr())
	s.Stop(ctx)
}
