package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/yourusername/scenario-risk/internal/logger"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndLive(t *testing.T) {
	s := NewServer(Config{ServiceName: "scenario-risk", Version: "1.0.0"})

	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "1.0.0", body.Version)

	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/live").Code)
}

func TestReadyReflectsStateAndDatabase(t *testing.T) {
	tests := []struct {
		name   string
		ready  bool
		db     DatabasePinger
		status int
		check  string
	}{
		{name: "not ready", ready: false, status: http.StatusServiceUnavailable, check: "not_ready"},
		{name: "ready without db", ready: true, status: http.StatusOK, check: "ok"},
		{name: "ready db down", ready: true, db: stubPinger{err: errors.New("refused")}, status: http.StatusServiceUnavailable},
		{name: "ready db up", ready: true, db: stubPinger{}, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Config{ServiceName: "scenario-risk", DB: tt.db})
			s.SetReady(tt.ready)

			rec := get(t, s.Handler(), "/ready")
			assert.Equal(t, tt.status, rec.Code)

			var body ReadyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.check != "" {
				assert.Equal(t, tt.check, body.Checks["service"])
			}
			if tt.db != nil {
				assert.Contains(t, body.Checks, "database")
			}
		})
	}
}

func TestMetricsAndMountedRoutes(t *testing.T) {
	s := NewServer(Config{
		MetricsPath: "/metrics",
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("scenario_risk_up 1"))
		}),
	})
	s.Handle("/api/v1/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	assert.Contains(t, get(t, s.Handler(), "/metrics").Body.String(), "scenario_risk_up")
	assert.Equal(t, http.StatusTeapot, get(t, s.Handler(), "/api/v1/ping").Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := NewServer(Config{Address: "127.0.0.1:0", Logger: logger.NewDiscardLogger()})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func dialHub(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func waitForSubscribers(t *testing.T, hub *ProgressHub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestProgressHubBroadcasts(t *testing.T) {
	hub := NewProgressHub(logger.NewDiscardLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	scenarioID := uuid.New()
	all := dialHub(t, srv, "")
	defer all.Close()
	filtered := dialHub(t, srv, "?scenario="+uuid.New().String())
	defer filtered.Close()
	waitForSubscribers(t, hub, 2)

	hub.Broadcast(simulation.Progress{ScenarioID: scenarioID, CompletedRuns: 5000, TotalRuns: 20000})

	_ = all.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ProgressMessage
	require.NoError(t, all.ReadJSON(&msg))
	assert.Equal(t, "progress", msg.Type)
	assert.Equal(t, scenarioID, msg.ScenarioID)
	assert.Equal(t, 5000, msg.CompletedRuns)
	assert.Equal(t, 0.25, msg.Fraction)

	_ = filtered.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := filtered.ReadMessage()
	assert.Error(t, err)
}

func TestProgressHubRejectsBadFilter(t *testing.T) {
	hub := NewProgressHub(logger.NewDiscardLogger())
	rec := get(t, hub, "/ws/progress?scenario=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressHubDropsDisconnectedClients(t *testing.T) {
	hub := NewProgressHub(logger.NewDiscardLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv, "")
	waitForSubscribers(t, hub, 1)
	require.NoError(t, conn.Close())
	waitForSubscribers(t, hub, 0)

	assert.NotPanics(t, func() {
		hub.Broadcast(simulation.Progress{CompletedRuns: 1, TotalRuns: 1})
	})
}

func TestGRPCHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	g := NewGRPCServer(lis.Addr().String(), "scenario-risk", logger.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = g.ServeListener(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: "scenario-risk"})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)

	g.SetServing(true)
	resp, err = client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
