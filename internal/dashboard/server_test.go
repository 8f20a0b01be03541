package dashboard_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/motortwin/internal/connection"
	"codeberg.org/mutker/motortwin/internal/dashboard"
	"codeberg.org/mutker/motortwin/internal/derive"
	"codeberg.org/mutker/motortwin/internal/pipeline"
	"codeberg.org/mutker/motortwin/internal/telemetry"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu      sync.Mutex
	changes []pipeline.Change
}

func (f *fakeController) Configure(_ context.Context, c pipeline.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, c)
	return nil
}

func (f *fakeController) Settings() pipeline.Settings {
	return pipeline.DefaultSettings()
}

func (f *fakeController) received() []pipeline.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Change(nil), f.changes...)
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func sampleTick() pipeline.Tick {
	latest := telemetry.Frame{
		Timestamp:   time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC),
		Status:      telemetry.Normal,
		Speed:       1500,
		Temperature: 40,
	}
	return pipeline.Tick{
		At: latest.Timestamp,
		Scene: pipeline.Scene{
			FrameColor:        derive.Heatmap(40),
			WireColor:         derive.UnderVoltage,
			ParticleAmplitude: 1.5,
			RotationSpeed:     1500,
		},
		Latest:     latest,
		Snapshot:   []telemetry.Frame{{Status: telemetry.Unknown}, latest},
		Status:     telemetry.Normal,
		Connection: connection.Streaming,
		Statistic:  pipeline.Statistic{NetworkLatency: 120 * time.Millisecond},
	}
}

func startServer(t *testing.T, debounce time.Duration) (*dashboard.Server, *httptest.Server, *fakeController) {
	t.Helper()

	ctl := &fakeController{}
	s := dashboard.New(dashboard.Options{Debounce: debounce}, ctl)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Hub().Run(ctx)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return s, srv, ctl
}

func dial(t *testing.T, s *dashboard.Server, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	before := s.Hub().Clients()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return s.Hub().Clients() > before }, time.Second, 5*time.Millisecond)

	return conn
}

func read(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHealthz(t *testing.T) {
	_, srv, _ := startServer(t, 0)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "idle", body["connection"])
}

func TestStateBeforeAndAfterTick(t *testing.T) {
	s, srv, _ := startServer(t, 0)

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, s.PublishTick(context.Background(), sampleTick()))

	resp, err = http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Scene map[string]any `json:"scene"`
		Panel struct {
			Connection string                 `json:"connection"`
			Status     string                 `json:"status"`
			Snapshot   []telemetry.Frame      `json:"snapshot"`
			Statistic  map[string]json.Number `json:"statistic"`
		} `json:"panel"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "#653950", body.Scene["frameColor"])
	assert.Equal(t, "#0cd900", body.Scene["wireColor"])
	assert.InDelta(t, 1500, body.Scene["rotationSpeed"], 1e-9)
	assert.Equal(t, "STREAMING", body.Panel.Connection)
	assert.Equal(t, "NORMAL", body.Panel.Status)
	assert.Len(t, body.Panel.Snapshot, 2)
	assert.Equal(t, json.Number("120"), body.Panel.Statistic["networkLatency"])
}

func TestConfigEndpoint(t *testing.T) {
	_, srv, _ := startServer(t, 0)

	resp, err := http.Get(srv.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.InDelta(t, 200, body["interval"], 1e-9)
	assert.InDelta(t, 256, body["scope_size"], 1e-9)
	assert.Equal(t, true, body["adaptive_sampling"])
}

func TestCharts(t *testing.T) {
	s, srv, _ := startServer(t, 0)
	require.NoError(t, s.PublishTick(context.Background(), sampleTick()))

	resp, err := http.Get(srv.URL + "/charts")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestWebsocketBroadcast(t *testing.T) {
	s, srv, _ := startServer(t, 0)
	conn := dial(t, s, srv)

	require.NoError(t, s.PublishTick(context.Background(), sampleTick()))

	scene := read(t, conn)
	assert.Equal(t, dashboard.TypeScene, scene.Type)
	var payload pipeline.Scene
	require.NoError(t, json.Unmarshal(scene.Payload, &payload))
	assert.Equal(t, derive.Heatmap(40), payload.FrameColor)

	panel := read(t, conn)
	assert.Equal(t, dashboard.TypePanel, panel.Type)

	require.NoError(t, s.PublishConnection(context.Background(), connection.Streaming, connection.Listening))
	conn1 := read(t, conn)
	assert.Equal(t, dashboard.TypeConnection, conn1.Type)
	assert.JSONEq(t, `{"from": "streaming", "to": "listening", "label": "CONNECTED"}`, string(conn1.Payload))
}

func TestToggleRebroadcast(t *testing.T) {
	s, srv, _ := startServer(t, 0)
	panel := dial(t, s, srv)
	scene := dial(t, s, srv)

	msg := `{"type": "toggle", "payload": {"name": "wireframe", "enabled": true}}`
	require.NoError(t, panel.WriteMessage(websocket.TextMessage, []byte(msg)))

	env := read(t, scene)
	assert.Equal(t, dashboard.TypeToggle, env.Type)
	assert.JSONEq(t, `{"name": "wireframe", "enabled": true}`, string(env.Payload))
}

func TestConfigMessages(t *testing.T) {
	s, srv, ctl := startServer(t, 50*time.Millisecond)
	conn := dial(t, s, srv)

	for _, v := range []int{300, 400, 500} {
		msg := map[string]any{"type": "config", "setting": "interval", "value": v}
		require.NoError(t, conn.WriteJSON(msg))
	}
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "config", "setting": "scope_size", "value": 64}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "config", "setting": "interval", "value": 5}))

	require.Eventually(t, func() bool { return len(ctl.received()) == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, []pipeline.Change{
		{Setting: pipeline.SettingScopeSize, Value: 64},
		{Setting: pipeline.SettingUpdateInterval, Value: 500},
	}, ctl.received())
}
