package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"aegisnet/internal/config"
	"aegisnet/internal/controllers"
	"aegisnet/internal/detectors"
	"aegisnet/internal/middleware"
	"aegisnet/internal/remediation"
	"aegisnet/internal/routes"
	"aegisnet/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type submitResponse struct {
	Msg    string `json:"msg"`
	Alerts []struct {
		Type    string `json:"type"`
		AgentID string `json:"agent_id"`
	} `json:"alerts"`
}

func newTestRouter(t *testing.T, auth *services.AuthService) *gin.Engine {
	t.Helper()
	cfg := detectors.DefaultConfig()
	cfg.MLEnabled = false

	store := services.NewStore(100)
	pipeline := services.NewPipeline(store, detectors.NewStandardSet(cfg, nil),
		services.WithRemediation(remediation.NewEngine(nil)))
	dir := t.TempDir()

	ctl := &controllers.Controller{
		Pipeline:  pipeline,
		Simulator: services.NewSimulator(pipeline, time.Hour, 1, 1, nil),
		Flags:     services.NewAttackFlagStore(filepath.Join(dir, "attack_status.json"), nil),
		WindowDir: filepath.Join(dir, "logs"),
		Hub:       services.NewWebSocketHub(nil),
		Auth:      auth,
		Security:  middleware.NewSecurityLogger(nil),
		Logger:    zap.NewNop(),
	}
	t.Cleanup(ctl.Simulator.StopAll)
	t.Cleanup(ctl.Hub.Stop)

	return routes.NewRouter(ctl, config.ServerConfig{RateLimitRPS: 1000, RateLimitBurst: 1000})
}

func do(r *gin.Engine, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitMetricRecognizedAgent(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/profiles", map[string]any{"agent_id": "web-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPost, "/metrics", map[string]any{
		"agent_id":        "web-1",
		"cpu_usage":       20,
		"packets_per_sec": 50,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Msg)
	assert.Empty(t, resp.Alerts)

	w = do(r, http.MethodGet, "/agents/web-1/latest", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, "/agents/web-1/history", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"agent_id":"web-1"`)
}

func TestSubmitMetricRaisesAlertsAndActions(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/alerts", map[string]any{"agent_id": "ghost", "cpu_usage": 95})
	require.Equal(t, http.StatusOK, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	types := make([]string, 0, len(resp.Alerts))
	for _, a := range resp.Alerts {
		types = append(types, a.Type)
	}
	assert.Equal(t, []string{"UNRECOGNIZED_AGENT", "CPU_SPIKE"}, types)

	w = do(r, http.MethodGet, "/actions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var actions struct {
		Actions []struct {
			Action string `json:"action"`
			Target string `json:"target"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actions))
	require.Len(t, actions.Actions, 1)
	assert.Equal(t, "offload", actions.Actions[0].Action)
	assert.Equal(t, "ghost", actions.Actions[0].Target)
}

func TestSubmitMetricValidation(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/metrics", map[string]any{"cpu_usage": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "agent_id")

	req := httptest.NewRequest(http.MethodPost, "/metrics", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w = do(r, http.MethodGet, "/agents", nil)
	assert.JSONEq(t, `{"agents":[]}`, w.Body.String())
}

func TestSubmitMetricTokenMustMatchAgent(t *testing.T) {
	auth, err := services.NewAuthService("0123456789abcdef0123456789abcdef", time.Hour, nil)
	require.NoError(t, err)
	token, _, err := auth.GenerateToken("web-1")
	require.NoError(t, err)
	r := newTestRouter(t, auth)

	w := do(r, http.MethodPost, "/metrics", map[string]any{"agent_id": "web-1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/metrics", map[string]any{"agent_id": "web-2"}, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/metrics", map[string]any{"agent_id": "web-1"}, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	// unauthenticated probes stay open
	w = do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQueriesNotFound(t *testing.T) {
	r := newTestRouter(t, nil)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/agents/nope/latest", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/agents/nope/processes", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/profiles/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/windows/latest", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/alerts?archived=true", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/agents/nope/history?duration=soon", nil).Code)
}

func TestOperatorAction(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/actions", map[string]any{"action": "block_ip", "target": "10.0.0.9"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"manual"`)

	w = do(r, http.MethodPost, "/actions", map[string]any{"target": "10.0.0.9"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimulationEndpoints(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/simulate?type=meteor&agent_id=sim-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/simulate?type=ddos&agent_id=sim-1&duration=1", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	var started struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.NotEmpty(t, started.ID)

	w = do(r, http.MethodGet, "/simulate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), started.ID)

	w = do(r, http.MethodDelete, "/simulate/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttackFlagEndpoints(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/attack", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"attack_detected":false}`, w.Body.String())

	w = do(r, http.MethodDelete, "/attack", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
