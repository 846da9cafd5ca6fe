package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetProbes clears the package-level probe registry between tests.
func resetProbes(t *testing.T) {
	t.Helper()
	probes.mu.Lock()
	probes.components = make(map[string]componentStatus)
	probes.version = ""
	probes.mu.Unlock()
}

func registerAllCritical() {
	for _, name := range criticalComponents {
		RegisterComponent(name, true, "connected")
	}
}

func TestHealthHealthyWithNoComponents(t *testing.T) {
	resetProbes(t)

	resp, ok := probes.health()
	assert.True(t, ok)
	assert.Equal(t, "healthy", resp.Status)
}

func TestHealthUnhealthyWhenAnyComponentFails(t *testing.T) {
	resetProbes(t)
	RegisterComponent("resource_manager", true, "connected")
	RegisterComponent("checkpoint", false, "broker unreachable")

	resp, ok := probes.health()
	assert.False(t, ok)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.False(t, resp.Components["checkpoint"].Healthy)
	assert.Equal(t, "broker unreachable", resp.Components["checkpoint"].Message)
}

func TestReRegisteringReplacesPriorReport(t *testing.T) {
	resetProbes(t)
	RegisterComponent("resource_manager", false, "dial failed")
	RegisterComponent("resource_manager", true, "connected")

	resp, ok := probes.health()
	assert.True(t, ok)
	assert.Equal(t, "healthy", resp.Status)
}

func TestReadinessWaitsForCriticalComponents(t *testing.T) {
	resetProbes(t)

	resp, ok := probes.readiness()
	assert.False(t, ok)
	assert.Equal(t, "not_ready", resp.Status)
	for _, name := range criticalComponents {
		assert.False(t, resp.Components[name].Healthy)
	}

	registerAllCritical()
	resp, ok = probes.readiness()
	assert.True(t, ok)
	assert.Equal(t, "ready", resp.Status)
}

func TestReadinessIgnoresNonCriticalComponents(t *testing.T) {
	resetProbes(t)
	registerAllCritical()
	RegisterComponent("checkpoint", false, "broker unreachable")

	_, ok := probes.readiness()
	assert.True(t, ok)
}

func TestHealthHandlerServesJSONAndStatusCode(t *testing.T) {
	resetProbes(t)
	SetVersion("1.2.3")
	RegisterComponent("resource_manager", true, "connected")

	w := httptest.NewRecorder()
	HealthHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp probeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestReadyHandlerReturns503UntilReady(t *testing.T) {
	resetProbes(t)

	w := httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	registerAllCritical()
	w = httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
