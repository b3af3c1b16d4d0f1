package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_monitor/internal/modules/health/service"
)

func TestHealthEndpoints(t *testing.T) {
	state := service.NewState()
	srv := httptest.NewServer(NewMux(state))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	state.SetReady(true)
	state.SetSession("market", "open", 0, nil)
	state.SetSession("private", "backoff", 2, errors.New("eof"))
	state.TouchTick(time.UnixMilli(1_700_000_000_123))

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Ready       bool                             `json:"ready"`
		WSConnected bool                             `json:"wsConnected"`
		Sessions    map[string]service.SessionStatus `json:"sessions"`
		LastTickMs  int64                            `json:"lastTickMs"`
	}
	require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Ready)
	assert.False(t, body.WSConnected)
	assert.Equal(t, "backoff", body.Sessions["private"].State)
	assert.Equal(t, 2, body.Sessions["private"].Failures)
	assert.Equal(t, "eof", body.Sessions["private"].LastErr)
	assert.Equal(t, int64(1_700_000_000_123), body.LastTickMs)

	resp2, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestSessionSinceKeptWhileStateUnchanged(t *testing.T) {
	state := service.NewState()
	state.SetSession("market", "backoff", 1, nil)
	first := state.Sessions()["market"].Since
	time.Sleep(2 * time.Millisecond)
	state.SetSession("market", "backoff", 2, nil)
	assert.Equal(t, first, state.Sessions()["market"].Since)
	assert.Equal(t, []string{"market"}, state.SessionNames())

	state.SetSession("market", "open", 0, nil)
	assert.True(t, state.WSConnected())
}
