package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("REDIS_ADDR", "")
}

func TestConfigGetYAML(t *testing.T) {
	setEnv(t)
	var out bytes.Buffer
	require.NoError(t, run([]string{"config", "get", "--yaml"}, &out))
	assert.Contains(t, out.String(), "watchSymbols:")
	assert.Contains(t, out.String(), "- BTC-USDT")
}

func TestConfigSetRejectsInvalidFile(t *testing.T) {
	setEnv(t)
	file := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"quant":{"leverage":-5}}`), 0o600))

	var out bytes.Buffer
	assert.Error(t, run([]string{"config", "set", file}, &out))
}

func TestQuantStop(t *testing.T) {
	setEnv(t)
	var out bytes.Buffer
	require.NoError(t, run([]string{"quant", "stop", "--symbol", "btc-usdt"}, &out))
	assert.Equal(t, "BTC-USDT stop queued\n", out.String())
}

func TestUnknownCommand(t *testing.T) {
	setEnv(t)
	assert.Error(t, run([]string{"quant"}, &bytes.Buffer{}))
	assert.Error(t, run([]string{"orders", "list"}, &bytes.Buffer{}))
}
