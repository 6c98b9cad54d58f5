package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel("info")
	})

	SetLevel("warn")
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
}

func TestOracleExchangeDump(t *testing.T) {
	var buf bytes.Buffer
	SetOracleWriter(&buf)
	t.Cleanup(func() {
		SetOracleWriter(nil)
		EnableOracleDump(false)
	})

	LogOracleExchange("rule", "bitcoin", "prompt text", `{"decision":"HOLD"}`)
	assert.Contains(t, buf.String(), "[ORACLE][rule][bitcoin]")
	assert.NotContains(t, buf.String(), "prompt text")

	buf.Reset()
	EnableOracleDump(true)
	LogOracleExchange("model", "ethereum", "prompt text", "raw")
	assert.Contains(t, buf.String(), "--- PROMPT ---")
	assert.Contains(t, buf.String(), "prompt text")
}

func TestOpenRotating(t *testing.T) {
	w, err := OpenRotating(FileOptions{})
	require.NoError(t, err)
	assert.Nil(t, w)

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	w, err = OpenRotating(FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)
	require.NotNil(t, w)
	_, err = w.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}
