package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsNop(t *testing.T) {
	l := New()
	require.NotNil(t, l.Log)
	l.Log.Info("dropped")
}

func TestInit_InvalidLevel(t *testing.T) {
	l := New()
	err := l.Init("loud")
	assert.Error(t, err)
}

func TestInitWithOutput_WritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	l := New()
	require.NoError(t, l.InitWithOutput("Info", path))

	l.Log.Debug("hidden")
	l.Log.Info("visible")
	_ = l.Log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, `"msg":"visible"`), out)
	assert.False(t, strings.Contains(out, "hidden"), out)
}
