package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultCDPURL, cfg.CDPURL)
	assert.Equal(t, DefaultInterventionTimeout, cfg.InterventionTimeout)
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
	assert.Equal(t, DefaultBindAttempts, cfg.BindAttempts)
}

func TestLoadPartialFileFillsGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "listen_addr: 127.0.0.1:9100\nmax_steps: 12\nintervention_timeout: 30m\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.ListenAddr)
	assert.Equal(t, 12, cfg.MaxSteps)
	assert.Equal(t, 30*time.Minute, cfg.InterventionTimeout)
	// Everything else falls back.
	assert.Equal(t, DefaultCDPURL, cfg.CDPURL)
	assert.Equal(t, DefaultModel, cfg.Model)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-123")
	t.Setenv("BILL_LISTEN_ADDR", "localhost:9999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test-123", cfg.OpenAIAPIKey)
	assert.Equal(t, "localhost:9999", cfg.ListenAddr)
}
