package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warestage/loadsheet-client/pkg/config"
)

func TestDefault(t *testing.T) {
	opts, err := config.Default()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", opts.ServerURL)
	assert.Equal(t, 5, opts.RetryLimit)
	assert.Equal(t, 10*time.Second, opts.PollInterval)
	assert.NotEmpty(t, opts.DatabaseFile)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SERVER_URL", "http://dock-server:9090")
	t.Setenv("RETRY_LIMIT", "8")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("QUEUE_PASSPHRASE", "dock4")

	opts, err := config.Default()
	require.NoError(t, err)
	opts.ApplyEnv()

	assert.Equal(t, "http://dock-server:9090", opts.ServerURL)
	assert.Equal(t, 8, opts.RetryLimit)
	assert.Equal(t, 30*time.Second, opts.PollInterval)
	assert.Equal(t, "dock4", opts.Passphrase)
}

func TestApplyEnvIgnoresBadValues(t *testing.T) {
	t.Setenv("RETRY_LIMIT", "many")
	t.Setenv("POLL_INTERVAL", "soon")

	opts, err := config.Default()
	require.NoError(t, err)
	opts.ApplyEnv()

	assert.Equal(t, 5, opts.RetryLimit)
	assert.Equal(t, 10*time.Second, opts.PollInterval)
}
