package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fixdesk/fixdesk/internal/config"
)

func TestLoadSessionDefaultsWhenFileMissing(t *testing.T) {
	s, err := config.LoadSession(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	require.Equal(t, 10*time.Second, s.GetBootstrapTimeout())
	require.Equal(t, 3, s.GetMaxFetchAttempts())
	require.Equal(t, 500*time.Millisecond, s.GetInitialRetryDelay())
	require.Equal(t, 2.0, s.GetBackoffFactor())
	require.Equal(t, 30*time.Second, s.GetHeartbeatInterval())
	require.Equal(t, 30*time.Minute, s.GetIdleEvictionWindow())
}

func TestLoadSessionFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session:
  bootstrap_timeout: 4s
  max_fetch_attempts: 5
  backoff_factor: 1.5
  heartbeat_interval: 45s
`), 0o600))

	s, err := config.LoadSession(path)
	require.NoError(t, err)

	require.Equal(t, 4*time.Second, s.GetBootstrapTimeout())
	require.Equal(t, 5, s.GetMaxFetchAttempts())
	require.Equal(t, 1.5, s.GetBackoffFactor())
	require.Equal(t, 45*time.Second, s.GetHeartbeatInterval())
	// Untouched keys keep their defaults.
	require.Equal(t, 5*time.Second, s.GetAttemptTimeout())
}

func TestLoadSessionEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session:
  bootstrap_timeout: 4s
`), 0o600))
	t.Setenv("BOOTSTRAP_TIMEOUT", "2s")

	s, err := config.LoadSession(path)
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, s.GetBootstrapTimeout())
}

func TestLoadSessionRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session: ["), 0o600))

	_, err := config.LoadSession(path)
	require.Error(t, err)
}

func TestLoadSessionIgnoresNonPositiveDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session:
  bootstrap_timeout: -3s
  attempt_timeout: garbage
`), 0o600))

	s, err := config.LoadSession(path)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, s.GetBootstrapTimeout())
	require.Equal(t, 5*time.Second, s.GetAttemptTimeout())
}
