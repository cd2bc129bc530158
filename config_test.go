package authsync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamblitzer/go-authsync"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := authsync.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "profiles", cfg.ProfileTable)
	assert.Equal(t, 5*time.Second, cfg.InitTimeout)
	assert.Equal(t, 15*time.Second, cfg.SignUpTimeout)
	assert.Equal(t, 30*time.Second, cfg.SaveTimeout)
	assert.Equal(t, "/auth", cfg.GetSignInPath())
	assert.Equal(t, "authsync_rejected_route", cfg.GetRejectedRouteKey())
	assert.Equal(t, "/dashboard", cfg.GetRejectedRouteDefault())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("AUTHSYNC_BACKEND_URL", "https://team.example.co")
	t.Setenv("AUTHSYNC_ANON_KEY", "anon-key")
	t.Setenv("AUTHSYNC_INIT_TIMEOUT", "2s")
	t.Setenv("AUTHSYNC_SIGNIN_PATH", "/login")

	cfg, err := authsync.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://team.example.co", cfg.BackendURL)
	assert.Equal(t, "anon-key", cfg.AnonKey)
	assert.Equal(t, 2*time.Second, cfg.InitTimeout)
	assert.Equal(t, "/login", cfg.GetSignInPath())
}

func TestLoadConfigRejectsMalformedDurations(t *testing.T) {
	t.Setenv("AUTHSYNC_INIT_TIMEOUT", "not-a-duration")

	_, err := authsync.LoadConfig()
	require.Error(t, err)
}

func TestConfigRendersOptions(t *testing.T) {
	cfg := authsync.Config{InitTimeout: time.Second, SignUpTimeout: 2 * time.Second, SaveTimeout: 3 * time.Second}
	assert.Len(t, cfg.OrchestratorOptions(), 2)
	assert.Len(t, cfg.EditorOptions(), 1)
}
