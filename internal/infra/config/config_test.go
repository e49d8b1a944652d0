package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
search:
  providers:
    - type: youtube
      settings:
        api_key: file-key
`

func TestParse_Defaults(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Setenv("TUBEBOX_CONTROL_TOKEN", "")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Control.Token)
	assert.Equal(t, 100, cfg.Player.InitialVolume)
	assert.Equal(t, 10*time.Second, cfg.InitTimeout())
	assert.Equal(t, 200*time.Millisecond, cfg.WidgetReadyDelay())
	assert.Equal(t, 250*time.Millisecond, cfg.WidgetTick())
	assert.Equal(t, 100*time.Millisecond, cfg.SleepTimerResolution())
	assert.Equal(t, SleepTimerScopeGlobal, cfg.SleepTimer.Scope)
	assert.Equal(t, 20, cfg.Search.Limit)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, "local", cfg.User.DefaultID)
	assert.Equal(t, "file-key", cfg.Search.Providers[0].Settings["api_key"])
}

func TestParse_FullConfig(t *testing.T) {
	data := `
server:
  addr: "127.0.0.1:9000"
  hooks:
    on_started: ["echo started"]
control:
  token: secret
player:
  initial_volume: 40
  init_timeout_ms: 5000
widget:
  ready_delay_ms: 0
  tick_ms: 50
  fail_ids: ["blocked1"]
sleep_timer:
  resolution_ms: 20
  scope: session
search:
  limit: 10
  providers:
    - type: spotify
      display_name: Spotify
      settings:
        client_id: id
        client_secret: secret
    - type: youtube
      settings:
        api_key: key
filters:
  duplicate_track_filter:
    enabled: true
  duration_limit_filter:
    enabled: false
    settings:
      max_minutes: 15
storage:
  driver: sqlite
  dsn: /tmp/tubebox.db
user:
  default_id: alice
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"echo started"}, cfg.Server.Hooks.OnStarted)
	assert.Equal(t, "secret", cfg.Control.Token)
	assert.Equal(t, 40, cfg.Player.InitialVolume)
	assert.Equal(t, 5*time.Second, cfg.InitTimeout())
	assert.Equal(t, []string{"blocked1"}, cfg.Widget.FailIDs)
	assert.Equal(t, 50*time.Millisecond, cfg.WidgetTick())
	assert.Equal(t, SleepTimerScopeSession, cfg.SleepTimer.Scope)
	assert.Equal(t, 10, cfg.Search.Limit)
	require.Len(t, cfg.Search.Providers, 2)
	assert.Equal(t, "Spotify", cfg.Search.Providers[0].DisplayName)
	assert.True(t, cfg.IsFilterEnabled("duplicate_track_filter"))
	assert.False(t, cfg.IsFilterEnabled("duration_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("unknown_filter"))
	assert.Equal(t, 15, cfg.Filters["duration_limit_filter"].Settings["max_minutes"])
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/tubebox.db", cfg.Storage.DSN)
	assert.Equal(t, "alice", cfg.User.DefaultID)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "env-key")
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")
	t.Setenv("TUBEBOX_CONTROL_TOKEN", "env-token")
	t.Setenv("TUBEBOX_DATABASE_URL", "postgres://u:p@localhost/tubebox")

	data := `
search:
  providers:
    - type: youtube
    - type: spotify
storage:
  driver: postgres
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Search.Providers[0].Settings["api_key"])
	assert.Equal(t, "env-id", cfg.Search.Providers[1].Settings["client_id"])
	assert.Equal(t, "env-secret", cfg.Search.Providers[1].Settings["client_secret"])
	assert.NotContains(t, cfg.Search.Providers[0].Settings, "client_id")
	assert.Equal(t, "env-token", cfg.Control.Token)
	assert.Equal(t, "postgres://u:p@localhost/tubebox", cfg.Storage.DSN)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		errMsg string
	}{
		{
			name:   "no providers",
			data:   `search: {limit: 5}`,
			errMsg: "Providers",
		},
		{
			name: "unknown provider type",
			data: `
search:
  providers: [{type: soundcloud}]`,
			errMsg: "Type",
		},
		{
			name: "volume out of range",
			data: minimalYAML + `
player:
  initial_volume: 150`,
			errMsg: "InitialVolume",
		},
		{
			name: "invalid sleep timer scope",
			data: minimalYAML + `
sleep_timer:
  scope: forever`,
			errMsg: "Scope",
		},
		{
			name: "search limit too large",
			data: `
search:
  limit: 500
  providers: [{type: youtube}]`,
			errMsg: "Limit",
		},
		{
			name: "sqlite without dsn",
			data: minimalYAML + `
storage:
  driver: sqlite`,
			errMsg: "DSN",
		},
		{
			name: "unknown storage driver",
			data: minimalYAML + `
storage:
  driver: mongo
  dsn: x`,
			errMsg: "Driver",
		},
		{
			name:   "malformed yaml",
			data:   "search: [",
			errMsg: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "youtube", cfg.Search.Providers[0].Type)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
