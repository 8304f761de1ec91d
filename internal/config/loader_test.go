package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigLoading(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", writeConfig(t, "environment: test\n"))

		config, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, config.Port)
		assert.Equal(t, BackendMemory, config.Store.Backend)
		assert.Equal(t, 5*time.Second, config.Store.LockTTL)
		assert.Equal(t, 500*time.Millisecond, config.Layout.CoalesceWindow)
		assert.Equal(t, "/metrics", config.Monitoring.MetricsPath)
		assert.False(t, config.Tracing.Enabled)
	})

	t.Run("load from file", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", writeConfig(t, `
environment: test
port: 9999
log_level: debug

store:
  backend: bolt
  bolt_path: /tmp/dash.db
  lock_ttl: 2s

catalog:
  path: /etc/dashboard-core/templates.yaml
  watch: true

layout:
  coalesce_window: 250ms
`))

		config, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test", config.Environment)
		assert.Equal(t, 9999, config.Port)
		assert.Equal(t, "debug", config.LogLevel)
		assert.Equal(t, BackendBolt, config.Store.Backend)
		assert.Equal(t, "/tmp/dash.db", config.Store.BoltPath)
		assert.Equal(t, 2*time.Second, config.Store.LockTTL)
		assert.True(t, config.Catalog.Watch)
		assert.Equal(t, 250*time.Millisecond, config.Layout.CoalesceWindow)
	})

	t.Run("env var precedence", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", writeConfig(t, "port: 9999\n"))
		t.Setenv("DASHBOARD_PORT", "7777")
		t.Setenv("DASHBOARD_LOG_LEVEL", "warn")

		config, err := Load()
		require.NoError(t, err)

		// Environment variables should override file/defaults
		assert.Equal(t, 7777, config.Port)
		assert.Equal(t, "warn", config.LogLevel)
	})

	t.Run("explicit overrides", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", writeConfig(t, "port: 9999\n"))
		t.Setenv("PORT", "8181")
		t.Setenv("VALKEY_NODES", "n1:6379, n2:6379")

		config, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8181, config.Port)
		assert.Equal(t, BackendValkey, config.Store.Backend)
		assert.Equal(t, []string{"n1:6379", "n2:6379"}, config.Store.Valkey.Nodes)
	})
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "store:\n  backend: etcd\n"},
		{"bolt without path", "store:\n  backend: bolt\n  bolt_path: \"\"\n"},
		{"bad valkey addr", "store:\n  backend: valkey\n  valkey:\n    addr: nohost\n"},
		{"bad port", "port: 70000\n"},
		{"tracing without port", "tracing:\n  enabled: true\n  otlp_endpoint: collector\n"},
		{"negative window", "layout:\n  coalesce_window: -1s\n"},
		{"discovery without service", "store:\n  backend: valkey\n  valkey:\n    discovery:\n      enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_PATH", writeConfig(t, tt.content))
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestFileWatcher_NotifiesOnWrite(t *testing.T) {
	path := writeConfig(t, "port: 9999\n")
	w := NewFileWatcher(path, nil)

	var calls atomic.Int32
	w.OnChange(func(string) { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("port: 9998\n"), 0o600))

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 2*time.Second, 20*time.Millisecond)

	w.Stop()
	require.NoError(t, <-done)
}
