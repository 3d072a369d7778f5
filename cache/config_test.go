package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersConfig = `
id: users
decorators: [fifo]
size: 64
clearInterval: 30m
readWrite: true
blocking: true
properties:
  timeout: 250
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(usersConfig))
	require.NoError(t, err)
	assert.Equal(t, "users", cfg.ID)
	assert.Equal(t, []string{"fifo"}, cfg.Decorators)
	require.NotNil(t, cfg.Size)
	assert.Equal(t, 64, *cfg.Size)
	require.NotNil(t, cfg.ClearInterval)
	assert.Equal(t, 30*time.Minute, time.Duration(*cfg.ClearInterval))
	assert.True(t, cfg.ReadWrite)
	assert.True(t, cfg.Blocking)
	assert.Equal(t, Properties{"timeout": "250"}, cfg.Properties)
}

func TestConfigBuild(t *testing.T) {
	cfg, err := ParseConfig([]byte(usersConfig))
	require.NoError(t, err)
	c, err := cfg.Build(nil, quiet())
	require.NoError(t, err)

	layers := Layers(c)
	require.Len(t, layers, 7)
	blocking := layers[0].(*BlockingCache)
	assert.Equal(t, 250*time.Millisecond, blocking.Timeout())
	fifo, ok := Unwrap[*FifoCache](c)
	require.True(t, ok)
	assert.Equal(t, 64, fifo.size)
	scheduled, ok := Unwrap[*ScheduledCache](c)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, scheduled.ClearInterval())
}

func TestConfigExplicitPerpetualHasNoDefaultLru(t *testing.T) {
	cfg, err := ParseConfig([]byte("id: plain\nimplementation: perpetual\n"))
	require.NoError(t, err)
	c, err := cfg.Build(NewRegistry(), quiet())
	require.NoError(t, err)
	_, ok := Unwrap[*LruCache](c)
	assert.False(t, ok)
	assert.Len(t, Layers(c), 3)
}

func TestConfigDurations(t *testing.T) {
	cfg, err := ParseConfig([]byte("id: a\nclearInterval: 1000\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Second, time.Duration(*cfg.ClearInterval))

	cfg, err = ParseConfig([]byte("id: a\nclearInterval: 2d\n"))
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, time.Duration(*cfg.ClearInterval))

	_, err = ParseConfig([]byte("id: a\nclearInterval: whenever\n"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "size: 3\n"},
		{"not yaml", "id: [unterminated\n"},
		{"nested property", "id: a\nproperties:\n  size:\n    nested: 1\n"},
		{"properties list", "id: a\nproperties: [1, 2]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestConfigUnknownNames(t *testing.T) {
	cfg := &Config{ID: "a", Decorators: []string{"lfu"}}
	_, err := cfg.Build(nil, quiet())
	assert.ErrorIs(t, err, ErrConfiguration)

	cfg = &Config{ID: "a", Implementation: "redis"}
	_, err = cfg.Build(nil, quiet())
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(usersConfig), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "users", cfg.ID)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{
		BlockingName, FifoName, LoggingName, LruName, ScheduledName,
		SerializedName, SynchronizedName, WeakName,
	}, r.Decorators())

	_, err := r.Implementation(PerpetualName)
	assert.NoError(t, err)
	_, err = r.Decorator("nope")
	assert.ErrorIs(t, err, ErrConfiguration)

	r.RegisterImplementation("spy", func(id string, _ ...Option) (Cache, error) {
		return newSpy(id), nil
	})
	cfg := &Config{ID: "custom", Implementation: "spy"}
	c, err := cfg.Build(r, quiet())
	require.NoError(t, err)
	assert.IsType(t, &spyCache{}, Layers(c)[1])
}
