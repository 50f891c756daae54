package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetValue_CreatesNewFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SetValue(configPath, "cache.root", "/data/dcm"))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cache:")
	assert.Contains(t, string(data), "root: /data/dcm")
}

func TestSetValue_PreservesOtherConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	initial := `# top comment
workers:
  max: 8
cache:
  root: /old # previous root
`
	require.NoError(t, os.WriteFile(configPath, []byte(initial), 0o644))

	require.NoError(t, SetValue(configPath, "cache.root", "/new"))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# top comment")
	assert.Contains(t, content, "max: 8")
	assert.Contains(t, content, "root: /new")
	assert.Contains(t, content, "# previous root")
	assert.NotContains(t, content, "/old")
}

func TestSetValue_RoundTripsThroughViper(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(configPath))
	require.NoError(t, SetValue(configPath, "reconstruction.threshold", "450"))

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.Equal(t, 450.0, cfg.Reconstruction.Threshold)
	require.Equal(t, 4, cfg.Workers.Max)
	require.Equal(t, "localhost:19300", cfg.API.Addr)
}

func TestSetValue_RejectsScalarParent(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log_level: info\n"), 0o644))

	err := SetValue(configPath, "log_level.sub", "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a mapping")
}

func TestSetValue_RejectsEmptySegment(t *testing.T) {
	err := SetValue(filepath.Join(t.TempDir(), "c.yaml"), "cache..root", "x")
	require.Error(t, err)
}

func TestWriteDefaultConfig_CreatesParent(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	require.NoError(t, WriteDefaultConfig(configPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))
}
