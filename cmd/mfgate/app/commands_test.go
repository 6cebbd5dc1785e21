package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfstack/mfgate/internal/config"
	"github.com/mfstack/mfgate/internal/versions"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, &config.Config{}, cfg)

	path := filepath.Join(t.TempDir(), "mfgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: dev-remote\n"), 0600))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "dev-remote", cfg.Environment)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestApplyHostFlags(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Host: &config.HostConfig{StaticDir: "./dist"}}
	applyHostFlags(cfg, "", "")
	assert.Equal(t, "./dist", cfg.Host.GetStaticDir())

	applyHostFlags(cfg, "http://localhost:3001", "")
	assert.Equal(t, "http://localhost:3001", cfg.Host.GetUpstream())
	assert.Empty(t, cfg.Host.GetStaticDir())
}

//nolint:paralleltest // uses the shared version command
func TestVersionCmd_JSON(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	require.NoError(t, versionCmd.Flags().Set("format", "json"))
	require.NoError(t, versionCmd.RunE(versionCmd, nil))

	var info map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	// Unstamped builds are reported as build-<commit>
	assert.Equal(t, versions.GetVersionInfo().Version, info["version"])
	assert.True(t, strings.HasPrefix(info["version"], "build-"), "got %q", info["version"])
	assert.NotEmpty(t, info["go_version"])
}

//nolint:paralleltest // writes to the global viper instance
func TestBindFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("bind-flags-test", "fallback", "")
	bindFlags(fs, "bind-flags-test")

	assert.Equal(t, "fallback", viper.GetString("bind-flags-test"))
	require.NoError(t, fs.Set("bind-flags-test", "from-flag"))
	assert.Equal(t, "from-flag", viper.GetString("bind-flags-test"))
}
