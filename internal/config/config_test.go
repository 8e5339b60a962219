package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pwexport/internal/config"
	"pwexport/internal/models"
	"pwexport/internal/source"
	_ "pwexport/internal/source/snapshot"
	_ "pwexport/internal/source/webvault"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("max-attempts", 10, "")
	fs.Int("timeout", 600, "")
	fs.Int("forced-rows", 0, "")
	fs.String("source", "webvault", "")
	fs.String("output", "", "")
	fs.String("format", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Extract.MaxAttempts)
	assert.Equal(t, 600*time.Second, cfg.Extract.Timeout())
	assert.Equal(t, 0, cfg.Extract.ForcedRowCount)
	assert.Equal(t, time.Second, cfg.Extract.PollInterval)
	assert.False(t, cfg.Logging.Enabled)
	assert.Equal(t, "webvault", cfg.Source.Name)
	assert.Equal(t, source.DefaultSelectors(), cfg.Source.Selectors)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "utf-8", cfg.Output.Encoding)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PWEXPORT_EXTRACT_MAX_ATTEMPTS", "3")
	t.Setenv("PWEXPORT_LOGGING_ENABLED", "true")
	t.Setenv("PWEXPORT_SOURCE_SELECTORS_ROW", "tr.entry")
	t.Setenv("PWEXPORT_PROXY", "http://127.0.0.1:7890")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Extract.MaxAttempts)
	assert.True(t, cfg.Logging.Enabled)
	assert.Equal(t, "tr.entry", cfg.Source.Selectors.Row)
	assert.Equal(t, "http://127.0.0.1:7890", cfg.Browser.Proxy)
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pwexport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
extract:
  max_attempts: 4
  timeout_seconds: 30
  poll_interval: 250ms
source:
  name: snapshot
  snapshot: saved.html
  selectors:
    detail: .modal
`), 0o600))
	t.Setenv("PWEXPORT_EXTRACT_MAX_ATTEMPTS", "6")

	cfg, err := config.Load(path, newFlags(t, "--max-attempts", "8", "--output", "out.md"))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Extract.MaxAttempts, "flag beats env and file")
	assert.Equal(t, 30, cfg.Extract.TimeoutSeconds)
	assert.Equal(t, 250*time.Millisecond, cfg.Extract.PollInterval)
	assert.Equal(t, "snapshot", cfg.Source.Name)
	assert.Equal(t, "saved.html", cfg.Source.Snapshot)
	assert.Equal(t, ".modal", cfg.Source.Selectors.Detail)
	assert.Equal(t, source.DefaultSelectors().Row, cfg.Source.Selectors.Row)
	assert.Equal(t, "markdown", cfg.Output.Format)
}

func TestLoad_EnvBeatsFileWhenFlagUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pwexport.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extract:\n  max_attempts: 4\n"), 0o600))
	t.Setenv("PWEXPORT_EXTRACT_MAX_ATTEMPTS", "6")

	cfg, err := config.Load(path, newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Extract.MaxAttempts)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := config.Load("", newFlags(t, "--max-attempts", "0", "--forced-rows", "-1", "--source", "clipboard", "--format", "xml"))

	require.Error(t, err)
	assert.ErrorIs(t, err, models.KindInvalidConfig)
	assert.Contains(t, err.Error(), "max_attempts")
	assert.Contains(t, err.Error(), "forced_row_count")
	assert.Contains(t, err.Error(), `unknown source "clipboard"`)
	assert.Contains(t, err.Error(), "invalid output format: xml")
}

func TestLoad_ZeroPollIntervalRejected(t *testing.T) {
	t.Setenv("PWEXPORT_EXTRACT_POLL_INTERVAL", "0s")

	_, err := config.Load("", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.KindInvalidConfig)
	assert.Contains(t, err.Error(), "extract.poll_interval must be positive")
}
