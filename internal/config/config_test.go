package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	t.Setenv("OFFICE_VILLAIN_ORACLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 6, cfg.RosterSize)
	assert.Equal(t, "google", cfg.Oracle.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Oracle.Model)
	assert.Equal(t, 2*time.Second, cfg.Pacing.SetupDwell)
	assert.Equal(t, 4*time.Second, cfg.Pacing.Night)

	assert.Error(t, cfg.Validate(), "missing api key must fail validation")
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	body := `{
		"port": 9000,
		"log_level": "debug",
		"oracle": {"api_key": "from-file", "timeout": "5s"},
		"pacing": {"night": "1s"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app_config.json"), []byte(body), 0o644))

	t.Setenv("OFFICE_VILLAIN_PORT", "9100")
	t.Setenv("OFFICE_VILLAIN_ORACLE_MODEL", "gemini-2.5-pro")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port, "env beats file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "from-file", cfg.Oracle.APIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.Oracle.Model)
	assert.Equal(t, 5*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, time.Second, cfg.Pacing.Night)
	assert.Equal(t, 3*time.Second, cfg.Pacing.VoteReveal)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_GeminiKeyFallback(t *testing.T) {
	t.Setenv("OFFICE_VILLAIN_ORACLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-secret")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "gemini-secret", cfg.Oracle.APIKey)
}

func TestValidate_RosterTooSmall(t *testing.T) {
	cfg := &AppConfig{
		RosterSize: 2,
		Oracle:     OracleConfig{Provider: "google", APIKey: "k"},
	}

	assert.Error(t, cfg.Validate())
}
