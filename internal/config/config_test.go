package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"suapreport/internal/scrapers/suap"

	"github.com/stretchr/testify/require"
)

func env(values map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadMergesFilesEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")

	require.NoError(t, os.WriteFile(path, []byte(`{
		// campus and session tuning
		portal: { campus: 7, username: "from-file" },
		session: { connect_backoff: "1s", connect_max_attempts: 5, reauth_attempts: -1 },
		server: { port: 9000 },
	}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		server: { port: 9100 },
		session: { auth_timeout: 2500 },
	}`), 0o600))

	cfg, err := load(path, env(map[string]string{
		"SUAP_PASSWORD":    "secret",
		"CHROME_URL":       "ws://localhost:9222",
		"TELEGRAM_ENABLED": "true",
	}))
	require.NoError(t, err)

	require.Equal(t, 7, cfg.Portal.Campus)
	require.Equal(t, "from-file", cfg.Portal.Username)
	require.Equal(t, "secret", cfg.Portal.Password)
	require.Equal(t, "ws://localhost:9222", cfg.Browser.ControlURL)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "/ws", cfg.Server.Path)
	require.True(t, cfg.Alerts.Telegram.Enabled)

	opts := cfg.SessionOptions()
	require.Equal(t, time.Second, opts.ConnectBackoff)
	require.Equal(t, 5, opts.ConnectMaxAttempts)
	require.Equal(t, 2500*time.Millisecond, opts.AuthTimeout)
	require.Equal(t, 5*time.Second, opts.ConfirmTimeout)
	require.Equal(t, -1, opts.ReauthAttempts)
	require.Equal(t, "https://suap.ifsul.edu.br/accounts/login/", opts.Login.URL)
	require.Equal(t, "#user-tools .user-profile", opts.Login.ReadySelector)

	require.Equal(t, suap.DefaultSelectors(), cfg.ScraperOptions().Selectors)
	require.Equal(t, 15*time.Minute, cfg.ScraperOptions().UsualNameTTL)

	// telegram is enabled without a chat id
	require.Error(t, cfg.Validate())
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "missing.json5"), env(map[string]string{
		"SUAP_USERNAME": "servidor",
		"SUAP_PASSWORD": "secret",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	defaults := Defaults()
	require.Equal(t, defaults.Browser, cfg.Browser)
	require.Equal(t, defaults.Session, cfg.Session)
	require.Equal(t, 4, cfg.Portal.Campus)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.json5"), env(map[string]string{
		"PORT": "eighty",
	}))
	require.Error(t, err)
}
