// Package config reads the service configuration: config.json5 merged with
// config.local.json5, then environment overrides, then defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"suapreport/internal/alert"
	"suapreport/internal/archive"
	"suapreport/internal/browser"
	"suapreport/internal/scrapers/suap"
	"suapreport/internal/session"
	"suapreport/lib/configutil"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

// Duration reads "5s" style strings or a number of milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"'`)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %s: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

type LoginConfig struct {
	Path     string `json:"path"`
	Username string `json:"username_selector"`
	Password string `json:"password_selector"`
	Submit   string `json:"submit_selector"`
	Ready    string `json:"ready_selector"`
}

type PortalConfig struct {
	BaseURL      string         `json:"base_url"`
	Campus       int            `json:"campus"`
	Username     string         `json:"username"`
	Password     string         `json:"password"`
	Login        LoginConfig    `json:"login"`
	Selectors    suap.Selectors `json:"selectors"`
	UsualNameTTL Duration       `json:"usual_name_ttl"`
}

type BrowserConfig struct {
	ControlURL string `json:"control_url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

type SessionConfig struct {
	ConnectBackoff     Duration `json:"connect_backoff"`
	ConnectMaxAttempts int      `json:"connect_max_attempts"`
	AuthTimeout        Duration `json:"auth_timeout"`
	ConfirmTimeout     Duration `json:"confirm_timeout"`
	// a negative value disables re-authentication
	ReauthAttempts       int     `json:"reauth_attempts"`
	NavigationsPerSecond float64 `json:"navigations_per_second"`
}

type ServerConfig struct {
	Port int    `json:"port"`
	Path string `json:"path"`
}

type ReportConfig struct {
	OutputDir string         `json:"output_dir"`
	City      string         `json:"city"`
	Signatory string         `json:"signatory"`
	Archive   archive.Config `json:"archive"`
}

type AlertsConfig struct {
	Telegram alert.TelegramConfig `json:"telegram"`
	Email    alert.SmtpConfig     `json:"email"`
}

type Config struct {
	Portal  PortalConfig  `json:"portal"`
	Browser BrowserConfig `json:"browser"`
	Session SessionConfig `json:"session"`
	Server  ServerConfig  `json:"server"`
	Report  ReportConfig  `json:"report"`
	Alerts  AlertsConfig  `json:"alerts"`
}

func Defaults() Config {
	return Config{
		Portal: PortalConfig{
			BaseURL: "https://suap.ifsul.edu.br",
			Campus:  4,
			Login: LoginConfig{
				Path:     "accounts/login/",
				Username: "#id_username",
				Password: "#id_password",
				Submit:   `input[type="submit"]`,
				Ready:    "#user-tools .user-profile",
			},
			Selectors:    suap.DefaultSelectors(),
			UsualNameTTL: Duration(15 * time.Minute),
		},
		Browser: BrowserConfig{
			ControlURL: "http://chrome:3000",
			Width:      1920,
			Height:     2000,
		},
		Session: SessionConfig{
			ConnectBackoff:       Duration(3 * time.Second),
			AuthTimeout:          Duration(5 * time.Second),
			ConfirmTimeout:       Duration(5 * time.Second),
			ReauthAttempts:       1,
			NavigationsPerSecond: 2,
		},
		Server: ServerConfig{
			Port: 8080,
			Path: "/ws",
		},
		Report: ReportConfig{
			OutputDir: "reports",
			City:      "Charqueadas",
			Signatory: "Coordenadoria de Registros Acadêmicos",
			Archive:   archive.Config{File: "data/archive.db"},
		},
		Alerts: AlertsConfig{
			Email: alert.SmtpConfig{Port: 587},
		},
	}
}

// Lookup reads an environment variable.
type Lookup func(key string) (string, bool)

// Load reads the configuration file at path, or searches for config.json5
// upwards from the working directory when path is empty. A missing file is
// not an error. Variables from a .env file in the working directory are
// loaded first.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return load(path, os.LookupEnv)
}

func load(path string, lookup Lookup) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		cfg, err = configutil.ReadConfig[Config](path)
	} else {
		cfg, err = configutil.ReadRecursively[Config]("config.json5")
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := mergo.Merge(&cfg, Defaults()); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup Lookup) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("SUAP_BASE_URL", &cfg.Portal.BaseURL)
	str("SUAP_USERNAME", &cfg.Portal.Username)
	str("SUAP_PASSWORD", &cfg.Portal.Password)
	integer("SUAP_CAMPUS", &cfg.Portal.Campus)
	str("CHROME_URL", &cfg.Browser.ControlURL)
	integer("PORT", &cfg.Server.Port)
	boolean("TELEGRAM_ENABLED", &cfg.Alerts.Telegram.Enabled)
	str("TELEGRAM_CHAT_ID", &cfg.Alerts.Telegram.ChatID)
	str("TELEGRAM_BOT_TOKEN", &cfg.Alerts.Telegram.Token)
	str("SMTP_PASSWORD", &cfg.Alerts.Email.Password)
	str("ARCHIVE_URL", &cfg.Report.Archive.Url)
	str("ARCHIVE_AUTH_TOKEN", &cfg.Report.Archive.AuthToken)

	return errors.Join(errs...)
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Portal.BaseURL == "" {
		errs = append(errs, errors.New("portal.base_url is required"))
	}
	if c.Portal.Username == "" || c.Portal.Password == "" {
		errs = append(errs, errors.New("portal credentials are required (SUAP_USERNAME, SUAP_PASSWORD)"))
	}
	if c.Alerts.Telegram.Enabled && (c.Alerts.Telegram.ChatID == "" || c.Alerts.Telegram.Token == "") {
		errs = append(errs, errors.New("telegram alerts need a chat id and a bot token"))
	}
	return errors.Join(errs...)
}

func (c Config) portalURL(path string) string {
	return strings.TrimRight(c.Portal.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c Config) SessionOptions() session.Options {
	return session.Options{
		Credentials: session.Credentials{
			Username: c.Portal.Username,
			Password: c.Portal.Password,
		},
		Login: session.LoginForm{
			URL:              c.portalURL(c.Portal.Login.Path),
			UsernameSelector: c.Portal.Login.Username,
			PasswordSelector: c.Portal.Login.Password,
			SubmitSelector:   c.Portal.Login.Submit,
			ReadySelector:    c.Portal.Login.Ready,
		},
		ConnectBackoff:       time.Duration(c.Session.ConnectBackoff),
		ConnectMaxAttempts:   c.Session.ConnectMaxAttempts,
		AuthTimeout:          time.Duration(c.Session.AuthTimeout),
		ConfirmTimeout:       time.Duration(c.Session.ConfirmTimeout),
		ReauthAttempts:       c.Session.ReauthAttempts,
		NavigationsPerSecond: c.Session.NavigationsPerSecond,
	}
}

func (c Config) ScraperOptions() suap.Options {
	return suap.Options{
		BaseURL:      c.Portal.BaseURL,
		Campus:       c.Portal.Campus,
		Selectors:    c.Portal.Selectors,
		UsualNameTTL: time.Duration(c.Portal.UsualNameTTL),
	}
}

func (c Config) Viewport() browser.Viewport {
	return browser.Viewport{Width: c.Browser.Width, Height: c.Browser.Height}
}
