// Package config resolves process configuration from flags, an optional
// config file, environment variables and the OS keychain.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"

	"github.com/jdelaire/openbot/core/permission"
	"github.com/jdelaire/openbot/internal/keychain"
)

// EnvPrefix is the prefix viper uses for environment overrides.
const EnvPrefix = "OPENBOT"

// Gateway names.
const (
	GatewayTelegram = "telegram"
	GatewayWSBridge = "wsbridge"
)

// Secrets are read straight from the environment and never from the config
// file.
type Secrets struct {
	TelegramToken string `env:"OPENBOT_TELEGRAM_TOKEN"`
	WSBridgeToken string `env:"OPENBOT_WSBRIDGE_TOKEN"`
}

// Config is the resolved process configuration.
type Config struct {
	Prefix  string
	Mode    permission.Mode
	Sudo    []string
	OwnerID string
	DataDir string

	Gateway       string
	TelegramToken string
	WSBridgeURL   string
	WSBridgeToken string

	Manifest      string
	ControlSocket string
	WatchInterval time.Duration

	Watchdog   time.Duration
	ClearDelay time.Duration

	GameIdleTimeout time.Duration
	WordBank        string
	WarnLimit       int

	LogLevel  string
	LogFormat string
}

// SettingsPath is where runtime settings are persisted.
func (c Config) SettingsPath() string { return filepath.Join(c.DataDir, "settings.json") }

// DatabasePath is the moderation database.
func (c Config) DatabasePath() string { return filepath.Join(c.DataDir, "openbot.db") }

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("prefix", ".")
	v.SetDefault("mode", string(permission.ModePublic))
	v.SetDefault("sudo", []string{})
	v.SetDefault("owner_id", "")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("gateway", GatewayTelegram)
	v.SetDefault("telegram.token", "")
	v.SetDefault("wsbridge.url", "ws://127.0.0.1:8765/bot")
	v.SetDefault("manifest", "")
	v.SetDefault("control.socket", "")
	v.SetDefault("watch.interval", 2*time.Second)
	v.SetDefault("pipeline.watchdog", 20*time.Second)
	v.SetDefault("pipeline.clear_delay", 3*time.Second)
	v.SetDefault("games.idle_timeout", 60*time.Second)
	v.SetDefault("games.wordbank", "")
	v.SetDefault("moderation.warn_limit", 3)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// BindEnv makes every key overridable as OPENBOT_<KEY> with dots as underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// ReadFile loads path into v when path is set.
func ReadFile(v *viper.Viper, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// ParseSecrets reads Secrets from environ, or from the process environment
// when environ is nil.
func ParseSecrets(environ map[string]string) (Secrets, error) {
	var s Secrets
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return Secrets{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// Load resolves the configuration. Tokens come from the environment first,
// then the config file, then the keychain.
func Load(v *viper.Viper, secrets Secrets) (Config, error) {
	mode, ok := permission.ParseMode(v.GetString("mode"))
	if !ok {
		return Config{}, fmt.Errorf("unknown mode %q", v.GetString("mode"))
	}

	cfg := Config{
		Prefix:          v.GetString("prefix"),
		Mode:            mode,
		Sudo:            v.GetStringSlice("sudo"),
		OwnerID:         strings.TrimSpace(v.GetString("owner_id")),
		DataDir:         expandHome(v.GetString("data_dir")),
		Gateway:         strings.ToLower(strings.TrimSpace(v.GetString("gateway"))),
		TelegramToken:   firstNonEmpty(secrets.TelegramToken, v.GetString("telegram.token")),
		WSBridgeURL:     v.GetString("wsbridge.url"),
		WSBridgeToken:   secrets.WSBridgeToken,
		Manifest:        expandHome(v.GetString("manifest")),
		WatchInterval:   v.GetDuration("watch.interval"),
		Watchdog:        v.GetDuration("pipeline.watchdog"),
		ClearDelay:      v.GetDuration("pipeline.clear_delay"),
		GameIdleTimeout: v.GetDuration("games.idle_timeout"),
		WordBank:        expandHome(v.GetString("games.wordbank")),
		WarnLimit:       v.GetInt("moderation.warn_limit"),
		LogLevel:        v.GetString("logging.level"),
		LogFormat:       v.GetString("logging.format"),
	}

	if strings.TrimSpace(cfg.Prefix) == "" {
		return Config{}, fmt.Errorf("prefix must not be empty")
	}
	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("data_dir is required")
	}
	if cfg.Manifest == "" {
		cfg.Manifest = filepath.Join(cfg.DataDir, "commands.json")
	}
	cfg.ControlSocket = SocketPath(v)
	if cfg.WarnLimit < 1 {
		return Config{}, fmt.Errorf("moderation.warn_limit must be at least 1")
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = 2 * time.Second
	}

	switch cfg.Gateway {
	case GatewayTelegram:
		if cfg.TelegramToken == "" {
			tok, err := keychain.Lookup(keychain.TelegramToken)
			if err != nil {
				return Config{}, err
			}
			cfg.TelegramToken = tok
		}
		if cfg.TelegramToken == "" {
			return Config{}, fmt.Errorf("telegram token not set: export OPENBOT_TELEGRAM_TOKEN or store %q in the keychain", keychain.TelegramToken)
		}
	case GatewayWSBridge:
		if cfg.WSBridgeURL == "" {
			return Config{}, fmt.Errorf("wsbridge.url is required")
		}
		if cfg.WSBridgeToken == "" {
			tok, err := keychain.Lookup(keychain.WSBridgeToken)
			if err != nil {
				return Config{}, err
			}
			cfg.WSBridgeToken = tok
		}
	default:
		return Config{}, fmt.Errorf("unknown gateway %q", cfg.Gateway)
	}
	return cfg, nil
}

// SocketPath resolves the control socket without validating the rest of
// the configuration.
func SocketPath(v *viper.Viper) string {
	if p := expandHome(v.GetString("control.socket")); p != "" {
		return p
	}
	return filepath.Join(expandHome(v.GetString("data_dir")), "openbot.sock")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".openbot"
	}
	return filepath.Join(home, ".openbot")
}

func expandHome(p string) string {
	p = strings.TrimSpace(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
