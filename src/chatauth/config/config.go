package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/auth"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/data"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/stream"
)

const (
	BackendStream = "stream"
	BackendMemory = "memory"

	DefaultSolanaRPC = "https://api.mainnet-beta.solana.com"
)

type Config struct {
	AuthMessage string
	SolanaRPC   string

	ChatBackend    string
	StreamKey      string
	StreamSecret   string
	StreamURL      string
	StreamTokenTTL time.Duration
	ProvisionMode  auth.ProvisionMode

	LedgerTimeout time.Duration
	ChatTimeout   time.Duration

	Port        string
	Env         string
	LogLevel    string
	MySQLDSN    string
	RedisURL    string
	RateLimit   int
	RateWindow  time.Duration
	CORSOrigins []string

	DiscordAlertWebhook string
}

// Development reports whether logs should be human readable.
func (c Config) Development() bool {
	return c.Env == "" || c.Env == "development"
}

// Load resolves configuration from the settings table (when db is not nil),
// then the environment, then defaults.
func Load(db *gorm.DB) (Config, error) {
	var settings *data.Settings
	if db != nil {
		s, err := data.LoadSettings(db)
		if err != nil {
			return Config{}, fmt.Errorf("load settings: %w", err)
		}
		settings = s
	}
	return FromSettings(settings)
}

// FromSettings resolves configuration against an already loaded cache.
func FromSettings(settings *data.Settings) (Config, error) {
	get := func(name, envKey, def string) string {
		return getSetting(settings, name, envKey, def)
	}

	var errs []error
	duration := func(name, envKey, def string) time.Duration {
		raw := get(name, envKey, def)
		d, err := parseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", envKey, err))
		}
		return d
	}
	integer := func(name, envKey, def string) int {
		raw := get(name, envKey, def)
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", envKey, raw))
		}
		return n
	}

	mode, err := auth.ParseProvisionMode(get("provision_mode", "PROVISION_MODE", string(auth.ProvisionBestEffort)))
	if err != nil {
		errs = append(errs, fmt.Errorf("PROVISION_MODE: %w", err))
	}

	cfg := Config{
		AuthMessage:         get("auth_message", "AUTH_MESSAGE", ""),
		SolanaRPC:           get("solana_rpc", "MAINNET_RPC", DefaultSolanaRPC),
		ChatBackend:         strings.ToLower(get("chat_backend", "CHAT_BACKEND", BackendStream)),
		StreamKey:           get("stream_key", "STREAM_KEY", ""),
		StreamSecret:        get("stream_secret", "STREAM_SECRET", ""),
		StreamURL:           get("stream_url", "STREAM_URL", stream.DefaultBaseURL),
		StreamTokenTTL:      duration("stream_token_ttl", "STREAM_TOKEN_TTL", "0"),
		ProvisionMode:       mode,
		LedgerTimeout:       duration("ledger_timeout", "LEDGER_TIMEOUT", "10s"),
		ChatTimeout:         duration("chat_timeout", "CHAT_TIMEOUT", "10s"),
		Port:                get("port", "PORT", "3000"),
		Env:                 get("env", "ENV", "development"),
		LogLevel:            get("log_level", "LOG_LEVEL", "info"),
		MySQLDSN:            os.Getenv("MYSQL_DSN"),
		RedisURL:            get("redis_url", "REDIS_URL", ""),
		RateLimit:           integer("rate_limit", "RATE_LIMIT", "30"),
		RateWindow:          duration("rate_window", "RATE_WINDOW", "1m"),
		CORSOrigins:         splitList(get("cors_origins", "CORS_ORIGINS", "*")),
		DiscordAlertWebhook: get("discord_alert_webhook", "DISCORD_ALERT_WEBHOOK", ""),
	}

	if cfg.AuthMessage == "" {
		errs = append(errs, errors.New("AUTH_MESSAGE is required"))
	}
	switch cfg.ChatBackend {
	case BackendStream:
		if cfg.StreamKey == "" || cfg.StreamSecret == "" {
			errs = append(errs, errors.New("STREAM_KEY and STREAM_SECRET are required for the stream backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("CHAT_BACKEND: unknown backend %q", cfg.ChatBackend))
	}
	if cfg.RateWindow <= 0 && len(errs) == 0 {
		errs = append(errs, errors.New("RATE_WINDOW must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// getSetting returns the settings value for name, falling back to envKey and
// then def.
func getSetting(settings *data.Settings, name, envKey, def string) string {
	val := settings.Get(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = def
	}
	return val
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
