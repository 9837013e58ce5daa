// File: internal/config/config.go
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeAuto    = "auto"
	ModePolling = "polling"
	ModeWebhook = "webhook"

	DefaultWebhookSecret = "default_secret"
	DefaultWebhookPath   = "/webhook/telegram"
)

type RuntimeConfig struct {
	Dev        bool
	Production bool // running on the hosting platform (RENDER=true)
}

type BotConfig struct {
	Token           string `yaml:"token"`
	Mode            string `yaml:"mode"` // auto | polling | webhook
	Workers         int    `yaml:"workers"`
	ExternalHost    string `yaml:"external_host"`
	WebhookSecret   string `yaml:"webhook_secret"`
	WebhookPath     string `yaml:"webhook_path"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
	WebhookRPS     float64       `yaml:"webhook_rps"`
	WebhookBurst   int           `yaml:"webhook_burst"`
}

type EmailConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	Server   string        `yaml:"server"`
	Port     int           `yaml:"port"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
}

type OrderConfig struct {
	ExchangeRate float64       `yaml:"exchange_rate"`
	StateTTL     time.Duration `yaml:"state_ttl"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type AdminConfig struct {
	APISecret string        `yaml:"api_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Email    EmailConfig    `yaml:"email"`
	Order    OrderConfig    `yaml:"order"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Admin    AdminConfig    `yaml:"admin"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Getenv matches os.LookupEnv so tests can inject an environment.
type Getenv func(key string) (string, bool)

// LoadConfig reads the optional YAML file at path, then applies environment
// variables on top. Outside the hosting platform a local .env file is loaded
// first; it never overrides variables already present in the environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	if !isTrue(os.Getenv("RENDER")) {
		if _, err := os.Stat(".env"); err == nil {
			if err := godotenv.Load(".env"); err != nil {
				return nil, fmt.Errorf("load .env: %w", err)
			}
		}
	}
	return Load(path, dev, os.LookupEnv)
}

// Load is LoadConfig without the .env side effect.
func Load(path string, dev bool, getenv Getenv) (*Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	normalize(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Bot: BotConfig{
			Mode:            ModeAuto,
			Workers:         8,
			WebhookPath:     DefaultWebhookPath,
			RateLimitPerMin: 20,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		HTTP: HTTPConfig{
			Port:           10000,
			RequestTimeout: 15 * time.Second,
			ShutdownGrace:  10 * time.Second,
			WebhookRPS:     50,
			WebhookBurst:   100,
		},
		Email: EmailConfig{
			Server:  "smtp.gmail.com",
			Port:    465,
			Timeout: 10 * time.Second,
			Retries: 3,
		},
		Order:    OrderConfig{ExchangeRate: 13.0, StateTTL: 30 * time.Minute},
		Database: DatabaseConfig{MaxConns: 10},
		Admin:    AdminConfig{TokenTTL: 30 * time.Minute},
	}
}

// clean strips spaces and wrapping quotes that often sneak into dashboard-entered secrets.
func clean(v string) string { return strings.Trim(v, " \"'") }

func isTrue(v string) bool { return strings.EqualFold(clean(v), "true") }

func applyEnv(cfg *Config, getenv Getenv) error {
	str := func(key string, dst *string) {
		if v, ok := getenv(key); ok {
			if v = clean(v); v != "" {
				*dst = v
			}
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := getenv(key); ok && clean(v) != "" {
			n, err := strconv.Atoi(clean(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	seconds := func(key string, dst *time.Duration) {
		if v, ok := getenv(key); ok && clean(v) != "" {
			d, err := parseSecondsOrDuration(clean(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	if v, ok := getenv("RENDER"); ok {
		cfg.Runtime.Production = isTrue(v)
	}

	str("TELEGRAM_BOT_TOKEN", &cfg.Bot.Token)
	str("BOT_MODE", &cfg.Bot.Mode)
	num("BOT_WORKERS", &cfg.Bot.Workers)
	num("BOT_RATE_LIMIT_PER_MIN", &cfg.Bot.RateLimitPerMin)
	str("RENDER_EXTERNAL_HOSTNAME", &cfg.Bot.ExternalHost)
	str("WEBHOOK_SECRET", &cfg.Bot.WebhookSecret)
	str("WEBHOOK_PATH", &cfg.Bot.WebhookPath)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	num("PORT", &cfg.HTTP.Port)

	str("ADMIN_EMAIL", &cfg.Email.Address)
	str("EMAIL_PASSWORD", &cfg.Email.Password)
	str("SMTP_SERVER", &cfg.Email.Server)
	num("SMTP_PORT", &cfg.Email.Port)
	seconds("SMTP_TIMEOUT", &cfg.Email.Timeout)

	if v, ok := getenv("EXCHANGE_RATE"); ok && clean(v) != "" {
		f, err := strconv.ParseFloat(strings.ReplaceAll(clean(v), ",", "."), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("EXCHANGE_RATE: %w", err))
		} else {
			cfg.Order.ExchangeRate = f
		}
	}
	seconds("STATE_TTL", &cfg.Order.StateTTL)

	str("REDIS_URL", &cfg.Redis.URL)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	num("REDIS_DB", &cfg.Redis.DB)
	str("DATABASE_URL", &cfg.Database.URL)
	str("ADMIN_API_SECRET", &cfg.Admin.APISecret)
	str("ENCRYPTION_KEY", &cfg.Security.EncryptionKey)

	return errors.Join(errs...)
}

// parseSecondsOrDuration accepts "10" (seconds) as well as "10s" / "1m30s".
func parseSecondsOrDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func normalize(cfg *Config) {
	cfg.Bot.Mode = strings.ToLower(strings.TrimSpace(cfg.Bot.Mode))
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = ModeAuto
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.WebhookSecret == "" {
		cfg.Bot.WebhookSecret = DefaultWebhookSecret
	}
	if cfg.Bot.WebhookPath == "" {
		cfg.Bot.WebhookPath = DefaultWebhookPath
	}
	if !strings.HasPrefix(cfg.Bot.WebhookPath, "/") {
		cfg.Bot.WebhookPath = "/" + cfg.Bot.WebhookPath
	}
	cfg.Bot.ExternalHost = strings.TrimSuffix(strings.TrimPrefix(cfg.Bot.ExternalHost, "https://"), "/")
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	if cfg.Email.Retries <= 0 {
		cfg.Email.Retries = 3
	}
	if cfg.Order.StateTTL <= 0 {
		cfg.Order.StateTTL = 30 * time.Minute
	}
}

// EffectiveMode resolves "auto": webhook on the hosting platform, polling elsewhere.
func (c *Config) EffectiveMode() string {
	if c.Bot.Mode != ModeAuto {
		return c.Bot.Mode
	}
	if c.Runtime.Production {
		return ModeWebhook
	}
	return ModePolling
}

// WebhookURL is the public URL Telegram posts updates to.
func (c *Config) WebhookURL() string {
	if c.Bot.ExternalHost == "" {
		return ""
	}
	return "https://" + c.Bot.ExternalHost + c.Bot.WebhookPath
}

// EmailConfigured reports whether admin notifications can be sent.
func (c *Config) EmailConfigured() bool {
	return c.Email.Address != "" && c.Email.Password != ""
}

// Validate checks required keys first (reported together) and then value ranges.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"TELEGRAM_BOT_TOKEN", c.Bot.Token},
		{"ADMIN_EMAIL", c.Email.Address},
		{"EMAIL_PASSWORD", c.Email.Password},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			// Dev mode runs with a noop notifier; the token is still needed.
			if c.Runtime.Dev && r.name != "TELEGRAM_BOT_TOKEN" {
				continue
			}
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	err := validation.ValidateStruct(c,
		validation.Field(&c.Bot, validation.By(func(v interface{}) error {
			b := v.(BotConfig)
			return validation.ValidateStruct(&b,
				validation.Field(&b.Mode, validation.In(ModeAuto, ModePolling, ModeWebhook)),
				validation.Field(&b.Workers, validation.Min(1), validation.Max(256)),
				validation.Field(&b.RateLimitPerMin, validation.Min(0)),
			)
		})),
		validation.Field(&c.Log, validation.By(func(v interface{}) error {
			l := v.(LogConfig)
			return validation.ValidateStruct(&l,
				validation.Field(&l.Level, validation.In("trace", "debug", "info", "warn", "error")),
				validation.Field(&l.Format, validation.In("json", "console")),
			)
		})),
		validation.Field(&c.HTTP, validation.By(func(v interface{}) error {
			h := v.(HTTPConfig)
			return validation.ValidateStruct(&h,
				validation.Field(&h.Port, validation.Min(1), validation.Max(65535)),
				validation.Field(&h.WebhookRPS, validation.Min(0.0)),
				validation.Field(&h.WebhookBurst, validation.Min(0)),
			)
		})),
		validation.Field(&c.Email, validation.By(func(v interface{}) error {
			e := v.(EmailConfig)
			return validation.ValidateStruct(&e,
				validation.Field(&e.Server, validation.Required),
				validation.Field(&e.Port, validation.Min(1), validation.Max(65535)),
				validation.Field(&e.Timeout, validation.Min(time.Second)),
			)
		})),
		validation.Field(&c.Order, validation.By(func(v interface{}) error {
			o := v.(OrderConfig)
			return validation.ValidateStruct(&o,
				validation.Field(&o.ExchangeRate, validation.Required, validation.Min(0.000001)),
			)
		})),
		validation.Field(&c.Security, validation.By(func(v interface{}) error {
			s := v.(SecurityConfig)
			return validation.ValidateStruct(&s,
				validation.Field(&s.EncryptionKey, validation.By(func(v interface{}) error {
					key := v.(string)
					if key == "" || validKeyLen(len(key)) {
						return nil
					}
					if dec, err := base64.StdEncoding.DecodeString(key); err == nil && validKeyLen(len(dec)) {
						return nil
					}
					return validation.NewError("validation_key_length", "must be 16, 24 or 32 bytes (raw or base64)")
				})),
			)
		})),
	)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.EffectiveMode() == ModeWebhook && c.Bot.ExternalHost == "" {
		return errors.New("webhook mode requires RENDER_EXTERNAL_HOSTNAME")
	}
	return nil
}

func validKeyLen(n int) bool { return n == 16 || n == 24 || n == 32 }
