package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environments accepted in ENV.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config keeps runtime settings for the server.
type Config struct {
	Env     string
	LogFile string

	HTTPAddr    string
	DatabaseURL string

	EnrichWebhookURL string
	ChatWebhookURL   string
	OpenAIAPIKey     string
	OpenAIModel      string

	ZAPIBaseURL     string
	ZAPIInstanceID  string
	ZAPIToken       string
	ZAPIClientToken string

	TelegramToken string

	ActivationKeyword    string
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	EnhanceTimeout       time.Duration
	ForwardTimeout       time.Duration
}

// Load reads configuration from the environment, layered over an optional
// config file and defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Env:                  strings.ToLower(strings.TrimSpace(v.GetString("ENV"))),
		LogFile:              strings.TrimSpace(v.GetString("LOG_FILE")),
		HTTPAddr:             strings.TrimSpace(v.GetString("HTTP_ADDR")),
		DatabaseURL:          strings.TrimSpace(v.GetString("DATABASE_URL")),
		EnrichWebhookURL:     strings.TrimSpace(v.GetString("N8N_WEBHOOK_URL")),
		ChatWebhookURL:       strings.TrimSpace(v.GetString("N8N_CHAT_WEBHOOK_URL")),
		OpenAIAPIKey:         strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
		OpenAIModel:          strings.TrimSpace(v.GetString("OPENAI_MODEL")),
		ZAPIBaseURL:          strings.TrimRight(strings.TrimSpace(v.GetString("ZAPI_BASE_URL")), "/"),
		ZAPIInstanceID:       strings.TrimSpace(v.GetString("ZAPI_INSTANCE_ID")),
		ZAPIToken:            strings.TrimSpace(v.GetString("ZAPI_TOKEN")),
		ZAPIClientToken:      strings.TrimSpace(v.GetString("ZAPI_CLIENT_TOKEN")),
		TelegramToken:        strings.TrimSpace(v.GetString("TELEGRAM_TOKEN")),
		ActivationKeyword:    strings.TrimSpace(v.GetString("ACTIVATION_KEYWORD")),
		SessionTTL:           v.GetDuration("SESSION_TTL"),
		SessionSweepInterval: v.GetDuration("SESSION_SWEEP_INTERVAL"),
		EnhanceTimeout:       v.GetDuration("ENHANCE_TIMEOUT"),
		ForwardTimeout:       v.GetDuration("FORWARD_TIMEOUT"),
	}

	if cfg.ChatWebhookURL == "" {
		cfg.ChatWebhookURL = cfg.EnrichWebhookURL
	}

	return cfg, cfg.validate()
}

// WhatsAppConfigured reports whether Z-API credentials are present.
func (c Config) WhatsAppConfigured() bool {
	return c.ZAPIInstanceID != "" && c.ZAPIToken != ""
}

func (c Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("ENV must be one of local, dev, prod, got %q", c.Env)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.EnhanceTimeout <= 0 || c.ForwardTimeout <= 0 {
		return fmt.Errorf("ENHANCE_TIMEOUT and FORWARD_TIMEOUT must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvLocal)
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "todo_assistant.db")
	v.SetDefault("N8N_WEBHOOK_URL", "")
	v.SetDefault("N8N_CHAT_WEBHOOK_URL", "")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("ZAPI_BASE_URL", "https://api.z-api.io")
	v.SetDefault("ZAPI_INSTANCE_ID", "")
	v.SetDefault("ZAPI_TOKEN", "")
	v.SetDefault("ZAPI_CLIENT_TOKEN", "")
	v.SetDefault("TELEGRAM_TOKEN", "")
	v.SetDefault("ACTIVATION_KEYWORD", "#todolist")
	v.SetDefault("SESSION_TTL", 12*time.Hour)
	v.SetDefault("SESSION_SWEEP_INTERVAL", 10*time.Minute)
	v.SetDefault("ENHANCE_TIMEOUT", 60*time.Second)
	v.SetDefault("FORWARD_TIMEOUT", 15*time.Second)
}
