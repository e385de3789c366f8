package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config models studioflow.yaml. Every key can also be set through
// STUDIOFLOW_<SECTION>_<KEY> environment variables.
type Config struct {
	Env        string           `yaml:"env" mapstructure:"env"`
	Workspace  string           `yaml:"workspace" mapstructure:"workspace"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	GitHub     GitHubConfig     `yaml:"github" mapstructure:"github"`
	Calendar   CalendarConfig   `yaml:"calendar" mapstructure:"calendar"`
	ClickUp    ClickUpConfig    `yaml:"clickup" mapstructure:"clickup"`
	Telegram   TelegramConfig   `yaml:"telegram" mapstructure:"telegram"`
	WhatsApp   WhatsAppConfig   `yaml:"whatsapp" mapstructure:"whatsapp"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Webhooks   []WebhookConfig  `yaml:"webhooks" mapstructure:"webhooks"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	BasePath  string `yaml:"base_path" mapstructure:"base_path"`
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

type GenerationConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	UseBedrock  bool    `yaml:"use_bedrock" mapstructure:"use_bedrock"`
	AWSRegion   string  `yaml:"aws_region" mapstructure:"aws_region"`
	AWSProfile  string  `yaml:"aws_profile" mapstructure:"aws_profile"`
}

// Configured reports whether a generation backend has credentials.
func (g GenerationConfig) Configured() bool {
	return g.UseBedrock || strings.TrimSpace(g.APIKey) != ""
}

type GitHubConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	WebhookSecret string `yaml:"webhook_secret" mapstructure:"webhook_secret"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
}

type CalendarConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	RefreshToken string `yaml:"refresh_token" mapstructure:"refresh_token"`
	CalendarID   string `yaml:"calendar_id" mapstructure:"calendar_id"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	TokenURL     string `yaml:"token_url" mapstructure:"token_url"`
}

type ClickUpConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	TeamID  string `yaml:"team_id" mapstructure:"team_id"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

type TelegramConfig struct {
	BotToken string   `yaml:"bot_token" mapstructure:"bot_token"`
	ChatIDs  []string `yaml:"chat_ids" mapstructure:"chat_ids"`
	BaseURL  string   `yaml:"base_url" mapstructure:"base_url"`
	Polling  bool     `yaml:"polling" mapstructure:"polling"`
}

type WhatsAppConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	AccessToken   string `yaml:"access_token" mapstructure:"access_token"`
	PhoneNumberID string `yaml:"phone_number_id" mapstructure:"phone_number_id"`
	VerifyToken   string `yaml:"verify_token" mapstructure:"verify_token"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
}

type RetryConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// WebhookConfig is an outbound subscriber for ledger events.
type WebhookConfig struct {
	URL            string   `yaml:"url" mapstructure:"url"`
	Events         []string `yaml:"events" mapstructure:"events"`
	Secret         string   `yaml:"secret" mapstructure:"secret"`
	Enabled        *bool    `yaml:"enabled" mapstructure:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// IsProduction reports whether integration failures must surface instead of
// falling back to simulated responses.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == EnvProduction
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("config.env must be one of development, production, test (got %q)", c.Env)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with / (got %q)", c.Server.BasePath)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 1 {
		return fmt.Errorf("config.generation.temperature must be within [0,1]")
	}
	if c.Generation.MaxTokens <= 0 {
		return errors.New("config.generation.max_tokens must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("config.retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelay < 0 {
		return errors.New("config.retry.base_delay must not be negative")
	}
	if c.WhatsApp.Enabled && strings.TrimSpace(c.WhatsApp.VerifyToken) == "" {
		return errors.New("config.whatsapp.verify_token is required when whatsapp is enabled")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(defaultTemplate), cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return cfg
}

// FromYAML parses and validates config from raw YAML bytes on top of the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Load layers defaults, an optional YAML file and the environment. An empty
// path looks for studioflow.yaml in the working directory and tolerates its absence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("studioflow")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("STUDIOFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindWellKnownEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Telegram.ChatIDs = splitList(cfg.Telegram.ChatIDs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindWellKnownEnv maps the conventional provider variable names onto config keys.
func bindWellKnownEnv(v *viper.Viper) {
	v.BindEnv("env", "STUDIOFLOW_ENV", "APP_ENV")
	v.BindEnv("server.addr", "STUDIOFLOW_SERVER_ADDR", "ADDR")
	v.BindEnv("generation.api_key", "STUDIOFLOW_GENERATION_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("generation.aws_region", "STUDIOFLOW_GENERATION_AWS_REGION", "AWS_REGION")
	v.BindEnv("github.token", "STUDIOFLOW_GITHUB_TOKEN", "GITHUB_TOKEN")
	v.BindEnv("github.webhook_secret", "STUDIOFLOW_GITHUB_WEBHOOK_SECRET", "GITHUB_WEBHOOK_SECRET")
	v.BindEnv("calendar.client_id", "STUDIOFLOW_CALENDAR_CLIENT_ID", "GOOGLE_CALENDAR_CLIENT_ID")
	v.BindEnv("calendar.client_secret", "STUDIOFLOW_CALENDAR_CLIENT_SECRET", "GOOGLE_CALENDAR_CLIENT_SECRET")
	v.BindEnv("calendar.refresh_token", "STUDIOFLOW_CALENDAR_REFRESH_TOKEN", "GOOGLE_CALENDAR_REFRESH_TOKEN")
	v.BindEnv("clickup.api_key", "STUDIOFLOW_CLICKUP_API_KEY", "CLICKUP_API_KEY")
	v.BindEnv("clickup.team_id", "STUDIOFLOW_CLICKUP_TEAM_ID", "CLICKUP_TEAM_ID")
	v.BindEnv("telegram.bot_token", "STUDIOFLOW_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.chat_ids", "STUDIOFLOW_TELEGRAM_CHAT_IDS", "TELEGRAM_CHAT_IDS")
	v.BindEnv("whatsapp.enabled", "STUDIOFLOW_WHATSAPP_ENABLED", "WHATSAPP_ENABLED")
	v.BindEnv("whatsapp.access_token", "STUDIOFLOW_WHATSAPP_ACCESS_TOKEN", "WHATSAPP_ACCESS_TOKEN")
	v.BindEnv("whatsapp.phone_number_id", "STUDIOFLOW_WHATSAPP_PHONE_NUMBER_ID", "WHATSAPP_PHONE_NUMBER_ID")
	v.BindEnv("whatsapp.verify_token", "STUDIOFLOW_WHATSAPP_VERIFY_TOKEN", "WHATSAPP_VERIFY_TOKEN")
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("env", d.Env)
	v.SetDefault("workspace", d.Workspace)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.base_path", d.Server.BasePath)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.temperature", d.Generation.Temperature)
	v.SetDefault("generation.max_tokens", d.Generation.MaxTokens)
	v.SetDefault("generation.use_bedrock", false)
	v.SetDefault("generation.aws_region", "")
	v.SetDefault("generation.aws_profile", "")
	v.SetDefault("github.token", "")
	v.SetDefault("github.webhook_secret", "")
	v.SetDefault("github.base_url", d.GitHub.BaseURL)
	v.SetDefault("calendar.client_id", "")
	v.SetDefault("calendar.client_secret", "")
	v.SetDefault("calendar.refresh_token", "")
	v.SetDefault("calendar.calendar_id", d.Calendar.CalendarID)
	v.SetDefault("calendar.base_url", d.Calendar.BaseURL)
	v.SetDefault("calendar.token_url", d.Calendar.TokenURL)
	v.SetDefault("clickup.api_key", "")
	v.SetDefault("clickup.team_id", "")
	v.SetDefault("clickup.base_url", d.ClickUp.BaseURL)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_ids", []string{})
	v.SetDefault("telegram.base_url", d.Telegram.BaseURL)
	v.SetDefault("telegram.polling", d.Telegram.Polling)
	v.SetDefault("whatsapp.enabled", false)
	v.SetDefault("whatsapp.access_token", "")
	v.SetDefault("whatsapp.phone_number_id", "")
	v.SetDefault("whatsapp.verify_token", "")
	v.SetDefault("whatsapp.base_url", d.WhatsApp.BaseURL)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
}

// splitList flattens comma separated entries, which is how list values arrive from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Redacted returns a copy safe for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		if len(s) <= 8 {
			return "****"
		}
		return s[:4] + "..." + s[len(s)-4:]
	}
	c.Server.JWTSecret = mask(c.Server.JWTSecret)
	c.Generation.APIKey = mask(c.Generation.APIKey)
	c.GitHub.Token = mask(c.GitHub.Token)
	c.GitHub.WebhookSecret = mask(c.GitHub.WebhookSecret)
	c.Calendar.ClientSecret = mask(c.Calendar.ClientSecret)
	c.Calendar.RefreshToken = mask(c.Calendar.RefreshToken)
	c.ClickUp.APIKey = mask(c.ClickUp.APIKey)
	c.Telegram.BotToken = mask(c.Telegram.BotToken)
	c.WhatsApp.AccessToken = mask(c.WhatsApp.AccessToken)
	c.WhatsApp.VerifyToken = mask(c.WhatsApp.VerifyToken)
	hooks := make([]WebhookConfig, len(c.Webhooks))
	for i, h := range c.Webhooks {
		h.Secret = mask(h.Secret)
		hooks[i] = h
	}
	c.Webhooks = hooks
	return c
}

// ToYAML renders the config.
func (c Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

const defaultTemplate = `env: development
workspace: .
database:
  path: ""
server:
  addr: ":3000"
  base_path: /v1
generation:
  model: claude-sonnet-4-20250514
  temperature: 0.7
  max_tokens: 2048
github:
  base_url: https://api.github.com
calendar:
  calendar_id: primary
  base_url: https://www.googleapis.com/calendar/v3
  token_url: https://oauth2.googleapis.com/token
clickup:
  base_url: https://api.clickup.com/api/v2
telegram:
  base_url: https://api.telegram.org
  polling: true
whatsapp:
  base_url: https://graph.facebook.com/v18.0
retry:
  base_delay: 1s
  max_attempts: 3
`
