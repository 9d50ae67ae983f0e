package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DBConfig database connection settings
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// MQConfig message bus settings
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig Redis settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig token signing settings
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port string `yaml:"port"`
}

// MarketConfig holds the process-wide business constants. It is read once at
// start-up and handed to the settlement and quota components.
type MarketConfig struct {
	CommissionRate   decimal.Decimal `yaml:"commission_rate"`
	FreeMonthlyLimit int             `yaml:"free_monthly_limit"`
	Currency         string          `yaml:"currency"`
	// Location decides calendar-month boundaries for quota resets.
	Location string `yaml:"location"`
}

// ProcessorConfig payment processor settings
type ProcessorConfig struct {
	BaseURL       string        `yaml:"base_url"`
	SecretKey     string        `yaml:"secret_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ProviderConfig generative-text provider settings
type ProviderConfig struct {
	Name            string        `yaml:"name"` // anthropic / openai
	AnthropicURL    string        `yaml:"anthropic_url"`
	AnthropicKey    string        `yaml:"anthropic_key"`
	AnthropicModel  string        `yaml:"anthropic_model"`
	OpenAIURL       string        `yaml:"openai_url"`
	OpenAIKey       string        `yaml:"openai_key"`
	OpenAIModel     string        `yaml:"openai_model"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	RateLimitPerSec int           `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// Config is the full configuration tree shared by every binary.
type Config struct {
	DB        DBConfig        `yaml:"db"`
	MQ        MQConfig        `yaml:"mq"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Server    ServerConfig    `yaml:"server"`
	Market    MarketConfig    `yaml:"market"`
	Processor ProcessorConfig `yaml:"processor"`
	Provider  ProviderConfig  `yaml:"provider"`
}

// ApplyDefaults fills zero values with the platform defaults.
func (c *Config) ApplyDefaults() {
	if c.Market.CommissionRate.IsZero() {
		c.Market.CommissionRate = decimal.RequireFromString("0.15")
	}
	if c.Market.FreeMonthlyLimit == 0 {
		c.Market.FreeMonthlyLimit = 10
	}
	if c.Market.Currency == "" {
		c.Market.Currency = "usd"
	}
	if c.Market.Location == "" {
		c.Market.Location = "UTC"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = 24 * time.Hour
	}
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.Processor.BaseURL == "" {
		c.Processor.BaseURL = "https://api.stripe.com"
	}
	if c.Processor.Timeout == 0 {
		c.Processor.Timeout = 10 * time.Second
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "anthropic"
	}
	if c.Provider.AnthropicURL == "" {
		c.Provider.AnthropicURL = "https://api.anthropic.com/v1/messages"
	}
	if c.Provider.AnthropicModel == "" {
		c.Provider.AnthropicModel = "claude-3-5-sonnet-20241022"
	}
	if c.Provider.OpenAIURL == "" {
		c.Provider.OpenAIURL = "https://api.openai.com/v1/chat/completions"
	}
	if c.Provider.OpenAIModel == "" {
		c.Provider.OpenAIModel = "gpt-4"
	}
	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = 1024
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 10 * time.Second
	}
	if c.Provider.RateLimitPerSec == 0 {
		c.Provider.RateLimitPerSec = 2
	}
	if c.Provider.RateLimitBurst == 0 {
		c.Provider.RateLimitBurst = 5
	}
}

// OverrideDBFromEnv overrides database settings from the environment
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv overrides bus settings from the environment
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv overrides Redis settings from the environment
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideJWTFromEnv overrides the signing secret from the environment
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

// OverrideServerFromEnv overrides server settings from the environment
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideMarketFromEnv overrides commission and quota constants from the environment
func OverrideMarketFromEnv(cfg *MarketConfig) {
	if rate := os.Getenv("COMMISSION_RATE"); rate != "" {
		if r, err := decimal.NewFromString(rate); err == nil {
			cfg.CommissionRate = r
		}
	}
	if limit := os.Getenv("FREE_MONTHLY_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			cfg.FreeMonthlyLimit = l
		}
	}
}

// OverrideProcessorFromEnv overrides processor credentials from the environment
func OverrideProcessorFromEnv(cfg *ProcessorConfig) {
	if key := os.Getenv("PROCESSOR_SECRET_KEY"); key != "" {
		cfg.SecretKey = key
	}
	if secret := os.Getenv("PROCESSOR_WEBHOOK_SECRET"); secret != "" {
		cfg.WebhookSecret = secret
	}
}

// OverrideProviderFromEnv overrides provider credentials from the environment
func OverrideProviderFromEnv(cfg *ProviderConfig) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.AnthropicKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAIKey = key
	}
	if name := os.Getenv("AI_PROVIDER"); name != "" {
		cfg.Name = name
	}
}
