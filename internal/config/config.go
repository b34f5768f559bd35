package config

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
	ProviderGemini LLMProvider = "gemini"
)

type Config struct {
	// LLM settings
	LLMProvider      LLMProvider   `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMModel         string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTemperature   float32       `env:"LLM_TEMPERATURE" envDefault:"0"`
	LLMTimeout       time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	YandexOAuthToken string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string        `env:"YANDEX_FOLDER_ID"`
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Dataset
	DataPath string `env:"DATA_PATH" envDefault:"availability_clean.csv"`

	// HTTP API
	APIHost         string  `env:"API_HOST" envDefault:"0.0.0.0"`
	APIPort         int     `env:"API_PORT" envDefault:"8000"`
	QueryRatePerSec float64 `env:"QUERY_RATE_PER_SEC" envDefault:"2"`
	QueryBurst      int     `env:"QUERY_BURST" envDefault:"5"`

	// Storage
	QueryLogPath string `env:"QUERY_LOG_PATH" envDefault:"logs/queries.jsonl"`

	// Telegram front door and daily report (optional)
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ReportChatID     int64  `env:"REPORT_CHAT_ID"`
	ReportCron       string `env:"REPORT_CRON" envDefault:"0 21 * * *"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Parse reads the configuration from the environment.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	switch cfg.LLMProvider {
	case "":
		cfg.LLMProvider = ProviderOpenAI
	case ProviderOpenAI, ProviderYandex, ProviderGemini:
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
	if cfg.LLMTimeout <= 0 {
		return nil, fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	return cfg, nil
}

func New() *Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.APIHost, strconv.Itoa(c.APIPort))
}
