package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir   string `json:"project_dir" validate:"required"`
	RunsDir      string `json:"runs_dir" validate:"required"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`

	LLMProvider       string  `json:"llm_provider" validate:"oneof=deepseek openai claude gemini none"`
	LLMModel          string  `json:"llm_model"`
	BackendURL        string  `json:"backend_url" validate:"omitempty,url"`
	LLMTemperature    float32 `json:"llm_temperature" validate:"gte=0,lte=2"`
	LLMMaxTokens      int     `json:"llm_max_tokens" validate:"gte=0"`
	LLMTimeoutSeconds int     `json:"llm_timeout_seconds" validate:"gte=0"`

	// AI Model API Keys
	DeepSeekAPIKey  string `json:"deepseek_api_key"`
	OpenAIAPIKey    string `json:"openai_api_key"`
	AnthropicAPIKey string `json:"anthropic_api_key"`
	GeminiAPIKey    string `json:"gemini_api_key"`

	// Data sources
	PriceSource        string `json:"price_source" validate:"oneof=yahoo longport"`
	FundamentalsSource string `json:"fundamentals_source" validate:"oneof=auto yahoo finnhub"`
	NewsSource         string `json:"news_source" validate:"oneof=yahoo finnhub none"`
	NewsLimit          int    `json:"news_limit" validate:"gte=0,lte=50"`
	FinnhubAPIKey      string `json:"finnhub_api_key"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	RunStore       string `json:"run_store" validate:"oneof=json sqlite none"`
	SQLitePath     string `json:"sqlite_path" validate:"required_if=RunStore sqlite"`
	StrategiesFile string `json:"strategies_file"`

	// CrossRoleConfidence measures confidence over every role report
	// instead of the final narrative alone.
	CrossRoleConfidence bool `json:"cross_role_confidence"`

	CacheEnabled bool   `json:"cache_enabled"`
	Debug        bool   `json:"debug"`
	LogLevel     string `json:"log_level" validate:"oneof=trace debug info warn error"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port" validate:"gte=0,lte=65535"`

	ListenAddr    string   `json:"listen_addr"`
	WatchSchedule string   `json:"watch_schedule"`
	Watchlist     []string `json:"watchlist"`
	WatchStrategy string   `json:"watch_strategy"`
	WatchHorizon  string   `json:"watch_horizon"`
}

var validate = validator.New()

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot lays out all directories under root.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:   root,
		RunsDir:      filepath.Join(root, "outputs", "runs"),
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),

		LLMProvider:       "deepseek",
		LLMModel:          "deepseek-chat",
		LLMTemperature:    0.4,
		LLMMaxTokens:      900,
		LLMTimeoutSeconds: 60,

		PriceSource:        "yahoo",
		FundamentalsSource: "auto",
		NewsSource:         "yahoo",
		NewsLimit:          5,

		RunStore:   "json",
		SQLitePath: filepath.Join(root, "data", "runs.db"),

		CacheEnabled: true,
		LogLevel:     "info",

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,

		ListenAddr:    ":8080",
		WatchSchedule: "0 30 16 * * 1-5",
		WatchStrategy: "Balanced",
		WatchHorizon:  "3 Months",
	}
}

// Validate checks struct constraints and a few cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.PriceSource == "longport" && (c.LongportAppKey == "" || c.LongportAppSecret == "" || c.LongportAccessToken == "") {
		return fmt.Errorf("invalid config: longport price source requires app key, secret and access token")
	}
	if c.NewsSource == "finnhub" && c.FinnhubAPIKey == "" {
		return fmt.Errorf("invalid config: finnhub news source requires an API key")
	}
	return nil
}

func (c Config) clone() Config {
	c.Watchlist = slices.Clone(c.Watchlist)
	return c
}

// LLMTimeout is zero when no per-call timeout is configured.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// APIKey returns the key of the configured provider.
func (c Config) APIKey() string {
	switch c.LLMProvider {
	case "deepseek":
		return c.DeepSeekAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "claude":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

func (c *Config) loadFromEnv() {
	envString("PROJECT_DIR", &c.ProjectDir)
	envString("RUNS_DIR", &c.RunsDir)
	envString("DATA_DIR", &c.DataDir)
	envString("DATA_CACHE_DIR", &c.DataCacheDir)

	envString("LLM_PROVIDER", &c.LLMProvider)
	envString("LLM_MODEL", &c.LLMModel)
	envString("BACKEND_URL", &c.BackendURL)
	if val := os.Getenv("LLM_TEMPERATURE"); val != "" {
		if v, err := strconv.ParseFloat(val, 32); err == nil {
			c.LLMTemperature = float32(v)
		}
	}
	envInt("LLM_MAX_TOKENS", &c.LLMMaxTokens)
	envInt("LLM_TIMEOUT_SECONDS", &c.LLMTimeoutSeconds)

	envString("DEEPSEEK_API_KEY", &c.DeepSeekAPIKey)
	envString("OPENAI_API_KEY", &c.OpenAIAPIKey)
	envString("ANTHROPIC_API_KEY", &c.AnthropicAPIKey)
	envString("GEMINI_API_KEY", &c.GeminiAPIKey)

	envString("PRICE_SOURCE", &c.PriceSource)
	envString("FUNDAMENTALS_SOURCE", &c.FundamentalsSource)
	envString("NEWS_SOURCE", &c.NewsSource)
	envInt("NEWS_LIMIT", &c.NewsLimit)
	envString("FINNHUB_API_KEY", &c.FinnhubAPIKey)

	envString("LONGPORT_APP_KEY", &c.LongportAppKey)
	envString("LONGPORT_APP_SECRET", &c.LongportAppSecret)
	envString("LONGPORT_ACCESS_TOKEN", &c.LongportAccessToken)

	envString("RUN_STORE", &c.RunStore)
	envString("SQLITE_PATH", &c.SQLitePath)
	envString("STRATEGIES_FILE", &c.StrategiesFile)
	envBool("CROSS_ROLE_CONFIDENCE", &c.CrossRoleConfidence)

	envBool("CACHE_ENABLED", &c.CacheEnabled)
	envBool("CORTEX_DEBUG", &c.Debug)
	envString("LOG_LEVEL", &c.LogLevel)
	envBool("EINO_DEBUG_ENABLED", &c.EinoDebugEnabled)
	envInt("EINO_DEBUG_PORT", &c.EinoDebugPort)

	envString("LISTEN_ADDR", &c.ListenAddr)
	envString("WATCH_SCHEDULE", &c.WatchSchedule)
	envString("WATCH_STRATEGY", &c.WatchStrategy)
	envString("WATCH_HORIZON", &c.WatchHorizon)
	if val := os.Getenv("WATCHLIST"); val != "" {
		c.Watchlist = splitList(val)
	}
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.RunsDir, c.DataDir, c.DataCacheDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			*dst = v
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if v, err := strconv.ParseBool(val); err == nil {
			*dst = v
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
