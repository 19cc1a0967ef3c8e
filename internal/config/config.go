package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const appName = "datachat"

// ServerConfig defines HTTP server configuration
type ServerConfig struct {
	Addr            string `json:"addr"`
	MaxUploadSizeMB int    `json:"maxUploadSizeMB"`
}

// OpenAIConfig defines downstream model configuration
type OpenAIConfig struct {
	APIKey    string `json:"apiKey"`
	Model     string `json:"model"`
	MaxTokens int    `json:"maxTokens"`
}

// WindowConfig defines sliding window budgets for context selection
type WindowConfig struct {
	Enabled       bool `json:"enabled"`       // Enable sliding window
	MaxMessages   int  `json:"maxMessages"`   // Maximum messages to keep in context
	PreserveFirst int  `json:"preserveFirst"` // Always keep first N messages
	TokenLimit    int  `json:"tokenLimit"`    // Soft token limit for the window
}

// CacheConfig defines response cache configuration
type CacheConfig struct {
	Enabled    bool `json:"enabled"`
	MaxEntries int  `json:"maxEntries"` // Maximum cached responses
}

// AnalyzerConfig defines tabular query analysis configuration
type AnalyzerConfig struct {
	MaxRows    int           `json:"maxRows"`    // Row threshold before sampling kicks in
	SampleSeed int64         `json:"sampleSeed"` // Seed for reproducible sampling
	Timeout    time.Duration `json:"timeout"`    // Upper bound on an AI analysis call
	MaxTokens  int           `json:"maxTokens"`  // Output token cap for AI analysis
}

// StoreConfig defines persistence configuration
type StoreConfig struct {
	Path string `json:"path"` // SQLite database path
}

// Config is the main configuration structure for the application
type Config struct {
	Server   ServerConfig   `json:"server"`
	OpenAI   OpenAIConfig   `json:"openai"`
	Window   WindowConfig   `json:"window"`
	Cache    CacheConfig    `json:"cache"`
	Analyzer AnalyzerConfig `json:"analyzer"`
	Store    StoreConfig    `json:"store"`
	Debug    bool           `json:"debug"`
}

// Load reads configuration from file and environment. Invalid budget
// values are clamped rather than rejected; a missing config file is not
// an error.
func Load(configPath string, debug bool) (*Config, error) {
	v := viper.New()

	v.SetConfigName(appName)
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/" + appName)
	}
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			MaxUploadSizeMB: v.GetInt("server.maxUploadSizeMB"),
		},
		OpenAI: OpenAIConfig{
			APIKey:    v.GetString("openai.apiKey"),
			Model:     v.GetString("openai.model"),
			MaxTokens: v.GetInt("openai.maxTokens"),
		},
		Window: WindowConfig{
			Enabled:       v.GetBool("window.enabled"),
			MaxMessages:   v.GetInt("window.maxMessages"),
			PreserveFirst: v.GetInt("window.preserveFirst"),
			TokenLimit:    v.GetInt("window.tokenLimit"),
		},
		Cache: CacheConfig{
			Enabled:    v.GetBool("cache.enabled"),
			MaxEntries: v.GetInt("cache.maxEntries"),
		},
		Analyzer: AnalyzerConfig{
			MaxRows:    v.GetInt("analyzer.maxRows"),
			SampleSeed: v.GetInt64("analyzer.sampleSeed"),
			Timeout:    v.GetDuration("analyzer.timeout"),
			MaxTokens:  v.GetInt("analyzer.maxTokens"),
		},
		Store: StoreConfig{
			Path: v.GetString("store.path"),
		},
		Debug: debug,
	}

	// Fall back to the conventional env var when no prefixed key is set.
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = v.GetString("OPENAI_API_KEY")
	}

	cfg.clamp()
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.maxUploadSizeMB", 10)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.maxTokens", 1024)

	v.SetDefault("window.enabled", true)
	v.SetDefault("window.maxMessages", 20)
	v.SetDefault("window.preserveFirst", 2)
	v.SetDefault("window.tokenLimit", 100000)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.maxEntries", 1000)

	v.SetDefault("analyzer.maxRows", 10000)
	v.SetDefault("analyzer.sampleSeed", 42)
	v.SetDefault("analyzer.timeout", 30*time.Second)
	v.SetDefault("analyzer.maxTokens", 500)

	v.SetDefault("store.path", appName+".db")
}

// clamp corrects invalid budget configuration in place. Configuration
// errors are never surfaced as failures.
func (c *Config) clamp() {
	if c.Window.MaxMessages < 0 {
		c.Window.MaxMessages = 0
	}
	if c.Window.PreserveFirst < 0 {
		c.Window.PreserveFirst = 0
	}
	if c.Window.MaxMessages > 0 && c.Window.PreserveFirst >= c.Window.MaxMessages {
		c.Window.PreserveFirst = c.Window.MaxMessages - 1
	}
	if c.Window.TokenLimit < 0 {
		c.Window.TokenLimit = 0
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 1000
	}
	if c.Analyzer.MaxRows <= 0 {
		c.Analyzer.MaxRows = 10000
	}
	if c.Analyzer.Timeout <= 0 {
		c.Analyzer.Timeout = 30 * time.Second
	}
}
