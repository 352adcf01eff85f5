// Package config loads and validates the application configuration.
package config

import (
	"os"
	"time"

	"github.com/finsight-lab/finsight/internal/backtest/engine/engine_v1"
	"github.com/finsight-lab/finsight/internal/compiler"
	"github.com/finsight-lab/finsight/internal/gateway"
	"github.com/finsight-lab/finsight/internal/market"
	"github.com/finsight-lab/finsight/internal/screener"
	"github.com/finsight-lab/finsight/pkg/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ProviderConfig is the language-model provider section. Timeout is in
// seconds because yaml carries it as a plain integer.
type ProviderConfig struct {
	Type           gateway.ProviderType `yaml:"type" validate:"required,oneof=openai deepseek openrouter local"`
	Endpoint       string               `yaml:"endpoint" validate:"omitempty,url"`
	APIKey         string               `yaml:"api_key"`
	Model          string               `yaml:"model"`
	TimeoutSeconds int                  `yaml:"timeout_seconds" validate:"gt=0"`
	SupportsTools  bool                 `yaml:"supports_tools"`
	Headers        map[string]string    `yaml:"headers,omitempty"`
}

// Gateway converts the section into the gateway's provider configuration.
func (p ProviderConfig) Gateway() gateway.ProviderConfig {
	return gateway.ProviderConfig{
		Endpoint:      p.Endpoint,
		APIKey:        p.APIKey,
		Model:         p.Model,
		Timeout:       time.Duration(p.TimeoutSeconds) * time.Second,
		SupportsTools: p.SupportsTools,
		Headers:       p.Headers,
	}
}

// AppConfig is the full application configuration.
type AppConfig struct {
	Provider ProviderConfig      `yaml:"provider" validate:"required"`
	Data     market.DuckDBConfig `yaml:"data"`
	Compiler compiler.Config     `yaml:"compiler"`
	Screener screener.Config     `yaml:"screener"`
	Backtest engine_v1.Config    `yaml:"backtest"`
	// CacheCapacity bounds the shared indicator series cache.
	CacheCapacity int `yaml:"cache_capacity" validate:"gte=0"`
}

// applyDefaults fills zero-valued sections with their component defaults.
func (c *AppConfig) applyDefaults() {
	if c.Provider.TimeoutSeconds == 0 {
		c.Provider.TimeoutSeconds = 60
	}

	if c.Compiler.MaxLimit == 0 {
		c.Compiler = compiler.DefaultConfig()
	}

	if c.Screener.Parallelism == 0 && c.Screener.WarmupDays == 0 {
		c.Screener = screener.DefaultConfig()
	}

	if c.Backtest.Broker == "" {
		c.Backtest = engine_v1.DefaultConfig()
	}

	if c.CacheCapacity == 0 {
		c.CacheCapacity = 256
	}
}

// Validate validates the configuration.
func (c *AppConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid application config", err)
	}

	return nil
}

// ParseConfig parses yaml content, applies defaults and validates.
func ParseConfig(data []byte) (*AppConfig, error) {
	var config AppConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config yaml", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return ParseConfig(data)
}
