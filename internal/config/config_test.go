package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/finsight-lab/finsight/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/finsight-lab/finsight/internal/gateway"
	"github.com/finsight-lab/finsight/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) TestParseConfig() {
	config, err := ParseConfig([]byte(`
provider:
  type: deepseek
  api_key: sk-test
  model: deepseek-chat
  timeout_seconds: 30
  supports_tools: true
data:
  database_path: /tmp/finsight.db
  price_bars_path: /data/bars.parquet
  instruments_path: /data/instruments.csv
  fundamentals_path: /data/fundamentals.parquet
screener:
  parallelism: 4
  warmup_days: 90
cache_capacity: 128
`))
	suite.Require().NoError(err)

	suite.Equal(gateway.ProviderTypeDeepSeek, config.Provider.Type)
	suite.Equal(30, config.Provider.TimeoutSeconds)
	suite.True(config.Provider.SupportsTools)
	suite.Equal("/data/bars.parquet", config.Data.PriceBarsPath)
	suite.Equal(4, config.Screener.Parallelism)
	suite.Equal(90, config.Screener.WarmupDays)
	suite.Equal(128, config.CacheCapacity)
}

func (suite *ConfigTestSuite) TestParseConfigAppliesDefaults() {
	config, err := ParseConfig([]byte(`
provider:
  type: openai
  endpoint: https://api.openai.com/v1
  model: gpt-4o-mini
  supports_tools: true
data:
  price_bars_path: /data/bars.parquet
  instruments_path: /data/instruments.csv
`))
	suite.Require().NoError(err)

	suite.Equal(60, config.Provider.TimeoutSeconds)
	suite.Equal(200, config.Compiler.MaxLimit)
	suite.Equal(8, config.Screener.Parallelism)
	suite.Equal(120, config.Screener.WarmupDays)
	suite.Equal(commission_fee.BrokerFixedRate, config.Backtest.Broker)
	suite.Equal(256, config.CacheCapacity)
}

func (suite *ConfigTestSuite) TestParseConfigRejectsBadInput() {
	testCases := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown provider type",
			yaml: "provider:\n  type: bard\n  model: m\n",
		},
		{
			name: "negative timeout",
			yaml: "provider:\n  type: openai\n  model: m\n  timeout_seconds: -5\n",
		},
		{
			name: "bad endpoint url",
			yaml: "provider:\n  type: openai\n  model: m\n  endpoint: not-a-url\n",
		},
		{
			name: "unknown broker",
			yaml: "provider:\n  type: openai\n  model: m\nbacktest:\n  broker: robinhood\n",
		},
		{
			name: "not yaml",
			yaml: "{provider: [",
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			_, err := ParseConfig([]byte(tc.yaml))
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration), "got %v", err)
		})
	}
}

func (suite *ConfigTestSuite) TestProviderConfigGateway() {
	provider := ProviderConfig{
		Type:           gateway.ProviderTypeOpenRouter,
		Endpoint:       "https://openrouter.ai/api/v1",
		APIKey:         "key",
		Model:          "deepseek/deepseek-chat",
		TimeoutSeconds: 45,
		SupportsTools:  true,
		Headers:        map[string]string{"X-Custom": "1"},
	}

	converted := provider.Gateway()
	suite.Equal(45*time.Second, converted.Timeout)
	suite.Equal("deepseek/deepseek-chat", converted.Model)
	suite.Equal("1", converted.Headers["X-Custom"])
}

func (suite *ConfigTestSuite) TestLoadConfig() {
	path := filepath.Join(suite.T().TempDir(), "config.yaml")
	content := "provider:\n  type: local\n  endpoint: http://localhost:8080/v1\n  model: qwen2.5\n" +
		"data:\n  price_bars_path: /data/bars.parquet\n  instruments_path: /data/instruments.csv\n"
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	suite.Require().NoError(err)
	suite.Equal(gateway.ProviderTypeLocal, config.Provider.Type)

	_, err = LoadConfig(filepath.Join(suite.T().TempDir(), "missing.yaml"))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
