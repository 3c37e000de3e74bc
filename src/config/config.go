package config

import (
	"fmt"
	"os"

	"mcp/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	if c.Storage.Enabled {
		if c.Storage.DBType == "" {
			return fmt.Errorf("database type cannot be empty")
		}
		if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
		if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
		if c.Storage.RetentionDays <= 0 {
			return fmt.Errorf("retention days must be greater than 0")
		}
	}

	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if c.Bus.DefaultMaxSize <= 0 {
		return fmt.Errorf("bus default_max_size must be greater than 0")
	}
	if len(c.Bus.Topics) == 0 {
		return fmt.Errorf("at least one bus topic must be configured")
	}
	for i, t := range c.Bus.Topics {
		if t.Name == "" {
			return fmt.Errorf("topic %d must have a name", i)
		}
		if t.MaxSize <= 0 {
			return fmt.Errorf("topic '%s' max_size must be greater than 0", t.Name)
		}
		if t.IntervalMs <= 0 {
			return fmt.Errorf("topic '%s' interval_ms must be greater than 0", t.Name)
		}
		if t.BatchSize <= 0 {
			return fmt.Errorf("topic '%s' batch_size must be greater than 0", t.Name)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------
// Adapter credential resolution
//
// Environment variables select which adapters auto-register at startup. An
// absent credential set skips that adapter, never a fatal error.
// -----------------------------------------------------------------------------

// BrokerCredentials returns one credential set per broker whose environment
// variables are present.
func (c *Config) BrokerCredentials() []models.MBrokerCredentials {
	var creds []models.MBrokerCredentials

	if key, secret := os.Getenv("ALPACA_API_KEY"), os.Getenv("ALPACA_API_SECRET"); key != "" && secret != "" {
		creds = append(creds, models.MBrokerCredentials{
			ID:      "alpaca",
			APIKey:  key,
			Secret:  secret,
			BaseURL: c.Brokers.AlpacaBaseURL,
		})
	}

	if token := os.Getenv("TRADEHYBRID_API_TOKEN"); token != "" {
		creds = append(creds, models.MBrokerCredentials{
			ID:      "tradehybrid",
			APIKey:  token,
			BaseURL: c.Brokers.TradeHybridBaseURL,
		})
	}

	if key := os.Getenv("NINJATRADER_API_KEY"); key != "" {
		creds = append(creds, models.MBrokerCredentials{
			ID:      "ninjatrader",
			APIKey:  key,
			BaseURL: c.Brokers.NinjaTraderBaseURL,
		})
	}

	return creds
}

// -----------------------------------------------------------------------------

// ProviderCredentials returns one credential set per market-data provider
// whose environment variables are present.
func (c *Config) ProviderCredentials() []models.MProviderCredentials {
	var creds []models.MProviderCredentials

	if token := os.Getenv("TRADINGVIEW_API_TOKEN"); token != "" {
		creds = append(creds, models.MProviderCredentials{
			ID:      "tradingview",
			APIKey:  token,
			BaseURL: c.MarketData.TradingViewBaseURL,
		})
	}

	if id, secret := os.Getenv("CME_CLIENT_ID"), os.Getenv("CME_CLIENT_SECRET"); id != "" && secret != "" {
		creds = append(creds, models.MProviderCredentials{
			ID:           "cmegroup",
			ClientID:     id,
			ClientSecret: secret,
			BaseURL:      c.MarketData.CMEGroupBaseURL,
		})
	}

	return creds
}
