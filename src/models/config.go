package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	LogLevel   string            `yaml:"log_level"`
	Storage    MStorageConfig    `yaml:"storage"`
	Network    MNetworkConfig    `yaml:"network"`
	Bus        MBusConfig        `yaml:"bus"`
	Webhooks   MWebhookConfig    `yaml:"webhooks"`
	Brokers    MBrokersConfig    `yaml:"brokers"`
	MarketData MMarketDataConfig `yaml:"market_data"`
}

type MStorageConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MNetworkConfig struct {
	RequestTimeout int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"retries"`
	UserAgent      string `yaml:"user_agent"`
}

type MBusConfig struct {
	DefaultMaxSize int            `yaml:"default_max_size"`
	Topics         []MTopicConfig `yaml:"topics"`
}

type MTopicConfig struct {
	Name       string `yaml:"name"`
	MaxSize    int    `yaml:"max_size"`
	IntervalMs int    `yaml:"interval_ms"`
	BatchSize  int    `yaml:"batch_size"`
}

type MWebhookConfig struct {
	// Tokens maps a webhook token to its owner name. Empty map accepts any
	// token (the token still tags the signal source).
	Tokens map[string]string `yaml:"tokens"`
}

type MBrokersConfig struct {
	AlpacaBaseURL      string `yaml:"alpaca_base_url"`
	TradeHybridBaseURL string `yaml:"tradehybrid_base_url"`
	NinjaTraderBaseURL string `yaml:"ninjatrader_base_url"`
}

type MMarketDataConfig struct {
	TradingViewBaseURL string `yaml:"tradingview_base_url"`
	CMEGroupBaseURL    string `yaml:"cmegroup_base_url"`
}
