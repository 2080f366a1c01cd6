package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logger struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logger"`
	Binance struct {
		BaseURL          string        `yaml:"base_url"`
		Symbol           string        `yaml:"symbol"`
		Interval         string        `yaml:"interval"`
		YearsOfData      int           `yaml:"years_of_data"`
		PageLimit        int           `yaml:"page_limit"`
		MaxRetries       int           `yaml:"max_retries"`
		RetryBackoff     time.Duration `yaml:"retry_backoff"`
		RequestTimeout   time.Duration `yaml:"request_timeout"`
		FetchTimeout     time.Duration `yaml:"fetch_timeout"`
		RateCapacity     float64       `yaml:"rate_capacity"`
		RateRefillPerSec float64       `yaml:"rate_refill_per_sec"`
	} `yaml:"binance"`
	Model struct {
		SeasonalityMode       string  `yaml:"seasonality_mode"`
		YearlySeasonality     bool    `yaml:"yearly_seasonality"`
		WeeklySeasonality     bool    `yaml:"weekly_seasonality"`
		DailySeasonality      bool    `yaml:"daily_seasonality"`
		ChangepointPriorScale float64 `yaml:"changepoint_prior_scale"`
		SeasonalityPriorScale float64 `yaml:"seasonality_prior_scale"`
		ChangepointRange      float64 `yaml:"changepoint_range"`
		NChangepoints         int     `yaml:"n_changepoints"`
		IntervalWidth         float64 `yaml:"interval_width"`
		AddVolumeRegressor    bool    `yaml:"add_volume_regressor"`
		PriceColumn           string  `yaml:"price_column"`
		TestSizeDays          int     `yaml:"test_size_days"`
	} `yaml:"model"`
	Forecast struct {
		DaysAhead      int           `yaml:"days_ahead"`
		CacheTTL       time.Duration `yaml:"cache_ttl"`
		TrainIfMissing bool          `yaml:"train_if_missing"`
		RunTimeout     time.Duration `yaml:"run_timeout"`
	} `yaml:"forecast"`
	Artifacts struct {
		Dir string `yaml:"dir"`
	} `yaml:"artifacts"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host"`
		Port     int           `yaml:"port"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix"`
		LockTTL  time.Duration `yaml:"lock_ttl"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		ForecastTopic string   `yaml:"forecast_topic"`
		LogTopic      string   `yaml:"log_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Scheduler struct {
		Enabled     bool   `yaml:"enabled"`
		RetrainCron string `yaml:"retrain_cron"`
	} `yaml:"scheduler"`
	History struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"history"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from the environment lookup function.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("CRYPTOCAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("CRYPTOCAST_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := getenv("CRYPTOCAST_LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := getenv("BINANCE_BASE_URL"); v != "" {
		c.Binance.BaseURL = v
	}
	if v := getenv("BINANCE_SYMBOL"); v != "" {
		c.Binance.Symbol = strings.ToUpper(v)
	}
	if v := getenv("ARTIFACTS_DIR"); v != "" {
		c.Artifacts.Dir = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			host = v
		} else if p, err := strconv.Atoi(port); err == nil {
			c.Redis.Port = p
		}
		c.Redis.Host = host
		c.Redis.Enabled = true
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
}

// ApplyDefaults fills zero values with service defaults.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "console"
	}
	if c.Logger.Output == "" {
		c.Logger.Output = "stdout"
	}
	if c.Binance.BaseURL == "" {
		c.Binance.BaseURL = "https://api.binance.com"
	}
	if c.Binance.Symbol == "" {
		c.Binance.Symbol = "BTCUSDT"
	}
	if c.Binance.Interval == "" {
		c.Binance.Interval = "1d"
	}
	if c.Binance.YearsOfData == 0 {
		c.Binance.YearsOfData = 5
	}
	if c.Binance.PageLimit == 0 {
		c.Binance.PageLimit = 1000
	}
	if c.Binance.MaxRetries == 0 {
		c.Binance.MaxRetries = 3
	}
	if c.Binance.RetryBackoff == 0 {
		c.Binance.RetryBackoff = 500 * time.Millisecond
	}
	if c.Binance.RequestTimeout == 0 {
		c.Binance.RequestTimeout = 15 * time.Second
	}
	if c.Binance.FetchTimeout == 0 {
		c.Binance.FetchTimeout = 2 * time.Minute
	}
	if c.Binance.RateCapacity == 0 {
		c.Binance.RateCapacity = 10
	}
	if c.Binance.RateRefillPerSec == 0 {
		c.Binance.RateRefillPerSec = 5
	}
	if c.Model.SeasonalityMode == "" {
		c.Model.SeasonalityMode = "multiplicative"
	}
	if c.Model.ChangepointPriorScale == 0 {
		c.Model.ChangepointPriorScale = 0.05
	}
	if c.Model.SeasonalityPriorScale == 0 {
		c.Model.SeasonalityPriorScale = 10
	}
	if c.Model.ChangepointRange == 0 {
		c.Model.ChangepointRange = 0.9
	}
	if c.Model.NChangepoints == 0 {
		c.Model.NChangepoints = 25
	}
	if c.Model.IntervalWidth == 0 {
		c.Model.IntervalWidth = 0.8
	}
	if c.Model.PriceColumn == "" {
		c.Model.PriceColumn = "close"
	}
	if c.Model.TestSizeDays == 0 {
		c.Model.TestSizeDays = 30
	}
	if c.Forecast.DaysAhead == 0 {
		c.Forecast.DaysAhead = 30
	}
	if c.Forecast.CacheTTL == 0 {
		c.Forecast.CacheTTL = 10 * time.Minute
	}
	if c.Forecast.RunTimeout == 0 {
		c.Forecast.RunTimeout = 30 * time.Minute
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "data"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "cryptocast"
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 30 * time.Minute
	}
	if c.Kafka.ForecastTopic == "" {
		c.Kafka.ForecastTopic = "cryptocast.forecasts"
	}
	if c.Kafka.LogTopic == "" {
		c.Kafka.LogTopic = "cryptocast.logs"
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 1
	}
	if c.Queue.RetryDelay == 0 {
		c.Queue.RetryDelay = 30 * time.Second
	}
	if c.Scheduler.RetrainCron == "" {
		c.Scheduler.RetrainCron = "0 15 0 * * *"
	}
	if c.History.SQLitePath == "" {
		c.History.SQLitePath = "data/runs.db"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Binance.Symbol == "" {
		return fmt.Errorf("binance.symbol is required")
	}
	if c.Binance.PageLimit < 1 || c.Binance.PageLimit > 1000 {
		return fmt.Errorf("binance.page_limit must be in [1, 1000], got %d", c.Binance.PageLimit)
	}
	if c.Binance.YearsOfData < 1 {
		return fmt.Errorf("binance.years_of_data must be positive")
	}
	if c.Model.SeasonalityMode != "additive" && c.Model.SeasonalityMode != "multiplicative" {
		return fmt.Errorf("model.seasonality_mode must be 'additive' or 'multiplicative', got '%s'", c.Model.SeasonalityMode)
	}
	if c.Model.ChangepointRange <= 0 || c.Model.ChangepointRange > 1 {
		return fmt.Errorf("model.changepoint_range must be in (0, 1]")
	}
	if c.Model.IntervalWidth <= 0 || c.Model.IntervalWidth >= 1 {
		return fmt.Errorf("model.interval_width must be in (0, 1)")
	}
	switch c.Model.PriceColumn {
	case "open", "high", "low", "close":
	default:
		return fmt.Errorf("model.price_column must be one of open, high, low, close")
	}
	if c.Model.TestSizeDays < 1 {
		return fmt.Errorf("model.test_size_days must be positive")
	}
	if c.Forecast.DaysAhead < 1 || c.Forecast.DaysAhead > 365 {
		return fmt.Errorf("forecast.days_ahead must be in [1, 365]")
	}
	if c.Forecast.RunTimeout < 0 {
		return fmt.Errorf("forecast.run_timeout cannot be negative")
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue requires redis to be enabled")
	}
	return nil
}
