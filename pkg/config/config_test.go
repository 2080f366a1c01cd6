package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)
	require.Equal(t, "BTCUSDT", c.Binance.Symbol)
	require.Equal(t, 1000, c.Binance.PageLimit)
	require.Equal(t, "multiplicative", c.Model.SeasonalityMode)
	require.Equal(t, 30, c.Model.TestSizeDays)
	require.Equal(t, 30, c.Forecast.DaysAhead)
	require.Equal(t, 2*time.Minute, c.Binance.FetchTimeout)
	require.Equal(t, "cryptocast", c.Redis.Prefix)
}

func TestParseDurationsAndSections(t *testing.T) {
	c, err := Parse([]byte(`
binance:
  symbol: ETHUSDT
  retry_backoff: 250ms
model:
  seasonality_mode: additive
  yearly_seasonality: true
  test_size_days: 14
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
`))
	require.NoError(t, err)
	require.Equal(t, "ETHUSDT", c.Binance.Symbol)
	require.Equal(t, 250*time.Millisecond, c.Binance.RetryBackoff)
	require.Equal(t, "additive", c.Model.SeasonalityMode)
	require.True(t, c.Model.YearlySeasonality)
	require.Len(t, c.Kafka.Brokers, 2)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"mode":        "model:\n  seasonality_mode: cubic\n",
		"page limit":  "binance:\n  page_limit: 5000\n",
		"price col":   "model:\n  price_column: vwap\n",
		"kafka":       "kafka:\n  enabled: true\n",
		"queue":       "queue:\n  enabled: true\n",
		"days ahead":  "forecast:\n  days_ahead: 400\n",
		"cp range":    "model:\n  changepoint_range: 1.5\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	c, err := Parse([]byte("{}"))
	require.NoError(t, err)

	env := map[string]string{
		"CRYPTOCAST_PORT":  "9090",
		"BINANCE_BASE_URL": "http://localhost:1234",
		"REDIS_ADDR":       "redis:6380",
		"KAFKA_BROKERS":    "a:9092,b:9092",
		"ARTIFACTS_DIR":    "/tmp/art",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	require.Equal(t, 9090, c.Server.Port)
	require.Equal(t, "http://localhost:1234", c.Binance.BaseURL)
	require.Equal(t, "redis", c.Redis.Host)
	require.Equal(t, 6380, c.Redis.Port)
	require.True(t, c.Redis.Enabled)
	require.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	require.Equal(t, "/tmp/art", c.Artifacts.Dir)
	require.NoError(t, c.Validate())
}

func TestShippedConfigLoads(t *testing.T) {
	c, err := Load("../../config/config.yaml")
	require.NoError(t, err)
	require.Equal(t, "close", c.Model.PriceColumn)
	require.True(t, c.Model.AddVolumeRegressor)
	require.False(t, c.Forecast.TrainIfMissing)
	require.Equal(t, 30*time.Minute, c.Forecast.RunTimeout)
	require.Equal(t, "0 15 0 * * *", c.Scheduler.RetrainCron)
}
