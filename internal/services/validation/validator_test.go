package validation

import (
	"errors"
	"testing"
	"time"

	"CryptoCast/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

func series(closes ...decimal.NullDecimal) *models.RawSeries {
	s := &models.RawSeries{Symbol: "BTCUSDT", Interval: "1d", Fields: append([]string(nil), models.KlineFields...)}
	for i, c := range closes {
		s.Candles = append(s.Candles, models.RawCandle{
			OpenTime: time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Open:     dec(10), High: dec(12), Low: dec(9),
			Close:  c,
			Volume: dec(100),
		})
	}
	return s
}

func TestValidateRejectsEmpty(t *testing.T) {
	_, err := New(nil).Validate(&models.RawSeries{Fields: models.KlineFields})
	require.ErrorIs(t, err, models.ErrDataQuality)
	_, err = New(nil).Validate(nil)
	require.ErrorIs(t, err, models.ErrDataQuality)
}

func TestValidateNamesMissingFields(t *testing.T) {
	s := series(dec(1))
	s.Fields = []string{models.FieldOpenTime, models.FieldOpen, models.FieldClose}

	_, err := New(nil).Validate(s)
	require.ErrorIs(t, err, models.ErrDataQuality)

	var dq *models.DataQualityError
	require.True(t, errors.As(err, &dq))
	require.Equal(t, []string{models.FieldHigh, models.FieldLow, models.FieldVolume}, dq.Missing)
	require.Contains(t, err.Error(), "high, low, volume")
}

func TestValidateRejectsNegativePrice(t *testing.T) {
	_, err := New(nil).Validate(series(dec(1), dec(-0.5), dec(2)))
	var dq *models.DataQualityError
	require.True(t, errors.As(err, &dq))
	require.Equal(t, models.FieldClose, dq.Column)
}

func TestValidateForwardFillsBeforeNegativeCheck(t *testing.T) {
	s := series(dec(5), decimal.NullDecimal{}, decimal.NullDecimal{}, dec(7))
	out, err := New(nil).Validate(s)
	require.NoError(t, err)
	require.Same(t, s, out)
	require.True(t, out.Candles[1].Close.Valid)
	require.Equal(t, "5", out.Candles[2].Close.Decimal.String())
}

func TestValidateKeepsLeadingNull(t *testing.T) {
	out, err := New(nil).Validate(series(decimal.NullDecimal{}, dec(3)))
	require.NoError(t, err)
	require.False(t, out.Candles[0].Close.Valid)
}
