package repository

import (
	"time"

	"CryptoCast/internal/domain/models"
	"CryptoCast/pkg/util"

	"github.com/shopspring/decimal"
)

// candleRow is the parquet layout of one raw kline. Decimals keep their
// exchange string form; nil means null upstream.
type candleRow struct {
	Symbol        string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Interval      string  `parquet:"name=interval, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	OpenTime      int64   `parquet:"name=open_time, type=INT64, encoding=DELTA_BINARY_PACKED"`
	CloseTime     int64   `parquet:"name=close_time, type=INT64, encoding=DELTA_BINARY_PACKED"`
	Open          *string `parquet:"name=open, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	High          *string `parquet:"name=high, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Low           *string `parquet:"name=low, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Close         *string `parquet:"name=close, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Volume        *string `parquet:"name=volume, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	QuoteVolume   *string `parquet:"name=quote_volume, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	TradeCount    int64   `parquet:"name=trade_count, type=INT64"`
	TakerBuyBase  *string `parquet:"name=taker_buy_base, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	TakerBuyQuote *string `parquet:"name=taker_buy_quote, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

// exampleRow is one row of a feature dataset.
type exampleRow struct {
	Date      string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp int64    `parquet:"name=timestamp, type=INT64, encoding=DELTA_BINARY_PACKED"`
	Value     float64  `parquet:"name=value, type=DOUBLE, encoding=PLAIN"`
	Regressor *float64 `parquet:"name=volume, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// predictionRow is one forecast day.
type predictionRow struct {
	Date      string  `parquet:"name=prediction_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp int64   `parquet:"name=timestamp, type=INT64, encoding=DELTA_BINARY_PACKED"`
	Predicted float64 `parquet:"name=predicted_price, type=DOUBLE, encoding=PLAIN"`
	Lower     float64 `parquet:"name=predicted_price_lower, type=DOUBLE, encoding=PLAIN"`
	Upper     float64 `parquet:"name=predicted_price_upper, type=DOUBLE, encoding=PLAIN"`
	Trend     float64 `parquet:"name=trend, type=DOUBLE, encoding=PLAIN"`
}

func decString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func stringDec(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func toCandleRow(symbol, interval string, c models.RawCandle) candleRow {
	return candleRow{
		Symbol:        symbol,
		Interval:      interval,
		OpenTime:      c.OpenTime.UnixMilli(),
		CloseTime:     c.CloseTime.UnixMilli(),
		Open:          decString(c.Open),
		High:          decString(c.High),
		Low:           decString(c.Low),
		Close:         decString(c.Close),
		Volume:        decString(c.Volume),
		QuoteVolume:   decString(c.QuoteVolume),
		TradeCount:    c.TradeCount,
		TakerBuyBase:  decString(c.TakerBuyBase),
		TakerBuyQuote: decString(c.TakerBuyQuote),
	}
}

func (r candleRow) candle() (models.RawCandle, error) {
	c := models.RawCandle{
		OpenTime:   util.FromUnixMilli(r.OpenTime),
		CloseTime:  util.FromUnixMilli(r.CloseTime),
		TradeCount: r.TradeCount,
	}
	cols := []struct {
		name string
		src  *string
	}{
		{models.FieldOpen, r.Open},
		{models.FieldHigh, r.High},
		{models.FieldLow, r.Low},
		{models.FieldClose, r.Close},
		{models.FieldVolume, r.Volume},
		{models.FieldQuoteVolume, r.QuoteVolume},
		{models.FieldTakerBuyBase, r.TakerBuyBase},
		{models.FieldTakerBuyQuote, r.TakerBuyQuote},
	}
	for _, col := range cols {
		d, err := stringDec(col.src)
		if err != nil {
			return c, err
		}
		c.SetNumeric(col.name, d)
	}
	return c, nil
}

func toExampleRow(ex models.TrainingExample, withRegressor bool) exampleRow {
	row := exampleRow{
		Date:      util.FormatDay(ex.Date),
		Timestamp: ex.Date.UnixMilli(),
		Value:     ex.Value,
	}
	if withRegressor {
		v := ex.Regressor
		row.Regressor = &v
	}
	return row
}

func (r exampleRow) example() models.TrainingExample {
	ex := models.TrainingExample{Date: util.FromUnixMilli(r.Timestamp), Value: r.Value}
	if r.Regressor != nil {
		ex.Regressor = *r.Regressor
	}
	return ex
}

func toPredictionRow(f models.ForecastRow) predictionRow {
	return predictionRow{
		Date:      util.FormatDay(f.Date),
		Timestamp: f.Date.UnixMilli(),
		Predicted: f.Predicted,
		Lower:     f.Lower,
		Upper:     f.Upper,
		Trend:     f.Trend,
	}
}

func (r predictionRow) forecastRow() models.ForecastRow {
	return models.ForecastRow{
		Date:      time.UnixMilli(r.Timestamp).UTC(),
		Predicted: r.Predicted,
		Lower:     r.Lower,
		Upper:     r.Upper,
		Trend:     r.Trend,
	}
}
