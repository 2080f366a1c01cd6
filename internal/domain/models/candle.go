package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Raw kline field names as they appear in the upstream schema.
const (
	FieldOpenTime      = "open_time"
	FieldOpen          = "open"
	FieldHigh          = "high"
	FieldLow           = "low"
	FieldClose         = "close"
	FieldVolume        = "volume"
	FieldCloseTime     = "close_time"
	FieldQuoteVolume   = "quote_volume"
	FieldTradeCount    = "trade_count"
	FieldTakerBuyBase  = "taker_buy_base"
	FieldTakerBuyQuote = "taker_buy_quote"
)

// KlineFields lists every column of a full upstream kline row, in wire order.
var KlineFields = []string{
	FieldOpenTime, FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume,
	FieldCloseTime, FieldQuoteVolume, FieldTradeCount, FieldTakerBuyBase, FieldTakerBuyQuote,
}

// RequiredFields must be present for a raw series to be usable.
var RequiredFields = []string{FieldOpenTime, FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}

// PriceFields are the OHLC columns that must never be negative.
var PriceFields = []string{FieldOpen, FieldHigh, FieldLow, FieldClose}

// RawCandle represents one kline. Numeric values keep the exchange's decimal
// representation; an invalid NullDecimal means the value was null upstream.
type RawCandle struct {
	OpenTime      time.Time
	CloseTime     time.Time
	Open          decimal.NullDecimal
	High          decimal.NullDecimal
	Low           decimal.NullDecimal
	Close         decimal.NullDecimal
	Volume        decimal.NullDecimal
	QuoteVolume   decimal.NullDecimal
	TradeCount    int64
	TakerBuyBase  decimal.NullDecimal
	TakerBuyQuote decimal.NullDecimal
}

// Numeric returns the value of a numeric column by field name.
func (c *RawCandle) Numeric(field string) (decimal.NullDecimal, bool) {
	switch field {
	case FieldOpen:
		return c.Open, true
	case FieldHigh:
		return c.High, true
	case FieldLow:
		return c.Low, true
	case FieldClose:
		return c.Close, true
	case FieldVolume:
		return c.Volume, true
	case FieldQuoteVolume:
		return c.QuoteVolume, true
	case FieldTakerBuyBase:
		return c.TakerBuyBase, true
	case FieldTakerBuyQuote:
		return c.TakerBuyQuote, true
	default:
		return decimal.NullDecimal{}, false
	}
}

// SetNumeric overwrites a numeric column by field name.
func (c *RawCandle) SetNumeric(field string, v decimal.NullDecimal) bool {
	switch field {
	case FieldOpen:
		c.Open = v
	case FieldHigh:
		c.High = v
	case FieldLow:
		c.Low = v
	case FieldClose:
		c.Close = v
	case FieldVolume:
		c.Volume = v
	case FieldQuoteVolume:
		c.QuoteVolume = v
	case FieldTakerBuyBase:
		c.TakerBuyBase = v
	case FieldTakerBuyQuote:
		c.TakerBuyQuote = v
	default:
		return false
	}
	return true
}

// RawSeries is an ordered kline series together with the schema it was read with.
type RawSeries struct {
	Symbol   string
	Interval string
	Fields   []string
	Candles  []RawCandle
}

// HasField reports whether the series schema carries the named column.
func (s *RawSeries) HasField(name string) bool {
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Len returns the number of candles.
func (s *RawSeries) Len() int { return len(s.Candles) }
