package repository

import (
	"context"
	"time"

	"CryptoCast/internal/domain/models"
)

// Interval represents kline resolution.
type Interval string

const (
	Interval1h Interval = "1h"
	Interval4h Interval = "4h"
	Interval1d Interval = "1d"
)

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	switch iv {
	case Interval1h, Interval4h, Interval1d:
		return true
	default:
		return false
	}
}

// DefaultInterval returns the default interval.
func DefaultInterval() Interval { return Interval1d }

// NormalizeInterval converts raw string to a valid interval (or default).
func NormalizeInterval(s string) Interval {
	iv := Interval(s)
	if IsValidInterval(iv) {
		return iv
	}
	return DefaultInterval()
}

// KlineQuery selects one page of klines.
type KlineQuery struct {
	Symbol   string
	Interval Interval
	Start    time.Time
	End      time.Time
	Limit    int
}

// KlineSource serves pages of raw klines. Rows within a page need not be ordered.
type KlineSource interface {
	GetKlines(ctx context.Context, q KlineQuery) ([]models.RawCandle, error)
}

// PriceSource serves spot prices.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (models.PriceQuote, error)
}
