package validation

import (
	"CryptoCast/internal/domain/models"
	"CryptoCast/pkg/logger"

	"github.com/shopspring/decimal"
)

// Validator is the quality gate between ingestion and feature building.
type Validator struct {
	log *logger.Logger
}

func New(lgr *logger.Logger) *Validator {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Validator{log: lgr}
}

// Validate rejects empty series, series missing a required column and
// series with negative prices. Nulls in required columns are forward filled
// in place before the price check; a leading null has nothing to fill from
// and stays null.
func (v *Validator) Validate(s *models.RawSeries) (*models.RawSeries, error) {
	if s == nil || s.Len() == 0 {
		return nil, &models.DataQualityError{Reason: "raw data is empty"}
	}

	var missing []string
	for _, f := range models.RequiredFields {
		if !s.HasField(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &models.DataQualityError{Missing: missing}
	}

	if filled := forwardFill(s); len(filled) > 0 {
		fields := make([]logger.Field, 0, len(filled))
		for name, n := range filled {
			fields = append(fields, logger.Int(name, n))
		}
		v.log.Warn("null values forward filled", fields...)
	}

	for _, col := range models.PriceFields {
		for _, c := range s.Candles {
			val, _ := c.Numeric(col)
			if val.Valid && val.Decimal.IsNegative() {
				return nil, &models.DataQualityError{Reason: "negative prices found", Column: col}
			}
		}
	}

	v.log.Info("raw data validation passed", logger.Int("rows", s.Len()))
	return s, nil
}

// forwardFill replaces nulls in required numeric columns with the previous
// row's value and reports how many values each column received.
func forwardFill(s *models.RawSeries) map[string]int {
	filled := make(map[string]int)
	for _, col := range models.RequiredFields {
		var last decimal.NullDecimal
		for i := range s.Candles {
			c := &s.Candles[i]
			val, ok := c.Numeric(col)
			if !ok {
				break // open_time is not numeric
			}
			if val.Valid {
				last = val
				continue
			}
			if last.Valid {
				c.SetNumeric(col, last)
				filled[col]++
			}
		}
	}
	return filled
}
