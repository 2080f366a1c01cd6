package features

import (
	"fmt"
	"sort"

	"CryptoCast/internal/domain/models"
	"CryptoCast/pkg/logger"
	"CryptoCast/pkg/util"
)

// BuilderConfig selects the target column and whether volume rides along
// as an external regressor.
type BuilderConfig struct {
	PriceField   string
	AddRegressor bool
}

// Builder turns a validated raw series into the model-ready dataset.
type Builder struct {
	cfg BuilderConfig
	log *logger.Logger
}

func NewBuilder(cfg BuilderConfig, lgr *logger.Logger) *Builder {
	if cfg.PriceField == "" {
		cfg.PriceField = models.FieldClose
	}
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Builder{cfg: cfg, log: lgr}
}

// Build maps the price column to Value and open_time to Date with the zone
// stripped, sorts by date and keeps the first row of every date. With the
// regressor enabled the row's volume is attached and non-positive volumes
// are replaced by 1.
func (b *Builder) Build(s *models.RawSeries) (*models.Dataset, error) {
	if s == nil || s.Len() == 0 {
		return nil, fmt.Errorf("%w: no rows to build features from", models.ErrInsufficientData)
	}
	if !s.HasField(b.cfg.PriceField) {
		return nil, &models.DataQualityError{Reason: "price column not in series", Column: b.cfg.PriceField}
	}
	withVolume := b.cfg.AddRegressor && s.HasField(models.FieldVolume)

	type indexed struct {
		pos int
		ex  models.TrainingExample
	}
	rows := make([]indexed, 0, s.Len())
	skipped := 0
	for i := range s.Candles {
		c := &s.Candles[i]
		v, ok := c.Numeric(b.cfg.PriceField)
		if !ok {
			return nil, &models.DataQualityError{Reason: "price column is not numeric", Column: b.cfg.PriceField}
		}
		if !v.Valid {
			skipped++
			continue
		}
		ex := models.TrainingExample{
			Date:  util.StripZone(c.OpenTime),
			Value: v.Decimal.InexactFloat64(),
		}
		if withVolume {
			ex.Regressor = clampVolume(c)
		}
		rows = append(rows, indexed{pos: i, ex: ex})
	}
	if skipped > 0 {
		b.log.Warn("rows without a price value dropped",
			logger.String("column", b.cfg.PriceField), logger.Int("rows", skipped))
	}

	// stable on the original position so the first occurrence of a date wins
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ex.Date.Equal(rows[j].ex.Date) {
			return rows[i].pos < rows[j].pos
		}
		return rows[i].ex.Date.Before(rows[j].ex.Date)
	})

	ds := &models.Dataset{Rows: make([]models.TrainingExample, 0, len(rows))}
	if withVolume {
		ds.Regressor = models.RegressorVolume
	}
	for _, r := range rows {
		if n := len(ds.Rows); n > 0 && ds.Rows[n-1].Date.Equal(r.ex.Date) {
			continue
		}
		ds.Rows = append(ds.Rows, r.ex)
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: column %s has no values", models.ErrInsufficientData, b.cfg.PriceField)
	}

	b.log.Info("feature dataset built",
		logger.Int("rows", ds.Len()),
		logger.Int("duplicates_dropped", len(rows)-ds.Len()),
		logger.Bool("regressor", withVolume),
		logger.String("start", util.FormatDay(ds.First().Date)),
		logger.String("end", util.FormatDay(ds.Last().Date)))
	return ds, nil
}

// clampVolume replaces null and non-positive volume with 1. No log transform
// is applied.
func clampVolume(c *models.RawCandle) float64 {
	if !c.Volume.Valid || !c.Volume.Decimal.IsPositive() {
		return 1
	}
	return c.Volume.Decimal.InexactFloat64()
}
