package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"CryptoCast/internal/domain/models"
	drepo "CryptoCast/internal/domain/repository"
	xhttp "CryptoCast/pkg/http"
	"CryptoCast/pkg/logger"
)

// maxStalledPages bounds consecutive non-empty pages that add no new rows.
const maxStalledPages = 5

// Config controls one history fetch.
type Config struct {
	Symbol       string
	Interval     drepo.Interval
	Lookback     time.Duration
	PageLimit    int
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
}

// Stats describes what a fetch did.
type Stats struct {
	Pages   int
	Rows    int
	Retries int
}

// Fetcher pages through an exchange kline endpoint with a forward-moving cursor.
type Fetcher struct {
	source drepo.KlineSource
	cfg    Config
	log    *logger.Logger
	now    func() time.Time
}

// NewFetcher builds a Fetcher over source.
func NewFetcher(source drepo.KlineSource, cfg Config, lgr *logger.Logger) *Fetcher {
	if cfg.PageLimit <= 0 || cfg.PageLimit > 1000 {
		cfg.PageLimit = 1000
	}
	if cfg.Interval == "" {
		cfg.Interval = drepo.DefaultInterval()
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Fetcher{source: source, cfg: cfg, log: lgr, now: time.Now}
}

// Fetch returns the series covering [now-lookback, now], deduplicated by
// open time and sorted ascending. Only an empty page ends the fetch. Upstream
// failures that survive the retry budget are reported as models.ErrNetwork;
// malformed pages are not retried and keep their models.ErrDataQuality.
func (f *Fetcher) Fetch(ctx context.Context) (*models.RawSeries, Stats, error) {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	end := f.now().UTC()
	cursor := end.Add(-f.cfg.Lookback)
	f.log.Info("fetching klines",
		logger.String("symbol", f.cfg.Symbol),
		logger.String("interval", string(f.cfg.Interval)),
		logger.String("from", cursor.Format(time.RFC3339)),
		logger.String("to", end.Format(time.RFC3339)))

	var (
		stats   Stats
		candles []models.RawCandle
		seen    = make(map[int64]struct{})
		stalled int
	)
	for cursor.Before(end) {
		page, retries, err := f.fetchPage(ctx, drepo.KlineQuery{
			Symbol:   f.cfg.Symbol,
			Interval: f.cfg.Interval,
			Start:    cursor,
			End:      end,
			Limit:    f.cfg.PageLimit,
		})
		stats.Retries += retries
		if err != nil {
			return nil, stats, err
		}
		if len(page) == 0 {
			break
		}
		stats.Pages++

		added := 0
		for _, c := range page {
			k := c.OpenTime.UnixMilli()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			candles = append(candles, c)
			added++
		}
		if added == 0 {
			stalled++
			if stalled >= maxStalledPages {
				return nil, stats, fmt.Errorf("%w: fetch %s klines: %d consecutive pages without new rows at %s",
					models.ErrNetwork, f.cfg.Symbol, stalled, cursor.Format(time.RFC3339))
			}
		} else {
			stalled = 0
		}
		next := lastCloseTime(page).Add(time.Millisecond)
		if next.After(cursor) {
			cursor = next
		}
		f.log.Debug("fetched page", logger.Int("page", stats.Pages), logger.Int("rows_so_far", len(candles)))
	}

	sort.SliceStable(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
	stats.Rows = len(candles)
	f.log.Info("fetched klines",
		logger.Int("rows", stats.Rows),
		logger.Int("pages", stats.Pages),
		logger.Int("retries", stats.Retries))

	return &models.RawSeries{
		Symbol:   f.cfg.Symbol,
		Interval: string(f.cfg.Interval),
		Fields:   append([]string(nil), models.KlineFields...),
		Candles:  candles,
	}, stats, nil
}

// fetchPage retries transient failures with linear backoff.
func (f *Fetcher) fetchPage(ctx context.Context, q drepo.KlineQuery) ([]models.RawCandle, int, error) {
	attempts := f.cfg.MaxRetries + 1
	var err error
	for i := 1; i <= attempts; i++ {
		var page []models.RawCandle
		page, err = f.source.GetKlines(ctx, q)
		if err == nil {
			return page, i - 1, nil
		}
		if errors.Is(err, models.ErrDataQuality) {
			return nil, i - 1, fmt.Errorf("fetch %s klines from %s: %w", q.Symbol, q.Start.Format(time.RFC3339), err)
		}
		if !retryable(err) || i == attempts || ctx.Err() != nil {
			return nil, i - 1, networkError(q, err)
		}
		f.log.Warn("kline page failed, retrying",
			logger.Int("attempt", i),
			logger.String("start", q.Start.Format(time.RFC3339)),
			logger.Error(err))
		select {
		case <-time.After(time.Duration(i) * f.cfg.RetryBackoff):
		case <-ctx.Done():
			return nil, i, networkError(q, ctx.Err())
		}
	}
	return nil, attempts - 1, networkError(q, err)
}

func networkError(q drepo.KlineQuery, err error) error {
	return fmt.Errorf("%w: fetch %s klines from %s: %v", models.ErrNetwork, q.Symbol, q.Start.Format(time.RFC3339), err)
}

// retryable treats client errors other than rate limiting as permanent.
func retryable(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}

// lastCloseTime is the latest close time in page. For an ordered page this
// is the close time of its last row.
func lastCloseTime(page []models.RawCandle) time.Time {
	last := page[len(page)-1].CloseTime
	for _, c := range page {
		if c.CloseTime.After(last) {
			last = c.CloseTime
		}
	}
	return last
}
