package ingestion

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"testing"
	"time"

	"CryptoCast/internal/domain/models"
	drepo "CryptoCast/internal/domain/repository"
	xhttp "CryptoCast/pkg/http"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func candle(day int, close float64) models.RawCandle {
	open := day0.AddDate(0, 0, day)
	return models.RawCandle{
		OpenTime:  open,
		CloseTime: open.Add(24*time.Hour - time.Millisecond),
		Close:     decimal.NewNullDecimal(decimal.NewFromFloat(close)),
	}
}

// scriptedSource serves pages in order and then empty pages forever.
type scriptedSource struct {
	mu      sync.Mutex
	pages   [][]models.RawCandle
	errs    []error
	queries []drepo.KlineQuery
}

func (s *scriptedSource) GetKlines(_ context.Context, q drepo.KlineQuery) ([]models.RawCandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(s.pages) == 0 {
		return nil, nil
	}
	p := s.pages[0]
	s.pages = s.pages[1:]
	return p, nil
}

func newFetcher(src drepo.KlineSource, cfg Config) *Fetcher {
	cfg.Symbol = "BTCUSDT"
	if cfg.Lookback == 0 {
		cfg.Lookback = 365 * 24 * time.Hour
	}
	f := NewFetcher(src, cfg, nil)
	f.now = func() time.Time { return day0.AddDate(0, 0, 200) }
	return f
}

func TestFetchAdvancesCursorPastLastClose(t *testing.T) {
	src := &scriptedSource{pages: [][]models.RawCandle{
		{candle(0, 1), candle(1, 2)},
		{candle(2, 3)},
	}}
	f := newFetcher(src, Config{})

	series, stats, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())
	require.Equal(t, 2, stats.Pages)
	require.Len(t, src.queries, 3, "two pages and the terminating empty page")
	require.Equal(t, candle(1, 0).CloseTime.Add(time.Millisecond), src.queries[1].Start)
	require.Equal(t, 1000, src.queries[0].Limit)
	require.Equal(t, models.KlineFields, series.Fields)
}

func TestFetchDeduplicatesAndSorts(t *testing.T) {
	src := &scriptedSource{pages: [][]models.RawCandle{
		{candle(2, 3), candle(0, 1), candle(1, 2)},
		{candle(2, 99), candle(3, 4)},
	}}
	series, _, err := newFetcher(src, Config{}).Fetch(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, series.Len())
	for i, c := range series.Candles {
		require.Equal(t, day0.AddDate(0, 0, i), c.OpenTime)
	}
	require.Equal(t, "3", series.Candles[2].Close.Decimal.String(), "first occurrence wins")
}

func TestFetchPaginationProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(60)
		rows := make([]models.RawCandle, n)
		for i := range rows {
			rows[i] = candle(i, float64(i))
		}

		// Random page boundaries, shuffled page order, shuffled rows within
		// pages, and repeats of already delivered rows in later pages.
		var pages [][]models.RawCandle
		for start := 0; start < n; {
			size := 1 + rng.Intn(10)
			if start+size > n {
				size = n - start
			}
			pages = append(pages, append([]models.RawCandle(nil), rows[start:start+size]...))
			start += size
		}
		rng.Shuffle(len(pages), func(i, j int) { pages[i], pages[j] = pages[j], pages[i] })
		var delivered []models.RawCandle
		for k := range pages {
			fresh := append([]models.RawCandle(nil), pages[k]...)
			if len(delivered) > 0 && rng.Intn(2) == 0 {
				pages[k] = append(pages[k], delivered[rng.Intn(len(delivered))])
			}
			rng.Shuffle(len(pages[k]), func(i, j int) { pages[k][i], pages[k][j] = pages[k][j], pages[k][i] })
			delivered = append(delivered, fresh...)
		}
		// Pages made only of rows delivered earlier.
		for k := 1; k < len(pages); k++ {
			if rng.Intn(3) != 0 {
				continue
			}
			var seen []models.RawCandle
			for _, p := range pages[:k] {
				seen = append(seen, p...)
			}
			replay := []models.RawCandle{seen[rng.Intn(len(seen))]}
			pages = append(pages[:k], append([][]models.RawCandle{replay}, pages[k:]...)...)
			k++
		}

		series, _, err := newFetcher(&scriptedSource{pages: pages}, Config{}).Fetch(context.Background())
		require.NoError(t, err)
		require.Equal(t, n, series.Len(), "trial %d", trial)
		for i, c := range series.Candles {
			require.Equal(t, rows[i].OpenTime, c.OpenTime, "trial %d row %d", trial, i)
		}
	}
}

func TestFetchKeepsGoingPastRedeliveredPage(t *testing.T) {
	var first, last []models.RawCandle
	for d := 0; d < 5; d++ {
		first = append(first, candle(d, float64(d)))
		last = append(last, candle(d+5, float64(d+5)))
	}
	src := &scriptedSource{pages: [][]models.RawCandle{first, {candle(2, 2)}, last}}

	series, stats, err := newFetcher(src, Config{}).Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, series.Len())
	require.Equal(t, 3, stats.Pages)
	for i, c := range series.Candles {
		require.Equal(t, day0.AddDate(0, 0, i), c.OpenTime)
	}
}

func TestFetchFailsWhenUpstreamMakesNoProgress(t *testing.T) {
	page := []models.RawCandle{candle(0, 1)}
	pages := make([][]models.RawCandle, maxStalledPages+2)
	for i := range pages {
		pages[i] = page
	}
	src := &scriptedSource{pages: pages}

	_, _, err := newFetcher(src, Config{}).Fetch(context.Background())
	require.ErrorIs(t, err, models.ErrNetwork)
	require.ErrorContains(t, err, "without new rows")
	require.Len(t, src.queries, maxStalledPages+1)
}

func TestFetchDoesNotRetryMalformedPages(t *testing.T) {
	src := &scriptedSource{errs: []error{&models.DataQualityError{Reason: "decode kline 0: bad open"}}}
	_, _, err := newFetcher(src, Config{MaxRetries: 5, RetryBackoff: time.Millisecond}).Fetch(context.Background())
	require.ErrorIs(t, err, models.ErrDataQuality)
	require.NotErrorIs(t, err, models.ErrNetwork)
	require.Len(t, src.queries, 1)
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	src := &scriptedSource{
		errs:  []error{errors.New("connection reset"), &xhttp.StatusError{StatusCode: http.StatusTooManyRequests}},
		pages: [][]models.RawCandle{{candle(0, 1)}},
	}
	series, stats, err := newFetcher(src, Config{MaxRetries: 3, RetryBackoff: time.Millisecond}).Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
	require.Equal(t, 2, stats.Retries)
}

func TestFetchGivesUpAsNetworkError(t *testing.T) {
	src := &scriptedSource{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	_, stats, err := newFetcher(src, Config{MaxRetries: 2, RetryBackoff: time.Millisecond}).Fetch(context.Background())
	require.ErrorIs(t, err, models.ErrNetwork)
	require.Equal(t, 2, stats.Retries)
	require.Len(t, src.queries, 3)
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	src := &scriptedSource{errs: []error{&xhttp.StatusError{StatusCode: http.StatusBadRequest, Body: "Invalid symbol."}}}
	_, _, err := newFetcher(src, Config{MaxRetries: 5, RetryBackoff: time.Millisecond}).Fetch(context.Background())
	require.ErrorIs(t, err, models.ErrNetwork)
	require.Len(t, src.queries, 1)
}

type blockingSource struct{}

func (blockingSource) GetKlines(ctx context.Context, _ drepo.KlineQuery) ([]models.RawCandle, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFetchHonoursOverallTimeout(t *testing.T) {
	_, _, err := newFetcher(blockingSource{}, Config{Timeout: 20 * time.Millisecond, MaxRetries: 3}).Fetch(context.Background())
	require.ErrorIs(t, err, models.ErrNetwork)
}
