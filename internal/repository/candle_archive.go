package repository

import (
	"context"
	"fmt"
	"time"

	"CryptoCast/internal/domain/models"
	domrepo "CryptoCast/internal/domain/repository"
	pkgch "CryptoCast/pkg/clickhouse"
	applogger "CryptoCast/pkg/logger"

	"github.com/shopspring/decimal"
)

// DefaultCandleTable is where raw klines are archived.
const DefaultCandleTable = "market.klines"

// CandleSchema returns the idempotent DDL for table.
func CandleSchema(table string) []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS market`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol          LowCardinality(String),
			interval        LowCardinality(String),
			open_time       DateTime64(3, 'UTC'),
			close_time      DateTime64(3, 'UTC'),
			open            Nullable(Decimal(38, 8)),
			high            Nullable(Decimal(38, 8)),
			low             Nullable(Decimal(38, 8)),
			close           Nullable(Decimal(38, 8)),
			volume          Nullable(Decimal(38, 8)),
			quote_volume    Nullable(Decimal(38, 8)),
			trade_count     Int64,
			taker_buy_base  Nullable(Decimal(38, 8)),
			taker_buy_quote Nullable(Decimal(38, 8)),
			ingested_at     DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree(ingested_at)
		ORDER BY (symbol, interval, open_time)`, table),
	}
}

type batchInserter interface {
	InsertBatch(ctx context.Context, query string, rows [][]any) error
}

// CHCandleArchive copies fetched klines into ClickHouse. Re-archiving the
// same window is deduplicated by the table engine.
type CHCandleArchive struct {
	db    batchInserter
	table string
	now   func() time.Time
	l     *applogger.Logger
}

var _ domrepo.CandleArchive = (*CHCandleArchive)(nil)

func NewCHCandleArchive(ch *pkgch.Client, table string) *CHCandleArchive {
	return newCHCandleArchive(ch, table)
}

func newCHCandleArchive(db batchInserter, table string) *CHCandleArchive {
	if table == "" {
		table = DefaultCandleTable
	}
	return &CHCandleArchive{db: db, table: table, now: time.Now, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (a *CHCandleArchive) SetLogger(l *applogger.Logger) {
	if l != nil {
		a.l = l
	}
}

func (a *CHCandleArchive) SaveCandles(ctx context.Context, s *models.RawSeries) error {
	if s == nil || s.Len() == 0 {
		return nil
	}
	const chunkSize = 2000
	q := fmt.Sprintf(`INSERT INTO %s (symbol, interval, open_time, close_time, open, high, low, close,
		volume, quote_volume, trade_count, taker_buy_base, taker_buy_quote, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, a.table)

	ingested := a.now().UTC()
	for start := 0; start < s.Len(); start += chunkSize {
		end := start + chunkSize
		if end > s.Len() {
			end = s.Len()
		}
		rows := make([][]any, 0, end-start)
		for _, c := range s.Candles[start:end] {
			rows = append(rows, []any{
				s.Symbol, s.Interval, c.OpenTime, c.CloseTime,
				nullable(c.Open), nullable(c.High), nullable(c.Low), nullable(c.Close),
				nullable(c.Volume), nullable(c.QuoteVolume), c.TradeCount,
				nullable(c.TakerBuyBase), nullable(c.TakerBuyQuote), ingested,
			})
		}
		if err := a.db.InsertBatch(ctx, q, rows); err != nil {
			a.l.Error("clickhouse archive insert error",
				applogger.String("table", a.table),
				applogger.String("symbol", s.Symbol),
				applogger.Int("rows", len(rows)),
				applogger.Error(err),
			)
			return fmt.Errorf("archive candles: %w", err)
		}
	}
	a.l.Info("candles archived", applogger.String("table", a.table), applogger.Int("rows", s.Len()))
	return nil
}

func (a *CHCandleArchive) Close() error {
	return nil // client lifecycle belongs to the caller
}

func nullable(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
