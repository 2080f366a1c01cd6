package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CryptoCast/internal/domain/models"
	drepo "CryptoCast/internal/domain/repository"
	xhttp "CryptoCast/pkg/http"
	"CryptoCast/pkg/util"

	"github.com/shopspring/decimal"
)

const (
	klinesPath = "/api/v3/klines"
	tickerPath = "/api/v3/ticker/price"

	// MaxPageLimit is the largest page the klines endpoint serves.
	MaxPageLimit = 1000
)

// Config configures the REST client.
type Config struct {
	BaseURL          string
	RequestTimeout   time.Duration
	RateCapacity     float64
	RateRefillPerSec float64
	Transport        http.RoundTripper
}

// Client reads public market data from the Binance spot REST API.
type Client struct {
	base *httpBase
	now  func() time.Time
}

var (
	_ drepo.KlineSource = (*Client)(nil)
	_ drepo.PriceSource = (*Client)(nil)
)

// New builds a Client.
func New(cfg Config) (*Client, error) {
	base, err := newHTTPBase(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{base: base, now: time.Now}, nil
}

// GetKlines fetches one page of klines starting at q.Start.
func (c *Client) GetKlines(ctx context.Context, q drepo.KlineQuery) ([]models.RawCandle, error) {
	limit := q.Limit
	if limit <= 0 || limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(q.Symbol))
	params.Set("interval", string(q.Interval))
	params.Set("startTime", strconv.FormatInt(q.Start.UnixMilli(), 10))
	if !q.End.IsZero() {
		params.Set("endTime", strconv.FormatInt(q.End.UnixMilli(), 10))
	}
	params.Set("limit", strconv.Itoa(limit))

	var rows [][]json.RawMessage
	if err := c.base.getJSON(ctx, klinesPath, params, &rows); err != nil {
		var de *xhttp.DecodeError
		if errors.As(err, &de) {
			return nil, &models.DataQualityError{Reason: fmt.Sprintf("malformed klines response: %v", de)}
		}
		return nil, err
	}

	out := make([]models.RawCandle, 0, len(rows))
	for i, row := range rows {
		candle, err := decodeKline(row)
		if err != nil {
			return nil, &models.DataQualityError{Reason: fmt.Sprintf("decode kline %d: %v", i, err)}
		}
		out = append(out, candle)
	}
	return out, nil
}

type tickerPrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// GetPrice returns the latest spot price of symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (models.PriceQuote, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))

	var tp tickerPrice
	if err := c.base.getJSON(ctx, tickerPath, params, &tp); err != nil {
		return models.PriceQuote{}, err
	}
	return models.PriceQuote{
		Symbol:    tp.Symbol,
		Price:     tp.Price.InexactFloat64(),
		Timestamp: c.now().UTC(),
	}, nil
}

// decodeKline maps one positional kline row:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume,
// trades, takerBuyBase, takerBuyQuote, ignore].
func decodeKline(row []json.RawMessage) (models.RawCandle, error) {
	if len(row) < 11 {
		return models.RawCandle{}, fmt.Errorf("expected at least 11 fields, got %d", len(row))
	}
	var c models.RawCandle
	var openMs, closeMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return c, fmt.Errorf("open_time: %w", err)
	}
	if err := json.Unmarshal(row[6], &closeMs); err != nil {
		return c, fmt.Errorf("close_time: %w", err)
	}
	c.OpenTime = util.FromUnixMilli(openMs)
	c.CloseTime = util.FromUnixMilli(closeMs)

	numeric := []struct {
		idx  int
		dest *decimal.NullDecimal
		name string
	}{
		{1, &c.Open, models.FieldOpen},
		{2, &c.High, models.FieldHigh},
		{3, &c.Low, models.FieldLow},
		{4, &c.Close, models.FieldClose},
		{5, &c.Volume, models.FieldVolume},
		{7, &c.QuoteVolume, models.FieldQuoteVolume},
		{9, &c.TakerBuyBase, models.FieldTakerBuyBase},
		{10, &c.TakerBuyQuote, models.FieldTakerBuyQuote},
	}
	for _, n := range numeric {
		if err := n.dest.UnmarshalJSON(row[n.idx]); err != nil {
			return c, fmt.Errorf("%s: %w", n.name, err)
		}
	}
	if err := json.Unmarshal(row[8], &c.TradeCount); err != nil {
		return c, fmt.Errorf("%s: %w", models.FieldTradeCount, err)
	}
	return c, nil
}
