package binance

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"CryptoCast/internal/service/ratelimit"
	xhttp "CryptoCast/pkg/http"
)

// httpBase centralizes client construction, request pacing and JSON GETs
// against one REST host.
type httpBase struct {
	baseURL string
	client  *xhttp.Client
	limiter *ratelimit.Limiter
	burst   float64
	refill  float64
}

func newHTTPBase(cfg Config) (*httpBase, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid binance base url %q", cfg.BaseURL)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	opts := []xhttp.ClientOption{xhttp.WithTimeout(timeout)}
	if cfg.Transport != nil {
		opts = append(opts, xhttp.WithTransport(cfg.Transport))
	}
	return &httpBase{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  xhttp.NewClient(opts...),
		limiter: ratelimit.New(),
		burst:   cfg.RateCapacity,
		refill:  cfg.RateRefillPerSec,
	}, nil
}

// getJSON issues one paced GET to path and decodes the JSON body into dest.
func (b *httpBase) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	if b.refill > 0 {
		if err := b.limiter.Wait(ctx, b.baseURL, b.burst, b.refill); err != nil {
			return err
		}
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + path,
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: query,
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}
