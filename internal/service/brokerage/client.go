// Package brokerage is the REST market data provider: underlying quotes,
// listed expirations and option chains.
package brokerage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ChainPull/internal/domain/models"
	"ChainPull/internal/domain/repository"
	"ChainPull/internal/service/ratelimit"
	httpclient "ChainPull/pkg/http"
	"ChainPull/pkg/logger"

	"github.com/shopspring/decimal"
)

// ErrNoData aliases the repository sentinel so callers of this package can
// match it without importing the domain layer.
var ErrNoData = repository.ErrNoData

type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     float64
}

// Client implements repository.MarketData.
type Client struct {
	cfg     Config
	http    *httpclient.Client
	limiter *ratelimit.Limiter
	log     *logger.Logger
}

type Option func(*Client)

// WithHTTPClient swaps the transport, used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = httpclient.NewClient(httpclient.WithHTTPClient(hc))
	}
}

func New(cfg Config, log *logger.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("brokerage: base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:     cfg,
		http:    httpclient.NewClient(httpclient.WithTimeout(cfg.Timeout)),
		limiter: ratelimit.New(),
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type quoteResponse struct {
	LastTradePrice decimal.NullDecimal `json:"last_trade_price"`
}

type expirationsResponse struct {
	ExpirationDates []string `json:"expiration_dates"`
}

type chainResponse struct {
	Results []struct {
		StrikePrice       decimal.Decimal     `json:"strike_price"`
		Type              string              `json:"type"`
		Volume            int64               `json:"volume"`
		OpenInterest      int64               `json:"open_interest"`
		ImpliedVolatility decimal.NullDecimal `json:"implied_volatility"`
	} `json:"results"`
}

// CurrentPrice returns the last trade price; ErrNoData when none is quoted.
func (c *Client) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	var resp quoteResponse
	if err := c.get(ctx, "/quotes/"+url.PathEscape(ticker), nil, &resp); err != nil {
		return decimal.Zero, err
	}
	if !resp.LastTradePrice.Valid || !resp.LastTradePrice.Decimal.IsPositive() {
		return decimal.Zero, ErrNoData
	}
	return resp.LastTradePrice.Decimal, nil
}

func (c *Client) Expirations(ctx context.Context, ticker string) ([]string, error) {
	var resp expirationsResponse
	if err := c.get(ctx, "/options/expirations/"+url.PathEscape(ticker), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.ExpirationDates) == 0 {
		return nil, ErrNoData
	}
	return resp.ExpirationDates, nil
}

// OptionChain returns the contracts for one expiration. optionType is
// "call", "put", or empty for both.
func (c *Client) OptionChain(ctx context.Context, ticker, expiration, optionType string) ([]models.OptionContract, error) {
	params := url.Values{"expiration": {expiration}}
	if optionType == models.OptionTypeCall || optionType == models.OptionTypePut {
		params.Set("type", optionType)
	}

	var resp chainResponse
	if err := c.get(ctx, "/options/chains/"+url.PathEscape(ticker), params, &resp); err != nil {
		return nil, err
	}

	out := make([]models.OptionContract, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Type != models.OptionTypeCall && r.Type != models.OptionTypePut {
			continue
		}
		iv, _ := r.ImpliedVolatility.Decimal.Float64()
		strike, _ := r.StrikePrice.Float64()
		out = append(out, models.OptionContract{
			StrikePrice:       strike,
			Type:              r.Type,
			Volume:            r.Volume,
			OpenInterest:      r.OpenInterest,
			ImpliedVolatility: iv,
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx, "brokerage", c.cfg.Burst, c.cfg.RateLimit); err != nil {
		return err
	}

	headers := map[string]string{"Accept": "application/json"}
	if c.cfg.Token != "" {
		headers["Authorization"] = "Bearer " + c.cfg.Token
	}

	err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.cfg.BaseURL + path,
		Header: headers,
		Query:  params,
	}, dest)

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return ErrNoData
	}
	if err != nil {
		c.log.Debug("brokerage request failed",
			logger.String("path", path),
			logger.Error(err),
		)
		return fmt.Errorf("brokerage %s: %w", path, err)
	}
	return nil
}
