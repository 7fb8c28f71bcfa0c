package brokerage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ChainPull/internal/domain/models"
	"ChainPull/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", Token: "secret", RateLimit: 1000, Burst: 100}, logger.NewNop())
	require.NoError(t, err)
	return c
}

func TestCurrentPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quotes/SPY", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"last_trade_price":"438.71"}`))
	})

	price, err := c.CurrentPrice(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, "438.71", price.String())
}

func TestCurrentPrice_NoData(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "null price", body: `{"last_trade_price":null}`, code: http.StatusOK},
		{name: "zero price", body: `{"last_trade_price":"0"}`, code: http.StatusOK},
		{name: "unknown ticker", body: `{}`, code: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.CurrentPrice(context.Background(), "XYZ")
			assert.ErrorIs(t, err, ErrNoData)
		})
	}
}

func TestCurrentPrice_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.CurrentPrice(context.Background(), "SPY")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestExpirations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/options/expirations/AAPL", r.URL.Path)
		_, _ = w.Write([]byte(`{"expiration_dates":["2026-10-23","2026-10-30"]}`))
	})

	dates, err := c.Expirations(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-23", "2026-10-30"}, dates)
}

func TestOptionChain(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/options/chains/AAPL", r.URL.Path)
		assert.Equal(t, "2026-10-23", r.URL.Query().Get("expiration"))
		assert.Empty(t, r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(`{"results":[
			{"strike_price":"250.0000","type":"call","volume":12,"open_interest":340,"implied_volatility":"0.2810"},
			{"strike_price":"250.0000","type":"put","volume":3,"open_interest":90,"implied_volatility":null},
			{"strike_price":"255","type":"unknown"}
		]}`))
	})

	chain, err := c.OptionChain(context.Background(), "AAPL", "2026-10-23", "")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, models.OptionContract{StrikePrice: 250, Type: "call", Volume: 12, OpenInterest: 340, ImpliedVolatility: 0.281}, chain[0])
	assert.Zero(t, chain[1].ImpliedVolatility)
}

func TestOptionChain_TypeFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "put", r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	chain, err := c.OptionChain(context.Background(), "AAPL", "2026-10-23", models.OptionTypePut)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, logger.NewNop())
	assert.Error(t, err)
}
