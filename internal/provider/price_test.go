package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
)

func fastPriceProvider(baseURL string) *PriceProvider {
	p := NewPriceProvider(config.PriceConfig{
		BaseURL:     baseURL,
		MaxAttempts: 3,
		RatePerSec:  1000,
	})
	p.retry.BaseDelay = 1
	p.retry.OnRetry = nil
	return p
}

func TestPriceFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/prices/ubud", r.URL.Path)
		fmt.Fprint(w, `{"region_id":"ubud","price_per_m2":5250000,"trend_pct":4.2}`)
	}))
	defer srv.Close()

	p := fastPriceProvider(srv.URL)
	price, conf, err := p.Fetch(context.Background(), "ubud")
	require.NoError(t, err)
	assert.Equal(t, 5_250_000.0, price.PricePerM2)
	assert.Equal(t, 4.2, price.TrendPct)
	assert.Equal(t, "live", price.Source)
	assert.Equal(t, 0.85, conf)
}

func TestPriceFetch_RetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"price_per_m2":1000000}`)
	}))
	defer srv.Close()

	p := fastPriceProvider(srv.URL)
	price, _, err := p.Fetch(context.Background(), "ubud")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1_000_000.0, price.PricePerM2)
}

func TestPriceFetch_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := fastPriceProvider(srv.URL)
	_, _, err := p.Fetch(context.Background(), "atlantis")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPriceFetch_NonPositivePriceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"price_per_m2":0}`)
	}))
	defer srv.Close()

	p := fastPriceProvider(srv.URL)
	_, _, err := p.Fetch(context.Background(), "ubud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-positive")
}

func TestPriceFetch_NoBaseURL(t *testing.T) {
	p := fastPriceProvider("")
	_, _, err := p.Fetch(context.Background(), "ubud")
	assert.Error(t, err)
}
