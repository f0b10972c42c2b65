package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/resilience"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/waterfall"
)

// priceResponse is the wire format of the market price endpoint.
type priceResponse struct {
	RegionID   string    `json:"region_id"`
	PricePerM2 float64   `json:"price_per_m2"`
	TrendPct   float64   `json:"trend_pct"`
	AsOf       time.Time `json:"as_of"`
}

// PriceProvider is the live market price source. Requests are rate-limited
// and retried on transient failures.
type PriceProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewPriceProvider creates the live price provider.
func NewPriceProvider(cfg config.PriceConfig) *PriceProvider {
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	retry.OnRetry = resilience.RetryLogger("price", "fetch")

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 2
	}

	return &PriceProvider{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
		retry:   retry,
	}
}

func (p *PriceProvider) Name() string         { return "price-api" }
func (p *PriceProvider) Kind() waterfall.Kind { return waterfall.KindLive }

// Fetch retrieves the latest price observation for a region.
func (p *PriceProvider) Fetch(ctx context.Context, regionID string) (model.PricePoint, float64, error) {
	if p.baseURL == "" {
		return model.PricePoint{}, 0, eris.New("price: no base URL configured")
	}

	resp, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (priceResponse, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return priceResponse{}, err
		}
		return p.fetchOnce(ctx, regionID)
	})
	if err != nil {
		return model.PricePoint{}, 0, eris.Wrapf(err, "price: fetch region %s", regionID)
	}

	if resp.PricePerM2 <= 0 {
		return model.PricePoint{}, 0, eris.Errorf("price: non-positive price for region %s", regionID)
	}

	return model.PricePoint{
		RegionID:   regionID,
		PricePerM2: resp.PricePerM2,
		TrendPct:   resp.TrendPct,
		Source:     string(waterfall.KindLive),
		AsOf:       resp.AsOf,
	}, waterfall.Ceiling(waterfall.KindLive), nil
}

func (p *PriceProvider) fetchOnce(ctx context.Context, regionID string) (priceResponse, error) {
	u := fmt.Sprintf("%s/v1/prices/%s", p.baseURL, url.PathEscape(regionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return priceResponse{}, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return priceResponse{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, res.Body)
		err := eris.Errorf("price: status %d", res.StatusCode)
		if resilience.IsTransientHTTPStatus(res.StatusCode) {
			return priceResponse{}, resilience.NewTransientError(err, res.StatusCode)
		}
		return priceResponse{}, err
	}

	var out priceResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return priceResponse{}, eris.Wrap(err, "price: decode response")
	}
	return out, nil
}
