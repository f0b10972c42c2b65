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

	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/resilience"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/satellite"
)

// snapshotResponse is the wire format of the imagery aggregation endpoint:
// per-cell surface reflectance for a region over a time window.
type snapshotResponse struct {
	RegionID      string               `json:"region_id"`
	WindowStart   time.Time            `json:"window_start"`
	WindowEnd     time.Time            `json:"window_end"`
	CellAreaKm2   float64              `json:"cell_area_km2"`
	Cells         []satellite.BandCell `json:"cells"`
	HistoricalAvg float64              `json:"historical_avg_changes,omitempty"`
}

// SnapshotProvider fetches spectral snapshots from the imagery service and
// converts raw band values into index cells.
type SnapshotProvider struct {
	baseURL    string
	client     *http.Client
	windowDays int
	retry      resilience.RetryConfig
	now        func() time.Time
}

// NewSnapshotProvider creates the spectral snapshot provider.
func NewSnapshotProvider(cfg config.SnapshotConfig) *SnapshotProvider {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("snapshot", "fetch")

	days := cfg.WindowDays
	if days <= 0 {
		days = 90
	}

	return &SnapshotProvider{
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: cfg.Timeout},
		windowDays: days,
		retry:      retry,
		now:        time.Now,
	}
}

// WithNow fixes the provider's clock. Test hook.
func (p *SnapshotProvider) WithNow(now func() time.Time) *SnapshotProvider {
	p.now = now
	return p
}

// FetchPair fetches the current window and the one before it for a region,
// plus the rolling average change count the velocity bonus needs.
func (p *SnapshotProvider) FetchPair(ctx context.Context, regionID string) (prior, current *model.SpectralSnapshot, historicalAvg float64, err error) {
	if p.baseURL == "" {
		return nil, nil, 0, eris.New("snapshot: no base URL configured")
	}

	end := p.now()
	mid := end.AddDate(0, 0, -p.windowDays)
	start := mid.AddDate(0, 0, -p.windowDays)

	prior, _, err = p.fetch(ctx, regionID, start, mid)
	if err != nil {
		return nil, nil, 0, eris.Wrapf(err, "snapshot: prior window for region %s", regionID)
	}
	current, historicalAvg, err = p.fetch(ctx, regionID, mid, end)
	if err != nil {
		return nil, nil, 0, eris.Wrapf(err, "snapshot: current window for region %s", regionID)
	}
	return prior, current, historicalAvg, nil
}

func (p *SnapshotProvider) fetch(ctx context.Context, regionID string, start, end time.Time) (*model.SpectralSnapshot, float64, error) {
	resp, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (snapshotResponse, error) {
		return p.fetchOnce(ctx, regionID, start, end)
	})
	if err != nil {
		return nil, 0, err
	}

	snap := &model.SpectralSnapshot{
		RegionID:    resp.RegionID,
		WindowStart: resp.WindowStart,
		WindowEnd:   resp.WindowEnd,
		CellAreaKm2: resp.CellAreaKm2,
		Cells:       make([]model.SpectralCell, len(resp.Cells)),
	}
	if snap.RegionID == "" {
		snap.RegionID = regionID
	}
	for i, c := range resp.Cells {
		snap.Cells[i] = satellite.Indices(c)
	}
	return snap, resp.HistoricalAvg, nil
}

func (p *SnapshotProvider) fetchOnce(ctx context.Context, regionID string, start, end time.Time) (snapshotResponse, error) {
	u := fmt.Sprintf("%s/v1/snapshots/%s?start=%s&end=%s",
		p.baseURL,
		url.PathEscape(regionID),
		url.QueryEscape(start.Format(time.RFC3339)),
		url.QueryEscape(end.Format(time.RFC3339)),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return snapshotResponse{}, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return snapshotResponse{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, res.Body)
		err := eris.Errorf("snapshot: status %d", res.StatusCode)
		if resilience.IsTransientHTTPStatus(res.StatusCode) {
			return snapshotResponse{}, resilience.NewTransientError(err, res.StatusCode)
		}
		return snapshotResponse{}, err
	}

	var out snapshotResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return snapshotResponse{}, eris.Wrap(err, "snapshot: decode response")
	}
	return out, nil
}
