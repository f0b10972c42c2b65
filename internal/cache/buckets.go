package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// Bucket names for the typed views.
const (
	BucketFeatures = "features"
	BucketPrices   = "prices"
)

// FeatureCache is the typed view over the features bucket.
type FeatureCache struct {
	c *Cache
}

// Features returns the typed feature view of the cache.
func (c *Cache) Features() *FeatureCache {
	return &FeatureCache{c: c}
}

// Get returns the cached feature set for a region and its creation time.
// Payloads that fail to decode count as corruption: removed, logged, miss.
func (f *FeatureCache) Get(ctx context.Context, regionID string) ([]model.InfrastructureFeature, time.Time, bool) {
	payload, createdAt, ok := f.c.Get(ctx, BucketFeatures, regionID)
	if !ok {
		return nil, time.Time{}, false
	}

	var features []model.InfrastructureFeature
	if err := json.Unmarshal(payload, &features); err != nil {
		zap.L().Warn("cache: corrupt feature payload removed",
			zap.String("region", regionID),
			zap.Error(err),
		)
		f.c.remove(ctx, BucketFeatures, regionID)
		f.c.misses.Add(1)
		return nil, time.Time{}, false
	}
	return features, createdAt, true
}

// Put writes a region's feature set through to durable storage.
func (f *FeatureCache) Put(ctx context.Context, regionID string, features []model.InfrastructureFeature) error {
	payload, err := json.Marshal(features)
	if err != nil {
		return err
	}
	return f.c.Put(ctx, BucketFeatures, regionID, payload)
}

// PriceCache is the typed view over the prices bucket.
type PriceCache struct {
	c *Cache
}

// Prices returns the typed price view of the cache.
func (c *Cache) Prices() *PriceCache {
	return &PriceCache{c: c}
}

// Get returns the cached price point for a region and its creation time.
func (p *PriceCache) Get(ctx context.Context, regionID string) (model.PricePoint, time.Time, bool) {
	payload, createdAt, ok := p.c.Get(ctx, BucketPrices, regionID)
	if !ok {
		return model.PricePoint{}, time.Time{}, false
	}

	var price model.PricePoint
	if err := json.Unmarshal(payload, &price); err != nil {
		zap.L().Warn("cache: corrupt price payload removed",
			zap.String("region", regionID),
			zap.Error(err),
		)
		p.c.remove(ctx, BucketPrices, regionID)
		p.c.misses.Add(1)
		return model.PricePoint{}, time.Time{}, false
	}
	return price, createdAt, true
}

// Put writes a region's price point through to durable storage.
func (p *PriceCache) Put(ctx context.Context, regionID string, price model.PricePoint) error {
	payload, err := json.Marshal(price)
	if err != nil {
		return err
	}
	return p.c.Put(ctx, BucketPrices, regionID, payload)
}
