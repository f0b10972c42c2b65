// Package waterfall resolves external data through an ordered provider
// cascade: live fetch, then cache, then static benchmark. The first
// provider that returns a value wins; later providers are never called.
package waterfall

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Kind identifies where a resolved value came from.
type Kind string

const (
	KindLive      Kind = "live"
	KindCache     Kind = "cache"
	KindPattern   Kind = "pattern"
	KindBenchmark Kind = "benchmark"
)

// Ceiling returns the maximum confidence a provider kind may report.
func Ceiling(k Kind) float64 {
	switch k {
	case KindLive:
		return 0.85
	case KindCache:
		return 0.85
	case KindPattern:
		return 0.60
	case KindBenchmark:
		return 0.50
	}
	return 0.30
}

// ErrMiss is returned by a provider that has no value for the key
// (cache miss, no configured pattern). The cascade moves on.
var ErrMiss = eris.New("waterfall: provider miss")

// ErrDataUnavailable means every provider failed. Callers must treat this
// as "proceed with reduced confidence", never as fatal.
var ErrDataUnavailable = eris.New("waterfall: data unavailable")

// Provider supplies a value for a region key with a raw confidence.
type Provider[T any] interface {
	Name() string
	Kind() Kind
	Fetch(ctx context.Context, regionID string) (T, float64, error)
}

// Attempt records one provider call for auditability.
type Attempt struct {
	Provider string `json:"provider"`
	Kind     Kind   `json:"kind"`
	Err      string `json:"err,omitempty"`
}

// Resolution is the outcome of a cascade run.
type Resolution[T any] struct {
	Value      T         `json:"value"`
	Confidence float64   `json:"confidence"`
	Source     Kind      `json:"source"`
	Provider   string    `json:"provider"`
	Attempts   []Attempt `json:"attempts"`
}

// Orchestrator runs providers strictly in order. On a live success the
// value is written through to cache before returning; cache successes
// skip the write-through since the entry is already present.
type Orchestrator[T any] struct {
	providers []Provider[T]
	writeBack func(ctx context.Context, regionID string, value T) error
}

// New creates an orchestrator. writeBack may be nil when the cascade has
// no cache tier.
func New[T any](providers []Provider[T], writeBack func(ctx context.Context, regionID string, value T) error) *Orchestrator[T] {
	return &Orchestrator[T]{providers: providers, writeBack: writeBack}
}

// Resolve tries each provider in order and returns the first success,
// with confidence capped at the provider kind's ceiling.
func (o *Orchestrator[T]) Resolve(ctx context.Context, regionID string) (Resolution[T], error) {
	if err := ctx.Err(); err != nil {
		return Resolution[T]{}, err
	}

	var attempts []Attempt

	for _, p := range o.providers {
		value, conf, err := p.Fetch(ctx, regionID)
		if err != nil {
			attempts = append(attempts, Attempt{Provider: p.Name(), Kind: p.Kind(), Err: err.Error()})
			if ctx.Err() != nil {
				return Resolution[T]{Attempts: attempts}, ctx.Err()
			}
			continue
		}

		if ceiling := Ceiling(p.Kind()); conf > ceiling {
			conf = ceiling
		}

		attempts = append(attempts, Attempt{Provider: p.Name(), Kind: p.Kind()})

		if p.Kind() == KindLive && o.writeBack != nil {
			if err := o.writeBack(ctx, regionID, value); err != nil {
				zap.L().Warn("waterfall: write-through failed",
					zap.String("region", regionID),
					zap.String("provider", p.Name()),
					zap.Error(err),
				)
			}
		}

		return Resolution[T]{
			Value:      value,
			Confidence: conf,
			Source:     p.Kind(),
			Provider:   p.Name(),
			Attempts:   attempts,
		}, nil
	}

	return Resolution[T]{Attempts: attempts}, eris.Wrapf(ErrDataUnavailable, "region %s", regionID)
}
