// Package pipeline orchestrates per-region scoring and batch runs.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/confidence"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/infra"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/market"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/satellite"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/score"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/store"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/waterfall"
)

// SnapshotSource supplies the two spectral windows a region comparison needs.
type SnapshotSource interface {
	FetchPair(ctx context.Context, regionID string) (prior, current *model.SpectralSnapshot, historicalAvg float64, err error)
}

// Pipeline wires the scoring components together. The satellite branch and
// the infrastructure branch run concurrently per region; valuation waits on
// both because it needs the infra score and the momentum fraction.
type Pipeline struct {
	static     *config.StaticConfig
	classifier *satellite.Classifier
	snapshots  SnapshotSource
	infra      *infra.Service
	market     *market.Service
	aggregator *confidence.Aggregator
	composer   *score.Composer
	store      store.Store

	maxConcurrent int
	now           func() time.Time
}

// New creates a pipeline. store may be nil for one-off scoring without
// persistence.
func New(
	static *config.StaticConfig,
	classifier *satellite.Classifier,
	snapshots SnapshotSource,
	infraSvc *infra.Service,
	marketSvc *market.Service,
	aggregator *confidence.Aggregator,
	composer *score.Composer,
	st store.Store,
	maxConcurrent int,
) *Pipeline {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Pipeline{
		static:        static,
		classifier:    classifier,
		snapshots:     snapshots,
		infra:         infraSvc,
		market:        marketSvc,
		aggregator:    aggregator,
		composer:      composer,
		store:         st,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
	}
}

// WithNow fixes the pipeline's clock. Test hook.
func (p *Pipeline) WithNow(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// ScoreRegion runs the full scoring flow for one region.
//
// Failure taxonomy: satellite failures (fetch or degenerate input) and
// unknown regions skip the region; exhausted data cascades inside the infra
// and market services downgrade confidence instead. Context cancellation
// propagates.
func (p *Pipeline) ScoreRegion(ctx context.Context, region config.RegionConfig) (*model.ScoringResult, error) {
	var (
		change  model.ChangeSummary
		satConf float64
		infraR  model.InfraResult
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		prior, current, histAvg, err := p.snapshots.FetchPair(gctx, region.ID)
		if err != nil {
			return eris.Wrapf(err, "pipeline: snapshots for %s", region.ID)
		}
		change, err = p.classifier.Score(prior, current, histAvg)
		if err != nil {
			return err
		}
		satConf = waterfall.Ceiling(waterfall.KindLive)
		return nil
	})

	g.Go(func() error {
		var err error
		infraR, err = p.infra.ScoreRegion(gctx, region)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	marketR, err := p.market.Evaluate(ctx, region, infraR.Score, change.MomentumFraction())
	if err != nil {
		return nil, err
	}

	infraConf := p.aggregator.AdjustInfra(infraR)
	confB := p.aggregator.Aggregate(satConf, infraConf, marketR.Confidence)

	final, rec := p.composer.Compose(change.BaseScore, infraR.Multiplier, marketR.Multiplier, confB.Multiplier)

	result := &model.ScoringResult{
		RegionID:       region.ID,
		RegionName:     region.Name,
		Tier:           region.Tier,
		GeneratedAt:    p.now().UTC(),
		Change:         change,
		Infra:          infraR,
		Market:         marketR,
		Confidence:     confB,
		BaseScore:      change.BaseScore,
		FinalScore:     final,
		Recommendation: rec,
	}

	zap.L().Info("pipeline: region scored",
		zap.String("region", region.ID),
		zap.Float64("base_score", change.BaseScore),
		zap.Float64("final_score", final),
		zap.String("recommendation", string(rec)),
	)
	return result, nil
}

// RunBatch scores the given regions concurrently and persists the run.
// Individual region failures become skip entries; the batch keeps going.
func (p *Pipeline) RunBatch(ctx context.Context, regionIDs []string) (*model.Run, error) {
	var (
		mu      sync.Mutex
		results []model.ScoringResult
		skipped []model.SkippedRegion
	)

	regions := make([]config.RegionConfig, 0, len(regionIDs))
	for _, id := range regionIDs {
		region, ok := p.static.Region(id)
		if !ok {
			skipped = append(skipped, model.SkippedRegion{RegionID: id, Reason: "unknown region"})
			continue
		}
		regions = append(regions, region)
	}

	var run *model.Run
	if p.store != nil {
		var err error
		run, err = p.store.CreateRun(ctx, regionIDs)
		if err != nil {
			return nil, err
		}
	} else {
		run = &model.Run{Regions: regionIDs, Status: model.RunStatusRunning, StartedAt: p.now().UTC()}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)

	for _, region := range regions {
		region := region
		g.Go(func() error {
			result, err := p.ScoreRegion(gctx, region)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("pipeline: region skipped",
					zap.String("region", region.ID),
					zap.Error(err),
				)
				mu.Lock()
				skipped = append(skipped, model.SkippedRegion{
					RegionID: region.ID,
					Reason:   skipReason(err),
				})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			results = append(results, *result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if p.store != nil {
			if ferr := p.store.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); ferr != nil {
				zap.L().Error("pipeline: mark run failed", zap.Error(ferr))
			}
		}
		return nil, err
	}

	run.Results = results
	run.Skipped = skipped
	run.Status = model.RunStatusComplete
	finished := p.now().UTC()
	run.FinishedAt = &finished

	if p.store != nil {
		if err := p.store.CompleteRun(ctx, run.ID, results, skipped); err != nil {
			return nil, err
		}
	}

	zap.L().Info("pipeline: batch complete",
		zap.String("run_id", run.ID),
		zap.Int("scored", len(results)),
		zap.Int("skipped", len(skipped)),
	)
	return run, nil
}

// skipReason maps a region failure onto a stable, reportable reason.
func skipReason(err error) string {
	switch {
	case errors.Is(err, satellite.ErrDegenerateInput):
		return "degenerate satellite input"
	case errors.Is(err, market.ErrUnknownRegion):
		return "region missing from registry"
	default:
		return eris.Cause(err).Error()
	}
}
