// Package reaper removes photos whose expiry has passed, along with their
// assets, and lets the lifecycle engine re-evaluate the zones they leave.
package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"geodrop/internal/lifecycle"
	"geodrop/internal/metrics"
	"geodrop/internal/models"
)

// PhotoStore lists what a sweep should look at.
type PhotoStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]models.Photo, error)
}

// AssetRemover deletes the blobs behind a photo. Errors are treated as soft.
type AssetRemover interface {
	RemoveAssets(ctx context.Context, refs models.AssetRefs) error
}

// Remover deletes expired photos and re-evaluates the zones they leave in
// one transaction. Implemented by *lifecycle.Engine.
type Remover interface {
	ReapExpired(ctx context.Context, expired []models.Photo, now time.Time) ([]models.Photo, error)
}

type Result struct {
	Deleted       int      `json:"deleted"`
	AssetFailures int      `json:"assetFailures"`
	Zones         []string `json:"zones"`
}

type Reaper struct {
	store   PhotoStore
	assets  AssetRemover
	remover Remover
	now     func() time.Time
	log     zerolog.Logger
}

func New(store PhotoStore, assets AssetRemover, remover Remover, log zerolog.Logger) *Reaper {
	return &Reaper{
		store:   store,
		assets:  assets,
		remover: remover,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log.With().Str("component", "reaper").Logger(),
	}
}

// WithClock replaces the time source, mostly for tests.
func (r *Reaper) WithClock(now func() time.Time) *Reaper {
	r.now = now
	return r
}

// Sweep deletes every expired photo. Asset removal failures are logged and
// counted; listing or deleting records is a hard failure. A failed delete
// rolls back the zone reverts with it, so the next sweep starts over.
// Running two sweeps over the same photos is safe: expiry is re-checked at
// delete time.
func (r *Reaper) Sweep(ctx context.Context) (Result, error) {
	now := r.now()

	expired, err := r.store.ListExpired(ctx, now)
	if err != nil {
		metrics.ReaperSweeps.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("list expired: %w", err)
	}
	if len(expired) == 0 {
		metrics.ReaperSweeps.WithLabelValues("empty").Inc()
		r.log.Debug().Msg("nothing to reap")
		return Result{}, nil
	}

	var result Result
	for _, photo := range expired {
		if r.assets == nil {
			continue
		}
		if err := r.assets.RemoveAssets(ctx, photo.Assets); err != nil {
			result.AssetFailures++
			metrics.ReaperAssetFailures.Inc()
			r.log.Warn().Err(err).Str("photo_id", photo.ID).Msg("remove assets failed")
		}
	}

	deleted, err := r.remover.ReapExpired(ctx, expired, now)
	if err != nil {
		metrics.ReaperSweeps.WithLabelValues("error").Inc()
		return result, fmt.Errorf("delete expired: %w", err)
	}

	result.Deleted = len(deleted)
	result.Zones = lifecycle.ZonesOf(deleted)
	metrics.PhotosReaped.Add(float64(result.Deleted))
	metrics.ReaperSweeps.WithLabelValues("ok").Inc()

	r.log.Info().
		Int("deleted", result.Deleted).
		Int("asset_failures", result.AssetFailures).
		Int("zones", len(result.Zones)).
		Msg("reaper sweep finished")
	return result, nil
}
