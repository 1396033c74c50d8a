package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geodrop_photos_created_total",
		Help: "Total number of photos placed on the map",
	})

	Interactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geodrop_interactions_total",
		Help: "Likes and dislikes by outcome",
	}, []string{"kind", "outcome"})

	ZoneRebalances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geodrop_zone_rebalances_total",
		Help: "Zones switched to finite life with counters reset",
	})

	ZoneReverts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geodrop_zone_reverts_total",
		Help: "Zones that dropped below the threshold and reverted to infinite life",
	})

	PhotosReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geodrop_photos_reaped_total",
		Help: "Expired photos deleted by the reaper",
	})

	ReaperAssetFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geodrop_reaper_asset_failures_total",
		Help: "Asset deletions that failed during a sweep",
	})

	AssetRemovalFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geodrop_asset_removal_failures_total",
		Help: "Asset deletions that failed after an admin delete",
	})

	ReaperSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geodrop_reaper_sweeps_total",
		Help: "Reaper sweeps by result",
	}, []string{"result"})

	RealtimeSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geodrop_realtime_subscribers",
		Help: "Active change feed websocket subscribers",
	})
)
