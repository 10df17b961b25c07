package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pageSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phfolio",
			Subsystem: "page",
			Name:      "saves_total",
			Help:      "页面保存（对账）次数。",
		},
		[]string{"result"},
	)

	pageBlocksDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "phfolio",
			Subsystem: "page",
			Name:      "blocks_deleted_total",
			Help:      "对账时删除的块数量。",
		},
	)

	pageBlocksUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "phfolio",
			Subsystem: "page",
			Name:      "blocks_upserted_total",
			Help:      "对账时写入的块数量。",
		},
	)

	pagePlacementsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "phfolio",
			Subsystem: "page",
			Name:      "placements_written_total",
			Help:      "对账时写入的放置项数量。",
		},
	)

	publicCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phfolio",
			Subsystem: "public",
			Name:      "cache_lookups_total",
			Help:      "公开页面缓存命中情况。",
		},
		[]string{"result"},
	)
)

// ObservePageSave 记录一次成功的对账。
func ObservePageSave(deleted, upserted, placements int) {
	pageSavesTotal.WithLabelValues("ok").Inc()
	pageBlocksDeletedTotal.Add(float64(deleted))
	pageBlocksUpsertedTotal.Add(float64(upserted))
	pagePlacementsWrittenTotal.Add(float64(placements))
}

// ObservePageSaveFailure 记录一次失败的对账。
func ObservePageSaveFailure() {
	pageSavesTotal.WithLabelValues("error").Inc()
}

// ObservePublicCache 记录公开页面缓存查询结果（hit / miss / error）。
func ObservePublicCache(result string) {
	publicCacheTotal.WithLabelValues(result).Inc()
}
