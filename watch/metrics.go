package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "arenawatch_scan_duration_sec",
	Help:    "Duration of one full pass over eligible arenas",
	Buckets: prometheus.ExponentialBuckets(1, 2, 14),
})

var scanErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arenawatch_scan_errors",
	Help: "Number of scan failures, by stage",
}, []string{"stage"})

var arenasScanned = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arenawatch_arenas_scanned",
	Help: "Number of eligible arenas scanned, by perf",
}, []string{"perf"})

var playersSeen = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arenawatch_players_seen",
	Help: "Number of leaderboard records read, by perf",
}, []string{"perf"})

var playersExamined = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arenawatch_players_examined",
	Help: "Number of players which passed prescreening and had games fetched, by perf",
}, []string{"perf"})

var reportsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arenawatch_reports_sent",
	Help: "Number of players reported, by perf and tier",
}, []string{"perf", "tier"})
