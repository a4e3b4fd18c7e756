package odgate

import "github.com/rcrowley/go-metrics"

// Metric names registered by the gate.
const (
	MetricBatchesPropagated = "gate.batches.propagated"
	MetricBatchesSent       = "gate.batches.sent"
	MetricRoundsBlock       = "gate.rounds.block"
	MetricRoundsEmpty       = "gate.rounds.empty"
	MetricProposalsRemote   = "gate.proposals.remote"
	MetricProposalsFallback = "gate.proposals.fallback"
	MetricCacheSize         = "gate.cache.size"
	MetricPullDuration      = "gate.pull.duration_ns"
)

// gateMetrics holds the handles the kernel updates.
//
// Pull durations go into a histogram rather than a timer,
// because go-metrics timers start a background ticker goroutine.
type gateMetrics struct {
	BatchesPropagated metrics.Counter
	BatchesSent       metrics.Counter

	RoundsBlock metrics.Counter
	RoundsEmpty metrics.Counter

	ProposalsRemote   metrics.Counter
	ProposalsFallback metrics.Counter

	CacheSize metrics.Gauge

	PullDuration metrics.Histogram
}

func newGateMetrics(r metrics.Registry) gateMetrics {
	return gateMetrics{
		BatchesPropagated: metrics.GetOrRegisterCounter(MetricBatchesPropagated, r),
		BatchesSent:       metrics.GetOrRegisterCounter(MetricBatchesSent, r),

		RoundsBlock: metrics.GetOrRegisterCounter(MetricRoundsBlock, r),
		RoundsEmpty: metrics.GetOrRegisterCounter(MetricRoundsEmpty, r),

		ProposalsRemote:   metrics.GetOrRegisterCounter(MetricProposalsRemote, r),
		ProposalsFallback: metrics.GetOrRegisterCounter(MetricProposalsFallback, r),

		CacheSize: metrics.GetOrRegisterGauge(MetricCacheSize, r),

		PullDuration: metrics.GetOrRegisterHistogram(
			MetricPullDuration, r, metrics.NewExpDecaySample(1028, 0.015),
		),
	}
}
