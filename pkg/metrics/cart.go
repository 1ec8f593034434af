package metrics

import "github.com/prometheus/client_golang/prometheus"

// Merge line outcomes.
const (
	MergeLineMigrated = "migrated"
	MergeLineFailed   = "failed"
)

// CartMetrics tracks cart operations, guest-to-user merges and retention purges.
type CartMetrics struct {
	operations *prometheus.CounterVec
	merges     prometheus.Counter
	mergeLines *prometheus.CounterVec
	purged     *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "operations_total",
		Help:      "Cart operations by action, owner kind and outcome.",
	}, []string{"action", "owner", "outcome"})
	merges := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "merges_total",
		Help:      "Guest carts merged into user carts.",
	})
	mergeLines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "merge_lines_total",
		Help:      "Guest cart lines processed during merges.",
	}, []string{"result"})
	purged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "retention_purged_lines_total",
		Help:      "Cart lines removed by the retention job.",
	}, []string{"owner"})
	reg.MustRegister(operations, merges, mergeLines, purged)
	return &CartMetrics{
		operations: operations,
		merges:     merges,
		mergeLines: mergeLines,
		purged:     purged,
	}
}

// ObserveOperation counts a cart operation outcome such as "ok" or an error code.
func (c *CartMetrics) ObserveOperation(action, owner, outcome string) {
	if c == nil || c.operations == nil {
		return
	}
	c.operations.WithLabelValues(normalizeLabel(action), normalizeLabel(owner), normalizeLabel(outcome)).Inc()
}

// ObserveMerge records one merge run with its migrated and failed line counts.
func (c *CartMetrics) ObserveMerge(migrated, failed int) {
	if c == nil || c.merges == nil {
		return
	}
	c.merges.Inc()
	c.mergeLines.WithLabelValues(MergeLineMigrated).Add(float64(migrated))
	c.mergeLines.WithLabelValues(MergeLineFailed).Add(float64(failed))
}

// AddPurged records lines deleted by the retention job for an owner kind.
func (c *CartMetrics) AddPurged(owner string, count int64) {
	if c == nil || c.purged == nil || count <= 0 {
		return
	}
	c.purged.WithLabelValues(normalizeLabel(owner)).Add(float64(count))
}
