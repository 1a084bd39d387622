package metrics

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
)

var (
	metricSet = metrics.NewSet()

	Joins          = metricSet.NewCounter("can_joins_total")
	Splits         = metricSet.NewCounter("can_splits_total")
	PeerRemovals   = metricSet.NewCounter("can_peer_removals_total")
	ContentInserts = metricSet.NewCounter("can_content_inserts_total")
	ContentDeletes = metricSet.NewCounter("can_content_deletes_total")
	ContentPrunes  = metricSet.NewCounter("can_content_pruned_total")
	SplitDuration  = metricSet.NewHistogram("can_split_duration_seconds")
)

func MetricsHandler(w http.ResponseWriter, _ *http.Request) {
	metricSet.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}
