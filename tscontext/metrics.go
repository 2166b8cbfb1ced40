package tscontext

import "github.com/prometheus/client_golang/prometheus"

// Counters exposed by the dispatcher and the context's own bookkeeping
// (spec §4.11 NEW note: "increments tscontext's Prometheus counters at
// each branch"), grounded on aistore's stats.Tracker.Add calls scattered
// through ais/keepalive.go.
var (
	MessagesProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "thingset",
		Name:      "messages_processed_total",
		Help:      "Requests handled locally by reqdecode/setengine/respbuild.",
	})
	MessagesRoutedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "thingset",
		Name:      "messages_routed_total",
		Help:      "Messages forwarded verbatim between two ports of a Com context.",
	})
	MessagesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "thingset",
		Name:      "messages_dropped_total",
		Help:      "Responses silently dropped for lack of a matching peer entry.",
	})
	MessagesConflictTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "thingset",
		Name:      "messages_conflict_total",
		Help:      "Requests rejected with Conflict for a peer with one already in flight.",
	})
	PeerEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "thingset",
		Name:      "peer_evictions_total",
		Help:      "Peer-table entries evicted to make room for a new peer UID.",
	})
	OOMEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "thingset",
		Name:      "oom_events_total",
		Help:      "Buffer-pool or allocation timeouts observed by this engine instance.",
	})
)

func init() {
	prometheus.MustRegister(
		MessagesProcessedTotal,
		MessagesRoutedTotal,
		MessagesDroppedTotal,
		MessagesConflictTotal,
		PeerEvictionsTotal,
		OOMEventsTotal,
	)
}
