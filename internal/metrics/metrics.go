// Package metrics exposes Prometheus counters for workspace resolution.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linearmcp"

// Registry holds the resolution counters. A nil *Registry is valid and records nothing.
type Registry struct {
	gatherer prometheus.Gatherer

	cacheLookups   *prometheus.CounterVec
	probes         *prometheus.CounterVec
	clientsCreated *prometheus.CounterVec
	listings       *prometheus.CounterVec
	toolCalls      *prometheus.CounterVec
	cacheEntries   prometheus.Gauge
}

// New registers the counters with reg. Passing a fresh prometheus.NewRegistry()
// keeps tests isolated from the default registerer.
func New(reg *prometheus.Registry) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		gatherer: reg,
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "team_cache_lookups_total",
			Help:      "Team-key cache lookups, by result (hit or miss).",
		}, []string{"result"}),
		probes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "probes_total",
			Help:      "Per-workspace team probes, by workspace and outcome.",
		}, []string{"workspace", "outcome"}),
		clientsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "clients_created_total",
			Help:      "Remote clients constructed, by workspace.",
		}, []string{"workspace"}),
		listings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "team_listings_total",
			Help:      "Bulk team listings, by workspace and status.",
		}, []string{"workspace", "status"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "MCP tool calls, by tool and status.",
		}, []string{"tool", "status"}),
		cacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "team_cache_entries",
			Help:      "Team keys currently cached.",
		}),
	}
}

// CacheHit records a team-key cache hit.
func (r *Registry) CacheHit() {
	if r != nil {
		r.cacheLookups.WithLabelValues("hit").Inc()
	}
}

// CacheMiss records a team-key cache miss.
func (r *Registry) CacheMiss() {
	if r != nil {
		r.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// CacheSize records how many team keys are cached.
func (r *Registry) CacheSize(n int) {
	if r != nil {
		r.cacheEntries.Set(float64(n))
	}
}

// Probe records one per-workspace lookup and its outcome.
func (r *Registry) Probe(workspace, outcome string) {
	if r != nil {
		r.probes.WithLabelValues(workspace, outcome).Inc()
	}
}

// ClientCreated records construction of a workspace client.
func (r *Registry) ClientCreated(workspace string) {
	if r != nil {
		r.clientsCreated.WithLabelValues(workspace).Inc()
	}
}

// Listing records a bulk team listing for one workspace.
func (r *Registry) Listing(workspace string, ok bool) {
	if r == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	r.listings.WithLabelValues(workspace, status).Inc()
}

// ToolCall records one MCP tool call. Calls answered with an error result count as failed.
func (r *Registry) ToolCall(tool string, ok bool) {
	if r == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	r.toolCalls.WithLabelValues(tool, status).Inc()
}

// Handler serves the registered metrics in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
