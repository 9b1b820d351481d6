// Package metrics defines the prometheus collectors updated by searches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the search collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	evaluated      *prometheus.CounterVec
	qualified      *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	transitions    prometheus.Counter
	failures       prometheus.Counter
	cacheLookups   *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg registers with the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		evaluated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sigpep_combinations_evaluated_total",
			Help: "Product ion combinations scored, by search strategy",
		}, []string{"strategy"}),
		qualified: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sigpep_combinations_qualified_total",
			Help: "Product ion combinations that excluded every background peptide",
		}, []string{"strategy"}),
		searchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sigpep_search_duration_seconds",
			Help:    "Duration of a single peptide combination search",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"strategy"}),
		transitions: f.NewCounter(prometheus.CounterOpts{
			Name: "sigpep_transitions_found_total",
			Help: "Signature transitions found",
		}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Name: "sigpep_peptide_failures_total",
			Help: "Target peptides whose search failed",
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sigpep_matrix_cache_lookups_total",
			Help: "Exclusion matrix cache lookups, by result",
		}, []string{"result"}),
	}
}

// ObserveCombination records one scored combination.
func (m *Metrics) ObserveCombination(strategy string, qualified bool) {
	if m == nil {
		return
	}
	m.evaluated.WithLabelValues(strategy).Inc()
	if qualified {
		m.qualified.WithLabelValues(strategy).Inc()
	}
}

// ObserveSearch records a search duration in seconds.
func (m *Metrics) ObserveSearch(strategy string, seconds float64) {
	if m == nil {
		return
	}
	m.searchDuration.WithLabelValues(strategy).Observe(seconds)
}

// TransitionFound counts a found transition.
func (m *Metrics) TransitionFound() {
	if m == nil {
		return
	}
	m.transitions.Inc()
}

// PeptideFailed counts a failed peptide search.
func (m *Metrics) PeptideFailed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

// CacheLookup counts a matrix cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
