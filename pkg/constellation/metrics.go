package constellation

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes engine statistics as Prometheus metrics. Register it
// with a prometheus.Registerer and serve the registry over HTTP.
type Collector struct {
	engine *Engine

	primeTableSize      *prometheus.Desc
	candidatesGenerated *prometheus.Desc
	candidatesTested    *prometheus.Desc
	sievingSeconds      *prometheus.Desc
	testingSeconds      *prometheus.Desc
	tupleCount          *prometheus.Desc
}

// NewCollector creates a collector reading from the given engine.
func NewCollector(engine *Engine) *Collector {
	return &Collector{
		engine: engine,
		primeTableSize: prometheus.NewDesc(
			"constellation_prime_table_size",
			"Number of sieving primes beyond the primorial.",
			nil, nil),
		candidatesGenerated: prometheus.NewDesc(
			"constellation_candidates_generated_total",
			"Candidates emitted by the sieve for the active job.",
			nil, nil),
		candidatesTested: prometheus.NewDesc(
			"constellation_candidates_tested_total",
			"Candidates run through the primality cascade for the active job.",
			nil, nil),
		sievingSeconds: prometheus.NewDesc(
			"constellation_sieving_seconds_total",
			"Cumulative time spent sieving, summed over workers.",
			nil, nil),
		testingSeconds: prometheus.NewDesc(
			"constellation_testing_seconds_total",
			"Cumulative time spent on primality testing, summed over workers.",
			nil, nil),
		tupleCount: prometheus.NewDesc(
			"constellation_tuples_total",
			"Candidates whose first k offsets all tested prime.",
			[]string{"k"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.primeTableSize
	ch <- c.candidatesGenerated
	ch <- c.candidatesTested
	ch <- c.sievingSeconds
	ch <- c.testingSeconds
	ch <- c.tupleCount
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.engine.Stats()
	ch <- prometheus.MustNewConstMetric(c.primeTableSize, prometheus.GaugeValue, float64(stats.PrimeTableSize))
	ch <- prometheus.MustNewConstMetric(c.candidatesGenerated, prometheus.CounterValue, float64(stats.CandidatesGenerated))
	ch <- prometheus.MustNewConstMetric(c.candidatesTested, prometheus.CounterValue, float64(stats.CandidatesTested))
	ch <- prometheus.MustNewConstMetric(c.sievingSeconds, prometheus.CounterValue, stats.SievingDuration)
	ch <- prometheus.MustNewConstMetric(c.testingSeconds, prometheus.CounterValue, stats.TestingDuration)
	for k, count := range stats.TupleCounts {
		ch <- prometheus.MustNewConstMetric(c.tupleCount, prometheus.CounterValue, float64(count), strconv.Itoa(k))
	}
}
