package constellation

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of a search. Counters are monotonic for
// the lifetime of the active job.
type Stats struct {
	// PrimeTableSize is the number of sieving primes (beyond the primorial).
	PrimeTableSize int

	// PrimeTableGenerationTime is how long the prime table took to build,
	// in seconds.
	PrimeTableGenerationTime float64

	// ModularInversesGenerationTime is how long the inverse table took to
	// build, in seconds.
	ModularInversesGenerationTime float64

	// SearchStartInstant is when StartWorkers was called.
	SearchStartInstant time.Time

	// SievingDuration is the cumulative time spent sieving, in seconds,
	// summed over workers.
	SievingDuration float64

	// CandidatesGenerated counts candidates emitted by the sieve.
	CandidatesGenerated uint64

	// TestingDuration is the cumulative time spent on primality testing, in
	// seconds, summed over workers.
	TestingDuration float64

	// CandidatesTested counts candidates run through the verifier.
	CandidatesTested uint64

	// TupleCounts[k] counts candidates whose first k offsets all tested
	// prime; TupleCounts[0] counts every tested candidate.
	TupleCounts []uint64
}

// statsCollector accumulates counters across workers: atomics for counts and
// fixed-point nanosecond durations, a mutex for the init-time fields.
type statsCollector struct {
	mu                 sync.Mutex
	primeTableSize     int
	primeTableGenTime  float64
	modularInvsGenTime float64
	searchStart        time.Time

	sievingNanos        atomic.Int64
	testingNanos        atomic.Int64
	candidatesGenerated atomic.Uint64
	candidatesTested    atomic.Uint64
	tupleCounts         []atomic.Uint64
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

// setTableStats records the init-time measurements and sizes the tuple
// counters for the sieving pattern.
func (c *statsCollector) setTableStats(tableSize int, tableTime, inversesTime float64, patternLen int) {
	c.mu.Lock()
	c.primeTableSize = tableSize
	c.primeTableGenTime = tableTime
	c.modularInvsGenTime = inversesTime
	c.tupleCounts = make([]atomic.Uint64, patternLen+1)
	c.mu.Unlock()
}

func (c *statsCollector) markSearchStart() {
	c.mu.Lock()
	c.searchStart = time.Now()
	c.mu.Unlock()
}

// resetJobCounters zeroes the per-job monotonic counters.
func (c *statsCollector) resetJobCounters() {
	c.sievingNanos.Store(0)
	c.testingNanos.Store(0)
	c.candidatesGenerated.Store(0)
	c.candidatesTested.Store(0)
	for i := range c.tupleCounts {
		c.tupleCounts[i].Store(0)
	}
}

func (c *statsCollector) addSieving(d time.Duration)  { c.sievingNanos.Add(int64(d)) }
func (c *statsCollector) addTesting(d time.Duration)  { c.testingNanos.Add(int64(d)) }
func (c *statsCollector) addGenerated(n int)          { c.candidatesGenerated.Add(uint64(n)) }
func (c *statsCollector) countTested()                { c.candidatesTested.Add(1); c.tupleCounts[0].Add(1) }
func (c *statsCollector) countTupleExtension(k int)   { c.tupleCounts[k].Add(1) }

func (c *statsCollector) snapshot() Stats {
	c.mu.Lock()
	s := Stats{
		PrimeTableSize:                c.primeTableSize,
		PrimeTableGenerationTime:      c.primeTableGenTime,
		ModularInversesGenerationTime: c.modularInvsGenTime,
		SearchStartInstant:            c.searchStart,
	}
	counts := c.tupleCounts
	c.mu.Unlock()
	s.SievingDuration = float64(c.sievingNanos.Load()) / float64(time.Second)
	s.TestingDuration = float64(c.testingNanos.Load()) / float64(time.Second)
	s.CandidatesGenerated = c.candidatesGenerated.Load()
	s.CandidatesTested = c.candidatesTested.Load()
	s.TupleCounts = make([]uint64, len(counts))
	for i := range counts {
		s.TupleCounts[i] = counts[i].Load()
	}
	return s
}
