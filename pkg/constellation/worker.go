package constellation

import (
	"math/big"
	"time"
)

// worker repeatedly claims a sieve segment from the active job, sieves it,
// verifies the surviving candidates and pushes acceptances to the output
// queue. The sieve bit array and candidate buffer are owned by the worker and
// reused across segments.
func (e *Engine) worker(id int) error {
	sv := newSieve(e.params.SieveSize)
	factors := make([]uint32, 0, 4096)
	segmentBase := new(big.Int)
	scratch := new(big.Int)
	candidate := new(big.Int)

	for {
		s := e.awaitSearch()
		if s == nil {
			return nil
		}
		if !e.claimSegment(s, segmentBase, scratch) {
			continue
		}

		start := time.Now()
		sv.reset()
		sv.eliminate(segmentBase, e.primes, e.inverses)
		factors = sv.appendCandidates(factors[:0])
		e.stats.addSieving(time.Since(start))
		e.stats.addGenerated(len(factors))

		start = time.Now()
		e.testCandidates(s, id, segmentBase, factors, candidate, scratch)
		e.stats.addTesting(time.Since(start))
	}
}

// awaitSearch blocks until a claimable job is installed. It returns nil when
// the engine stops.
func (e *Engine) awaitSearch() *search {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if e.stopped {
			return nil
		}
		if s := e.search; s != nil && !s.exhausted.Load() {
			return s
		}
		e.cond.Wait()
	}
}

// claimSegment reserves the next segment of s and computes its base into
// segmentBase. It returns false when the job was cleared or its window is
// exhausted.
func (e *Engine) claimSegment(s *search, segmentBase, scratch *big.Int) bool {
	if e.epoch.Load() != s.epoch {
		return false
	}
	segment := s.cursor.Add(1) - 1
	scratch.SetUint64(segment)
	segmentBase.Mul(e.segmentSpan, scratch)
	segmentBase.Add(segmentBase, s.base)
	if segmentBase.Cmp(s.job.TargetMax) >= 0 {
		s.exhausted.Store(true)
		return false
	}
	return true
}

// testCandidates runs the verifier over a segment's candidates in ascending
// order, filtering those outside the job window. Candidate bases are
// segmentBase + factor·p# + Δ.
func (e *Engine) testCandidates(s *search, workerID int, segmentBase *big.Int, factors []uint32, candidate, scratch *big.Int) {
	cancelled := func() bool { return e.epoch.Load() != s.epoch }
	for _, factor := range factors {
		if cancelled() {
			return
		}
		scratch.SetUint64(uint64(factor))
		candidate.Mul(e.primorial, scratch)
		candidate.Add(candidate, segmentBase)
		candidate.Add(candidate, e.delta)
		if candidate.Cmp(s.job.TargetMin) < 0 {
			continue
		}
		if candidate.Cmp(s.job.TargetMax) > 0 {
			return
		}
		if out, ok := e.verifyCandidate(s, candidate, workerID); ok {
			e.queue.push(out, cancelled)
		}
	}
}
