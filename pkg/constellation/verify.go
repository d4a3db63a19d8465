package constellation

import (
	"math/big"

	"github.com/mahdiidarabi/constellation/internal/fermat"
)

// verifyCandidate runs the Fermat cascade over the job's pattern offsets and
// applies the acceptance predicate: at least KMin consecutive primes from the
// first offset, and primality at every PatternMin-required position.
//
// Testing stops early once acceptance is impossible: a required position
// failed, or the consecutive chain broke below KMin.
func (e *Engine) verifyCandidate(s *search, n *big.Int, workerID int) (Output, bool) {
	e.stats.countTested()
	job := &s.job

	held := make([]uint64, 0, len(job.Pattern))
	m := new(big.Int)
	kConsecutive := 0
	chain := true
	for j, o := range job.Pattern {
		m.SetUint64(o)
		m.Add(m, n)
		if fermat.IsProbablePrime(m) {
			held = append(held, o)
			if chain {
				kConsecutive++
				e.stats.countTupleExtension(kConsecutive)
			}
			continue
		}
		chain = false
		if job.PatternMin[j] {
			return Output{}, false
		}
		if kConsecutive < job.KMin {
			return Output{}, false
		}
	}

	return Output{
		N:        new(big.Int).Set(n),
		Pattern:  held,
		JobID:    job.ID,
		WorkerID: workerID,
	}, true
}
