package constellation

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/go-multierror"
)

// Job describes one search request: a target window, the tuple pattern to
// test within the sieving pattern, and the acceptance predicate.
type Job struct {
	// ID tags every Output produced for this job.
	ID uint64

	// ClearPreviousJobs invalidates in-flight work of earlier jobs and drops
	// their queued outputs.
	ClearPreviousJobs bool

	// Pattern is the cumulative offsets to test. It must be an in-order
	// subset of the engine's sieving pattern.
	Pattern []uint64

	// TargetMin and TargetMax bound the emitted bases n (inclusive).
	TargetMin *big.Int
	TargetMax *big.Int

	// KMin is the minimum number of consecutive primes, counted from the
	// first offset, required for acceptance.
	KMin int

	// PatternMin marks the offsets that must individually test prime,
	// regardless of consecutiveness. Same length as Pattern.
	PatternMin []bool
}

// validate checks the job against §invariants and returns non-fatal warnings
// alongside any aggregated errors. A job with errors must not be started.
func (j *Job) validate(sievePattern []uint64, segmentSpan *big.Int) ([]string, error) {
	var warnings []string
	var errs *multierror.Error

	if len(j.Pattern) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("job %d: empty pattern", j.ID))
	} else {
		if j.Pattern[0] != 0 {
			errs = multierror.Append(errs, fmt.Errorf("job %d: pattern must start at offset 0", j.ID))
		}
		if !isOrderedSubset(j.Pattern, sievePattern) {
			errs = multierror.Append(errs, fmt.Errorf("job %d: pattern is not an in-order subset of the sieving pattern", j.ID))
		}
	}
	if len(j.PatternMin) != len(j.Pattern) {
		errs = multierror.Append(errs, fmt.Errorf("job %d: pattern_min has %d entries for a %d-offset pattern",
			j.ID, len(j.PatternMin), len(j.Pattern)))
	}
	if j.KMin < 0 || j.KMin > len(j.Pattern) {
		errs = multierror.Append(errs, fmt.Errorf("job %d: k_min %d out of range [0, %d]", j.ID, j.KMin, len(j.Pattern)))
	}
	if j.TargetMin == nil || j.TargetMax == nil {
		errs = multierror.Append(errs, fmt.Errorf("job %d: target bounds must be set", j.ID))
	} else if j.TargetMin.Cmp(j.TargetMax) > 0 {
		errs = multierror.Append(errs, fmt.Errorf("job %d: target_min exceeds target_max", j.ID))
	} else if segmentSpan != nil {
		window := new(big.Int).Sub(j.TargetMax, j.TargetMin)
		if window.Cmp(segmentSpan) < 0 {
			warnings = append(warnings, fmt.Sprintf("job %d: target window is smaller than one sieve segment", j.ID))
		}
	}
	if j.KMin <= 1 && errs.ErrorOrNil() == nil {
		warnings = append(warnings, fmt.Sprintf("job %d: k_min %d accepts nearly every candidate", j.ID, j.KMin))
	}

	return warnings, errs.ErrorOrNil()
}

// isOrderedSubset reports whether sub appears within full preserving order.
func isOrderedSubset(sub, full []uint64) bool {
	i := 0
	for _, v := range full {
		if i == len(sub) {
			break
		}
		if sub[i] == v {
			i++
		}
	}
	return i == len(sub)
}
