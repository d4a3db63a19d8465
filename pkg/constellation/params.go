package constellation

import (
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidParams is returned (wrapped with detail) when search parameters
// fail validation.
var ErrInvalidParams = errors.New("invalid search parameters")

// ErrNoHardcodedOffset is returned when the chosen constellation pattern has
// no default primorial offset and none was supplied.
var ErrNoHardcodedOffset = errors.New("no hardcoded primorial offset for pattern")

// Params configures a search. A zero value in any field selects the default.
type Params struct {
	// Workers is the number of worker threads (0 = detected parallelism).
	Workers int

	// ConstellationPattern is the cumulative offset sequence o_0=0, o_1, ...
	// defining the tuples to sieve for (default: [0, 2, 6, 8, 12, 18, 20]).
	ConstellationPattern []uint64

	// PrimeTableLimit bounds the sieving prime table (default: 16777216).
	// Must fit in 32 bits.
	PrimeTableLimit uint64

	// PrimorialNumber is how many primes form the primorial (default: 120).
	PrimorialNumber int

	// PrimorialOffset is the residue Δ added to primorial multiples. 0 means
	// look the pattern up in the hardcoded table.
	PrimorialOffset uint64

	// SieveSize is the sieve segment length in bits (default: 1 << 25).
	// Rounded down to a multiple of the 64-bit word size.
	SieveSize int
}

// defaultPrimorialOffsets maps cumulative constellation patterns to a known
// good primorial offset Δ with gcd(Δ + o_i, p#) = 1 for every offset.
var defaultPrimorialOffsets = []struct {
	pattern []uint64
	offset  uint64
}{
	{[]uint64{0}, 380284918609481},
	{[]uint64{0, 2}, 380284918609481},
	{[]uint64{0, 2, 6}, 380284918609481},
	{[]uint64{0, 4, 6}, 1418575498573},
	{[]uint64{0, 2, 6, 8}, 380284918609481},
	{[]uint64{0, 2, 6, 8, 12}, 380284918609481},
	{[]uint64{0, 4, 6, 10, 12}, 1418575498597},
	{[]uint64{0, 4, 6, 10, 12, 16}, 1091257},
	{[]uint64{0, 2, 6, 8, 12, 18, 20}, 380284918609481},
	{[]uint64{0, 2, 8, 12, 14, 18, 20}, 1418575498589},
	{[]uint64{0, 2, 6, 8, 12, 18, 20, 26}, 380284918609481},
	{[]uint64{0, 2, 6, 12, 14, 20, 24, 26}, 1418575498577},
	{[]uint64{0, 6, 8, 14, 18, 20, 24, 26}, 1418575498583},
	{[]uint64{0, 2, 6, 8, 12, 18, 20, 26, 30}, 380284918609481},
	{[]uint64{0, 2, 6, 12, 14, 20, 24, 26, 30}, 1418575498577},
	{[]uint64{0, 4, 6, 10, 16, 18, 24, 28, 30}, 1418575498573},
	{[]uint64{0, 4, 10, 12, 18, 22, 24, 28, 30}, 1418575498579},
	{[]uint64{0, 2, 6, 8, 12, 18, 20, 26, 30, 32}, 380284918609481},
	{[]uint64{0, 2, 6, 12, 14, 20, 24, 26, 30, 32}, 1418575498577},
	{[]uint64{0, 2, 6, 8, 12, 18, 20, 26, 30, 32, 36}, 380284918609481},
	{[]uint64{0, 4, 6, 10, 16, 18, 24, 28, 30, 34, 36}, 1418575498573},
	{[]uint64{0, 2, 6, 8, 12, 18, 20, 26, 30, 32, 36, 42}, 380284918609481},
	{[]uint64{0, 6, 10, 12, 16, 22, 24, 30, 34, 36, 40, 42}, 1418575498567},
}

// LookupPrimorialOffset returns the hardcoded primorial offset for the given
// cumulative pattern, if one exists.
func LookupPrimorialOffset(pattern []uint64) (uint64, bool) {
	for _, entry := range defaultPrimorialOffsets {
		if patternsEqual(entry.pattern, pattern) {
			return entry.offset, true
		}
	}
	return 0, false
}

func patternsEqual(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// validatePattern checks a cumulative offset sequence: o_0 = 0, strictly
// increasing, and every later offset even (constellation primes beyond the
// first must all be odd).
func validatePattern(pattern []uint64) error {
	if len(pattern) == 0 {
		return errors.Wrap(ErrInvalidParams, "empty constellation pattern")
	}
	if pattern[0] != 0 {
		return errors.Wrapf(ErrInvalidParams, "pattern must start at offset 0, got %d", pattern[0])
	}
	for i := 1; i < len(pattern); i++ {
		if pattern[i] <= pattern[i-1] {
			return errors.Wrapf(ErrInvalidParams, "pattern offsets must be strictly increasing at index %d", i)
		}
		if pattern[i]%2 != 0 {
			return errors.Wrapf(ErrInvalidParams, "pattern offset %d is odd", pattern[i])
		}
	}
	return nil
}

// withDefaults fills zero fields with their defaults and resolves the
// primorial offset from the hardcoded table when possible.
func (p Params) withDefaults() (Params, error) {
	if p.Workers == 0 {
		p.Workers = runtime.NumCPU()
	}
	if len(p.ConstellationPattern) == 0 {
		p.ConstellationPattern = []uint64{0, 2, 6, 8, 12, 18, 20}
	}
	if err := validatePattern(p.ConstellationPattern); err != nil {
		return p, err
	}
	if p.PrimeTableLimit == 0 {
		p.PrimeTableLimit = 16777216
	}
	if p.PrimeTableLimit > math.MaxUint32 {
		return p, errors.Wrapf(ErrInvalidParams, "prime table limit %d does not fit in 32 bits", p.PrimeTableLimit)
	}
	if p.PrimorialNumber == 0 {
		p.PrimorialNumber = 120
	}
	if p.PrimorialNumber < 1 {
		return p, errors.Wrapf(ErrInvalidParams, "primorial number %d", p.PrimorialNumber)
	}
	if p.PrimorialOffset == 0 {
		offset, ok := LookupPrimorialOffset(p.ConstellationPattern)
		if !ok {
			return p, ErrNoHardcodedOffset
		}
		p.PrimorialOffset = offset
	}
	if p.SieveSize == 0 {
		p.SieveSize = 1 << 25
	}
	p.SieveSize -= p.SieveSize % sieveWordBits
	if p.SieveSize <= 0 {
		return p, errors.Wrap(ErrInvalidParams, "sieve size rounds to zero words")
	}
	return p, nil
}

// ParsePattern parses a comma-separated cumulative offset list such as
// "0, 2, 6, 8, 12, 18, 20".
func ParsePattern(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	pattern := make([]uint64, 0, len(parts))
	for _, part := range parts {
		offset, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidParams, "bad pattern offset %q", part)
		}
		pattern = append(pattern, offset)
	}
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}
	return pattern, nil
}
