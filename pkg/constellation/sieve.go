package constellation

import (
	"math/big"
	"math/bits"
)

// sieveWordBits is the granularity of the sieve bit array.
const sieveWordBits = 64

// sieve is the per-worker bit array covering one segment of candidates.
// Position k stands for base + k·p# + Δ; a set bit means eliminated. The
// array is allocated once per worker and re-zeroed between segments.
type sieve struct {
	size  int
	words []uint64

	modulus   *big.Int
	remainder *big.Int
}

func newSieve(size int) *sieve {
	return &sieve{
		size:      size,
		words:     make([]uint64, size/sieveWordBits),
		modulus:   new(big.Int),
		remainder: new(big.Int),
	}
}

func (s *sieve) reset() {
	for i := range s.words {
		s.words[i] = 0
	}
}

// eliminate crosses off every position k such that base + k·p# + Δ + o_i is
// divisible by some sieving prime. base must be a multiple of the primorial.
//
// For each prime p the least such k is ((p - ((base + Δ + o_i) mod p)) ·
// p#^(-1)) mod p; from there the positions repeat with stride p.
func (s *sieve) eliminate(base *big.Int, primes []uint32, table *inverseTable) {
	limit := uint64(s.size)
	for i, p := range primes {
		p64 := uint64(p)
		s.modulus.SetUint64(p64)
		baseMod := s.remainder.Mod(base, s.modulus).Uint64()
		inverse := table.inverses[i]
		deltaMod := table.deltaMod[i]
		row := table.offsetsMod[i*table.width : (i+1)*table.width]
		for _, offsetMod := range row {
			m := (baseMod + deltaMod + offsetMod) % p64
			var start uint64
			if m != 0 {
				start = ((p64 - m) * inverse) % p64
			}
			for f := start; f < limit; f += p64 {
				s.words[f>>6] |= 1 << (f & 63)
			}
		}
	}
}

// appendCandidates appends the surviving positions to out in ascending order
// and returns the extended slice.
func (s *sieve) appendCandidates(out []uint32) []uint32 {
	for wi, word := range s.words {
		word = ^word
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			out = append(out, uint32(wi*sieveWordBits+tz))
			word &= word - 1
		}
	}
	return out
}
