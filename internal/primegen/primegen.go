// Package primegen generates tables of small primes and primorials for the
// wheel sieve.
package primegen

import (
	"math/big"
)

// Generate returns all prime numbers from 2 to limit inclusive, in ascending
// order. It runs an odd-only sieve of Eratosthenes over a packed bit table,
// so the working set is limit/16 bytes.
//
// The results are 32-bit values; callers must ensure limit fits in 32 bits.
func Generate(limit uint64) []uint32 {
	if limit < 2 {
		return nil
	}

	// composite[i>>6] bit i&63 marks the odd number 2i+1 as composite.
	composite := make([]uint64, limit/128+1)
	for f := uint64(3); f*f <= limit; f += 2 {
		if composite[f>>7]&(1<<((f>>1)&63)) != 0 {
			continue
		}
		// Multiples below f*f were eliminated by smaller factors.
		for m := (f * f) >> 1; m <= limit>>1; m += f {
			composite[m>>6] |= 1 << (m & 63)
		}
	}

	primes := []uint32{2}
	for i := uint64(1); 2*i+1 <= limit; i++ {
		if composite[i>>6]&(1<<(i&63)) == 0 {
			primes = append(primes, uint32(2*i+1))
		}
	}
	return primes
}

// Primorial computes the product of the first n primes. The given table must
// contain at least n primes.
func Primorial(primes []uint32, n int) *big.Int {
	primorial := big.NewInt(1)
	scratch := new(big.Int)
	for i := 0; i < n; i++ {
		scratch.SetUint64(uint64(primes[i]))
		primorial.Mul(primorial, scratch)
	}
	return primorial
}
