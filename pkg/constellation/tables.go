package constellation

import (
	"math/big"

	"github.com/pkg/errors"
)

// inverseTable holds, for every sieving prime p, the precomputed values
// needed to locate sieve positions without big-integer division in the inner
// loop: p#^(-1) mod p, Δ mod p, and each pattern offset mod p.
type inverseTable struct {
	inverses   []uint64 // p#^(-1) mod p
	deltaMod   []uint64 // Δ mod p
	offsetsMod []uint64 // o_i mod p, flattened len(primes)×len(pattern)
	width      int      // pattern length
}

// buildInverseTable computes the modular inverses of the primorial against
// every sieving prime. Every prime in the table is beyond the primorial
// primes, so the inverse must exist; a missing inverse means the prime table
// and primorial are inconsistent and init must fail.
func buildInverseTable(primorial *big.Int, delta uint64, pattern []uint64, primes []uint32) (*inverseTable, error) {
	table := &inverseTable{
		inverses:   make([]uint64, len(primes)),
		deltaMod:   make([]uint64, len(primes)),
		offsetsMod: make([]uint64, len(primes)*len(pattern)),
		width:      len(pattern),
	}

	modulus := new(big.Int)
	inverse := new(big.Int)
	for i, p := range primes {
		p64 := uint64(p)
		modulus.SetUint64(p64)
		if inverse.ModInverse(primorial, modulus) == nil {
			return nil, errors.Wrapf(ErrInvalidParams, "primorial not invertible modulo sieving prime %d", p)
		}
		table.inverses[i] = inverse.Uint64()
		table.deltaMod[i] = delta % p64
		for j, o := range pattern {
			table.offsetsMod[i*table.width+j] = o % p64
		}
	}
	return table, nil
}
