// Package fermat provides probabilistic primality tests over big integers.
package fermat

import (
	"math/big"
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// IsProbablePrime reports whether n passes the Fermat test with base 2:
// 2^(n-1) ≡ 1 (mod n). A passing n is probably prime; candidates of interest
// should be confirmed with a stronger test.
func IsProbablePrime(n *big.Int) bool {
	if n.Cmp(two) <= 0 {
		return n.Cmp(two) == 0
	}
	exponent := new(big.Int).Sub(n, one)
	result := new(big.Int).Exp(two, exponent, n)
	return result.Cmp(one) == 0
}

// IsPrimeMillerRabin reports whether n passes the given number of
// Miller-Rabin rounds (plus a Baillie-PSW test, per math/big). Use this to
// confirm outputs of the Fermat cascade.
func IsPrimeMillerRabin(n *big.Int, rounds int) bool {
	if n.Sign() <= 0 {
		return false
	}
	return n.ProbablyPrime(rounds)
}
