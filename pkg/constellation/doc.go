// Package constellation implements a customizable search for prime
// constellations (prime k-tuplets): base integers n such that n+o_i is prime
// for a pattern of offsets o_0=0, o_1, ..., o_{L-1}.
//
// Candidates are discovered with a primorial wheel sieve — a compact bit
// array over positions n = B + k·p# + Δ from which every position divisible
// by a small prime at some offset has been crossed off using precomputed
// modular inverses — and verified with a Fermat base-2 cascade. Bases are
// large integers, commonly around 2^1024, as used for Riecoin-style
// proof-of-work and constellation record attempts.
//
// # Quick Start
//
//	import "github.com/mahdiidarabi/constellation/pkg/constellation"
//
//	engine := constellation.New()
//	if err := engine.SetParams(constellation.Params{}); err != nil {
//	    log.Fatal(err)
//	}
//	if err := engine.Init(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := engine.StartWorkers(); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	target := new(big.Int).Lsh(big.NewInt(1), 1024)
//	warnings, err := engine.AddJob(constellation.Job{
//	    ID:                1,
//	    ClearPreviousJobs: true,
//	    Pattern:           engine.Params().ConstellationPattern,
//	    TargetMin:         target,
//	    TargetMax:         new(big.Int).Lsh(target, 1),
//	    KMin:              7,
//	    PatternMin:        []bool{true, true, true, true, true, true, true},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, w := range warnings {
//	    log.Println(w)
//	}
//
//	for {
//	    if out := engine.PopOutput(); out != nil {
//	        fmt.Printf("%v + %v\n", out.N, out.Pattern)
//	    }
//	}
//
// Workers claim sieve segments from the active job through an atomic cursor;
// submitting a job with ClearPreviousJobs discards in-flight work and queued
// outputs of earlier jobs. Outputs are probabilistic: confirm records with a
// stronger test such as fermat.IsPrimeMillerRabin.
package constellation
