package constellation

import (
	"math/big"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine builds, initialises and starts an engine, stopping it when
// the test finishes.
func newTestEngine(t *testing.T, params Params) *Engine {
	t.Helper()
	e := New()
	require.NoError(t, e.SetParams(params))
	require.NoError(t, e.Init())
	require.NoError(t, e.StartWorkers())
	t.Cleanup(e.Stop)
	return e
}

// drainOutputs collects outputs until none arrive for settle, or max elapses.
func drainOutputs(e *Engine, settle, max time.Duration) []Output {
	var outs []Output
	deadline := time.Now().Add(max)
	last := time.Now()
	for time.Now().Before(deadline) {
		if o := e.PopOutput(); o != nil {
			outs = append(outs, *o)
			last = time.Now()
			continue
		}
		if time.Since(last) > settle {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return outs
}

func outputBases(outs []Output) []int64 {
	bases := make([]int64, len(outs))
	for i, o := range outs {
		bases[i] = o.N.Int64()
	}
	return bases
}

func sortedBases(outs []Output) []int64 {
	bases := outputBases(outs)
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	return bases
}

// twinParams sets up a mod-6 wheel with no sieving primes, so every residue
// 5 mod 6 reaches the verifier.
func twinParams(workers int) Params {
	return Params{
		Workers:              workers,
		ConstellationPattern: []uint64{0, 2},
		PrimeTableLimit:      4,
		PrimorialNumber:      2,
		PrimorialOffset:      5,
		SieveSize:            64,
	}
}

func TestEngineTwinSearch(t *testing.T) {
	run := func() ([]Output, []string) {
		e := newTestEngine(t, twinParams(1))
		warnings, err := e.AddJob(Job{
			ID:                1,
			ClearPreviousJobs: true,
			Pattern:           []uint64{0, 2},
			TargetMin:         big.NewInt(2),
			TargetMax:         big.NewInt(100),
			KMin:              2,
			PatternMin:        []bool{true, true},
		})
		require.NoError(t, err)
		return drainOutputs(e, 400*time.Millisecond, 20*time.Second), warnings
	}

	first, warnings := run()
	assert.Len(t, warnings, 1, "a window below one segment should warn")
	assert.Equal(t, []int64{5, 11, 17, 29, 41, 59, 71}, outputBases(first),
		"twin bases in [2, 100] on the 5 mod 6 wheel")
	for _, o := range first {
		assert.Equal(t, []uint64{0, 2}, o.Pattern)
		assert.Equal(t, uint64(1), o.JobID)
		assert.Equal(t, 0, o.WorkerID)
	}

	// A single worker with identical inputs is fully deterministic,
	// emission order included.
	second, _ := run()
	assert.Equal(t, outputBases(first), outputBases(second))
}

func TestEngineCousinSearch(t *testing.T) {
	e := newTestEngine(t, Params{
		Workers:              1,
		ConstellationPattern: []uint64{0, 4},
		PrimeTableLimit:      4,
		PrimorialNumber:      2,
		PrimorialOffset:      1,
		SieveSize:            64,
	})
	_, err := e.AddJob(Job{
		ID:                1,
		ClearPreviousJobs: true,
		Pattern:           []uint64{0, 4},
		TargetMin:         big.NewInt(2),
		TargetMax:         big.NewInt(100),
		KMin:              2,
		PatternMin:        []bool{true, true},
	})
	require.NoError(t, err)

	outs := drainOutputs(e, 400*time.Millisecond, 20*time.Second)
	assert.Equal(t, []int64{7, 13, 19, 37, 43, 67, 79, 97}, outputBases(outs),
		"cousin bases in [2, 100] on the 1 mod 6 wheel")
}

func sevenTupleParams(workers int) Params {
	return Params{
		Workers:              workers,
		ConstellationPattern: []uint64{0, 2, 6, 8, 12, 18, 20},
		PrimeTableLimit:      10,
		PrimorialNumber:      4,
		PrimorialOffset:      11,
		SieveSize:            1 << 10,
	}
}

func fullPatternMin(n int) []bool {
	min := make([]bool, n)
	for i := range min {
		min[i] = true
	}
	return min
}

func TestEngineSevenTupleSearch(t *testing.T) {
	e := newTestEngine(t, sevenTupleParams(4))
	_, err := e.AddJob(Job{
		ID:                7,
		ClearPreviousJobs: true,
		Pattern:           []uint64{0, 2, 6, 8, 12, 18, 20},
		TargetMin:         big.NewInt(0),
		TargetMax:         big.NewInt(2000000),
		KMin:              7,
		PatternMin:        fullPatternMin(7),
	})
	require.NoError(t, err)

	outs := drainOutputs(e, 500*time.Millisecond, 30*time.Second)
	assert.Equal(t, []int64{11, 165701, 1068701}, sortedBases(outs),
		"septuplet bases in [0, 2·10^6] on the 11 mod 210 wheel")

	stats := e.Stats()
	assert.Equal(t, stats.CandidatesTested, stats.TupleCounts[0])
	assert.GreaterOrEqual(t, stats.CandidatesGenerated, stats.CandidatesTested)
	assert.GreaterOrEqual(t, stats.TupleCounts[7], uint64(3))
	for k := 1; k < len(stats.TupleCounts); k++ {
		assert.GreaterOrEqual(t, stats.TupleCounts[k-1], stats.TupleCounts[k],
			"tuple counts must not grow with k")
	}
}

// TestEngineWorkerEquivalence checks that many workers find the same output
// set as one worker (order aside).
func TestEngineWorkerEquivalence(t *testing.T) {
	collect := func(workers int) []int64 {
		e := newTestEngine(t, sevenTupleParams(workers))
		_, err := e.AddJob(Job{
			ID:                1,
			ClearPreviousJobs: true,
			Pattern:           []uint64{0, 2, 6},
			TargetMin:         big.NewInt(0),
			TargetMax:         big.NewInt(200000),
			KMin:              3,
			PatternMin:        []bool{true, true, true},
		})
		require.NoError(t, err)
		return sortedBases(drainOutputs(e, 500*time.Millisecond, 30*time.Second))
	}

	single := collect(1)
	parallel := collect(4)
	assert.Equal(t, single, parallel)
	assert.Contains(t, single, int64(165701))
}

// TestEngineSubsetPattern verifies a job testing only a prefix of the
// sieving pattern.
func TestEngineSubsetPattern(t *testing.T) {
	e := newTestEngine(t, sevenTupleParams(2))
	_, err := e.AddJob(Job{
		ID:                3,
		ClearPreviousJobs: true,
		Pattern:           []uint64{0, 2, 6},
		TargetMin:         big.NewInt(0),
		TargetMax:         big.NewInt(10000),
		KMin:              3,
		PatternMin:        []bool{true, true, true},
	})
	require.NoError(t, err)

	outs := drainOutputs(e, 400*time.Millisecond, 20*time.Second)
	assert.Equal(t, []int64{11, 641, 1481, 4001, 9461}, sortedBases(outs),
		"triplet bases in [0, 10^4] among residues 11 mod 210")
	for _, o := range outs {
		assert.Equal(t, []uint64{0, 2, 6}, o.Pattern)
	}
}

func TestEngineSievedTwinSearch(t *testing.T) {
	e := newTestEngine(t, Params{
		Workers:              2,
		ConstellationPattern: []uint64{0, 2},
		PrimeTableLimit:      100,
		PrimorialNumber:      3,
		PrimorialOffset:      29,
		SieveSize:            64,
	})
	stats := e.Stats()
	assert.Equal(t, 22, stats.PrimeTableSize, "primes in (5, 100]")

	_, err := e.AddJob(Job{
		ID:                1,
		ClearPreviousJobs: true,
		Pattern:           []uint64{0, 2},
		TargetMin:         big.NewInt(10000),
		TargetMax:         big.NewInt(12000),
		KMin:              2,
		PatternMin:        []bool{true, true},
	})
	require.NoError(t, err)

	outs := drainOutputs(e, 400*time.Millisecond, 20*time.Second)
	expected := []int64{10139, 10499, 10529, 10709, 10859, 10889, 11069, 11159,
		11489, 11549, 11699, 11939, 11969}
	assert.Equal(t, expected, sortedBases(outs),
		"twin bases 29 mod 30 in [10^4, 1.2·10^4]")

	// The wheel and the sieve never let a shared factor through.
	primorial := e.Primorial()
	gcdScratch := new(big.Int)
	for _, o := range outs {
		for _, offset := range []int64{0, 2} {
			member := new(big.Int).Add(o.N, big.NewInt(offset))
			assert.Equal(t, 0, gcdScratch.GCD(nil, nil, member, primorial).Cmp(big.NewInt(1)))
		}
	}
}

// TestEngineJobReplacement submits a job and immediately clears it with a
// second one over a disjoint window: no output of the first job survives.
func TestEngineJobReplacement(t *testing.T) {
	e := newTestEngine(t, twinParams(2))

	j1Min := big.NewInt(1000000000)
	j1Max := new(big.Int).Add(j1Min, big.NewInt(100000))
	_, err := e.AddJob(Job{
		ID:                1,
		ClearPreviousJobs: true,
		Pattern:           []uint64{0, 2},
		TargetMin:         j1Min,
		TargetMax:         j1Max,
		KMin:              1,
		PatternMin:        []bool{false, false},
	})
	require.NoError(t, err)

	j2Min := new(big.Int).SetUint64(1000000000000)
	j2Max := new(big.Int).Add(j2Min, big.NewInt(100000))
	_, err = e.AddJob(Job{
		ID:                2,
		ClearPreviousJobs: true,
		Pattern:           []uint64{0, 2},
		TargetMin:         j2Min,
		TargetMax:         j2Max,
		KMin:              1,
		PatternMin:        []bool{false, false},
	})
	require.NoError(t, err)

	outs := drainOutputs(e, 500*time.Millisecond, 30*time.Second)
	require.NotEmpty(t, outs)
	for _, o := range outs {
		assert.Equal(t, uint64(2), o.JobID, "cleared job leaked an output")
		assert.True(t, o.N.Cmp(j2Min) >= 0 && o.N.Cmp(j2Max) <= 0,
			"output %s outside the active job window", o.N.String())
	}
}

func TestEngineAddJobValidation(t *testing.T) {
	e := New()
	require.NoError(t, e.SetParams(twinParams(1)))

	// Jobs before Init are rejected.
	_, err := e.AddJob(Job{})
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, e.Init())
	require.NoError(t, e.StartWorkers())
	t.Cleanup(e.Stop)

	// A bad job is reported and ignored; the engine keeps serving.
	_, err = e.AddJob(Job{
		ID:         9,
		Pattern:    []uint64{0, 4},
		TargetMin:  big.NewInt(2),
		TargetMax:  big.NewInt(100),
		KMin:       2,
		PatternMin: []bool{true, true},
	})
	assert.Error(t, err, "pattern outside the sieving pattern must be rejected")

	_, err = e.AddJob(Job{
		ID:                10,
		ClearPreviousJobs: true,
		Pattern:           []uint64{0, 2},
		TargetMin:         big.NewInt(2),
		TargetMax:         big.NewInt(100),
		KMin:              2,
		PatternMin:        []bool{true, true},
	})
	require.NoError(t, err)
	outs := drainOutputs(e, 400*time.Millisecond, 20*time.Second)
	for _, o := range outs {
		assert.Equal(t, uint64(10), o.JobID)
	}
	assert.NotEmpty(t, outs)
}

func TestEngineInitErrors(t *testing.T) {
	// Prime table limit not exceeding the largest primorial prime.
	e := New()
	require.NoError(t, e.SetParams(Params{
		ConstellationPattern: []uint64{0, 2},
		PrimeTableLimit:      3,
		PrimorialNumber:      2,
		PrimorialOffset:      5,
		SieveSize:            64,
	}))
	assert.ErrorIs(t, e.Init(), ErrInvalidParams)

	// Offset sharing a factor with the primorial.
	e = New()
	require.NoError(t, e.SetParams(Params{
		ConstellationPattern: []uint64{0, 2},
		PrimeTableLimit:      4,
		PrimorialNumber:      2,
		PrimorialOffset:      3,
		SieveSize:            64,
	}))
	assert.ErrorIs(t, e.Init(), ErrInvalidParams)

	// A failed Init leaves the engine reusable.
	require.NoError(t, e.SetParams(twinParams(1)))
	require.NoError(t, e.Init())
}

func TestEngineSetParams(t *testing.T) {
	e := New()
	require.NoError(t, e.SetParams(twinParams(1)))
	require.NoError(t, e.Init())

	assert.Error(t, e.SetParams(twinParams(1)), "parameters are frozen after init")

	p := e.Params()
	p.ConstellationPattern[0] = 99
	assert.Equal(t, uint64(0), e.Params().ConstellationPattern[0],
		"Params must return a copy")

	primorial := e.Primorial()
	require.NotNil(t, primorial)
	assert.Equal(t, int64(6), primorial.Int64())
}

func TestEnginePopOutputEmpty(t *testing.T) {
	e := New()
	assert.Nil(t, e.PopOutput())
}
