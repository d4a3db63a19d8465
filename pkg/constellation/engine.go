package constellation

import (
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mahdiidarabi/constellation/internal/primegen"
)

// ErrNotInitialized is returned when an operation requires Init to have run.
var ErrNotInitialized = errors.New("engine not initialized")

// outputQueueCapacity bounds the shared output queue; workers block while it
// is full so long unattended runs cannot grow without bound.
const outputQueueCapacity = 1024

var bigOne = big.NewInt(1)

// search is one installed job together with its sieving geometry and claim
// state. Immutable except for the atomic cursor and exhaustion flag.
type search struct {
	job       Job
	epoch     uint64
	base      *big.Int // largest primorial multiple ≤ TargetMin
	cursor    atomic.Uint64
	exhausted atomic.Bool
}

// Engine coordinates a customizable search for prime constellations: it owns
// the precomputed tables, the active job, the worker pool and the output
// queue.
type Engine struct {
	mu   sync.Mutex
	cond sync.Cond

	log *logrus.Logger

	params      Params
	configured  bool
	initialized bool
	started     bool
	stopped     bool

	primorial   *big.Int
	delta       *big.Int
	primes      []uint32 // sieving primes, beyond the primorial primes
	inverses    *inverseTable
	segmentSpan *big.Int // SieveSize · p#

	epoch  atomic.Uint64
	search *search // guarded by mu

	queue *outputQueue
	stats *statsCollector
	group *errgroup.Group
}

// New creates an engine in the uninitialised state. Call SetParams, Init and
// StartWorkers before submitting jobs.
func New() *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	e := &Engine{
		log:   logger,
		queue: newOutputQueue(outputQueueCapacity),
		stats: newStatsCollector(),
	}
	e.cond.L = &e.mu
	return e
}

// WithLogger sets the logger used for engine events.
func (e *Engine) WithLogger(logger *logrus.Logger) *Engine {
	e.log = logger
	return e
}

// SetParams applies search parameters, filling zero fields with defaults.
// Parameters are frozen once Init has run.
func (e *Engine) SetParams(params Params) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return errors.Wrap(ErrInvalidParams, "parameters cannot change after init")
	}
	resolved, err := params.withDefaults()
	if err != nil {
		return err
	}
	e.params = resolved
	e.configured = true
	return nil
}

// Params returns a copy of the resolved parameters.
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.params
	p.ConstellationPattern = append([]uint64(nil), p.ConstellationPattern...)
	return p
}

// Primorial returns the primorial used for sieving. Valid after Init.
func (e *Engine) Primorial() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.primorial == nil {
		return nil
	}
	return new(big.Int).Set(e.primorial)
}

// Init builds the job-independent tables: the prime table, the primorial and
// the modular-inverse table. On error the engine state is left untouched.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.configured {
		return errors.Wrap(ErrInvalidParams, "parameters not set")
	}
	if e.initialized {
		return errors.Wrap(ErrInvalidParams, "already initialized")
	}
	params := e.params

	start := time.Now()
	primes := primegen.Generate(params.PrimeTableLimit)
	tableTime := time.Since(start).Seconds()
	if len(primes) < params.PrimorialNumber {
		return errors.Wrapf(ErrInvalidParams,
			"prime table limit %d yields %d primes, the primorial needs %d",
			params.PrimeTableLimit, len(primes), params.PrimorialNumber)
	}
	if uint64(primes[params.PrimorialNumber-1]) >= params.PrimeTableLimit {
		return errors.Wrapf(ErrInvalidParams,
			"prime table limit %d does not exceed the largest primorial prime %d",
			params.PrimeTableLimit, primes[params.PrimorialNumber-1])
	}

	primorial := primegen.Primorial(primes, params.PrimorialNumber)
	delta := new(big.Int).SetUint64(params.PrimorialOffset)

	gcd := new(big.Int)
	shifted := new(big.Int)
	for _, o := range params.ConstellationPattern {
		shifted.SetUint64(o)
		shifted.Add(shifted, delta)
		if gcd.GCD(nil, nil, shifted, primorial).Cmp(bigOne) != 0 {
			return errors.Wrapf(ErrInvalidParams,
				"primorial offset %d shares a factor with the primorial at pattern offset %d",
				params.PrimorialOffset, o)
		}
	}

	sievePrimes := primes[params.PrimorialNumber:]
	start = time.Now()
	inverses, err := buildInverseTable(primorial, params.PrimorialOffset, params.ConstellationPattern, sievePrimes)
	if err != nil {
		return err
	}
	inversesTime := time.Since(start).Seconds()

	e.primorial = primorial
	e.delta = delta
	e.primes = sievePrimes
	e.inverses = inverses
	e.segmentSpan = new(big.Int).Mul(primorial, big.NewInt(int64(params.SieveSize)))
	e.stats.setTableStats(len(sievePrimes), tableTime, inversesTime, len(params.ConstellationPattern))
	e.initialized = true

	e.log.WithFields(logrus.Fields{
		"primes":           len(sievePrimes),
		"primorial_bits":   primorial.BitLen(),
		"primorial_offset": params.PrimorialOffset,
	}).Info("tables built")
	return nil
}

// StartWorkers spawns the worker threads. Workers idle until a job is added.
func (e *Engine) StartWorkers() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return ErrNotInitialized
	}
	if e.started {
		return errors.New("workers already started")
	}
	e.stats.markSearchStart()
	group := &errgroup.Group{}
	for id := 0; id < e.params.Workers; id++ {
		id := id
		group.Go(func() error {
			return e.worker(id)
		})
	}
	e.group = group
	e.started = true
	e.log.WithField("workers", e.params.Workers).Info("workers started")
	return nil
}

// AddJob validates and installs a job. Validation problems are returned to
// the caller and never reach the workers: on error the job is ignored. On
// success the job replaces the active one; if ClearPreviousJobs is set the
// epoch is bumped so in-flight segments of earlier jobs are discarded, and
// their queued outputs dropped.
func (e *Engine) AddJob(job Job) ([]string, error) {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return nil, ErrNotInitialized
	}
	warnings, err := job.validate(e.params.ConstellationPattern, e.segmentSpan)
	if err != nil {
		e.mu.Unlock()
		return warnings, err
	}

	epoch := e.epoch.Load()
	if job.ClearPreviousJobs {
		epoch = e.epoch.Add(1)
	}
	installed := &search{
		job:   copyJob(job),
		epoch: epoch,
		base:  alignToPrimorial(job.TargetMin, e.primorial),
	}
	e.search = installed
	e.stats.resetJobCounters()
	e.cond.Broadcast()
	e.mu.Unlock()

	if job.ClearPreviousJobs {
		e.queue.purge(func(o Output) bool { return o.JobID == job.ID })
	}
	e.log.WithFields(logrus.Fields{
		"job":   job.ID,
		"clear": job.ClearPreviousJobs,
	}).Debug("job installed")
	return warnings, nil
}

// PopOutput removes and returns the oldest output, or nil if none is queued.
func (e *Engine) PopOutput() *Output {
	o, ok := e.queue.pop()
	if !ok {
		return nil
	}
	return &o
}

// Stats returns a snapshot of the search statistics.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Stop shuts the engine down: in-flight segments are invalidated, idle
// workers are woken and all workers are joined.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.epoch.Add(1)
	e.cond.Broadcast()
	group := e.group
	e.mu.Unlock()

	e.queue.close()
	if group != nil {
		_ = group.Wait()
	}
	e.log.Info("engine stopped")
}

func copyJob(job Job) Job {
	job.Pattern = append([]uint64(nil), job.Pattern...)
	job.PatternMin = append([]bool(nil), job.PatternMin...)
	job.TargetMin = new(big.Int).Set(job.TargetMin)
	job.TargetMax = new(big.Int).Set(job.TargetMax)
	return job
}

// alignToPrimorial rounds target down to a multiple of the primorial, so the
// first segment still covers window members below the first multiple past
// TargetMin. Candidates below TargetMin are filtered during testing.
func alignToPrimorial(target, primorial *big.Int) *big.Int {
	base := new(big.Int).Mod(target, primorial)
	return base.Sub(target, base)
}
