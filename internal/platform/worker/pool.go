package worker

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/arnforge/modkit/internal/platform/logging"
)

// sampleInterval is the EMA tick period (§4.13: "measures average CPU usage
// every 5 seconds").
const sampleInterval = 5 * time.Second

// emaAlpha smooths the per-tick sample into the running average.
const emaAlpha = 0.3

const (
	scaleUpThreshold   = 0.80
	scaleDownThreshold = 0.30
)

// Info is the externally visible shape of a worker (§4: "Worker info (C13):
// { id, taskCount, createdAt, backend }").
type Info struct {
	ID        string
	TaskCount int64
	CreatedAt time.Time
	Backend   string
}

// worker is a single-threaded executor: its inbox is drained by exactly one
// goroutine, so at most one Call runs on it at a time (§4.13).
type worker struct {
	id        string
	createdAt time.Time
	backend   string
	inbox     chan dispatchRequest
	pending   int64 // queue depth, used for least-loaded assignment
	taskCount int64 // cumulative calls processed, surfaced via Info
}

func newWorker(id, backend string, now time.Time) *worker {
	return &worker{
		id:        id,
		createdAt: now,
		backend:   backend,
		inbox:     make(chan dispatchRequest, 64),
	}
}

func (w *worker) run() {
	for req := range w.inbox {
		result, err := req.invoke(req.args)
		atomic.AddInt64(&w.taskCount, 1)
		atomic.AddInt64(&w.pending, -1)

		req.reply <- callResult{value: result, err: err}
	}
}

func (w *worker) info() Info {
	return Info{
		ID:        w.id,
		TaskCount: atomic.LoadInt64(&w.taskCount),
		CreatedAt: w.createdAt,
		Backend:   w.backend,
	}
}

// Pool is a dynamically sized collection of workers, scaled between Min and
// Max against a measured load average (§4.13).
type Pool struct {
	min, max int
	backend  string
	sampler  Sampler
	clock    clock.Clock
	logger   *zap.Logger

	mu      sync.Mutex
	workers []*worker
	nextID  int
	rr      uint64 // round-robin cursor

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	ema float64
}

// Option configures a Pool at construction.
type Option func(*Pool)

// WithMax overrides the default maxWorkers = max(2, cpuCount-1).
func WithMax(max int) Option {
	return func(p *Pool) { p.max = max }
}

// WithClock swaps the wall clock for a fake one in tests.
func WithClock(c clock.Clock) Option {
	return func(p *Pool) { p.clock = c }
}

// WithSampler overrides the default queue-depth Sampler, e.g. with one
// backed by an OS-level CPU metric.
func WithSampler(s Sampler) Option {
	return func(p *Pool) { p.sampler = s }
}

// WithBackend names the opaque executor handle attached to spawned workers
// (§4: Worker info "backend is an opaque handle to a local executor or, in a
// future mode, a remote node").
func WithBackend(backend string) Option {
	return func(p *Pool) { p.backend = backend }
}

// NewPool builds a Pool with min workers already running, and starts its
// 5-second scaling monitor.
func NewPool(min int, logger *zap.Logger, opts ...Option) *Pool {
	p := &Pool{
		min:     min,
		max:     defaultMaxWorkers(),
		backend: "local",
		clock:   clock.New(),
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.max < p.min {
		p.max = p.min
	}

	if p.sampler == nil {
		p.sampler = &poolLoadSampler{pool: p}
	}

	p.mu.Lock()
	for i := 0; i < p.min; i++ {
		p.spawnLocked()
	}
	p.mu.Unlock()

	p.wg.Add(1)

	go p.monitor()

	return p
}

// queueLoad is the live ratio of queued-plus-running calls to worker count,
// read under the pool mutex so it reflects the current worker set.
func (p *Pool) queueLoad() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.workers) == 0 {
		return 0
	}

	var total int64
	for _, w := range p.workers {
		total += atomic.LoadInt64(&w.pending)
	}

	load := float64(total) / float64(len(p.workers))
	if load > 1 {
		load = 1
	}

	return load
}

// spawnLocked adds a new worker. Callers must hold p.mu.
func (p *Pool) spawnLocked() *worker {
	p.nextID++
	w := newWorker(idFor(p.nextID), p.backend, p.clock.Now())
	p.workers = append(p.workers, w)

	go w.run()

	return w
}

func idFor(n int) string {
	return "worker-" + strconv.Itoa(n)
}

// terminateOneLocked removes and drains the most recently spawned idle
// worker above min. Callers must hold p.mu.
func (p *Pool) terminateOneLocked() bool {
	if len(p.workers) <= p.min {
		return false
	}

	for i := len(p.workers) - 1; i >= 0; i-- {
		w := p.workers[i]
		if atomic.LoadInt64(&w.pending) != 0 {
			continue
		}

		p.workers = append(p.workers[:i], p.workers[i+1:]...)
		close(w.inbox)

		return true
	}

	return false
}

// monitor samples load every 5 seconds, feeds it into an EMA, and scales the
// pool up or down against the 80%/30% thresholds (§4.13).
func (p *Pool) monitor() {
	defer p.wg.Done()

	ticker := p.clock.Ticker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Pool) tick() {
	sample := p.sampler.Sample()

	p.mu.Lock()
	if p.ema == 0 {
		p.ema = sample
	} else {
		p.ema = emaAlpha*sample + (1-emaAlpha)*p.ema
	}

	ema := p.ema
	workers := len(p.workers)

	var spawned, terminated bool

	switch {
	case ema > scaleUpThreshold && workers < p.max:
		p.spawnLocked()
		spawned = true
	case ema < scaleDownThreshold && workers > p.min:
		terminated = p.terminateOneLocked()
	}
	p.mu.Unlock()

	if spawned {
		p.logger.Info("worker pool scaled up", logging.Component("worker"), zap.Float64("load_ema", ema))
	}

	if terminated {
		p.logger.Info("worker pool scaled down", logging.Component("worker"), zap.Float64("load_ema", ema))
	}
}

// Workers returns a snapshot of every live worker's Info.
func (p *Pool) Workers() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos := make([]Info, len(p.workers))
	for i, w := range p.workers {
		infos[i] = w.info()
	}

	return infos
}

// Stop terminates the monitor loop and every worker goroutine.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()

		p.mu.Lock()
		for _, w := range p.workers {
			close(w.inbox)
		}
		p.workers = nil
		p.mu.Unlock()
	})
}
