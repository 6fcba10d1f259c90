package job

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrEngineClosed is returned by Schedule* calls after Close.
var ErrEngineClosed = errors.New("job: engine closed")

// Func is a single unit of work. A non-nil return or a panic faults the
// job's handle; neither propagates out of the scheduling call.
type Func func() error

// IndexedFunc is invoked independently for each index in [0, count).
type IndexedFunc func(i int) error

// RangeFunc is invoked once per contiguous sub-range [start, start+n).
type RangeFunc func(start, n int) error

// Config holds construction-time engine settings.
type Config struct {
	// MaxParallelism bounds the worker pool. -1 means use all available
	// hardware parallelism.
	MaxParallelism int
}

// Engine executes arbitrary work on a bounded worker pool with explicit
// dependency ordering. Scheduling calls never block the caller; the only
// blocking operations are handle waits and CompleteAll.
type Engine struct {
	log     *zap.Logger
	workers int

	mu       sync.Mutex
	queue    []func()
	qcond    *sync.Cond // work arrived or engine closing
	drained  *sync.Cond // inflight reached zero
	inflight int        // scheduled handles not yet resolved
	closed   bool
	wg       sync.WaitGroup
}

// NewEngine starts the worker pool. Invalid configuration is reported
// synchronously.
func NewEngine(cfg Config, log *zap.Logger) (*Engine, error) {
	if cfg.MaxParallelism == 0 {
		return nil, fmt.Errorf("job: max parallelism must be positive or -1, got 0")
	}
	workers := cfg.MaxParallelism
	if workers < 0 {
		workers = runtime.NumCPU()
	}
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{log: log, workers: workers}
	e.qcond = sync.NewCond(&e.mu)
	e.drained = sync.NewCond(&e.mu)

	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.worker()
	}
	log.Debug("job engine started", zap.Int("workers", workers))
	return e, nil
}

// Workers returns the pool size.
func (e *Engine) Workers() int { return e.workers }

// Schedule enqueues fn to run once all deps have resolved (immediately when
// there are none). A dep's fault does not stop fn from running: dependency
// handles express ordering only.
func (e *Engine) Schedule(fn Func, deps ...*Handle) (*Handle, error) {
	if err := e.admit(); err != nil {
		return nil, err
	}
	h := newHandle()
	e.after(deps, func() {
		e.enqueue(func() {
			h.markRunning()
			h.resolve(invoke(fn))
			e.release()
		})
	})
	return h, nil
}

// ScheduleParallel enqueues fn for every index in [0, count), partitioned
// across the pool by the engine. Zero count resolves immediately without
// touching the worker pool.
func (e *Engine) ScheduleParallel(fn IndexedFunc, count int, deps ...*Handle) (*Handle, error) {
	return e.scheduleRanges(evenSplit(count, e.workers), func(start, n int) error {
		for i := start; i < start+n; i++ {
			if err := invoke(func() error { return fn(i) }); err != nil {
				return err
			}
		}
		return nil
	}, deps)
}

// ScheduleBatch enqueues fn once per contiguous sub-range of [0, count),
// each exactly batchSize long except a partial tail. batchSize <= 0 picks
// a size balancing per-chunk overhead against parallelism. Zero count
// resolves immediately.
func (e *Engine) ScheduleBatch(fn RangeFunc, count, batchSize int, deps ...*Handle) (*Handle, error) {
	if batchSize <= 0 {
		batchSize = count / (e.workers * 4)
		if batchSize < 1 {
			batchSize = 1
		}
	}
	var ranges [][2]int
	for start := 0; start < count; start += batchSize {
		n := batchSize
		if start+n > count {
			n = count - start
		}
		ranges = append(ranges, [2]int{start, n})
	}
	return e.scheduleRanges(ranges, func(start, n int) error {
		return invoke(func() error { return fn(start, n) })
	}, deps)
}

// evenSplit partitions [0, count) into at most chunks contiguous ranges;
// the first (count % chunks) ranges carry one extra index.
func evenSplit(count, chunks int) [][2]int {
	if count <= 0 {
		return nil
	}
	if chunks > count {
		chunks = count
	}
	base := count / chunks
	extra := count % chunks
	start := 0
	ranges := make([][2]int, chunks)
	for c := 0; c < chunks; c++ {
		n := base
		if c < extra {
			n++
		}
		ranges[c] = [2]int{start, n}
		start += n
	}
	return ranges
}

// scheduleRanges fans ranges out as pool tasks sharing one handle.
func (e *Engine) scheduleRanges(ranges [][2]int, runRange func(start, n int) error, deps []*Handle) (*Handle, error) {
	if err := e.admit(); err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		e.release()
		return newCompletedHandle(nil), nil
	}

	h := newHandle()
	fi := &fanIn{remaining: int32(len(ranges))}

	e.after(deps, func() {
		for _, r := range ranges {
			r := r
			e.enqueue(func() {
				h.markRunning()
				if fi.finish(runRange(r[0], r[1])) {
					h.resolve(fi.err)
					e.release()
				}
			})
		}
	})
	return h, nil
}

// CompleteAll blocks until every job scheduled so far has resolved, success
// or fault. Used for deterministic end-of-frame drains. Must not be called
// from a pool worker.
func (e *Engine) CompleteAll() {
	e.mu.Lock()
	for e.inflight > 0 {
		e.drained.Wait()
	}
	e.mu.Unlock()
}

// Close drains outstanding work and stops the pool. Idempotent. Subsequent
// Schedule* calls return ErrEngineClosed.
func (e *Engine) Close() {
	e.CompleteAll()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.qcond.Broadcast()
	e.mu.Unlock()
	e.wg.Wait()
	e.log.Debug("job engine closed")
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.qcond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		task := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		task()
	}
}

// admit reserves one inflight slot, rejecting work on a closed engine.
func (e *Engine) admit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.inflight++
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.inflight--
	if e.inflight == 0 {
		e.drained.Broadcast()
	}
	e.mu.Unlock()
}

func (e *Engine) enqueue(task func()) {
	e.mu.Lock()
	e.queue = append(e.queue, task)
	e.qcond.Signal()
	e.mu.Unlock()
}

// after runs start once every dep has resolved, immediately when deps is
// empty. Faulted deps still count as resolved: ordering, not
// short-circuiting.
func (e *Engine) after(deps []*Handle, start func()) {
	if len(deps) == 0 {
		start()
		return
	}
	remaining := int32(len(deps))
	for _, d := range deps {
		d.onDone(func() {
			if atomic.AddInt32(&remaining, -1) == 0 {
				start()
			}
		})
	}
}

// invoke runs fn, converting a panic into a captured error so a fault never
// takes down a pool worker.
func invoke(fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// fanIn accumulates chunk results for one parallel/batch handle.
type fanIn struct {
	mu        sync.Mutex
	err       error
	remaining int32
}

// finish records one chunk result and reports whether it was the last.
func (f *fanIn) finish(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = multierr.Append(f.err, err)
	f.remaining--
	return f.remaining == 0
}
