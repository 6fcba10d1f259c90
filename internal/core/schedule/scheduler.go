package schedule

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/riftvale/engine/internal/core/ecs"
	"github.com/riftvale/engine/internal/core/job"
)

var (
	// ErrSchedulerClosed is returned by mutating calls and Update after
	// Close.
	ErrSchedulerClosed = errors.New("schedule: scheduler closed")
	// ErrAlreadyRegistered is returned when the same system instance is
	// registered twice. An explicit error rather than a silent no-op: a
	// duplicate registration is a caller bug that would distort the batch
	// shape the caller expects.
	ErrAlreadyRegistered = errors.New("schedule: system already registered")
)

// Config holds construction-time scheduler settings.
type Config struct {
	// MinBatchSizeForParallel: batches with fewer enabled members than this
	// run sequentially on the calling thread, with no observable
	// difference. Values below 2 disable the optimization.
	MinBatchSizeForParallel int
}

// Scheduler runs registered systems once per frame, concurrently where
// their declared footprints allow it and strictly batch-after-batch where
// they do not. Registration and plan rebuilds are cheap relative to frames:
// the plan is recomputed only when the registered set changes.
type Scheduler struct {
	log         *zap.Logger
	engine      *job.Engine
	minParallel int

	mu        sync.Mutex
	regs      []*registration
	index     map[System]*registration
	plan      *plan
	typeNames map[ecs.TypeID]string
	nextID    int
	closed    bool
}

// NewScheduler wires the scheduler onto a job engine. The engine is shared
// infrastructure and stays open when the scheduler closes.
func NewScheduler(cfg Config, engine *job.Engine, log *zap.Logger) (*Scheduler, error) {
	if engine == nil {
		return nil, fmt.Errorf("schedule: nil job engine")
	}
	if cfg.MinBatchSizeForParallel < 0 {
		return nil, fmt.Errorf("schedule: min batch size must be >= 0, got %d", cfg.MinBatchSizeForParallel)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		log:         log,
		engine:      engine,
		minParallel: cfg.MinBatchSizeForParallel,
		index:       make(map[System]*registration),
		typeNames:   make(map[ecs.TypeID]string),
	}, nil
}

// Register extracts the system's declared footprint once and invalidates
// the batch plan. Registering the same instance twice returns
// ErrAlreadyRegistered.
func (s *Scheduler) Register(sys System) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	if _, dup := s.index[sys]; dup {
		return ErrAlreadyRegistered
	}
	reg := &registration{
		id:   s.nextID,
		sys:  sys,
		name: systemName(sys),
		deps: extractDependencies(sys, s.typeNames),
	}
	reg.enabled.Store(true)
	s.nextID++
	s.regs = append(s.regs, reg)
	s.index[sys] = reg
	s.plan = nil
	s.log.Debug("system registered",
		zap.String("system", reg.name),
		zap.Int("id", reg.id),
		zap.Int("reads", len(reg.deps.Reads)),
		zap.Int("writes", len(reg.deps.Writes)))
	return nil
}

// Unregister removes the system and invalidates the plan. Reports whether
// it was present.
func (s *Scheduler) Unregister(sys System) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.index[sys]
	if !ok {
		return false
	}
	delete(s.index, sys)
	for i, r := range s.regs {
		if r == reg {
			s.regs = append(s.regs[:i], s.regs[i+1:]...)
			break
		}
	}
	s.plan = nil
	return true
}

// Clear removes all systems.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs = nil
	s.index = make(map[System]*registration)
	s.plan = nil
}

// Len returns the number of registered systems.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.regs)
}

// SetEnabled flips a system's dispatch flag. The flag is consulted
// immediately before every dispatch, so disabling takes effect on the next
// frame without a replan. Reports whether the system is registered.
func (s *Scheduler) SetEnabled(sys System, enabled bool) bool {
	s.mu.Lock()
	reg, ok := s.index[sys]
	s.mu.Unlock()
	if !ok {
		return false
	}
	reg.enabled.Store(enabled)
	return true
}

// Update executes the current batch plan once. Batches run strictly in plan
// order; enabled members of one batch are dispatched concurrently through
// the job engine and the frame waits for the whole batch before moving on.
// A faulting system never stops its batch siblings; every fault is captured
// and the aggregate, naming each offending system, is returned once the
// full pass has finished.
func (s *Scheduler) Update(dt time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	p := s.ensurePlan()
	s.mu.Unlock()

	var frameErr error
	for _, batch := range p.batches {
		members := make([]*registration, 0, len(batch))
		for _, reg := range batch {
			if reg.enabled.Load() {
				members = append(members, reg)
			}
		}
		switch {
		case len(members) == 0:
		case s.minParallel >= 2 && len(members) < s.minParallel:
			for _, m := range members {
				frameErr = multierr.Append(frameErr, runInline(m, dt))
			}
		default:
			handles := make([]*job.Handle, len(members))
			for i, m := range members {
				m := m
				h, err := s.engine.Schedule(func() error {
					m.sys.Update(dt)
					return nil
				})
				if err != nil {
					// Engine torn down underneath us: a usage error, not
					// a work fault.
					return multierr.Append(frameErr, err)
				}
				handles[i] = h
			}
			job.Combine(handles...).Wait()
			for i, h := range handles {
				if h.Faulted() {
					frameErr = multierr.Append(frameErr,
						fmt.Errorf("system %s: %w", members[i].name, h.Err()))
				}
			}
		}
	}
	if frameErr != nil {
		s.log.Warn("frame completed with faults", zap.Error(frameErr))
	}
	return frameErr
}

// Batches returns read-only views of the current plan, building it if the
// registered set changed.
func (s *Scheduler) Batches() []BatchView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensurePlan().views(s.typeNames)
}

// Analysis summarizes the current plan for tooling.
func (s *Scheduler) Analysis() Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensurePlan().analysis()
}

// Close rejects further mutation and frames. It does not close the shared
// job engine.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// ensurePlan lazily rebuilds the plan. Caller holds s.mu.
func (s *Scheduler) ensurePlan() *plan {
	if s.plan == nil {
		s.plan = buildPlan(s.regs)
		a := s.plan.analysis()
		s.log.Debug("batch plan rebuilt",
			zap.Int("systems", a.SystemCount),
			zap.Int("batches", a.BatchCount),
			zap.Int("conflicts", a.ConflictCount),
			zap.Int("max_parallelism", a.MaxParallelism))
	}
	return s.plan
}

func runInline(m *registration, dt time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("system %s: panic: %v", m.name, r)
		}
	}()
	m.sys.Update(dt)
	return nil
}

func systemName(sys System) string {
	if n, ok := sys.(Named); ok {
		return n.Name()
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", sys), "*")
}
