package job

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, workers int) *Engine {
	t.Helper()
	e, err := NewEngine(Config{MaxParallelism: workers}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestNewEngineRejectsZeroParallelism(t *testing.T) {
	if _, err := NewEngine(Config{MaxParallelism: 0}, nil); err == nil {
		t.Fatal("expected configuration error for MaxParallelism 0")
	}
}

func TestScheduleRunsAndCompletes(t *testing.T) {
	e := newTestEngine(t, 4)

	var ran atomic.Bool
	h, err := e.Schedule(func() error {
		ran.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	h.Wait()
	if !ran.Load() {
		t.Fatal("job did not run")
	}
	if !h.Completed() || h.Faulted() {
		t.Fatalf("want completed without fault, got completed=%v faulted=%v", h.Completed(), h.Faulted())
	}
}

func TestDependencyOrdering(t *testing.T) {
	// Job ordering must hold on every run, not just usually.
	e := newTestEngine(t, 8)

	for i := 0; i < 100; i++ {
		var value atomic.Int32
		a, err := e.Schedule(func() error {
			value.Store(42)
			return nil
		})
		if err != nil {
			t.Fatalf("Schedule a: %v", err)
		}
		var observed int32
		b, err := e.Schedule(func() error {
			observed = value.Load()
			return nil
		}, a)
		if err != nil {
			t.Fatalf("Schedule b: %v", err)
		}
		b.Wait()
		if observed != 42 {
			t.Fatalf("iteration %d: dependent job observed %d, want 42", i, observed)
		}
	}
}

func TestFaultIsCapturedNotRaised(t *testing.T) {
	e := newTestEngine(t, 2)

	boom := errors.New("boom")
	h, err := e.Schedule(func() error { return boom })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	h.Wait()
	if !h.Faulted() {
		t.Fatal("handle should be faulted")
	}
	if !errors.Is(h.Err(), boom) {
		t.Fatalf("captured error = %v, want %v", h.Err(), boom)
	}
	// The error stays retrievable.
	if !errors.Is(h.Err(), boom) {
		t.Fatal("error not retrievable on second read")
	}
}

func TestPanicBecomesFault(t *testing.T) {
	e := newTestEngine(t, 2)

	h, err := e.Schedule(func() error { panic("kaboom") })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	h.Wait()
	if !h.Faulted() {
		t.Fatal("panicking job should fault its handle")
	}
	if h.Err() == nil {
		t.Fatal("panic should be captured as an error")
	}
}

func TestFaultedDependencyDoesNotShortCircuit(t *testing.T) {
	e := newTestEngine(t, 2)

	a, err := e.Schedule(func() error { return errors.New("upstream") })
	if err != nil {
		t.Fatalf("Schedule a: %v", err)
	}
	var ran atomic.Bool
	b, err := e.Schedule(func() error {
		ran.Store(true)
		return nil
	}, a)
	if err != nil {
		t.Fatalf("Schedule b: %v", err)
	}
	b.Wait()
	if !ran.Load() {
		t.Fatal("dependent job must still run after its dependency faulted")
	}
	if b.Faulted() {
		t.Fatal("dependent job must not inherit the upstream fault")
	}
}

func TestScheduleParallel(t *testing.T) {
	e := newTestEngine(t, 4)

	const count = 1000
	hits := make([]int32, count)
	h, err := e.ScheduleParallel(func(i int) error {
		atomic.AddInt32(&hits[i], 1)
		return nil
	}, count)
	if err != nil {
		t.Fatalf("ScheduleParallel: %v", err)
	}
	h.Wait()
	for i, n := range hits {
		if n != 1 {
			t.Fatalf("index %d invoked %d times, want exactly once", i, n)
		}
	}
}

func TestScheduleParallelZeroCount(t *testing.T) {
	e := newTestEngine(t, 4)

	var invoked atomic.Bool
	h, err := e.ScheduleParallel(func(int) error {
		invoked.Store(true)
		return nil
	}, 0)
	if err != nil {
		t.Fatalf("ScheduleParallel: %v", err)
	}
	if !h.Completed() {
		t.Fatal("zero-count handle must be already complete")
	}
	if invoked.Load() {
		t.Fatal("zero-count action must never be invoked")
	}
}

func TestScheduleBatch(t *testing.T) {
	cases := []struct {
		name      string
		count     int
		batchSize int
	}{
		{"explicit size", 100, 7},
		{"auto size", 1000, 0},
		{"size larger than count", 5, 64},
		{"single element", 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t, 4)
			hits := make([]int32, tc.count)
			h, err := e.ScheduleBatch(func(start, n int) error {
				for i := start; i < start+n; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
				return nil
			}, tc.count, tc.batchSize)
			if err != nil {
				t.Fatalf("ScheduleBatch: %v", err)
			}
			h.Wait()
			for i, n := range hits {
				if n != 1 {
					t.Fatalf("index %d covered %d times, want exactly once", i, n)
				}
			}
		})
	}
}

func TestScheduleBatchZeroCount(t *testing.T) {
	e := newTestEngine(t, 4)

	var invoked atomic.Bool
	h, err := e.ScheduleBatch(func(int, int) error {
		invoked.Store(true)
		return nil
	}, 0, 10)
	if err != nil {
		t.Fatalf("ScheduleBatch: %v", err)
	}
	if !h.Completed() {
		t.Fatal("zero-count handle must be already complete")
	}
	if invoked.Load() {
		t.Fatal("zero-count action must never be invoked")
	}
}

func TestParallelFaultRetained(t *testing.T) {
	e := newTestEngine(t, 4)

	boom := errors.New("index 3 failed")
	h, err := e.ScheduleParallel(func(i int) error {
		if i == 3 {
			return boom
		}
		return nil
	}, 16)
	if err != nil {
		t.Fatalf("ScheduleParallel: %v", err)
	}
	h.Wait()
	if !h.Faulted() {
		t.Fatal("handle should fault when any index faults")
	}
	if !errors.Is(h.Err(), boom) {
		t.Fatalf("captured error = %v, want wrapped %v", h.Err(), boom)
	}
}

func TestWaitTimeout(t *testing.T) {
	e := newTestEngine(t, 2)

	h, err := e.Schedule(func() error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if h.WaitTimeout(50 * time.Millisecond) {
		t.Fatal("wait should time out long before the job finishes")
	}
	// Timing out observes, never cancels: the job still completes.
	if !h.WaitTimeout(5 * time.Second) {
		t.Fatal("job should complete when waited again with enough time")
	}
	if !h.Completed() {
		t.Fatal("handle should report completed after the second wait")
	}
}

func TestCompleteAll(t *testing.T) {
	e := newTestEngine(t, 4)

	var done atomic.Int32
	handles := make([]*Handle, 8)
	for i := range handles {
		h, err := e.Schedule(func() error {
			time.Sleep(20 * time.Millisecond)
			done.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		handles[i] = h
	}
	e.CompleteAll()
	if got := done.Load(); got != 8 {
		t.Fatalf("CompleteAll returned with %d/8 jobs finished", got)
	}
	for i, h := range handles {
		if !h.Completed() {
			t.Fatalf("handle %d not resolved after CompleteAll", i)
		}
	}
}

func TestScheduleAfterClose(t *testing.T) {
	e, err := NewEngine(Config{MaxParallelism: 2}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.Close()
	e.Close() // idempotent

	if _, err := e.Schedule(func() error { return nil }); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("Schedule after Close = %v, want ErrEngineClosed", err)
	}
	if _, err := e.ScheduleParallel(func(int) error { return nil }, 10); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("ScheduleParallel after Close = %v, want ErrEngineClosed", err)
	}
	if _, err := e.ScheduleBatch(func(int, int) error { return nil }, 10, 2); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("ScheduleBatch after Close = %v, want ErrEngineClosed", err)
	}
}

func TestSingleWorkerStillDrainsDependencyChains(t *testing.T) {
	// A chain of dependent jobs must not deadlock a one-worker pool.
	e := newTestEngine(t, 1)

	var order []int
	var prev *Handle
	var last *Handle
	for i := 0; i < 10; i++ {
		i := i
		deps := []*Handle{}
		if prev != nil {
			deps = append(deps, prev)
		}
		h, err := e.Schedule(func() error {
			order = append(order, i)
			return nil
		}, deps...)
		if err != nil {
			t.Fatalf("Schedule %d: %v", i, err)
		}
		prev, last = h, h
	}
	if !last.WaitTimeout(5 * time.Second) {
		t.Fatal("dependency chain did not drain on a single worker")
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("order[%d] = %d, chain executed out of order", i, got)
		}
	}
}
