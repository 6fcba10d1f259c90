package event

import (
	"sync"
	"testing"
)

type scored struct{ Points int }
type other struct{}

func TestDoubleBuffering(t *testing.T) {
	b := NewBus()
	var got []int
	Subscribe(b, func(ev scored) { got = append(got, ev.Points) })

	Emit(b, scored{Points: 1})
	b.DispatchAll()
	if len(got) != 0 {
		t.Fatal("event delivered in the frame it was emitted")
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v after swap, want [1]", got)
	}

	// The delivered frame's buffer is cleared on the next swap.
	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 {
		t.Fatalf("stale events redelivered: %v", got)
	}
}

func TestTypedDelivery(t *testing.T) {
	b := NewBus()
	var scores, others int
	Subscribe(b, func(scored) { scores++ })
	Subscribe(b, func(other) { others++ })

	Emit(b, scored{})
	Emit(b, scored{})
	Emit(b, other{})
	b.SwapBuffers()
	b.DispatchAll()

	if scores != 2 || others != 1 {
		t.Fatalf("scores=%d others=%d, want 2/1", scores, others)
	}
}

func TestConcurrentEmit(t *testing.T) {
	b := NewBus()
	total := 0
	Subscribe(b, func(scored) { total++ })

	const goroutines, each = 8, 100
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				Emit(b, scored{Points: i})
			}
		}()
	}
	wg.Wait()

	b.SwapBuffers()
	b.DispatchAll()
	if total != goroutines*each {
		t.Fatalf("delivered %d events, want %d", total, goroutines*each)
	}
}
