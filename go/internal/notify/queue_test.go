package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type fakeSurface struct {
	mu     sync.Mutex
	shown  []Item
	hidden int
}

func (f *fakeSurface) Show(item Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, item)
}

func (f *fakeSurface) Hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden++
}

func (f *fakeSurface) snapshot() ([]Item, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Item(nil), f.shown...), f.hidden
}

// waitShown polls until at least n items have been shown or a real-time
// deadline passes. The fake clock runs AfterFunc callbacks in their own
// goroutine, so a drain scheduled by Close completes asynchronously after
// Advance returns.
func waitShown(f *fakeSurface, n int) []Item {
	deadline := time.Now().Add(2 * time.Second)
	for {
		shown, _ := f.snapshot()
		if len(shown) >= n || time.Now().After(deadline) {
			return shown
		}
		time.Sleep(time.Millisecond)
	}
}

func TestQueueDrainsOneAtATime(t *testing.T) {
	surface := &fakeSurface{}
	clock := clockwork.NewFakeClock()
	q := NewQueue(surface, clock)

	q.Enqueue(Item{ID: "1", Title: "first"})
	q.Enqueue(Item{ID: "2", Title: "second"})

	if !q.TryDrain() {
		t.Fatal("drain with free slot should show an item")
	}
	if len(surface.shown) != 1 || surface.shown[0].ID != "1" {
		t.Fatalf("shown = %v, want only item 1", surface.shown)
	}
	if q.TryDrain() {
		t.Error("second drain must not preempt the visible dialog")
	}
	if q.Len() != 1 {
		t.Errorf("queue length = %d, want 1", q.Len())
	}
}

func TestQueueCloseDrainsAfterGrace(t *testing.T) {
	surface := &fakeSurface{}
	clock := clockwork.NewFakeClock()
	q := NewQueue(surface, clock)

	q.Enqueue(Item{ID: "1"})
	q.Enqueue(Item{ID: "2"})
	q.TryDrain()
	q.Close()

	if surface.hidden != 1 {
		t.Fatalf("hidden = %d, want 1", surface.hidden)
	}
	if len(surface.shown) != 1 {
		t.Fatal("next item must wait for the grace delay")
	}

	clock.Advance(DefaultGraceDelay)
	shown := waitShown(surface, 2)
	if len(shown) != 2 || shown[1].ID != "2" {
		t.Fatalf("shown = %v, want items 1 and 2", shown)
	}
}

func TestQueueOpenWinsOnlyFreeSlot(t *testing.T) {
	surface := &fakeSurface{}
	clock := clockwork.NewFakeClock()
	q := NewQueue(surface, clock)

	if !q.Open(Item{ID: "direct"}) {
		t.Fatal("open with free slot should succeed")
	}
	if q.Open(Item{ID: "second"}) {
		t.Error("open must not preempt a visible dialog")
	}
	if !q.Visible() {
		t.Error("slot should be occupied")
	}
}

func TestQueueCloseWithoutVisibleDialog(t *testing.T) {
	surface := &fakeSurface{}
	clock := clockwork.NewFakeClock()
	q := NewQueue(surface, clock)

	q.Close()
	if surface.hidden != 0 {
		t.Error("nothing to hide")
	}

	// The drain scheduled by close still runs, so an item enqueued
	// in between becomes visible.
	q.Enqueue(Item{ID: "1"})
	clock.Advance(DefaultGraceDelay)
	shown := waitShown(surface, 1)
	if len(shown) != 1 {
		t.Errorf("shown = %v, want the queued item", shown)
	}
}
