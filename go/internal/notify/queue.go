package notify

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultGraceDelay is how long after a dialog closes before the next queued
// item is shown. Replacing a dialog the instant the previous one closes is
// jarring for the operator.
const DefaultGraceDelay = 200 * time.Millisecond

// Action is one button on a prompt.
type Action struct {
	Label string `json:"label"`
	Kind  string `json:"kind,omitempty"` // "", "primary" or "danger"
	Do    func() `json:"-"`
}

// Item is one prompt destined for the single dialog slot.
type Item struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Actions []Action `json:"actions,omitempty"`
}

// Surface renders the single visible dialog. Implementations decide how; the
// queue only guarantees Show is never called while a previous dialog is
// still up.
type Surface interface {
	Show(item Item)
	Hide()
}

// Queue serializes prompts through the one visible dialog slot. Queued
// notifications drain FIFO, exactly one dialog is visible at a time, and a
// close always re-attempts the drain after a short grace delay so no queued
// item is silently dropped. Direct user-triggered dialogs go through Open
// and win the slot only when it is free; they never preempt a visible
// dialog.
type Queue struct {
	surface Surface
	clock   clockwork.Clock
	grace   time.Duration

	mu      sync.Mutex
	items   []Item
	visible bool
}

// NewQueue creates a queue draining into surface.
func NewQueue(surface Surface, clock clockwork.Clock) *Queue {
	return &Queue{surface: surface, clock: clock, grace: DefaultGraceDelay}
}

// Enqueue appends a notification item. Call TryDrain afterwards to show it
// if the slot is free.
func (q *Queue) Enqueue(item Item) {
	q.mu.Lock()
	q.items = append(q.items, item)
	n := len(q.items)
	q.mu.Unlock()
	log.Debug().Str("item_id", item.ID).Str("title", item.Title).Int("queued", n).Msg("notification enqueued")
}

// TryDrain shows the oldest queued item if no dialog is currently visible.
// Returns true if an item was shown.
func (q *Queue) TryDrain() bool {
	q.mu.Lock()
	if q.visible || len(q.items) == 0 {
		q.mu.Unlock()
		return false
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.visible = true
	q.mu.Unlock()

	q.surface.Show(item)
	return true
}

// Open shows a direct, user-triggered dialog immediately if the slot is
// free. Returns false when another dialog is visible; the caller decides
// whether to retry.
func (q *Queue) Open(item Item) bool {
	q.mu.Lock()
	if q.visible {
		q.mu.Unlock()
		return false
	}
	q.visible = true
	q.mu.Unlock()

	q.surface.Show(item)
	return true
}

// Close hides the visible dialog and schedules the next drain attempt after
// the grace delay.
func (q *Queue) Close() {
	q.mu.Lock()
	wasVisible := q.visible
	q.visible = false
	q.mu.Unlock()

	if wasVisible {
		q.surface.Hide()
	}
	q.clock.AfterFunc(q.grace, func() { q.TryDrain() })
}

// Visible reports whether a dialog currently occupies the slot.
func (q *Queue) Visible() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.visible
}

// Len returns how many items are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
