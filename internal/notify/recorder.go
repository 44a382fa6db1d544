package notify

import (
	"sync"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
)

// Recorder keeps every event in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []core.NotificationEvent
	closed bool
}

var _ core.Notifier = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(event core.NotificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *Recorder) Events() []core.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.NotificationEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kind of every recorded event, in order.
func (r *Recorder) Kinds() []core.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]core.NotificationKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind core.NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
