// Package notify is a thin façade over the memory package's pending
// notifications table, giving the rest of the pipeline a narrow
// interface (queue a message, drain what's pending) instead of reaching
// into memory.Store's full surface for this one concern.
package notify

import "github.com/NoobyNull/Laminark-sub004/internal/memory"

// Bus queues and delivers one-shot, per-project notifications.
type Bus struct {
	store *memory.Store
}

// New wraps a store as a notification bus.
func New(store *memory.Store) *Bus {
	return &Bus{store: store}
}

// Queue enqueues a message for the next consumer in this project.
func (b *Bus) Queue(projectHash, message string) error {
	return b.store.QueueNotification(projectHash, message)
}

// Drain returns and clears every pending message for a project.
func (b *Bus) Drain(projectHash string) ([]string, error) {
	pending, err := b.store.ConsumePending(projectHash)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(pending))
	for i, p := range pending {
		out[i] = p.Message
	}
	return out, nil
}
