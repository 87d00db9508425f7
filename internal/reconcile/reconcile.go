// Package reconcile implements the client side of optimistic-send
// reconciliation: a message rendered immediately under a temporary id
// is replaced in place once the authoritative copy arrives, so a
// logical send is never visible twice regardless of the order in which
// acknowledgment and broadcast echo arrive.
package reconcile

import "sync"

// Message is the minimal view of a chat message the timeline needs.
type Message struct {
	ID         int64
	RoomID     int64
	SenderID   int64
	SenderName string
	Body       string
	TempID     string
	CreatedAt  string
}

// Timeline is an ordered list of messages for one room with pending
// optimistic entries keyed by tempId. Safe for concurrent use; a
// client typically appends from its send path and applies broadcasts
// from its read loop.
type Timeline struct {
	mu      sync.Mutex
	entries []Message
	pending map[string]int // tempId → index into entries
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{pending: make(map[string]int)}
}

// AddPending appends an optimistic entry keyed by tempID. The entry
// stays visible until a broadcast with the same tempID replaces it.
func (t *Timeline) AddPending(tempID string, msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg.TempID = tempID
	t.entries = append(t.entries, msg)
	t.pending[tempID] = len(t.entries) - 1
}

// Apply integrates a broadcast message. When its tempID matches a
// pending entry, that entry is replaced in place (same position);
// otherwise the message is appended. Applying the same authoritative
// message twice keeps exactly one visible copy.
func (t *Timeline) Apply(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.TempID != "" {
		if idx, ok := t.pending[msg.TempID]; ok {
			t.entries[idx] = msg
			delete(t.pending, msg.TempID)
			return
		}
	}

	// Broadcast may race a request-path acknowledgment that already
	// resolved this id; never show the same message twice.
	for _, existing := range t.entries {
		if existing.ID != 0 && existing.ID == msg.ID {
			return
		}
	}

	t.entries = append(t.entries, msg)
}

// Resolve replaces a pending entry with the authoritative copy from a
// request-path acknowledgment. Equivalent to Apply with the tempID the
// send was issued under.
func (t *Timeline) Resolve(tempID string, msg Message) {
	msg.TempID = tempID
	t.Apply(msg)
}

// Messages returns a snapshot of the timeline in display order.
func (t *Timeline) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Message, len(t.entries))
	copy(out, t.entries)
	return out
}

// PendingCount reports how many optimistic entries are unresolved.
func (t *Timeline) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
