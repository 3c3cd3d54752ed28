package debugbus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level classifies a debug entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// DefaultCap bounds the in-memory buffer when no cap is configured.
const DefaultCap = 500

// Entry is one structured debug log entry.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      Level     `json:"type"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
}

// Bus is an in-process publish/subscribe channel for debug entries. It is
// constructed once and passed by reference to collaborators; there is no
// package-level instance. The buffer is bounded: once cap entries are held,
// publishing drops the oldest entry.
type Bus struct {
	mu      sync.Mutex
	cap     int
	entries []Entry // newest first
	subs    map[int]chan Entry
	nextSub int
}

// New creates a bus holding at most cap entries.
func New(cap int) *Bus {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Bus{
		cap:  cap,
		subs: make(map[int]chan Entry),
	}
}

// Publish appends an entry at the head and fans it out to subscribers.
// Delivery to the buffer is synchronous and ordered by publish call order; a
// subscriber that cannot keep up misses entries rather than blocking.
func (b *Bus) Publish(level Level, message string, details any) Entry {
	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      level,
		Message:   message,
		Details:   details,
	}

	b.mu.Lock()
	b.entries = append([]Entry{entry}, b.entries...)
	if len(b.entries) > b.cap {
		b.entries = b.entries[:b.cap]
	}
	for _, sub := range b.subs {
		select {
		case sub <- entry:
		default:
		}
	}
	b.mu.Unlock()

	return entry
}

// Info publishes an info entry.
func (b *Bus) Info(message string, details any) Entry {
	return b.Publish(LevelInfo, message, details)
}

// Warning publishes a warning entry.
func (b *Bus) Warning(message string, details any) Entry {
	return b.Publish(LevelWarning, message, details)
}

// Error publishes an error entry.
func (b *Bus) Error(message string, details any) Entry {
	return b.Publish(LevelError, message, details)
}

// Entries returns a copy of the buffer, newest first.
func (b *Bus) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Clear drops all buffered entries. Subscriptions stay open.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

// Subscribe registers a live listener. The returned cancel func must be
// called to release the subscription.
func (b *Bus) Subscribe() (<-chan Entry, func()) {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	ch := make(chan Entry, 64)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Export serializes the buffered entries, newest first, as a JSON array.
func (b *Bus) Export() ([]byte, error) {
	entries := b.Entries()
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal debug entries: %w", err)
	}
	return data, nil
}

// ExportFilename is the download name for an export taken at the given time.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("debug-logs-%s.json", now.UTC().Format(time.RFC3339))
}
