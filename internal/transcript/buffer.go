package transcript

import (
	"strings"
	"sync"
	"time"
)

// Entry is one transcribed fragment. Immutable once appended.
type Entry struct {
	Timestamp int64 // unix milliseconds
	Text      string
}

// Buffer is a rolling, append-only log of transcript fragments.
// Arrival order is the source of truth for recency; the buffer never
// reorders. Eviction is lazy and runs before reads and appends, so
// staleness is bounded only by call frequency.
type Buffer struct {
	mu        sync.Mutex
	retention time.Duration
	entries   []Entry
}

func NewBuffer(retention time.Duration) *Buffer {
	return &Buffer{retention: retention}
}

func (b *Buffer) Append(text string, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evict(ts)
	b.entries = append(b.entries, Entry{
		Timestamp: ts.UnixMilli(),
		Text:      text,
	})
}

// RecentText returns the space-joined text of the last maxEntries
// entries in chronological order. Fewer entries than requested is fine.
func (b *Buffer) RecentText(maxEntries int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evict(time.Now())

	start := 0
	if len(b.entries) > maxEntries {
		start = len(b.entries) - maxEntries
	}

	parts := make([]string, 0, len(b.entries)-start)
	for _, e := range b.entries[start:] {
		parts = append(parts, e.Text)
	}

	return strings.Join(parts, " ")
}

// EvictOlderThan drops every entry whose age exceeds the retention
// window at the given instant.
func (b *Buffer) EvictOlderThan(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evict(now)
}

func (b *Buffer) evict(now time.Time) {
	cutoff := now.Add(-b.retention).UnixMilli()

	keep := 0
	for keep < len(b.entries) && b.entries[keep].Timestamp < cutoff {
		keep++
	}

	if keep > 0 {
		b.entries = append([]Entry(nil), b.entries[keep:]...)
	}
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.entries)
}

// Entries returns a snapshot copy of the current entries.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Entry(nil), b.entries...)
}
