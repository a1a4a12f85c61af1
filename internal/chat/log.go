package chat

import "sync"

// Log is an append-only, insertion-ordered sequence of rendered lines.
// Entries are never removed or modified once appended.
type Log struct {
	mu      sync.RWMutex
	entries []string
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a line at the end of the log.
func (l *Log) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, line)
}

// Entries returns a copy of every line in insertion order.
func (l *Log) Entries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of lines appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
