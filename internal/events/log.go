package events

import "sync"

// Log is the bounded global event log: append-only with oldest-first
// eviction once the cap is reached. Per-call histories on call records are
// never affected by this eviction.
type Log struct {
	mu      sync.Mutex
	cap     int
	entries []Entry
}

// NewLog creates a log holding at most cap entries. cap must be > 0.
func NewLog(cap int) *Log {
	if cap <= 0 {
		cap = 100
	}
	return &Log{cap: cap}
}

func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if n := len(l.entries) - l.cap; n > 0 {
		l.entries = append(l.entries[:0], l.entries[n:]...)
	}
}

// Recent returns up to limit entries, most recent first.
// limit <= 0 returns everything retained.
func (l *Log) Recent(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) Cap() int { return l.cap }
