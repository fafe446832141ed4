package logging

import (
	"strings"
	"sync"
	"time"
)

// DefaultRecorderSize is the number of entries a Recorder keeps when no
// size is given.
const DefaultRecorderSize = 1000

// Entry is one recorded log line.
type Entry struct {
	ID        uint64                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// QueryOptions filters recorded entries. Zero values match everything.
type QueryOptions struct {
	Level     string
	RequestID string
	Since     time.Time
	Search    string
	Offset    int
	Limit     int
}

// Recorder keeps the most recent log entries in a ring buffer so they can
// be served over the HTTP API.
type Recorder struct {
	mu      sync.RWMutex
	entries []Entry
	start   int
	size    int
	nextID  uint64
}

// NewRecorder creates a Recorder holding up to size entries.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = DefaultRecorderSize
	}
	return &Recorder{entries: make([]Entry, size), nextID: 1}
}

// Record appends e, evicting the oldest entry when full. The entry ID is
// assigned here.
func (r *Recorder) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.ID = r.nextID
	r.nextID++

	if r.size < len(r.entries) {
		r.entries[(r.start+r.size)%len(r.entries)] = e
		r.size++
		return
	}
	r.entries[r.start] = e
	r.start = (r.start + 1) % len(r.entries)
}

// Len returns the number of entries held.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Query returns matching entries newest first, paginated by Offset and
// Limit, and the number of matches before pagination.
func (r *Recorder) Query(opts QueryOptions) ([]Entry, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(opts.Search)
	var matches []Entry
	for i := r.size - 1; i >= 0; i-- {
		e := r.entries[(r.start+i)%len(r.entries)]
		if opts.Level != "" && e.Level != opts.Level {
			continue
		}
		if opts.RequestID != "" && e.RequestID != opts.RequestID {
			continue
		}
		if !opts.Since.IsZero() && e.Timestamp.Before(opts.Since) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Message), search) {
			continue
		}
		matches = append(matches, e)
	}

	total := len(matches)
	if opts.Offset > 0 {
		if opts.Offset >= len(matches) {
			return nil, total
		}
		matches = matches[opts.Offset:]
	}
	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches, total
}

// Clear drops every entry. IDs keep increasing.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start, r.size = 0, 0
}
