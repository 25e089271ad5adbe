package extractor

import "sync"

// lineRing is a thread-safe ring buffer capturing the last N lines of
// subprocess output, used to attach a stderr tail to failure errors.
type lineRing struct {
	mu    sync.RWMutex
	lines []string
	head  int
	count int
}

func newLineRing(capacity int) *lineRing {
	if capacity < 1 {
		capacity = 32
	}
	return &lineRing{lines: make([]string, capacity)}
}

// Add appends one line, evicting the oldest when full.
func (r *lineRing) Add(line string) {
	if line == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// Tail returns the buffered lines in chronological order.
func (r *lineRing) Tail() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, r.count)
	start := (r.head - r.count + len(r.lines)) % len(r.lines)
	for i := 0; i < r.count; i++ {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	return out
}
