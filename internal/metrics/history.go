package metrics

// History is a fixed-capacity deque of attempt snapshots.
// New entries go to the front; once full, the oldest entry falls off the back.
// It is not safe for concurrent use; Aggregator serializes access.
type History struct {
	buf   []AttemptSnapshot // buf is the ring storage, len == capacity
	head  int               // head is the index of the newest entry
	count int               // count is the number of live entries
}

// NewHistory creates a history holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}

	return &History{buf: make([]AttemptSnapshot, capacity)}
}

// PushFront inserts s as the newest entry, evicting the oldest when full.
func (h *History) PushFront(s AttemptSnapshot) {
	h.head = (h.head - 1 + len(h.buf)) % len(h.buf)
	h.buf[h.head] = s

	if h.count < len(h.buf) {
		h.count++
	}
}

// Len returns the number of entries.
func (h *History) Len() int {
	return h.count
}

// Cap returns the maximum number of entries.
func (h *History) Cap() int {
	return len(h.buf)
}

// At returns the i-th entry, 0 being the newest.
// It reports false when i is outside [0, Len()).
func (h *History) At(i int) (AttemptSnapshot, bool) {
	if i < 0 || i >= h.count {
		return AttemptSnapshot{}, false
	}

	return h.buf[(h.head+i)%len(h.buf)], true
}

// Slice copies the entries newest first.
func (h *History) Slice() []AttemptSnapshot {
	out := make([]AttemptSnapshot, h.count)
	for i := range out {
		out[i], _ = h.At(i)
	}

	return out
}
