package meter

import "sync"

// Buffer is a fixed-capacity circular store of readings awaiting upload.
// Append never blocks: once full, the oldest unsent reading is overwritten.
// Append and Drain may be called from different goroutines.
type Buffer struct {
	mu     sync.Mutex
	slots  []Reading
	cursor int // next write position, always in [0, len(slots))
	count  int // readings written since the last drain, capped at len(slots)
}

// NewBuffer creates a buffer holding at most capacity readings
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{slots: make([]Reading, capacity)}
}

// Cap returns the buffer capacity N
func (b *Buffer) Cap() int {
	return len(b.slots)
}

// Len returns how many readings a Drain would currently return
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Append writes r at the cursor and advances it modulo capacity.
// It reports whether an unsent reading was overwritten.
func (b *Buffer) Append(r Reading) (overwrote bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slots[b.cursor] = r
	b.cursor = (b.cursor + 1) % len(b.slots)
	if b.count == len(b.slots) {
		return true
	}
	b.count++
	return false
}

// Drain returns every reading written since the previous drain, oldest first,
// and resets the buffer to empty. At most Cap() readings are returned: when more
// were appended, only the newest survive.
func (b *Buffer) Drain() []Reading {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Reading, b.count)
	start := (b.cursor - b.count + len(b.slots)) % len(b.slots)
	for i := range out {
		out[i] = b.slots[(start+i)%len(b.slots)]
	}

	b.cursor = 0
	b.count = 0
	return out
}
