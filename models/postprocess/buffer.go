package postprocess

// Buffer is a fixed-capacity sequence of detections that is allocated once and
// reset every frame. Appending to a full buffer is a no-op that reports
// false: overflow truncates, it never grows the backing array.
type Buffer struct {
	items []Detection
}

// NewBuffer allocates a buffer that holds up to capacity detections.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{items: make([]Detection, 0, capacity)}
}

// Reset empties the buffer without releasing memory.
func (b *Buffer) Reset() {
	b.items = b.items[:0]
}

// Append stores d if there is room and reports whether it was stored.
func (b *Buffer) Append(d Detection) bool {
	if len(b.items) == cap(b.items) {
		return false
	}
	b.items = append(b.items, d)
	return true
}

// AppendAll copies as many of ds as fit and returns how many were copied.
func (b *Buffer) AppendAll(ds []Detection) int {
	room := cap(b.items) - len(b.items)
	if room > len(ds) {
		room = len(ds)
	}
	b.items = append(b.items, ds[:room]...)
	return room
}

// Len returns the number of stored detections.
func (b *Buffer) Len() int { return len(b.items) }

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return cap(b.items) }

// Full reports whether no more detections fit.
func (b *Buffer) Full() bool { return len(b.items) == cap(b.items) }

// Detections returns the stored detections. The slice is only valid until the
// next Reset or Append; callers must copy what they keep across frames.
func (b *Buffer) Detections() []Detection {
	return b.items
}

// Grow reallocates the buffer to a new capacity and empties it. It is the
// resize path for shape changes, not something the per-frame loop calls.
func (b *Buffer) Grow(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	if capacity == cap(b.items) {
		b.Reset()
		return
	}
	b.items = make([]Detection, 0, capacity)
}
