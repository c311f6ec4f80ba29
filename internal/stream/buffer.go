package stream

import (
	"strings"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before buffered tokens are published
const DefaultDebounce = 20 * time.Millisecond

// RenderBuffer accumulates the reply of one in-flight assistant turn and
// publishes it once no token has arrived for the debounce delay. Each session
// owns its own buffer and timer.
//
// publish runs with the buffer's lock held and must not call back into the
// buffer.
type RenderBuffer struct {
	mu       sync.Mutex
	delay    time.Duration
	content  strings.Builder
	snapshot string
	timer    *time.Timer
	gen      uint64
	publish  func(string)
}

// NewRenderBuffer creates a buffer. A non-positive delay uses DefaultDebounce;
// publish may be nil.
func NewRenderBuffer(delay time.Duration, publish func(string)) *RenderBuffer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &RenderBuffer{delay: delay, publish: publish}
}

// Append adds a token followed by a separating space and restarts the
// debounce timer.
func (b *RenderBuffer) Append(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.content.WriteString(token)
	b.content.WriteByte(' ')

	b.gen++
	gen := b.gen
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, func() { b.fire(gen) })
}

func (b *RenderBuffer) fire(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// superseded by a newer Append, a Flush or a Reset
	if gen != b.gen {
		return
	}
	b.timer = nil
	b.publishLocked()
}

func (b *RenderBuffer) publishLocked() {
	b.snapshot = b.content.String()
	if b.publish != nil {
		b.publish(b.snapshot)
	}
}

// Flush cancels the pending timer and publishes the current content now,
// unless it was already published.
func (b *RenderBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopLocked()
	if b.content.String() == b.snapshot {
		return
	}
	b.publishLocked()
}

// Reset cancels the pending timer and clears both content and snapshot.
// Nothing is published.
func (b *RenderBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopLocked()
	b.content.Reset()
	b.snapshot = ""
}

func (b *RenderBuffer) stopLocked() {
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// Content returns everything appended since the last Reset
func (b *RenderBuffer) Content() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content.String()
}

// Snapshot returns the last published text
func (b *RenderBuffer) Snapshot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot
}

// Pending reports whether a publish is scheduled
func (b *RenderBuffer) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timer != nil
}

// Delay returns the debounce delay
func (b *RenderBuffer) Delay() time.Duration {
	return b.delay
}
