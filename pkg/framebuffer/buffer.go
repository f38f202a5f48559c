package framebuffer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/tauraamui/zedcv/pkg/video/videoframe"
)

var ErrClosed = errors.New("frame buffer closed")

type Stats struct {
	Pushed  uint64
	Dropped uint64
	Popped  uint64
}

type Buffer struct {
	mu       sync.Mutex
	frames   []videoframe.Frame
	head     int
	size     int
	isClosed bool
	// ready holds at most one wake token, it is armed whenever the buffer
	// may be non empty and a consumer could be waiting.
	ready  chan struct{}
	closed chan struct{}

	pushed  uint64
	dropped uint64
	popped  uint64
}

// New creates a buffer holding at most capacity frames, capacities below
// one are raised to one.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		frames: make([]videoframe.Frame, capacity),
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Push appends frame to the tail. When the buffer is full or closed the
// frame is closed and discarded and Push reports false.
func (b *Buffer) Push(frame videoframe.Frame) bool {
	if frame == nil {
		return false
	}

	b.mu.Lock()
	if b.isClosed || b.size == len(b.frames) {
		b.mu.Unlock()
		atomic.AddUint64(&b.dropped, 1)
		frame.Close()
		return false
	}
	b.frames[(b.head+b.size)%len(b.frames)] = frame
	b.size++
	atomic.AddUint64(&b.pushed, 1)
	b.mu.Unlock()

	b.signal()
	return true
}

// TryPop removes the head frame without waiting.
func (b *Buffer) TryPop() (videoframe.Frame, bool) {
	b.mu.Lock()
	frame, ok := b.popLocked()
	remaining := b.size
	if ok {
		atomic.AddUint64(&b.popped, 1)
	}
	b.mu.Unlock()

	if !ok {
		return nil, false
	}
	if remaining > 0 {
		b.signal()
	}
	return frame, true
}

// Pop removes the head frame, waiting for one to be pushed if the buffer
// is empty. It returns the context's error if ctx ends first, or ErrClosed
// once the buffer has been closed.
func (b *Buffer) Pop(ctx context.Context) (videoframe.Frame, error) {
	for {
		b.mu.Lock()
		if b.isClosed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		b.mu.Unlock()

		if frame, ok := b.TryPop(); ok {
			return frame, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.closed:
			return nil, ErrClosed
		case <-b.ready:
		}
	}
}

func (b *Buffer) popLocked() (videoframe.Frame, bool) {
	if b.size == 0 {
		return nil, false
	}
	frame := b.frames[b.head]
	b.frames[b.head] = nil
	b.head = (b.head + 1) % len(b.frames)
	b.size--
	return frame, true
}

func (b *Buffer) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Buffer) Cap() int {
	return len(b.frames)
}

func (b *Buffer) Stats() Stats {
	return Stats{
		Pushed:  atomic.LoadUint64(&b.pushed),
		Dropped: atomic.LoadUint64(&b.dropped),
		Popped:  atomic.LoadUint64(&b.popped),
	}
}

// Close releases every retained frame and wakes any waiting consumer.
// Pushes after Close are dropped. Calling Close more than once is a no-op.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed {
		return
	}
	b.isClosed = true
	for {
		frame, ok := b.popLocked()
		if !ok {
			break
		}
		frame.Close()
	}
	close(b.closed)
}
