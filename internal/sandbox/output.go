package sandbox

import (
	"bytes"
	"sync"
)

// LimitBuffer is an io.Writer that keeps at most max bytes and silently
// discards the rest. Writes never fail: returning an error from an exec.Cmd
// or docker attach copy would abort the stream, and hitting the capture limit
// must not change how the snippet runs. Already-captured data is preserved.
type LimitBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

func NewLimitBuffer(max int) *LimitBuffer {
	return &LimitBuffer{max: max}
}

func (b *LimitBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.max - b.buf.Len()
	switch {
	case remaining <= 0:
		b.truncated = true
	case len(p) > remaining:
		b.buf.Write(p[:remaining])
		b.truncated = true
	default:
		b.buf.Write(p)
	}
	// Report the full length so the writing side never sees a short write.
	return len(p), nil
}

func (b *LimitBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *LimitBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
