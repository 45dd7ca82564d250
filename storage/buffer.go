package storage

import (
	"bytes"
	"sync"
)

// Buffer captures process output up to a byte limit. Writes past the limit
// are counted and dropped; Write never returns an error.
type Buffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int64
	size  int64
}

// NewBuffer returns a buffer keeping at most limit bytes. A limit of zero or
// less keeps everything.
func NewBuffer(limit int64) *Buffer {
	return &Buffer{limit: limit}
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.size += int64(len(p))
	keep := p
	if b.limit > 0 {
		room := b.limit - int64(b.buf.Len())
		if room <= 0 {
			return len(p), nil
		}
		if int64(len(keep)) > room {
			keep = keep[:room]
		}
	}
	b.buf.Write(keep)
	return len(p), nil
}

// Size is the number of bytes written, including dropped ones.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Buffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size > int64(b.buf.Len())
}

// Bytes returns a copy of the kept bytes.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

func (b *Buffer) String() string {
	return string(b.Bytes())
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
	b.size = 0
}
