package stream

// connBuffer is the fixed-capacity staging area for bytes not yet parsed
// into a complete frame. Invariant: 0 <= readPos <= writePos <= cap(buf).
// The capacity must cover the largest single message the sender may emit;
// that is a configuration precondition, never adjusted at runtime.
type connBuffer struct {
	buf      []byte
	readPos  int
	writePos int
}

func newConnBuffer(capacity int) (*connBuffer, error) {
	if capacity <= 0 {
		return nil, ErrCapacityConfig
	}
	return &connBuffer{buf: make([]byte, capacity)}, nil
}

func (b *connBuffer) capacity() int {
	return len(b.buf)
}

// unread returns the region holding bytes received but not yet consumed.
func (b *connBuffer) unread() []byte {
	return b.buf[b.readPos:b.writePos]
}

func (b *connBuffer) unreadLen() int {
	return b.writePos - b.readPos
}

// free returns the writable region after writePos.
func (b *connBuffer) free() []byte {
	return b.buf[b.writePos:]
}

// full reports that no writable space remains.
func (b *connBuffer) full() bool {
	return b.writePos == len(b.buf)
}

// compact moves the unread region to offset 0, maximizing contiguous
// free space before the next read.
func (b *connBuffer) compact() {
	if b.readPos == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.readPos:b.writePos])
	b.readPos = 0
	b.writePos = n
}

// advanceWrite records n bytes appended to the free region.
func (b *connBuffer) advanceWrite(n int) {
	b.writePos += n
}

// advanceRead consumes n bytes from the front of the unread region.
func (b *connBuffer) advanceRead(n int) {
	b.readPos += n
}
