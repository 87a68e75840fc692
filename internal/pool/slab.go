package pool

// slabNode is one pool-sized block backing part of a Buffer's byte
// stream, with start/end cursors into its payload region.
type slabNode struct {
	buf        []byte
	start, end int
	next       *slabNode
}

// Buffer is a FIFO byte queue whose storage is a singly linked list of
// pool slabs. Write is atomic: either the whole call commits or nothing
// is appended and an error is returned.
type Buffer struct {
	pool       *Pool
	head, tail *slabNode
	size       int
}

// NewBuffer creates an empty slab buffer backed by p.
func NewBuffer(p *Pool) *Buffer {
	return &Buffer{pool: p}
}

// Size reports the number of buffered, unread bytes.
func (b *Buffer) Size() int {
	return b.size
}

// Write appends data to the tail of the stream. Data first fills the
// tail slab's remainder, then additional slabs are allocated from the
// pool. If an allocation fails partway through, every slab
// provisionally allocated for this call is returned to the pool and no
// bytes are appended, rather than leaving a partially-extended stream.
func (b *Buffer) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	remaining := 0
	if b.tail != nil {
		remaining = len(b.tail.buf) - b.tail.end
	}

	var newHead, newTail *slabNode
	need := len(data) - remaining
	for need > 0 {
		blk, err := b.pool.Alloc()
		if err != nil {
			for n := newHead; n != nil; {
				next := n.next
				b.pool.Free(n.buf)
				n = next
			}
			return err
		}
		node := &slabNode{buf: blk}
		if newHead == nil {
			newHead = node
		} else {
			newTail.next = node
		}
		newTail = node
		need -= len(blk)
	}

	off := 0
	if b.tail != nil && remaining > 0 {
		n := remaining
		if n > len(data) {
			n = len(data)
		}
		copy(b.tail.buf[b.tail.end:], data[:n])
		b.tail.end += n
		off = n
	}
	for node := newHead; node != nil; node = node.next {
		n := len(node.buf)
		if off+n > len(data) {
			n = len(data) - off
		}
		copy(node.buf, data[off:off+n])
		node.end = n
		off += n
	}
	if newHead != nil {
		if b.head == nil {
			b.head = newHead
		} else {
			b.tail.next = newHead
		}
		b.tail = newTail
	}

	b.size += len(data)
	return nil
}

// Read copies from the head slab's [start,end) into dst and advances
// start, crossing into subsequent slabs until dst is full or the
// stream is empty. When a head slab empties it is returned to the
// pool. It returns the number of bytes copied.
func (b *Buffer) Read(dst []byte) int {
	total := 0
	for total < len(dst) && b.head != nil {
		n := copy(dst[total:], b.head.buf[b.head.start:b.head.end])
		b.head.start += n
		total += n
		b.size -= n
		if b.head.start == b.head.end {
			old := b.head
			b.head = b.head.next
			if b.head == nil {
				b.tail = nil
			}
			b.pool.Free(old.buf)
		}
	}
	return total
}

// Drain releases every slab still held by the buffer back to the pool,
// leaving it empty. Used when a Connection is destroyed.
func (b *Buffer) Drain() {
	for b.head != nil {
		old := b.head
		b.head = b.head.next
		b.pool.Free(old.buf)
	}
	b.tail = nil
	b.size = 0
}
