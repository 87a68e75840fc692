package conn

// List is an intrusive circular doubly-linked list of Connections
// awaiting accept(). Intrusive because the prev/next slots live
// directly on Connection, so membership changes never allocate.
type List struct {
	head *Connection
	n    int
}

// Len reports the number of connections currently queued.
func (l *List) Len() int { return l.n }

// PushBack appends c to the list. A connection already in a list is
// left untouched.
func (l *List) PushBack(c *Connection) {
	if c.inList {
		return
	}
	if l.head == nil {
		c.listPrev, c.listNext = c, c
		l.head = c
	} else {
		last := l.head.listPrev
		last.listNext = c
		c.listPrev = last
		c.listNext = l.head
		l.head.listPrev = c
	}
	c.inList = true
	l.n++
}

// Remove unlinks c from the list. Removing a connection not present is
// a no-op.
func (l *List) Remove(c *Connection) {
	if !c.inList {
		return
	}
	if c.listNext == c {
		l.head = nil
	} else {
		c.listPrev.listNext = c.listNext
		c.listNext.listPrev = c.listPrev
		if l.head == c {
			l.head = c.listNext
		}
	}
	c.listPrev, c.listNext = nil, nil
	c.inList = false
	l.n--
}

// Front returns the first queued connection, or nil if the list is
// empty.
func (l *List) Front() *Connection { return l.head }

// PopFront removes and returns the first queued connection, or nil if
// the list is empty.
func (l *List) PopFront() *Connection {
	c := l.head
	if c == nil {
		return nil
	}
	l.Remove(c)
	return c
}
