// Package timerheap implements the min-heap ordering Connections by
// their next scheduled wake-up. It is grounded on the
// container/heap.Interface shape SagerNet/smux's shaperHeap builds its
// priority queue of pending writes on: a slice-backed heap.Interface
// plus heap.Push/Pop/Fix/Remove, generalized here to carry an explicit
// back-pointer (HeapIndex) so a Connection can be repositioned or
// removed in O(log n) without a linear scan.
package timerheap

import (
	"container/heap"
	"errors"
)

// maxEntries bounds the heap the same way the connection hash and
// strike register are bounded: a hard ceiling rather than unbounded
// growth.
const maxEntries = 1 << 28

// ErrFull is returned by Add once the heap has reached maxEntries.
var ErrFull = errors.New("timerheap: at capacity")

// Item is anything the heap can order: a next-wake-up timestamp, a
// tie-breaking cookie, and a slot for the heap to record its current
// index so Remove/Fix don't need to search for it.
type Item interface {
	NextTick() int64
	LocalCookie() uint64
	HeapIndex() int
	SetHeapIndex(int)
}

// less implements the ordering rule: any next_tick <= 0 means "no
// timer" and sorts after every positive value; ties break on ascending
// local cookie, which is unique, giving a total and deterministic
// order.
func less(a, b Item) bool {
	na, nb := a.NextTick(), b.NextTick()
	aNone, bNone := na <= 0, nb <= 0
	if aNone != bNone {
		return bNone
	}
	if !aNone && na != nb {
		return na < nb
	}
	return a.LocalCookie() < b.LocalCookie()
}

// Heap is a min-heap of Items ordered by less.
type Heap struct {
	items []Item
}

// New creates an empty timer heap.
func New() *Heap {
	return &Heap{}
}

// Len, Less, Swap, Push, and Pop implement container/heap.Interface.
// They are exported so callers outside this package can still reach
// heap.Fix/heap.Remove directly if ever needed, but ordinary use goes
// through Add/Remove/Fix/Peek below.

func (h *Heap) Len() int { return len(h.items) }

func (h *Heap) Less(i, j int) bool { return less(h.items[i], h.items[j]) }

func (h *Heap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].SetHeapIndex(i)
	h.items[j].SetHeapIndex(j)
}

func (h *Heap) Push(x interface{}) {
	it := x.(Item)
	it.SetHeapIndex(len(h.items))
	h.items = append(h.items, it)
}

func (h *Heap) Pop() interface{} {
	n := len(h.items)
	it := h.items[n-1]
	h.items[n-1] = nil
	h.items = h.items[:n-1]
	it.SetHeapIndex(-1)
	return it
}

// Add inserts it into the heap, failing with ErrFull at capacity.
func (h *Heap) Add(it Item) error {
	if len(h.items) >= maxEntries {
		return ErrFull
	}
	heap.Push(h, it)
	return nil
}

// Remove takes it out of the heap. it must currently be resident
// (HeapIndex() >= 0); behavior is undefined otherwise.
func (h *Heap) Remove(it Item) {
	heap.Remove(h, it.HeapIndex())
}

// Fix repositions it after its NextTick has changed externally.
func (h *Heap) Fix(it Item) {
	heap.Fix(h, it.HeapIndex())
}

// Peek returns the item with the least next_tick under the ordering
// rule, or nil if the heap is empty.
func (h *Heap) Peek() Item {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}
