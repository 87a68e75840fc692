// Package connindex implements the connection index: an
// incrementally-rehashed, open-chained hash table keyed by 64-bit
// connection cookies. Growth and shrink both migrate a bounded number
// of buckets per call rather than stopping the world, so no single
// insert or lookup ever pays for a full-table rehash. Keys are hashed
// with a seeded xxhash/v2 checksum in place of a keyed SipHash-2-4:
// xxhash/v2 is the nearest keyed, adversarial-collision-resistant
// non-cryptographic hash available, and prefixing the seed onto the
// cookie before hashing keys the digest the same way a dedicated seed
// parameter would.
package connindex

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

const (
	minSize = 1 << 6
	maxSize = 1 << 28
)

// Item is a value the index can store: something addressable by a
// unique 64-bit cookie and linkable into a chain.
type Item interface {
	Cookie() uint64
	Next() Item
	SetNext(Item)
}

// Index is the incrementally-rehashed connection hash table.
type Index struct {
	seed uint64

	cur   []Item
	old   []Item // nil when no rehash is in progress
	split int
	count int

	onRehash func(direction string)
}

// New creates an empty Index keyed by seed.
func New(seed uint64) *Index {
	return &Index{seed: seed, cur: make([]Item, minSize)}
}

// SetRehashObserver installs a callback invoked once a grow or shrink
// migration is started ("grow" or "shrink"). Passing nil disables it.
func (ix *Index) SetRehashObserver(fn func(direction string)) {
	ix.onRehash = fn
}

func (ix *Index) hash(cookie uint64) uint64 {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], ix.seed)
	binary.BigEndian.PutUint64(buf[8:16], cookie)
	return xxhash.Sum64(buf[:])
}

// locate returns the chain-head slice and bucket index that currently
// owns cookie, accounting for any rehash in progress.
func (ix *Index) locate(cookie uint64) ([]Item, int) {
	h := ix.hash(cookie)
	if ix.old == nil {
		return ix.cur, int(h & uint64(len(ix.cur)-1))
	}
	oldIdx := int(h & uint64(len(ix.old)-1))
	if oldIdx < ix.split {
		return ix.cur, int(h & uint64(len(ix.cur)-1))
	}
	return ix.old, oldIdx
}

// migrate moves up to n buckets from old into cur.
func (ix *Index) migrate(n int) {
	for i := 0; i < n && ix.old != nil; i++ {
		item := ix.old[ix.split]
		ix.old[ix.split] = nil
		for item != nil {
			next := item.Next()
			item.SetNext(nil)
			h := ix.hash(item.Cookie())
			idx := int(h & uint64(len(ix.cur)-1))
			item.SetNext(ix.cur[idx])
			ix.cur[idx] = item
			item = next
		}
		ix.split++
		if ix.split >= len(ix.old) {
			ix.old = nil
			ix.split = 0
		}
	}
}

// Find locates the resident Item for cookie, migrating one bucket
// first if a rehash is in progress.
func (ix *Index) Find(cookie uint64) Item {
	if ix.old != nil {
		ix.migrate(1)
	}
	table, idx := ix.locate(cookie)
	for cur := table[idx]; cur != nil; cur = cur.Next() {
		if cur.Cookie() == cookie {
			return cur
		}
	}
	return nil
}

// Add inserts item at the head of its bucket's chain. Inserting a
// cookie already present is undefined: callers must ensure cookies are
// unique before calling Add.
func (ix *Index) Add(item Item) {
	if ix.old != nil {
		ix.migrate(4)
	} else if ix.count >= len(ix.cur) && len(ix.cur) < maxSize {
		ix.old = ix.cur
		ix.cur = make([]Item, len(ix.old)*2)
		ix.split = 0
		if ix.onRehash != nil {
			ix.onRehash("grow")
		}
		ix.migrate(1)
	}
	table, idx := ix.locate(item.Cookie())
	item.SetNext(table[idx])
	table[idx] = item
	ix.count++
}

// Remove unlinks the Item for cookie, if present, and reports whether
// one was found. Removing a missing cookie is a no-op.
func (ix *Index) Remove(cookie uint64) bool {
	if ix.old != nil {
		ix.migrate(4)
	}
	table, idx := ix.locate(cookie)
	var prev Item
	cur := table[idx]
	for cur != nil {
		if cur.Cookie() == cookie {
			if prev == nil {
				table[idx] = cur.Next()
			} else {
				prev.SetNext(cur.Next())
			}
			cur.SetNext(nil)
			ix.count--
			ix.maybeShrink()
			return true
		}
		prev = cur
		cur = cur.Next()
	}
	return false
}

// maybeShrink halves the table, incrementally, once occupancy drops
// to a quarter of its capacity or less and it is still above the minimum
// size. A rehash already in progress takes precedence.
func (ix *Index) maybeShrink() {
	if ix.old != nil {
		return
	}
	if ix.count <= len(ix.cur)/4 && len(ix.cur) > minSize {
		ix.old = ix.cur
		ix.cur = make([]Item, len(ix.old)/2)
		ix.split = 0
		if ix.onRehash != nil {
			ix.onRehash("shrink")
		}
		ix.migrate(1)
	}
}

// Count reports the number of resident items.
func (ix *Index) Count() int {
	return ix.count
}

// Rehashing reports whether a grow or shrink migration is in progress.
func (ix *Index) Rehashing() bool {
	return ix.old != nil
}
