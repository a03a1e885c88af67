// Package arena implements a region-based allocator with chained block
// growth (spec §3, §4.A). Every Session and every Agent owns one: allocating
// from an arena hands out stable byte spans that stay valid until the arena
// is reset or destroyed, and an entire graph of data is released in one
// shot instead of being freed piecemeal.
//
// No library in the retrieval pack implements an arena allocator (Go's own
// `arena` package never left experimental status and isn't importable from
// a normal module), so this is built directly on the stdlib: a slice is a
// fixed backing array plus a length, and a sub-slice of it never moves, so
// bump-pointer allocation falls out of plain slicing.
package arena

import "fmt"

// MinBlockSize is the smallest block an Arena will ever allocate, matching
// spec §4.A ("initial_capacity: allocates one block of max(initial_capacity,
// 4 KiB)").
const MinBlockSize = 4 * 1024

const align = 8

type block struct {
	buf  []byte
	used int
}

func (b *block) remaining() int { return len(b.buf) - b.used }

// Arena is a growable linear allocator. It is not safe for concurrent use;
// each Session/Agent owns and allocates from exactly one arena on one
// goroutine at a time (spec §5).
type Arena struct {
	blocks   []*block
	active   int // index into blocks of the block currently being filled
	nextCap  int // capacity of the next chained block (geometric growth)
	destroyed bool
}

// Stats reports arena-wide allocation statistics (spec §4.A).
type Stats struct {
	TotalCapacity  int
	TotalAllocated int
	BlockCount     int
	LargestBlock   int
}

// New creates an arena with one initial block of at least initialCapacity
// bytes (floored at MinBlockSize).
func New(initialCapacity int) *Arena {
	cap0 := initialCapacity
	if cap0 < MinBlockSize {
		cap0 = MinBlockSize
	}
	a := &Arena{}
	a.addBlock(cap0)
	a.nextCap = cap0 * 2
	return a
}

func (a *Arena) addBlock(size int) {
	a.blocks = append(a.blocks, &block{buf: make([]byte, size)})
	a.active = len(a.blocks) - 1
}

// Alloc returns an 8-byte-aligned, zeroed span of n bytes. The returned
// slice is stable for the arena's lifetime: the backing array is never
// reallocated out from under a caller, only a fresh block is chained when
// the active one runs out of room.
func (a *Arena) Alloc(n int) []byte {
	if a.destroyed {
		panic("arena: Alloc called on destroyed arena")
	}
	if n < 0 {
		panic("arena: negative allocation size")
	}

	cur := a.blocks[a.active]
	// Align the bump pointer up to `align` bytes within the block.
	aligned := (cur.used + align - 1) &^ (align - 1)
	if aligned+n <= len(cur.buf) {
		cur.used = aligned + n
		return cur.buf[aligned : aligned+n : aligned+n]
	}

	// Current block can't fit this allocation; grow geometrically, but
	// always big enough to hold n itself.
	size := a.nextCap
	if n > size {
		size = roundUp(n)
	}
	a.addBlock(size)
	a.nextCap *= 2

	cur = a.blocks[a.active]
	cur.used = n
	return cur.buf[0:n:n]
}

func roundUp(n int) int {
	size := MinBlockSize
	for size < n {
		size *= 2
	}
	return size
}

// Strdup copies a string into the arena (spec §4.A "strdup") and returns a
// string converted from those bytes. The conversion copies, so the returned
// string does not alias arena memory and is unaffected by Reset or Destroy.
func (a *Arena) Strdup(s string) string {
	buf := a.Alloc(len(s))
	copy(buf, s)
	return string(buf)
}

// Reset marks every block empty without freeing the underlying memory.
// Every pointer/slice previously returned by Alloc becomes logically
// invalid the instant Reset is called, even though the Go runtime won't
// reclaim the backing arrays until nothing else references them.
func (a *Arena) Reset() {
	for _, b := range a.blocks {
		b.used = 0
	}
	a.active = 0
}

// Destroy releases every block. The arena must not be used afterward.
func (a *Arena) Destroy() {
	a.blocks = nil
	a.destroyed = true
}

// Stats reports the arena's current footprint.
func (a *Arena) Stats() Stats {
	var s Stats
	s.BlockCount = len(a.blocks)
	for _, b := range a.blocks {
		s.TotalCapacity += len(b.buf)
		s.TotalAllocated += b.used
		if len(b.buf) > s.LargestBlock {
			s.LargestBlock = len(b.buf)
		}
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("arena{capacity=%d allocated=%d blocks=%d largest=%d}",
		s.TotalCapacity, s.TotalAllocated, s.BlockCount, s.LargestBlock)
}
